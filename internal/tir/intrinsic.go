package tir

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Declare returns the declaration of a named function, creating it in the
// module on first use.
func (b *Builder) Declare(name string, ret types.Type, params ...types.Type) *ir.Func {
	if fn, ok := b.decls[name]; ok {
		return fn
	}
	ps := make([]*ir.Param, len(params))
	for i, t := range params {
		ps[i] = ir.NewParam("", t)
	}
	fn := b.Mod.NewFunc(name, ret, ps...)
	b.decls[name] = fn
	return fn
}

// Call declares name from the argument types and calls it.
func (b *Builder) Call(name string, ret types.Type, args ...value.Value) value.Value {
	params := make([]types.Type, len(args))
	for i, a := range args {
		params[i] = a.Type()
	}
	return b.cur.NewCall(b.Declare(name, ret, params...), args...)
}

// Overload appends the mangled suffixes of tys to base.
func Overload(base string, tys ...types.Type) string {
	var sb strings.Builder
	sb.WriteString(base)
	for _, t := range tys {
		sb.WriteByte('.')
		sb.WriteString(Suffix(t))
	}
	return sb.String()
}

// CallOverloaded calls base overloaded on ret.
func (b *Builder) CallOverloaded(base string, ret types.Type, args ...value.Value) value.Value {
	return b.Call(Overload(base, ret), ret, args...)
}

// Declarations returns the number of cached declarations.
func (b *Builder) Declarations() int { return len(b.decls) }
