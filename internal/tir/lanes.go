package tir

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Barrier passes v through an empty side-effecting inline asm so the code
// generator cannot move work across the point where the result is used.
func (b *Builder) Barrier(v value.Value) value.Value {
	v = b.ToInt(v)
	t := v.Type()
	asm := ir.NewInlineAsm(types.NewPointer(types.NewFunc(t, t)), "; barrier", "=v,0")
	asm.SideEffect = true
	return b.cur.NewCall(asm, v)
}

// MapDwords applies fn to every 32-bit piece of v and reassembles the
// result in v's integer type. Narrow components are widened to 32 bits
// first, 64-bit components are split in two.
func (b *Builder) MapDwords(v value.Value, fn func(value.Value) value.Value) value.Value {
	v = b.ToInt(v)
	t := v.Type()
	bits := ScalarBits(t)
	n := NumComponents(t)

	switch {
	case bits < 32:
		out := make([]value.Value, n)
		for i := range out {
			c := b.cur.NewZExt(b.Extract(v, i), types.I32)
			out[i] = b.cur.NewTrunc(fn(c), IntType(bits))
		}
		return b.Gather(out)
	case bits == 32:
		out := make([]value.Value, n)
		for i := range out {
			out[i] = fn(b.Extract(v, i))
		}
		return b.Gather(out)
	default:
		words := n * int(bits/32)
		dw := b.Reshape(v, 32, words)
		out := make([]value.Value, words)
		for i := range out {
			out[i] = fn(b.Extract(dw, i))
		}
		return b.ConvertTo(b.Gather(out), t)
	}
}

// ReadFirstLane broadcasts the first active lane's copy of v.
func (b *Builder) ReadFirstLane(v value.Value) value.Value {
	return b.MapDwords(v, func(dw value.Value) value.Value {
		return b.Call("llvm.amdgcn.readfirstlane", types.I32, dw)
	})
}

// ReadLane broadcasts the copy of v held by lane.
func (b *Builder) ReadLane(v, lane value.Value) value.Value {
	lane = b.ToInt(lane)
	return b.MapDwords(v, func(dw value.Value) value.Value {
		return b.Call("llvm.amdgcn.readlane", types.I32, dw, lane)
	})
}
