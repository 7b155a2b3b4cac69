package tir

import (
	"fmt"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// BuildError reports a request the builder cannot satisfy, such as a
// float view of an 8-bit value. It is raised with panic and recovered by
// the translation driver.
type BuildError struct {
	Msg string
}

func (e *BuildError) Error() string { return e.Msg }

func failf(format string, args ...any) {
	panic(&BuildError{Msg: fmt.Sprintf(format, args...)})
}

// Builder appends instructions to one target function.
type Builder struct {
	Mod  *ir.Module
	Func *ir.Func

	cur   *ir.Block
	decls map[string]*ir.Func
	flow  []flowFrame
}

// NewBuilder returns a builder for f, positioned nowhere.
func NewBuilder(m *ir.Module, f *ir.Func) *Builder {
	b := &Builder{Mod: m, Func: f, decls: make(map[string]*ir.Func)}
	for _, fn := range m.Funcs {
		if fn != f && len(fn.Blocks) == 0 {
			b.decls[fn.Name()] = fn
		}
	}
	return b
}

// Cur returns the insertion block.
func (b *Builder) Cur() *ir.Block { return b.cur }

// NewBlock creates a block that is attached to the function when the
// builder is first positioned in it.
func (b *Builder) NewBlock() *ir.Block {
	return ir.NewBlock("")
}

// SetInsert positions the builder at the end of blk.
func (b *Builder) SetInsert(blk *ir.Block) {
	if blk.Parent == nil {
		blk.Parent = b.Func
		b.Func.Blocks = append(b.Func.Blocks, blk)
	}
	b.cur = blk
}

// Terminated reports whether the insertion block already has a terminator.
func (b *Builder) Terminated() bool {
	return b.cur == nil || b.cur.Term != nil
}

// Branch emits an unconditional branch unless the block is terminated.
func (b *Builder) Branch(target *ir.Block) {
	if !b.Terminated() {
		b.cur.NewBr(target)
	}
}

// CondBranch emits a conditional branch unless the block is terminated.
func (b *Builder) CondBranch(cond value.Value, t, f *ir.Block) {
	if !b.Terminated() {
		b.cur.NewCondBr(cond, t, f)
	}
}

// Phi creates a phi of type t with no incoming values at the start of
// the insertion block.
func (b *Builder) Phi(t types.Type) *ir.InstPhi {
	phi := &ir.InstPhi{Typ: t}
	insts := make([]ir.Instruction, 0, len(b.cur.Insts)+1)
	n := 0
	for n < len(b.cur.Insts) {
		if _, ok := b.cur.Insts[n].(*ir.InstPhi); !ok {
			break
		}
		n++
	}
	insts = append(insts, b.cur.Insts[:n]...)
	insts = append(insts, phi)
	insts = append(insts, b.cur.Insts[n:]...)
	b.cur.Insts = insts
	return phi
}

// AddIncoming adds x flowing in from pred. Representation mismatches
// are converted at the end of pred.
func (b *Builder) AddIncoming(phi *ir.InstPhi, x value.Value, pred *ir.Block) {
	if !types.Equal(x.Type(), phi.Typ) {
		saved := b.cur
		b.cur = pred
		x = b.ConvertTo(x, phi.Typ)
		b.cur = saved
	}
	phi.Incs = append(phi.Incs, ir.NewIncoming(x, pred))
}

// PhiOf builds a phi with the given incoming values.
func (b *Builder) PhiOf(t types.Type, incs ...*ir.Incoming) *ir.InstPhi {
	phi := b.Phi(t)
	phi.Incs = append(phi.Incs, incs...)
	return phi
}

// Finalize assigns local IDs to unnamed values.
func (b *Builder) Finalize() error {
	return b.Func.AssignIDs()
}

// ConstInt returns an integer constant of the given width holding the low
// bits of x, printed as a signed literal.
func ConstInt(bits uint8, x uint64) *constant.Int {
	if bits == 1 {
		return constant.NewBool(x&1 != 0)
	}
	shift := 64 - uint(bits)
	return constant.NewInt(IntType(bits), int64(x<<shift)>>shift)
}

// I32 returns an i32 constant.
func I32(x int64) *constant.Int { return constant.NewInt(types.I32, x) }

// I64 returns an i64 constant.
func I64(x int64) *constant.Int { return constant.NewInt(types.I64, x) }

// F32 returns a float constant.
func F32(x float32) *constant.Float { return constant.NewFloat(types.Float, float64(x)) }

// ConstFloat returns a float constant of the given width.
func ConstFloat(bits uint8, x float64) *constant.Float {
	ft := FloatType(bits)
	if ft == nil {
		failf("no %d-bit float type", bits)
	}
	return constant.NewFloat(ft, x)
}

// Bool returns an i1 constant.
func Bool(x bool) *constant.Int { return constant.NewBool(x) }

// Undef returns an undef of type t.
func Undef(t types.Type) *constant.Undef { return constant.NewUndef(t) }

// ConstValue returns the raw bits of an integer constant.
func ConstValue(v value.Value) (uint64, bool) {
	c, ok := v.(*constant.Int)
	if !ok || c.X == nil {
		return 0, false
	}
	var raw uint64
	if c.X.IsInt64() {
		raw = uint64(c.X.Int64())
	} else {
		raw = c.X.Uint64()
	}
	if c.Typ != nil && c.Typ.BitSize < 64 {
		raw &= (uint64(1) << c.Typ.BitSize) - 1
	}
	return raw, true
}

// floatBits reinterprets the raw bits of an integer constant as a float
// constant of the same width.
func floatBits(c *constant.Int, ft *types.FloatType) *constant.Float {
	raw, _ := ConstValue(c)
	switch ft.Kind {
	case types.FloatKindHalf:
		return constant.NewFloat(ft, float64(halfToFloat32(uint16(raw))))
	case types.FloatKindFloat:
		return constant.NewFloat(ft, float64(math.Float32frombits(uint32(raw))))
	default:
		return constant.NewFloat(ft, math.Float64frombits(raw))
	}
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff
	switch {
	case exp == 0 && mant == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal
		f := float32(mant) / 1024 / 16384
		if sign != 0 {
			return -f
		}
		return f
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | mant<<13)
}
