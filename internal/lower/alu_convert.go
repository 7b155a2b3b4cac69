package lower

import (
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/gpu"
	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// Float class test bits for llvm.amdgcn.class.
const (
	classNegSubnormal = 1 << 4
	classPosSubnormal = 1 << 7
)

// smallestHalfNormal is 2^-14 as f32 bits.
const smallestHalfNormal = 0x38800000

func (t *translator) convert(a *sir.ALUInstr, bits uint8, n int) value.Value {
	blk := t.cur()
	switch a.Op {
	case sir.OpF2I:
		return blk.NewFPToSI(t.broadcast(t.srcFloat(a.Srcs[0]), n), ivec(bits, n))
	case sir.OpF2U:
		return blk.NewFPToUI(t.broadcast(t.srcFloat(a.Srcs[0]), n), ivec(bits, n))
	case sir.OpI2F, sir.OpU2F:
		x := t.broadcast(t.srcInt(a.Srcs[0]), n)
		if a.Op == sir.OpU2F || tir.ScalarBits(x.Type()) == 1 {
			return blk.NewUIToFP(x, fvec(bits, n))
		}
		return blk.NewSIToFP(x, fvec(bits, n))
	case sir.OpI2I:
		return t.b.Resize(t.broadcast(t.srcInt(a.Srcs[0]), n), bits, true)
	case sir.OpU2U:
		return t.b.Resize(t.broadcast(t.srcInt(a.Srcs[0]), n), bits, false)
	case sir.OpF2F, sir.OpF2F16, sir.OpF2F16Rtz, sir.OpF2F16Rtne:
		x := t.broadcast(t.srcFloat(a.Srcs[0]), n)
		have := tir.ScalarBits(x.Type())
		switch {
		case bits == 16 && have > 16:
			return t.toHalf(a.Op, x)
		case bits < have:
			return blk.NewFPTrunc(x, fvec(bits, n))
		case bits > have:
			return blk.NewFPExt(x, fvec(bits, n))
		}
		return x
	}
	t.fatal("unsupported conversion %s", a.Op)
	return nil
}

// toHalf converts floats to f16. Two components go through the packed
// round-toward-zero conversion when rounding allows it; everything else
// is truncated per component, flushing denormals when the float mode
// asks for it.
func (t *translator) toHalf(op sir.Op, x value.Value) value.Value {
	n := tir.NumComponents(x.Type())
	if tir.ScalarBits(x.Type()) == 64 {
		x = t.cur().NewFPTrunc(x, fvec(32, n))
	}
	rtzOK := op == sir.OpF2F16Rtz || (op != sir.OpF2F16Rtne && t.target.FloatMode == gpu.FloatModeOpenGL)
	if n == 2 && rtzOK && t.target.PackedF16Enabled() {
		xy := t.b.Components(x)
		return t.b.Call("llvm.amdgcn.cvt.pkrtz", types.NewVector(2, types.Half), xy[0], xy[1])
	}

	h := t.cur().NewFPTrunc(x, fvec(16, n))
	if !t.target.FlushF16Denorms() {
		return h
	}
	if t.target.HasF16ClassTest() {
		return t.perComp(func(xs ...value.Value) value.Value {
			sub := t.b.Call("llvm.amdgcn.class.f16", types.I1, xs[0], tir.I32(classNegSubnormal|classPosSubnormal))
			return t.cur().NewSelect(sub, tir.ConstFloat(16, 0), xs[0])
		}, h)
	}
	// No f16 class test before GFX8: compare the widened magnitude.
	wide := t.cur().NewFPExt(h, fvec(32, n))
	mag := t.intrin("llvm.fabs", wide)
	blk := t.cur()
	limit := t.b.Splat(t.b.ToFloat(tir.I32(smallestHalfNormal)), n)
	tiny := blk.NewFCmp(enum.FPredUGT, limit, mag)
	nonZero := blk.NewFCmp(enum.FPredUNE, mag, zero(mag.Type()))
	flush := blk.NewAnd(tiny, nonZero)
	return blk.NewSelect(flush, zero(h.Type()), h)
}

func (t *translator) pack(a *sir.ALUInstr, bits uint8, n int) value.Value {
	blk := t.cur()
	switch a.Op {
	case sir.OpPackHalf2x16Split:
		lo := blk.NewFPTrunc(t.srcFloat(a.Srcs[0]), types.Half)
		hi := blk.NewFPTrunc(t.srcFloat(a.Srcs[1]), types.Half)
		return t.b.ConvertTo(t.b.Gather([]value.Value{lo, hi}), types.I32)
	case sir.OpUnpackHalf2x16SplitX, sir.OpUnpackHalf2x16SplitY:
		x := t.srcInt(a.Srcs[0])
		if a.Op == sir.OpUnpackHalf2x16SplitY {
			x = blk.NewLShr(x, t.iconst(x.Type(), 16))
		}
		h := t.b.ToFloat(t.b.Resize(x, 16, false))
		return t.cur().NewFPExt(h, fvec(bits, n))
	case sir.OpPackSnorm2x16, sir.OpPackUnorm2x16:
		name := "llvm.amdgcn.cvt.pknorm.i16"
		if a.Op == sir.OpPackUnorm2x16 {
			name = "llvm.amdgcn.cvt.pknorm.u16"
		}
		xy := t.b.Components(t.srcFloat(a.Srcs[0]))
		p := t.b.Call(name, types.NewVector(2, types.I16), xy[0], xy[1])
		return t.b.ConvertTo(p, types.I32)
	case sir.OpPackUint2x16, sir.OpPackSint2x16:
		name := "llvm.amdgcn.cvt.pk.u16"
		if a.Op == sir.OpPackSint2x16 {
			name = "llvm.amdgcn.cvt.pk.i16"
		}
		xy := t.b.Components(t.b.Resize(t.srcInt(a.Srcs[0]), 32, a.Op == sir.OpPackSint2x16))
		p := t.b.Call(name, types.NewVector(2, types.I16), xy[0], xy[1])
		return t.b.ConvertTo(p, types.I32)
	case sir.OpPack64_2x32, sir.OpPack32_2x16, sir.OpPack32_4x8:
		return t.b.ConvertTo(t.srcInt(a.Srcs[0]), ivec(bits, n))
	case sir.OpPack64_2x32Split, sir.OpPack32_2x16Split:
		lo, hi := t.srcInt(a.Srcs[0]), t.srcInt(a.Srcs[1])
		return t.b.ConvertTo(t.b.Gather([]value.Value{lo, hi}), ivec(bits, n))
	case sir.OpUnpack64_2x32, sir.OpUnpack32_2x16, sir.OpUnpack32_4x8:
		return t.b.ConvertTo(t.srcInt(a.Srcs[0]), ivec(bits, n))
	case sir.OpUnpack64_2x32SplitX:
		return t.b.Resize(t.srcInt(a.Srcs[0]), 32, false)
	case sir.OpUnpack64_2x32SplitY:
		x := t.srcInt(a.Srcs[0])
		return t.b.Resize(blk.NewLShr(x, t.iconst(x.Type(), 32)), 32, false)
	}
	t.fatal("unsupported pack operation %s", a.Op)
	return nil
}
