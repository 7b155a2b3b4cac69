package lower

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

func (t *translator) cur() *ir.Block { return t.b.Cur() }

func fvec(bits uint8, n int) types.Type {
	ft := tir.FloatType(bits)
	if ft == nil {
		return nil
	}
	return tir.Vec(ft, n)
}

func ivec(bits uint8, n int) types.Type { return tir.Vec(tir.IntType(bits), n) }

// fconst returns x splatted to the shape of the float type like.
func (t *translator) fconst(like types.Type, x float64) value.Value {
	return t.b.Splat(tir.ConstFloat(tir.ScalarBits(like), x), tir.NumComponents(like))
}

// iconst returns x splatted to the shape of the integer type like.
func (t *translator) iconst(like types.Type, x uint64) value.Value {
	return t.b.Splat(tir.ConstInt(tir.ScalarBits(like), x), tir.NumComponents(like))
}

func zero(like types.Type) value.Value { return constant.NewZeroInitializer(like) }

// intrin calls an intrinsic overloaded on the type of its first argument
// and returning that type.
func (t *translator) intrin(name string, args ...value.Value) value.Value {
	ty := args[0].Type()
	return t.b.Call(tir.Overload(name, ty), ty, args...)
}

// perComp applies a scalar builder to each component of same-shaped
// operands and gathers the results.
func (t *translator) perComp(fn func(xs ...value.Value) value.Value, vs ...value.Value) value.Value {
	n := tir.NumComponents(vs[0].Type())
	out := make([]value.Value, n)
	for i := range out {
		xs := make([]value.Value, len(vs))
		for j, v := range vs {
			xs[j] = t.b.Extract(v, i)
		}
		out[i] = fn(xs...)
	}
	return t.b.Gather(out)
}

// scalarIntrin applies a scalar-only intrinsic per component.
func (t *translator) scalarIntrin(name string, ret types.Type, vs ...value.Value) value.Value {
	return t.perComp(func(xs ...value.Value) value.Value {
		return t.b.Call(name, ret, xs...)
	}, vs...)
}

func (t *translator) lowerALU(a *sir.ALUInstr) value.Value {
	info, ok := a.Op.Info()
	if !ok {
		t.fatal("unsupported operation %d", a.Op)
	}
	if info.Inputs != 0 && len(a.Srcs) != info.Inputs {
		t.fatal("%s takes %d sources, got %d", a.Op, info.Inputs, len(a.Srcs))
	}
	d := t.def(a.Dest)
	bits, n := d.BitSize, int(d.Components)

	// fsrc/isrc read source i broadcast to the destination shape.
	fsrc := func(i int) value.Value { return t.broadcast(t.srcFloat(a.Srcs[i]), n) }
	isrc := func(i int) value.Value { return t.broadcast(t.srcInt(a.Srcs[i]), n) }

	switch a.Op {
	case sir.OpMov:
		return t.broadcast(t.src(a.Srcs[0]), n)
	case sir.OpVec2, sir.OpVec3, sir.OpVec4, sir.OpVec5:
		return t.lowerVec(a.Srcs, n)

	case sir.OpFNeg, sir.OpFAbs, sir.OpFSat, sir.OpFSign, sir.OpFRcp, sir.OpFRsq,
		sir.OpFSqrt, sir.OpFExp2, sir.OpFLog2, sir.OpFSin, sir.OpFCos, sir.OpFFloor,
		sir.OpFCeil, sir.OpFTrunc, sir.OpFRoundEven, sir.OpFFract, sir.OpFrexpSig,
		sir.OpFQuantize2F16:
		return t.floatUnary(a.Op, fsrc(0))
	case sir.OpFDdx, sir.OpFDdy, sir.OpFDdxFine, sir.OpFDdyFine, sir.OpFDdxCoarse, sir.OpFDdyCoarse:
		return t.derivative(a.Op, fsrc(0))
	case sir.OpFrexpExp:
		x := t.srcFloat(a.Srcs[0])
		ret := tir.IntType(32)
		if tir.ScalarBits(x.Type()) == 16 {
			ret = tir.IntType(16)
		}
		e := t.scalarIntrin(tir.Overload("llvm.amdgcn.frexp.exp", ret, tir.ElemType(x.Type())), ret, x)
		return t.b.Resize(e, bits, true)

	case sir.OpFAdd, sir.OpFSub, sir.OpFMul, sir.OpFDiv, sir.OpFMod, sir.OpFRem,
		sir.OpFPow, sir.OpFMin, sir.OpFMax:
		return t.binary(a.Op, fsrc(0), fsrc(1))
	case sir.OpFLdexp:
		x := fsrc(0)
		exp := t.broadcast(t.b.Resize(t.srcInt(a.Srcs[1]), 32, true), n)
		name := tir.Overload("llvm.amdgcn.ldexp", tir.ElemType(x.Type()))
		return t.scalarIntrin(name, tir.ElemType(x.Type()), x, exp)

	case sir.OpFFma:
		if bits == 32 && !t.target.HasFastFMA32() {
			t.fatal("32-bit fma is not supported at full rate on %s", t.target.Gen)
		}
		return t.intrin("llvm.fma", fsrc(0), fsrc(1), fsrc(2))
	case sir.OpFLrp:
		x, y, w := fsrc(0), fsrc(1), fsrc(2)
		blk := t.cur()
		return blk.NewFAdd(x, blk.NewFMul(w, blk.NewFSub(y, x)))
	case sir.OpFMin3:
		return t.binary(sir.OpFMin, t.binary(sir.OpFMin, fsrc(0), fsrc(1)), fsrc(2))
	case sir.OpFMax3:
		return t.binary(sir.OpFMax, t.binary(sir.OpFMax, fsrc(0), fsrc(1)), fsrc(2))
	case sir.OpFMed3:
		x, y, z := fsrc(0), fsrc(1), fsrc(2)
		if bits == 32 || (bits == 16 && t.target.HasPackedDot()) {
			elem := tir.ElemType(x.Type())
			return t.scalarIntrin(tir.Overload("llvm.amdgcn.fmed3", elem), elem, x, y, z)
		}
		return t.med3(sir.OpFMin, sir.OpFMax, x, y, z)

	case sir.OpFDot2, sir.OpFDot3, sir.OpFDot4:
		return t.fdot(t.srcFloat(a.Srcs[0]), t.srcFloat(a.Srcs[1]))

	case sir.OpFLt, sir.OpFGe, sir.OpFEq, sir.OpFNeu:
		return t.fcmp(a.Op, fsrc(0), fsrc(1))
	case sir.OpILt, sir.OpIGe, sir.OpIEq, sir.OpINe, sir.OpULt, sir.OpUGe:
		return t.icmp(a.Op, isrc(0), isrc(1))

	case sir.OpINeg, sir.OpIAbs, sir.OpISign, sir.OpINot, sir.OpBitfieldReverse:
		return t.intUnary(a.Op, isrc(0))
	case sir.OpBitCount:
		x := isrc(0)
		return t.b.Resize(t.intrin("llvm.ctpop", x), bits, false)
	case sir.OpUFindMSB:
		return t.findMSB(isrc(0), bits)
	case sir.OpIFindMSB:
		x := isrc(0)
		blk := t.cur()
		neg := blk.NewICmp(enum.IPredSLT, x, zero(x.Type()))
		inv := blk.NewXor(x, t.iconst(x.Type(), ^uint64(0)))
		return t.findMSB(blk.NewSelect(neg, inv, x), bits)
	case sir.OpFindLSB:
		x := isrc(0)
		tz := t.b.Call(tir.Overload("llvm.cttz", x.Type()), x.Type(), x, tir.Bool(true))
		r := t.b.Resize(tz, bits, false)
		blk := t.cur()
		isZero := blk.NewICmp(enum.IPredEQ, x, zero(x.Type()))
		return blk.NewSelect(isZero, t.iconst(r.Type(), ^uint64(0)), r)

	case sir.OpIAdd, sir.OpISub, sir.OpIMul, sir.OpIMulHigh, sir.OpUMulHigh, sir.OpIDiv,
		sir.OpUDiv, sir.OpIMod, sir.OpIRem, sir.OpUMod, sir.OpIMin, sir.OpIMax, sir.OpUMin,
		sir.OpUMax, sir.OpIAddSat, sir.OpUAddSat, sir.OpISubSat, sir.OpUSubSat, sir.OpIAnd,
		sir.OpIOr, sir.OpIXor:
		return t.binary(a.Op, isrc(0), isrc(1))
	case sir.OpIShl, sir.OpIShr, sir.OpUShr, sir.OpURol, sir.OpURor:
		x := isrc(0)
		amt := t.broadcast(t.b.Resize(t.srcInt(a.Srcs[1]), tir.ScalarBits(x.Type()), false), n)
		return t.shift(a.Op, x, amt)
	case sir.OpUAddCarry:
		x, y := isrc(0), isrc(1)
		blk := t.cur()
		sum := blk.NewAdd(x, y)
		return t.b.Resize(blk.NewICmp(enum.IPredULT, sum, x), bits, false)
	case sir.OpUSubBorrow:
		x, y := isrc(0), isrc(1)
		return t.b.Resize(t.cur().NewICmp(enum.IPredULT, x, y), bits, false)
	case sir.OpBfm:
		w, off := isrc(0), isrc(1)
		return t.cur().NewShl(t.fieldMask(w), off)

	case sir.OpUBfe, sir.OpIBfe:
		return t.bitfieldExtract(a.Op == sir.OpIBfe, isrc(0), isrc(1), isrc(2))
	case sir.OpIMin3:
		return t.binary(sir.OpIMin, t.binary(sir.OpIMin, isrc(0), isrc(1)), isrc(2))
	case sir.OpIMax3:
		return t.binary(sir.OpIMax, t.binary(sir.OpIMax, isrc(0), isrc(1)), isrc(2))
	case sir.OpUMin3:
		return t.binary(sir.OpUMin, t.binary(sir.OpUMin, isrc(0), isrc(1)), isrc(2))
	case sir.OpUMax3:
		return t.binary(sir.OpUMax, t.binary(sir.OpUMax, isrc(0), isrc(1)), isrc(2))
	case sir.OpIMed3:
		return t.med3(sir.OpIMin, sir.OpIMax, isrc(0), isrc(1), isrc(2))
	case sir.OpUMed3:
		return t.med3(sir.OpUMin, sir.OpUMax, isrc(0), isrc(1), isrc(2))
	case sir.OpSadU8:
		return t.scalarIntrin("llvm.amdgcn.sad.u8", types.I32, isrc(0), isrc(1), isrc(2))
	case sir.OpBitfieldInsert:
		return t.bitfieldInsert(isrc(0), isrc(1), isrc(2), isrc(3))

	case sir.OpBCsel:
		return t.bcsel(a.Srcs, n)
	case sir.OpB2F:
		return t.cur().NewUIToFP(isrc(0), fvec(bits, n))
	case sir.OpB2I:
		return t.b.Resize(isrc(0), bits, false)
	case sir.OpF2B:
		x := fsrc(0)
		return t.cur().NewFCmp(enum.FPredUNE, x, zero(x.Type()))
	case sir.OpI2B:
		x := isrc(0)
		return t.cur().NewICmp(enum.IPredNE, x, zero(x.Type()))

	case sir.OpF2I, sir.OpF2U, sir.OpI2F, sir.OpU2F, sir.OpF2F, sir.OpI2I, sir.OpU2U,
		sir.OpF2F16, sir.OpF2F16Rtz, sir.OpF2F16Rtne:
		return t.convert(a, bits, n)

	case sir.OpPackHalf2x16Split, sir.OpUnpackHalf2x16SplitX, sir.OpUnpackHalf2x16SplitY,
		sir.OpPackSnorm2x16, sir.OpPackUnorm2x16, sir.OpPackUint2x16, sir.OpPackSint2x16,
		sir.OpPack64_2x32, sir.OpPack64_2x32Split, sir.OpUnpack64_2x32,
		sir.OpUnpack64_2x32SplitX, sir.OpUnpack64_2x32SplitY, sir.OpPack32_2x16,
		sir.OpPack32_2x16Split, sir.OpUnpack32_2x16, sir.OpPack32_4x8, sir.OpUnpack32_4x8:
		return t.pack(a, bits, n)
	case sir.OpExtractU8, sir.OpExtractI8, sir.OpExtractU16, sir.OpExtractI16:
		return t.extractField(a.Op, isrc(0), isrc(1), bits)

	case sir.OpSDot4x8, sir.OpUDot4x8, sir.OpSDot2x16, sir.OpUDot2x16:
		return t.packedDot(a.Op, isrc(0), isrc(1), isrc(2))

	case sir.OpCubeFaceCoord:
		return t.cubeFaceCoord(t.srcFloat(a.Srcs[0]))
	case sir.OpCubeFaceIndex:
		xyz := t.b.Components(t.srcFloat(a.Srcs[0]))
		return t.b.Call("llvm.amdgcn.cubeid", types.Float, xyz[0], xyz[1], xyz[2])
	}
	t.fatal("unsupported operation %s", a.Op)
	return nil
}

func (t *translator) lowerVec(srcs []sir.Src, n int) value.Value {
	if len(srcs) != n {
		t.fatal("vec%d with %d sources", n, len(srcs))
	}
	vals := make([]value.Value, n)
	allFloat := true
	for i, s := range srcs {
		vals[i] = t.src(s)
		if tir.NumComponents(vals[i].Type()) != 1 {
			t.fatal("vector construction source %d is not a scalar", i)
		}
		if tir.ReprOf(vals[i].Type()) != tir.ReprFloat {
			allFloat = false
		}
	}
	if !allFloat {
		for i := range vals {
			vals[i] = t.b.ToInt(vals[i])
		}
	}
	return t.b.Gather(vals)
}

func (t *translator) floatUnary(op sir.Op, x value.Value) value.Value {
	blk := t.cur()
	ty := x.Type()
	switch op {
	case sir.OpFNeg:
		return blk.NewFNeg(x)
	case sir.OpFAbs:
		return t.intrin("llvm.fabs", x)
	case sir.OpFSat:
		return t.binary(sir.OpFMin, t.binary(sir.OpFMax, x, zero(ty)), t.fconst(ty, 1))
	case sir.OpFSign:
		pos := blk.NewFCmp(enum.FPredOGT, x, zero(ty))
		v := blk.NewSelect(pos, t.fconst(ty, 1), x)
		nonNeg := blk.NewFCmp(enum.FPredOGE, v, zero(ty))
		return blk.NewSelect(nonNeg, v, t.fconst(ty, -1))
	case sir.OpFRcp:
		return blk.NewFDiv(t.fconst(ty, 1), x)
	case sir.OpFRsq:
		return blk.NewFDiv(t.fconst(ty, 1), t.intrin("llvm.sqrt", x))
	case sir.OpFSqrt:
		return t.intrin("llvm.sqrt", x)
	case sir.OpFExp2:
		return t.intrin("llvm.exp2", x)
	case sir.OpFLog2:
		return t.intrin("llvm.log2", x)
	case sir.OpFSin:
		return t.intrin("llvm.sin", x)
	case sir.OpFCos:
		return t.intrin("llvm.cos", x)
	case sir.OpFFloor:
		return t.intrin("llvm.floor", x)
	case sir.OpFCeil:
		return t.intrin("llvm.ceil", x)
	case sir.OpFTrunc:
		return t.intrin("llvm.trunc", x)
	case sir.OpFRoundEven:
		return t.intrin("llvm.rint", x)
	case sir.OpFFract:
		elem := tir.ElemType(ty)
		return t.scalarIntrin(tir.Overload("llvm.amdgcn.fract", elem), elem, x)
	case sir.OpFrexpSig:
		elem := tir.ElemType(ty)
		return t.scalarIntrin(tir.Overload("llvm.amdgcn.frexp.mant", elem), elem, x)
	case sir.OpFQuantize2F16:
		if tir.ScalarBits(ty) == 16 {
			return x
		}
		h := blk.NewFPTrunc(x, fvec(16, tir.NumComponents(ty)))
		back := t.cur().NewFPExt(h, ty)
		tiny := t.cur().NewFCmp(enum.FPredOLT, t.intrin("llvm.fabs", back), t.fconst(ty, 1.0/16384))
		return t.cur().NewSelect(tiny, zero(ty), back)
	}
	t.fatal("unsupported operation %s", op)
	return nil
}

// binary lowers a two-operand arithmetic op on operands already in the
// op's representation and shape.
func (t *translator) binary(op sir.Op, x, y value.Value) value.Value {
	blk := t.cur()
	switch op {
	case sir.OpFAdd:
		return blk.NewFAdd(x, y)
	case sir.OpFSub:
		return blk.NewFSub(x, y)
	case sir.OpFMul:
		return blk.NewFMul(x, y)
	case sir.OpFDiv:
		return blk.NewFDiv(x, y)
	case sir.OpFMod:
		q := t.intrin("llvm.floor", blk.NewFDiv(x, y))
		return t.cur().NewFSub(x, t.cur().NewFMul(y, q))
	case sir.OpFRem:
		return blk.NewFRem(x, y)
	case sir.OpFPow:
		return t.intrin("llvm.pow", x, y)
	case sir.OpFMin:
		return t.intrin("llvm.minnum", x, y)
	case sir.OpFMax:
		return t.intrin("llvm.maxnum", x, y)

	case sir.OpIAdd:
		return blk.NewAdd(x, y)
	case sir.OpISub:
		return blk.NewSub(x, y)
	case sir.OpIMul:
		return blk.NewMul(x, y)
	case sir.OpIMulHigh, sir.OpUMulHigh:
		return t.mulHigh(op == sir.OpIMulHigh, x, y)
	case sir.OpIDiv:
		return blk.NewSDiv(x, y)
	case sir.OpUDiv:
		return blk.NewUDiv(x, y)
	case sir.OpIMod:
		// Result takes the sign of the divisor.
		r := blk.NewSRem(x, y)
		nonZero := blk.NewICmp(enum.IPredNE, r, zero(r.Type()))
		signs := blk.NewICmp(enum.IPredSLT, blk.NewXor(r, y), zero(r.Type()))
		fix := blk.NewAnd(nonZero, signs)
		return blk.NewSelect(fix, blk.NewAdd(r, y), r)
	case sir.OpIRem:
		return blk.NewSRem(x, y)
	case sir.OpUMod:
		return blk.NewURem(x, y)
	case sir.OpIMin:
		return blk.NewSelect(blk.NewICmp(enum.IPredSLT, x, y), x, y)
	case sir.OpIMax:
		return blk.NewSelect(blk.NewICmp(enum.IPredSGT, x, y), x, y)
	case sir.OpUMin:
		return blk.NewSelect(blk.NewICmp(enum.IPredULT, x, y), x, y)
	case sir.OpUMax:
		return blk.NewSelect(blk.NewICmp(enum.IPredUGT, x, y), x, y)
	case sir.OpIAddSat:
		return t.intrin("llvm.sadd.sat", x, y)
	case sir.OpUAddSat:
		return t.intrin("llvm.uadd.sat", x, y)
	case sir.OpISubSat:
		return t.intrin("llvm.ssub.sat", x, y)
	case sir.OpUSubSat:
		return t.intrin("llvm.usub.sat", x, y)
	case sir.OpIAnd:
		return blk.NewAnd(x, y)
	case sir.OpIOr:
		return blk.NewOr(x, y)
	case sir.OpIXor:
		return blk.NewXor(x, y)
	}
	t.fatal("unsupported binary operation %s", op)
	return nil
}

func (t *translator) mulHigh(signed bool, x, y value.Value) value.Value {
	bits := tir.ScalarBits(x.Type())
	wx := t.b.Resize(x, bits*2, signed)
	wy := t.b.Resize(y, bits*2, signed)
	blk := t.cur()
	prod := blk.NewMul(wx, wy)
	hi := blk.NewLShr(prod, t.iconst(prod.Type(), uint64(bits)))
	return t.b.Resize(hi, bits, false)
}

func (t *translator) shift(op sir.Op, x, amt value.Value) value.Value {
	blk := t.cur()
	switch op {
	case sir.OpIShl:
		return blk.NewShl(x, amt)
	case sir.OpIShr:
		return blk.NewAShr(x, amt)
	case sir.OpUShr:
		return blk.NewLShr(x, amt)
	case sir.OpURol:
		return t.intrin("llvm.fshl", x, x, amt)
	case sir.OpURor:
		return t.intrin("llvm.fshr", x, x, amt)
	}
	t.fatal("unsupported shift %s", op)
	return nil
}

func (t *translator) intUnary(op sir.Op, x value.Value) value.Value {
	blk := t.cur()
	ty := x.Type()
	switch op {
	case sir.OpINeg:
		return blk.NewSub(zero(ty), x)
	case sir.OpIAbs:
		return t.binary(sir.OpIMax, x, blk.NewSub(zero(ty), x))
	case sir.OpISign:
		pos := blk.NewICmp(enum.IPredSGT, x, zero(ty))
		v := blk.NewSelect(pos, t.iconst(ty, 1), x)
		nonNeg := blk.NewICmp(enum.IPredSGE, v, zero(ty))
		return blk.NewSelect(nonNeg, v, t.iconst(ty, ^uint64(0)))
	case sir.OpINot:
		return blk.NewXor(x, t.iconst(ty, ^uint64(0)))
	case sir.OpBitfieldReverse:
		return t.intrin("llvm.bitreverse", x)
	}
	t.fatal("unsupported operation %s", op)
	return nil
}

// findMSB returns the index of the highest set bit of x, or -1 for 0.
func (t *translator) findMSB(x value.Value, bits uint8) value.Value {
	ty := x.Type()
	lz := t.b.Call(tir.Overload("llvm.ctlz", ty), ty, x, tir.Bool(true))
	blk := t.cur()
	msb := blk.NewSub(t.iconst(ty, uint64(tir.ScalarBits(ty))-1), lz)
	r := t.b.Resize(msb, bits, false)
	isZero := t.cur().NewICmp(enum.IPredEQ, x, zero(ty))
	return t.cur().NewSelect(isZero, t.iconst(r.Type(), ^uint64(0)), r)
}

func (t *translator) fcmp(op sir.Op, x, y value.Value) value.Value {
	var pred enum.FPred
	switch op {
	case sir.OpFLt:
		pred = enum.FPredOLT
	case sir.OpFGe:
		pred = enum.FPredOGE
	case sir.OpFEq:
		pred = enum.FPredOEQ
	case sir.OpFNeu:
		pred = enum.FPredUNE
	}
	return t.cur().NewFCmp(pred, x, y)
}

func (t *translator) icmp(op sir.Op, x, y value.Value) value.Value {
	var pred enum.IPred
	switch op {
	case sir.OpILt:
		pred = enum.IPredSLT
	case sir.OpIGe:
		pred = enum.IPredSGE
	case sir.OpIEq:
		pred = enum.IPredEQ
	case sir.OpINe:
		pred = enum.IPredNE
	case sir.OpULt:
		pred = enum.IPredULT
	case sir.OpUGe:
		pred = enum.IPredUGE
	}
	return t.cur().NewICmp(pred, x, y)
}

func (t *translator) med3(minOp, maxOp sir.Op, x, y, z value.Value) value.Value {
	lo := t.binary(minOp, x, y)
	hi := t.binary(maxOp, x, y)
	return t.binary(maxOp, lo, t.binary(minOp, hi, z))
}

func (t *translator) fdot(x, y value.Value) value.Value {
	prod := t.cur().NewFMul(x, y)
	comps := t.b.Components(prod)
	sum := comps[0]
	for _, c := range comps[1:] {
		sum = t.cur().NewFAdd(sum, c)
	}
	return sum
}

func (t *translator) bcsel(srcs []sir.Src, n int) value.Value {
	cond := t.srcInt(srcs[0])
	x, y := t.src(srcs[1]), t.src(srcs[2])
	if tir.ReprOf(x.Type()) != tir.ReprFloat || tir.ReprOf(y.Type()) != tir.ReprFloat {
		x, y = t.b.ToInt(x), t.b.ToInt(y)
	}
	x, y = t.broadcast(x, n), t.broadcast(y, n)
	if tir.NumComponents(cond.Type()) != 1 {
		cond = t.broadcast(cond, n)
	}
	return t.cur().NewSelect(cond, x, y)
}

func (t *translator) bitfieldExtract(signed bool, x, off, width value.Value) value.Value {
	ty := x.Type()
	bits := tir.ScalarBits(ty)
	if bits == 32 {
		name := "llvm.amdgcn.ubfe.i32"
		if signed {
			name = "llvm.amdgcn.sbfe.i32"
		}
		bfe := t.scalarIntrin(name, types.I32, x, off, width)
		blk := t.cur()
		whole := blk.NewICmp(enum.IPredUGE, width, t.iconst(ty, 32))
		return blk.NewSelect(whole, x, bfe)
	}
	// Move the field to the top, then shift it back down. Empty and
	// full-width fields take a width of 1 so no shift reaches the type width.
	blk := t.cur()
	size := t.iconst(ty, uint64(bits))
	empty := blk.NewICmp(enum.IPredEQ, width, zero(ty))
	whole := blk.NewICmp(enum.IPredUGE, width, size)
	w := blk.NewSelect(blk.NewOr(empty, whole), t.iconst(ty, 1), width)
	up := blk.NewShl(x, blk.NewSub(size, blk.NewAdd(off, w)))
	down := blk.NewSub(size, w)
	var field value.Value
	if signed {
		field = blk.NewAShr(up, down)
	} else {
		field = blk.NewLShr(up, down)
	}
	return blk.NewSelect(whole, x, blk.NewSelect(empty, zero(ty), field))
}

// fieldMask returns width low bits set, or every bit once width reaches
// the type width.
func (t *translator) fieldMask(width value.Value) value.Value {
	ty := width.Type()
	blk := t.cur()
	one := t.iconst(ty, 1)
	whole := blk.NewICmp(enum.IPredUGE, width, t.iconst(ty, uint64(tir.ScalarBits(ty))))
	w := blk.NewSelect(whole, zero(ty), width)
	mask := blk.NewSub(blk.NewShl(one, w), one)
	return blk.NewSelect(whole, t.iconst(ty, ^uint64(0)), mask)
}

func (t *translator) bitfieldInsert(base, insert, off, width value.Value) value.Value {
	ty := base.Type()
	mask := t.fieldMask(width)
	blk := t.cur()
	mask = blk.NewShl(mask, off)
	ins := blk.NewAnd(blk.NewShl(insert, off), mask)
	keep := blk.NewAnd(base, blk.NewXor(mask, t.iconst(ty, ^uint64(0))))
	merged := blk.NewOr(ins, keep)
	whole := blk.NewICmp(enum.IPredUGE, width, t.iconst(ty, uint64(tir.ScalarBits(ty))))
	return blk.NewSelect(whole, insert, merged)
}

func (t *translator) extractField(op sir.Op, x, idx value.Value, bits uint8) value.Value {
	w := uint8(8)
	if op == sir.OpExtractU16 || op == sir.OpExtractI16 {
		w = 16
	}
	signed := op == sir.OpExtractI8 || op == sir.OpExtractI16
	idx = t.b.Resize(idx, tir.ScalarBits(x.Type()), false)
	blk := t.cur()
	sh := blk.NewLShr(x, blk.NewMul(idx, t.iconst(idx.Type(), uint64(w))))
	field := t.b.Resize(sh, w, false)
	return t.b.Resize(field, bits, signed)
}

func (t *translator) packedDot(op sir.Op, x, y, acc value.Value) value.Value {
	signed := op == sir.OpSDot4x8 || op == sir.OpSDot2x16
	lanes, lbits := 4, uint8(8)
	if op == sir.OpSDot2x16 || op == sir.OpUDot2x16 {
		lanes, lbits = 2, 16
	}
	if t.target.HasPackedDot() {
		var name string
		switch op {
		case sir.OpSDot4x8:
			name = "llvm.amdgcn.sdot4"
		case sir.OpUDot4x8:
			name = "llvm.amdgcn.udot4"
		case sir.OpSDot2x16:
			name = "llvm.amdgcn.sdot2"
		default:
			name = "llvm.amdgcn.udot2"
		}
		return t.perComp(func(xs ...value.Value) value.Value {
			a, b := xs[0], xs[1]
			if lanes == 2 {
				a = t.b.Reshape(a, 16, 2)
				b = t.b.Reshape(b, 16, 2)
			}
			return t.b.Call(name, types.I32, a, b, xs[2], tir.Bool(false))
		}, x, y, acc)
	}
	return t.perComp(func(xs ...value.Value) value.Value {
		a := t.b.Resize(t.b.Reshape(xs[0], lbits, lanes), 32, signed)
		b := t.b.Resize(t.b.Reshape(xs[1], lbits, lanes), 32, signed)
		prod := t.cur().NewMul(a, b)
		sum := xs[2]
		for _, p := range t.b.Components(prod) {
			sum = t.cur().NewAdd(sum, p)
		}
		return sum
	}, x, y, acc)
}

func (t *translator) cubeFaceCoord(v value.Value) value.Value {
	xyz := t.b.Components(v)
	sc := t.b.Call("llvm.amdgcn.cubesc", types.Float, xyz...)
	tc := t.b.Call("llvm.amdgcn.cubetc", types.Float, xyz...)
	ma := t.b.Call("llvm.amdgcn.cubema", types.Float, xyz...)
	blk := t.cur()
	half := tir.F32(0.5)
	s := blk.NewFAdd(blk.NewFDiv(sc, ma), half)
	tt := blk.NewFAdd(blk.NewFDiv(tc, ma), half)
	return t.b.Gather([]value.Value{s, tt})
}

// Quad permutation patterns for llvm.amdgcn.ds.swizzle.
func quadPerm(l0, l1, l2, l3 int64) int64 {
	return 0x8000 | l0 | l1<<2 | l2<<4 | l3<<6
}

func (t *translator) quadSwizzle(v value.Value, pattern int64) value.Value {
	return t.b.MapDwords(v, func(dw value.Value) value.Value {
		return t.b.Call("llvm.amdgcn.ds.swizzle", types.I32, dw, tir.I32(pattern))
	})
}

// derivative computes a screen-space difference between lanes of a quad.
func (t *translator) derivative(op sir.Op, x value.Value) value.Value {
	var tl, other int64
	switch op {
	case sir.OpFDdxFine:
		tl, other = quadPerm(0, 0, 2, 2), quadPerm(1, 1, 3, 3)
	case sir.OpFDdyFine:
		tl, other = quadPerm(0, 1, 0, 1), quadPerm(2, 3, 2, 3)
	case sir.OpFDdx, sir.OpFDdxCoarse:
		tl, other = quadPerm(0, 0, 0, 0), quadPerm(1, 1, 1, 1)
	default:
		tl, other = quadPerm(0, 0, 0, 0), quadPerm(2, 2, 2, 2)
	}
	a := t.b.ToFloat(t.quadSwizzle(x, tl))
	b := t.b.ToFloat(t.quadSwizzle(x, other))
	return t.cur().NewFSub(b, a)
}
