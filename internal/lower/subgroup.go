package lower

import (
	"math"

	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// icmpNE is the predicate operand of llvm.amdgcn.icmp for "not equal".
const icmpNE = 33

// ballot returns the mask of active lanes where cond is true.
func (t *translator) ballot(cond value.Value) value.Value {
	c := t.b.Resize(t.b.ToInt(cond), 32, false)
	mt := t.waveMaskType()
	return t.b.Call(tir.Overload("llvm.amdgcn.icmp", mt, types.I32), mt, c, tir.I32(0), tir.I32(icmpNE))
}

func (t *translator) activeMask() value.Value {
	return t.ballot(tir.Bool(true))
}

func (t *translator) voteAll(cond value.Value) value.Value {
	return t.cur().NewICmp(enum.IPredEQ, t.ballot(cond), t.activeMask())
}

func (t *translator) voteAny(cond value.Value) value.Value {
	m := t.ballot(cond)
	return t.cur().NewICmp(enum.IPredNE, m, zero(m.Type()))
}

// voteEqual reports whether every active lane holds the first lane's value.
func (t *translator) voteEqual(v value.Value, float bool) value.Value {
	first := t.b.ReadFirstLane(v)
	var eq value.Value
	if float {
		eq = t.cur().NewFCmp(enum.FPredOEQ, t.b.ToFloat(v), t.b.ToFloat(first))
	} else {
		eq = t.cur().NewICmp(enum.IPredEQ, t.b.ToInt(v), first)
	}
	all := t.b.Extract(eq, 0)
	for i := 1; i < tir.NumComponents(eq.Type()); i++ {
		all = t.cur().NewAnd(all, t.b.Extract(eq, i))
	}
	return t.voteAll(all)
}

// bpermute reads v from the lane at index lane.
func (t *translator) bpermute(v, lane value.Value) value.Value {
	addr := t.cur().NewShl(t.b.Resize(lane, 32, false), tir.I32(2))
	return t.b.MapDwords(v, func(dw value.Value) value.Value {
		return t.b.Call("llvm.amdgcn.ds.bpermute", types.I32, addr, dw)
	})
}

func (t *translator) quadBroadcast(v value.Value, lane sir.Src) value.Value {
	if c, ok := t.constScalar(lane); ok {
		l := int64(c & 3)
		return t.quadSwizzle(v, quadPerm(l, l, l, l))
	}
	blk := t.cur()
	base := blk.NewAnd(t.laneID(), tir.I32(^int64(3)))
	src := blk.NewOr(base, blk.NewAnd(t.srcI32(lane), tir.I32(3)))
	return t.bpermute(v, src)
}

// scanIdentity returns the bits of the identity of a reduction.
func scanIdentity(op sir.Op, bits uint8) uint64 {
	mask := ^uint64(0)
	if bits < 64 {
		mask = 1<<bits - 1
	}
	switch op {
	case sir.OpIMul:
		return 1
	case sir.OpIAnd, sir.OpUMin:
		return mask
	case sir.OpIMin:
		return mask >> 1
	case sir.OpIMax:
		return (mask >> 1) + 1
	case sir.OpFMul:
		return floatBits(1, bits)
	case sir.OpFMin:
		return floatBits(math.Inf(1), bits)
	case sir.OpFMax:
		return floatBits(math.Inf(-1), bits)
	}
	return 0
}

func floatBits(x float64, bits uint8) uint64 {
	switch bits {
	case 64:
		return math.Float64bits(x)
	case 16:
		switch {
		case math.IsInf(x, 1):
			return 0x7c00
		case math.IsInf(x, -1):
			return 0xfc00
		case x == 1:
			return 0x3c00
		}
		return 0
	}
	return uint64(math.Float32bits(float32(x)))
}

func isFloatReduce(op sir.Op) bool {
	switch op {
	case sir.OpFAdd, sir.OpFMul, sir.OpFMin, sir.OpFMax:
		return true
	}
	return false
}

// scan lowers reduce, inclusive scan and exclusive scan. Inactive lanes
// are filled with the identity, partial results are combined in log
// steps through ds.bpermute, and the result leaves whole-wave mode.
func (t *translator) scan(in *sir.IntrinsicInstr) value.Value {
	op := in.ReduceOp
	if _, ok := op.Info(); !ok {
		t.fatal("unknown reduction %d", op)
	}
	x := t.b.ToInt(t.src(in.Srcs[0]))
	orig := tir.ScalarBits(x.Type())
	if tir.NumComponents(x.Type()) != 1 {
		t.fatal("%s of a vector", in.Op)
	}
	float := isFloatReduce(op)
	if float && tir.FloatType(orig) == nil {
		t.fatal("%s of %d-bit floats", in.Op, orig)
	}
	// narrow values travel in 32-bit lanes; f16 keeps its bits in the low half
	bits := orig
	if bits < 32 {
		signed := op == sir.OpIMin || op == sir.OpIMax
		x = t.b.Resize(x, 32, signed)
		bits = 32
	}
	identBits := scanIdentity(op, bits)
	if float {
		identBits = scanIdentity(op, orig)
	}
	ident := tir.ConstInt(bits, identBits)
	if orig == 1 && (op == sir.OpIAnd || op == sir.OpUMin) {
		ident = tir.ConstInt(bits, 1)
	}

	combine := func(a, b value.Value) value.Value {
		switch {
		case !float:
			return t.binary(op, a, b)
		case orig < bits:
			fa := t.b.ToFloat(t.b.Resize(a, orig, false))
			fb := t.b.ToFloat(t.b.Resize(b, orig, false))
			return t.b.Resize(t.binary(op, fa, fb), bits, false)
		}
		return t.b.ToInt(t.binary(op, t.b.ToFloat(a), t.b.ToFloat(b)))
	}

	width := t.target.WaveSize
	cluster := width
	if in.Op == sir.IntrReduce && in.ClusterSize != 0 && int(in.ClusterSize) < width {
		cluster = int(in.ClusterSize)
	}

	v := t.b.Call(tir.Overload("llvm.amdgcn.set.inactive", x.Type()), x.Type(), x, ident)
	lane := t.laneID()
	inCluster := value.Value(lane)
	if cluster < width {
		inCluster = t.cur().NewAnd(lane, tir.I32(int64(cluster-1)))
	}
	for step := 1; step < cluster; step <<= 1 {
		blk := t.cur()
		from := blk.NewSub(lane, tir.I32(int64(step)))
		other := t.bpermute(v, from)
		valid := t.cur().NewICmp(enum.IPredUGE, inCluster, tir.I32(int64(step)))
		other = t.cur().NewSelect(valid, other, ident)
		v = combine(v, other)
	}

	switch in.Op {
	case sir.IntrReduce:
		if cluster == width {
			v = t.b.ReadLane(v, tir.I32(int64(width-1)))
		} else {
			last := t.cur().NewOr(lane, tir.I32(int64(cluster-1)))
			v = t.bpermute(v, last)
		}
	case sir.IntrExclusiveScan:
		prev := t.bpermute(v, t.cur().NewSub(lane, tir.I32(1)))
		first := t.cur().NewICmp(enum.IPredEQ, lane, tir.I32(0))
		v = t.cur().NewSelect(first, ident, prev)
	}
	v = t.intrin("llvm.amdgcn.wwm", v)

	if orig == 1 {
		return t.cur().NewICmp(enum.IPredNE, v, zero(v.Type()))
	}
	return t.b.Resize(v, orig, false)
}

func (t *translator) lowerSubgroup(in *sir.IntrinsicInstr) value.Value {
	switch in.Op {
	case sir.IntrBallot:
		m := t.ballot(t.srcInt(in.Srcs[0]))
		return t.b.Resize(m, t.def(in.Dest).BitSize, false)
	case sir.IntrReadInvocation:
		return t.b.ReadLane(t.src(in.Srcs[0]), t.b.ReadFirstLane(t.srcI32(in.Srcs[1])))
	case sir.IntrReadFirstInvocation:
		return t.b.ReadFirstLane(t.src(in.Srcs[0]))
	case sir.IntrElect:
		return t.cur().NewICmp(enum.IPredEQ, t.mbcnt(t.activeMask()), tir.I32(0))
	case sir.IntrVoteAll:
		return t.voteAll(t.srcInt(in.Srcs[0]))
	case sir.IntrVoteAny:
		return t.voteAny(t.srcInt(in.Srcs[0]))
	case sir.IntrVoteIEq:
		return t.voteEqual(t.src(in.Srcs[0]), false)
	case sir.IntrVoteFEq:
		return t.voteEqual(t.src(in.Srcs[0]), true)
	case sir.IntrShuffle:
		return t.bpermute(t.src(in.Srcs[0]), t.srcI32(in.Srcs[1]))
	case sir.IntrQuadBroadcast:
		return t.quadBroadcast(t.src(in.Srcs[0]), in.Srcs[1])
	case sir.IntrQuadSwapX:
		return t.quadSwizzle(t.src(in.Srcs[0]), quadPerm(1, 0, 3, 2))
	case sir.IntrQuadSwapY:
		return t.quadSwizzle(t.src(in.Srcs[0]), quadPerm(2, 3, 0, 1))
	case sir.IntrQuadSwapDiagonal:
		return t.quadSwizzle(t.src(in.Srcs[0]), quadPerm(3, 2, 1, 0))
	case sir.IntrReduce, sir.IntrInclusiveScan, sir.IntrExclusiveScan:
		return t.scan(in)
	case sir.IntrMbcnt:
		return t.mbcnt(t.srcInt(in.Srcs[0]))
	}
	t.fatal("unsupported subgroup operation %s", in.Op)
	return nil
}
