package lower

import (
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/abi"
	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// arg returns a shader argument, failing when the stage has none.
func (t *translator) arg(kind abi.ArgKind) value.Value {
	v, ok := t.args.Value(kind)
	if !ok {
		t.fatal("%s is not available in %s shaders", kind, t.fn.Stage)
	}
	return v
}

// waveMaskType is the integer type holding one bit per lane.
func (t *translator) waveMaskType() *types.IntType {
	if t.target.WaveSize == 32 {
		return types.I32
	}
	return types.I64
}

// mbcnt counts the set bits of mask below the current lane.
func (t *translator) mbcnt(mask value.Value) value.Value {
	mask = t.b.ToInt(mask)
	if t.target.WaveSize == 32 {
		return t.b.Call("llvm.amdgcn.mbcnt.lo", types.I32, t.b.Resize(mask, 32, false), tir.I32(0))
	}
	words := t.b.Reshape(t.b.Resize(mask, 64, false), 32, 2)
	lo := t.b.Call("llvm.amdgcn.mbcnt.lo", types.I32, t.b.Extract(words, 0), tir.I32(0))
	return t.b.Call("llvm.amdgcn.mbcnt.hi", types.I32, t.b.Extract(words, 1), lo)
}

// laneID is the index of the current lane within the wave.
func (t *translator) laneID() value.Value {
	return t.mbcnt(constantAllOnes(t.waveMaskType()))
}

func constantAllOnes(ty *types.IntType) value.Value {
	return tir.ConstInt(uint8(ty.BitSize), ^uint64(0))
}

func (t *translator) localInvocationIndex() value.Value {
	sx, sy := int64(t.fn.WorkgroupSize[0]), int64(t.fn.WorkgroupSize[1])
	if sx == 0 {
		t.fatal("local invocation index needs a workgroup size")
	}
	id := t.arg(abi.ArgLocalInvocationID)
	blk := t.cur()
	x := t.b.Extract(id, 0)
	y := t.b.Extract(id, 1)
	z := t.b.Extract(id, 2)
	zs := blk.NewMul(z, tir.I32(sx*sy))
	ys := blk.NewMul(y, tir.I32(sx))
	return blk.NewAdd(blk.NewAdd(zs, ys), x)
}

func (t *translator) sampleID() value.Value {
	return t.b.Call("llvm.amdgcn.ubfe.i32", types.I32, t.arg(abi.ArgAncillary), tir.I32(8), tir.I32(4))
}

func (t *translator) lowerSysval(in *sir.IntrinsicInstr) value.Value {
	blk := t.cur()
	switch in.Op {
	case sir.IntrLoadVertexID:
		return blk.NewAdd(t.arg(abi.ArgVertexID), t.arg(abi.ArgBaseVertex))
	case sir.IntrLoadInstanceID:
		return t.arg(abi.ArgInstanceID)
	case sir.IntrLoadWorkgroupID:
		return t.arg(abi.ArgWorkgroupID)
	case sir.IntrLoadNumWorkgroups:
		return t.arg(abi.ArgNumWorkgroups)
	case sir.IntrLoadLocalInvocationID:
		return t.arg(abi.ArgLocalInvocationID)
	case sir.IntrLoadLocalInvocationIndex:
		return t.localInvocationIndex()
	case sir.IntrLoadFrontFace:
		return blk.NewICmp(enum.IPredNE, t.b.ToInt(t.arg(abi.ArgFrontFace)), tir.I32(0))
	case sir.IntrLoadFragCoord:
		fc := t.arg(abi.ArgFragCoord)
		w := t.b.Extract(fc, 3)
		return blk.NewInsertElement(fc, t.cur().NewFDiv(tir.F32(1), w), tir.I32(3))
	case sir.IntrLoadSampleID:
		return t.sampleID()
	case sir.IntrLoadSamplePos:
		return t.abi.SamplePosition(t.env, t.sampleID())
	case sir.IntrLoadHelperInvocation:
		live := t.b.Call("llvm.amdgcn.ps.live", types.I1)
		return t.cur().NewXor(live, tir.Bool(true))
	case sir.IntrLoadSubgroupInvocation:
		return t.laneID()
	case sir.IntrLoadSubgroupSize:
		return tir.I32(int64(t.target.WaveSize))
	case sir.IntrLoadBarycentric:
		return t.barycentric(in.Interp)
	case sir.IntrLoadPrimitiveID:
		return t.arg(abi.ArgPrimitiveID)
	}
	t.fatal("unsupported system value %s", in.Op)
	return nil
}

func (t *translator) barycentric(mode sir.Interp) value.Value {
	switch mode {
	case sir.InterpCentroid:
		return t.arg(abi.ArgPerspCentroid)
	case sir.InterpSample:
		return t.arg(abi.ArgPerspSample)
	case sir.InterpFlat:
		return zero(types.NewVector(2, types.Float))
	default:
		return t.arg(abi.ArgPerspCenter)
	}
}
