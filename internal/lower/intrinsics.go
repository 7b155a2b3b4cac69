package lower

import (
	"github.com/llir/llvm/ir/enum"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

func (t *translator) lowerIntrinsic(in *sir.IntrinsicInstr) {
	info, ok := in.Op.Info()
	if !ok {
		t.fatal("unknown intrinsic %d", in.Op)
	}
	if len(in.Srcs) < info.Srcs {
		t.fatal("%s takes %d sources, got %d", info.Name, info.Srcs, len(in.Srcs))
	}

	switch in.Op {
	case sir.IntrLoadSSBO:
		t.loadSSBO(in)
	case sir.IntrStoreSSBO:
		t.storeSSBO(in)
	case sir.IntrSSBOAtomic, sir.IntrSSBOAtomicSwap:
		t.ssboAtomic(in, in.Op == sir.IntrSSBOAtomicSwap)
	case sir.IntrGetSSBOSize:
		t.getSSBOSize(in)
	case sir.IntrLoadUBO:
		t.loadUBO(in)
	case sir.IntrLoadPushConstant:
		t.loadPushConstant(in)

	case sir.IntrLoadShared:
		t.define(in.Dest, t.loadPointer(in, MemShared, t.sharedAddr(in.Srcs[0], in.Base)))
	case sir.IntrStoreShared:
		t.storePointer(in, MemShared, in.Srcs[0], t.sharedAddr(in.Srcs[1], in.Base))
	case sir.IntrSharedAtomic, sir.IntrSharedAtomicSwap:
		t.sharedAtomic(in, in.Op == sir.IntrSharedAtomicSwap)
	case sir.IntrLoadGlobal:
		t.define(in.Dest, t.loadPointer(in, MemGlobal, t.globalAddr(in.Srcs[0], in.Base)))
	case sir.IntrStoreGlobal:
		t.storePointer(in, MemGlobal, in.Srcs[0], t.globalAddr(in.Srcs[1], in.Base))
	case sir.IntrGlobalAtomic, sir.IntrGlobalAtomicSwap:
		t.globalAtomic(in, in.Op == sir.IntrGlobalAtomicSwap)
	case sir.IntrLoadDeref:
		t.loadDeref(in)
	case sir.IntrStoreDeref:
		t.storeDeref(in)
	case sir.IntrDerefAtomic, sir.IntrDerefAtomicSwap:
		t.derefAtomic(in, in.Op == sir.IntrDerefAtomicSwap)

	case sir.IntrImageLoad:
		t.imageLoad(in)
	case sir.IntrImageStore:
		t.imageStore(in)
	case sir.IntrImageAtomic, sir.IntrImageAtomicSwap:
		t.imageAtomic(in, in.Op == sir.IntrImageAtomicSwap)
	case sir.IntrImageSize:
		t.imageSize(in)
	case sir.IntrImageSamples:
		t.imageSamples(in)

	case sir.IntrLoadVertexID, sir.IntrLoadInstanceID, sir.IntrLoadWorkgroupID,
		sir.IntrLoadNumWorkgroups, sir.IntrLoadLocalInvocationID,
		sir.IntrLoadLocalInvocationIndex, sir.IntrLoadFrontFace, sir.IntrLoadFragCoord,
		sir.IntrLoadSampleID, sir.IntrLoadSamplePos, sir.IntrLoadHelperInvocation,
		sir.IntrLoadSubgroupInvocation, sir.IntrLoadSubgroupSize,
		sir.IntrLoadBarycentric, sir.IntrLoadPrimitiveID:
		t.define(in.Dest, t.lowerSysval(in))

	case sir.IntrLoadInput:
		t.define(in.Dest, t.loadInput(in))
	case sir.IntrLoadInterpolatedInput:
		t.define(in.Dest, t.interpolate(in))
	case sir.IntrStoreOutput:
		t.storeOutput(in)
	case sir.IntrEmitVertex:
		t.emitVertex(in)
	case sir.IntrEndPrimitive:
		t.abi.EndPrimitive(t.env, in.Stream)

	case sir.IntrBallot, sir.IntrReadInvocation, sir.IntrReadFirstInvocation,
		sir.IntrElect, sir.IntrVoteAll, sir.IntrVoteAny, sir.IntrVoteIEq,
		sir.IntrVoteFEq, sir.IntrShuffle, sir.IntrQuadBroadcast, sir.IntrQuadSwapX,
		sir.IntrQuadSwapY, sir.IntrQuadSwapDiagonal, sir.IntrReduce,
		sir.IntrInclusiveScan, sir.IntrExclusiveScan, sir.IntrMbcnt:
		t.define(in.Dest, t.lowerSubgroup(in))

	case sir.IntrControlBarrier:
		t.controlBarrier(in)
	case sir.IntrMemoryBarrier:
		t.fence(enum.AtomicOrderingAcqRel, in.MemScope)
	case sir.IntrShaderClock:
		t.define(in.Dest, t.shaderClock(in))

	case sir.IntrDiscard:
		t.kill(tir.Bool(false), false)
	case sir.IntrDiscardIf:
		t.killIf(in.Srcs[0], false)
	case sir.IntrDemote:
		t.kill(tir.Bool(false), true)
	case sir.IntrDemoteIf:
		t.killIf(in.Srcs[0], true)
	case sir.IntrTerminate:
		t.terminate()

	default:
		t.fatal("unsupported intrinsic %s", in.Op)
	}
}
