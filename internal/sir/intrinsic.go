package sir

// IntrinsicOp is an intrinsic opcode.
type IntrinsicOp uint16

const (
	// Memory. Source layouts are documented on IntrinsicInstr.
	IntrLoadSSBO IntrinsicOp = iota
	IntrStoreSSBO
	IntrSSBOAtomic
	IntrSSBOAtomicSwap
	IntrGetSSBOSize
	IntrLoadUBO
	IntrLoadPushConstant
	IntrLoadShared
	IntrStoreShared
	IntrSharedAtomic
	IntrSharedAtomicSwap
	IntrLoadGlobal
	IntrStoreGlobal
	IntrGlobalAtomic
	IntrGlobalAtomicSwap
	IntrLoadDeref
	IntrStoreDeref
	IntrDerefAtomic
	IntrDerefAtomicSwap

	IntrImageLoad
	IntrImageStore
	IntrImageAtomic
	IntrImageAtomicSwap
	IntrImageSize
	IntrImageSamples

	IntrLoadVertexID
	IntrLoadInstanceID
	IntrLoadWorkgroupID
	IntrLoadNumWorkgroups
	IntrLoadLocalInvocationID
	IntrLoadLocalInvocationIndex
	IntrLoadFrontFace
	IntrLoadFragCoord
	IntrLoadSampleID
	IntrLoadSamplePos
	IntrLoadHelperInvocation
	IntrLoadSubgroupInvocation
	IntrLoadSubgroupSize
	IntrLoadBarycentric
	IntrLoadPrimitiveID

	IntrLoadInput
	IntrLoadInterpolatedInput
	IntrStoreOutput
	IntrEmitVertex
	IntrEndPrimitive

	IntrBallot
	IntrReadInvocation
	IntrReadFirstInvocation
	IntrElect
	IntrVoteAll
	IntrVoteAny
	IntrVoteIEq
	IntrVoteFEq
	IntrShuffle
	IntrQuadBroadcast
	IntrQuadSwapX
	IntrQuadSwapY
	IntrQuadSwapDiagonal
	IntrReduce
	IntrInclusiveScan
	IntrExclusiveScan
	IntrMbcnt

	IntrControlBarrier
	IntrMemoryBarrier
	IntrShaderClock

	IntrDiscard
	IntrDiscardIf
	IntrDemote
	IntrDemoteIf
	IntrTerminate

	numIntrinsics
)

// NumIntrinsics is the number of intrinsic opcodes.
const NumIntrinsics = int(numIntrinsics)

// IntrinsicInfo describes an intrinsic opcode.
type IntrinsicInfo struct {
	Name    string
	Srcs    int
	HasDest bool
}

var intrinsicInfos = [numIntrinsics]IntrinsicInfo{
	IntrLoadSSBO:         {"load_ssbo", 2, true},
	IntrStoreSSBO:        {"store_ssbo", 3, false},
	IntrSSBOAtomic:       {"ssbo_atomic", 3, true},
	IntrSSBOAtomicSwap:   {"ssbo_atomic_swap", 4, true},
	IntrGetSSBOSize:      {"get_ssbo_size", 1, true},
	IntrLoadUBO:          {"load_ubo", 2, true},
	IntrLoadPushConstant: {"load_push_constant", 1, true},
	IntrLoadShared:       {"load_shared", 1, true},
	IntrStoreShared:      {"store_shared", 2, false},
	IntrSharedAtomic:     {"shared_atomic", 2, true},
	IntrSharedAtomicSwap: {"shared_atomic_swap", 3, true},
	IntrLoadGlobal:       {"load_global", 1, true},
	IntrStoreGlobal:      {"store_global", 2, false},
	IntrGlobalAtomic:     {"global_atomic", 2, true},
	IntrGlobalAtomicSwap: {"global_atomic_swap", 3, true},
	IntrLoadDeref:        {"load_deref", 1, true},
	IntrStoreDeref:       {"store_deref", 2, false},
	IntrDerefAtomic:      {"deref_atomic", 2, true},
	IntrDerefAtomicSwap:  {"deref_atomic_swap", 3, true},

	IntrImageLoad:       {"image_load", 3, true},
	IntrImageStore:      {"image_store", 4, false},
	IntrImageAtomic:     {"image_atomic", 4, true},
	IntrImageAtomicSwap: {"image_atomic_swap", 5, true},
	IntrImageSize:       {"image_size", 2, true},
	IntrImageSamples:    {"image_samples", 1, true},

	IntrLoadVertexID:             {"load_vertex_id", 0, true},
	IntrLoadInstanceID:           {"load_instance_id", 0, true},
	IntrLoadWorkgroupID:          {"load_workgroup_id", 0, true},
	IntrLoadNumWorkgroups:        {"load_num_workgroups", 0, true},
	IntrLoadLocalInvocationID:    {"load_local_invocation_id", 0, true},
	IntrLoadLocalInvocationIndex: {"load_local_invocation_index", 0, true},
	IntrLoadFrontFace:            {"load_front_face", 0, true},
	IntrLoadFragCoord:            {"load_frag_coord", 0, true},
	IntrLoadSampleID:             {"load_sample_id", 0, true},
	IntrLoadSamplePos:            {"load_sample_pos", 0, true},
	IntrLoadHelperInvocation:     {"load_helper_invocation", 0, true},
	IntrLoadSubgroupInvocation:   {"load_subgroup_invocation", 0, true},
	IntrLoadSubgroupSize:         {"load_subgroup_size", 0, true},
	IntrLoadBarycentric:          {"load_barycentric", 0, true},
	IntrLoadPrimitiveID:          {"load_primitive_id", 0, true},

	IntrLoadInput:             {"load_input", 0, true},
	IntrLoadInterpolatedInput: {"load_interpolated_input", 1, true},
	IntrStoreOutput:           {"store_output", 1, false},
	IntrEmitVertex:            {"emit_vertex", 0, false},
	IntrEndPrimitive:          {"end_primitive", 0, false},

	IntrBallot:              {"ballot", 1, true},
	IntrReadInvocation:      {"read_invocation", 2, true},
	IntrReadFirstInvocation: {"read_first_invocation", 1, true},
	IntrElect:               {"elect", 0, true},
	IntrVoteAll:             {"vote_all", 1, true},
	IntrVoteAny:             {"vote_any", 1, true},
	IntrVoteIEq:             {"vote_ieq", 1, true},
	IntrVoteFEq:             {"vote_feq", 1, true},
	IntrShuffle:             {"shuffle", 2, true},
	IntrQuadBroadcast:       {"quad_broadcast", 2, true},
	IntrQuadSwapX:           {"quad_swap_horizontal", 1, true},
	IntrQuadSwapY:           {"quad_swap_vertical", 1, true},
	IntrQuadSwapDiagonal:    {"quad_swap_diagonal", 1, true},
	IntrReduce:              {"reduce", 1, true},
	IntrInclusiveScan:       {"inclusive_scan", 1, true},
	IntrExclusiveScan:       {"exclusive_scan", 1, true},
	IntrMbcnt:               {"mbcnt", 1, true},

	IntrControlBarrier: {"control_barrier", 0, false},
	IntrMemoryBarrier:  {"memory_barrier", 0, false},
	IntrShaderClock:    {"shader_clock", 0, true},

	IntrDiscard:   {"discard", 0, false},
	IntrDiscardIf: {"discard_if", 1, false},
	IntrDemote:    {"demote", 0, false},
	IntrDemoteIf:  {"demote_if", 1, false},
	IntrTerminate: {"terminate", 0, false},
}

// Info returns the table entry for op. ok is false for unknown opcodes.
func (op IntrinsicOp) Info() (IntrinsicInfo, bool) {
	if int(op) >= len(intrinsicInfos) || intrinsicInfos[op].Name == "" {
		return IntrinsicInfo{}, false
	}
	return intrinsicInfos[op], true
}

// String returns the intrinsic name.
func (op IntrinsicOp) String() string {
	if info, ok := op.Info(); ok {
		return info.Name
	}
	return "intrinsic?"
}

// Access is a bitmask of memory access qualifiers.
type Access uint16

const (
	AccessCoherent Access = 1 << iota
	AccessVolatile
	AccessRestrict
	// AccessNonWritable marks read-only memory.
	AccessNonWritable
	// AccessNonReadable marks write-only memory.
	AccessNonReadable
	// AccessNonUniform marks a descriptor index that may differ across lanes.
	AccessNonUniform
	// AccessStream hints that the data is touched once.
	AccessStream
	// AccessCanReorder allows speculative or reordered execution.
	AccessCanReorder
)

// AtomicOp selects the read-modify-write operation of an atomic intrinsic.
type AtomicOp uint8

const (
	AtomicAdd AtomicOp = iota
	AtomicIMin
	AtomicUMin
	AtomicIMax
	AtomicUMax
	AtomicAnd
	AtomicOr
	AtomicXor
	AtomicExchange
	AtomicCompSwap
	AtomicFAdd
	AtomicFMin
	AtomicFMax
	AtomicIncWrap
	AtomicDecWrap
)

// String returns the string representation of AtomicOp.
func (op AtomicOp) String() string {
	switch op {
	case AtomicAdd:
		return "add"
	case AtomicIMin:
		return "imin"
	case AtomicUMin:
		return "umin"
	case AtomicIMax:
		return "imax"
	case AtomicUMax:
		return "umax"
	case AtomicAnd:
		return "and"
	case AtomicOr:
		return "or"
	case AtomicXor:
		return "xor"
	case AtomicExchange:
		return "xchg"
	case AtomicCompSwap:
		return "cmpswap"
	case AtomicFAdd:
		return "fadd"
	case AtomicFMin:
		return "fmin"
	case AtomicFMax:
		return "fmax"
	case AtomicIncWrap:
		return "inc_wrap"
	case AtomicDecWrap:
		return "dec_wrap"
	default:
		return "unknown"
	}
}

// Dim is an image or sampler dimensionality.
type Dim uint8

const (
	Dim1D Dim = iota
	Dim2D
	Dim3D
	DimCube
	DimRect
	DimBuf
	DimMS
	DimSubpass
	DimSubpassMS
)

// String returns the string representation of Dim.
func (d Dim) String() string {
	switch d {
	case Dim1D:
		return "1d"
	case Dim2D:
		return "2d"
	case Dim3D:
		return "3d"
	case DimCube:
		return "cube"
	case DimRect:
		return "rect"
	case DimBuf:
		return "buf"
	case DimMS:
		return "ms"
	case DimSubpass:
		return "subpass"
	case DimSubpassMS:
		return "subpass_ms"
	default:
		return "unknown"
	}
}

// Interp selects a barycentric interpolation location.
type Interp uint8

const (
	InterpCenter Interp = iota
	InterpCentroid
	InterpSample
	InterpFlat
)

// Scope is a memory or execution scope.
type Scope uint8

const (
	ScopeNone Scope = iota
	ScopeSubgroup
	ScopeWorkgroup
	ScopeDevice
)

// String returns the string representation of Scope.
func (s Scope) String() string {
	switch s {
	case ScopeNone:
		return "none"
	case ScopeSubgroup:
		return "subgroup"
	case ScopeWorkgroup:
		return "workgroup"
	case ScopeDevice:
		return "device"
	default:
		return "unknown"
	}
}

// IntrinsicInstr represents an intrinsic call.
//
// Source layouts:
//
//	load_ssbo           [index, offset]
//	store_ssbo          [value, index, offset]
//	ssbo_atomic         [index, offset, data]
//	ssbo_atomic_swap    [index, offset, compare, data]
//	get_ssbo_size       [index]
//	load_ubo            [index, offset]
//	load_push_constant  [offset]
//	load_shared         [offset]
//	store_shared        [value, offset]
//	shared_atomic       [offset, data]          (+compare before data for _swap)
//	load_global         [address]
//	store_global        [value, address]
//	global_atomic       [address, data]         (+compare before data for _swap)
//	load_deref          [deref]
//	store_deref         [deref, value]
//	deref_atomic        [deref, data]           (+compare before data for _swap)
//	image_load          [index, coord, sample]
//	image_store         [index, coord, sample, value]
//	image_atomic        [index, coord, sample, data] (+compare before data for _swap)
//	image_size          [index, lod]
//	image_samples       [index]
//	load_interpolated_input [barycentric]
//	store_output        [value]
type IntrinsicInstr struct {
	Op   IntrinsicOp
	Dest ValueID
	Srcs []Src

	Access    Access
	Align     uint32
	WriteMask uint8
	// Base is a constant byte offset for memory intrinsics and the I/O
	// location for input/output intrinsics.
	Base      int32
	Component uint8

	Set     uint32
	Binding uint32

	Atomic     AtomicOp
	ImageDim   Dim
	ImageArray bool

	Interp      Interp
	Scope       Scope
	MemScope    Scope
	ReduceOp    Op
	ClusterSize uint8
	Stream      uint8
}
