package sir

// TexOp selects a texture operation.
type TexOp uint8

const (
	// TexSample is an implicit-LOD sample.
	TexSample TexOp = iota
	// TexSampleBias adds a LOD bias.
	TexSampleBias
	// TexSampleLod samples an explicit LOD.
	TexSampleLod
	// TexSampleGrad samples with explicit derivatives.
	TexSampleGrad
	// TexFetch reads a texel by integer coordinate.
	TexFetch
	// TexFetchMS reads one sample of a multisampled texel.
	TexFetchMS
	// TexSize queries the size of a mip level.
	TexSize
	// TexQueryLod returns the LOD that would be used for sampling.
	TexQueryLod
	// TexGather returns one component of the four texels of a bilinear footprint.
	TexGather
	// TexQueryLevels returns the number of mip levels.
	TexQueryLevels
	// TexQuerySamples returns the number of samples.
	TexQuerySamples

	numTexOps
)

// Valid reports whether op is a known texture operation.
func (op TexOp) Valid() bool { return op < numTexOps }

// String returns the string representation of TexOp.
func (op TexOp) String() string {
	switch op {
	case TexSample:
		return "tex"
	case TexSampleBias:
		return "txb"
	case TexSampleLod:
		return "txl"
	case TexSampleGrad:
		return "txd"
	case TexFetch:
		return "txf"
	case TexFetchMS:
		return "txf_ms"
	case TexSize:
		return "txs"
	case TexQueryLod:
		return "lod"
	case TexGather:
		return "tg4"
	case TexQueryLevels:
		return "query_levels"
	case TexQuerySamples:
		return "texture_samples"
	default:
		return "unknown"
	}
}

// BaseType is the component type of a texture result.
type BaseType uint8

const (
	BaseFloat BaseType = iota
	BaseInt
	BaseUint
)

// TexSrcKind identifies a texture operand.
type TexSrcKind uint8

const (
	TexSrcCoord TexSrcKind = iota
	TexSrcBias
	TexSrcLod
	TexSrcComparator
	TexSrcOffset
	TexSrcDdx
	TexSrcDdy
	TexSrcMSIndex
	// TexSrcTextureIndex is a dynamic index into the texture binding array.
	TexSrcTextureIndex
	// TexSrcSamplerIndex is a dynamic index into the sampler binding array.
	TexSrcSamplerIndex
)

// String returns the string representation of TexSrcKind.
func (k TexSrcKind) String() string {
	switch k {
	case TexSrcCoord:
		return "coord"
	case TexSrcBias:
		return "bias"
	case TexSrcLod:
		return "lod"
	case TexSrcComparator:
		return "comparator"
	case TexSrcOffset:
		return "offset"
	case TexSrcDdx:
		return "ddx"
	case TexSrcDdy:
		return "ddy"
	case TexSrcMSIndex:
		return "ms_index"
	case TexSrcTextureIndex:
		return "texture_index"
	case TexSrcSamplerIndex:
		return "sampler_index"
	default:
		return "unknown"
	}
}

// TexSrc is one texture operand.
type TexSrc struct {
	Kind TexSrcKind
	Src  Src
}

// TexInstr represents a texture operation.
type TexInstr struct {
	Op       TexOp
	Dest     ValueID
	Dim      Dim
	IsArray  bool
	IsShadow bool
	DestType BaseType
	// Component selects the channel returned by TexGather.
	Component uint8
	Srcs      []TexSrc

	TextureSet     uint32
	TextureBinding uint32
	SamplerSet     uint32
	SamplerBinding uint32

	TextureNonUniform bool
	SamplerNonUniform bool
}

// Src returns the operand of the given kind.
func (t *TexInstr) Src(kind TexSrcKind) (Src, bool) {
	for _, s := range t.Srcs {
		if s.Kind == kind {
			return s.Src, true
		}
	}
	return Src{}, false
}

// CoordComponents returns the number of coordinate components for the
// instruction's dimensionality, including the array layer.
func (t *TexInstr) CoordComponents() int {
	var n int
	switch t.Dim {
	case Dim1D, DimBuf:
		n = 1
	case Dim2D, DimRect, DimMS, DimSubpass, DimSubpassMS:
		n = 2
	case Dim3D, DimCube:
		n = 3
	}
	if t.IsArray {
		n++
	}
	return n
}
