package lower

import (
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/abi"
	"wavefront/internal/gpu"
	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// cubeCoordOffset moves face coordinates from [-1, 1] to [1, 2].
const cubeCoordOffset = 1.5

func (op texOpClass) needsSampler() bool { return op == texSampled }

type texOpClass uint8

const (
	texSampled texOpClass = iota
	texFetched
	texQuery
)

func (t *translator) texClass(op sir.TexOp) texOpClass {
	switch op {
	case sir.TexSample, sir.TexSampleBias, sir.TexSampleLod, sir.TexSampleGrad, sir.TexGather, sir.TexQueryLod:
		return texSampled
	case sir.TexFetch, sir.TexFetchMS:
		return texFetched
	case sir.TexSize, sir.TexQueryLevels, sir.TexQuerySamples:
		return texQuery
	}
	t.fatal("unsupported texture operation %d", op)
	return texQuery
}

// texDescriptor loads a texture or sampler descriptor, guarding
// non-uniform dynamic indices.
func (t *translator) texDescriptor(tx *sir.TexInstr, sampler bool, wf *waterfall) value.Value {
	kindSrc, set, binding, nonUniform := sir.TexSrcTextureIndex, tx.TextureSet, tx.TextureBinding, tx.TextureNonUniform
	kind := abi.DescImage
	if tx.Dim == sir.DimBuf {
		kind = abi.DescTexelBuffer
	}
	if sampler {
		kindSrc, set, binding, nonUniform = sir.TexSrcSamplerIndex, tx.SamplerSet, tx.SamplerBinding, tx.SamplerNonUniform
		kind = abi.DescSampler
	}
	var idx value.Value
	if s, ok := tx.Src(kindSrc); ok {
		idx = t.enterWaterfall(wf, t.srcI32(s), nonUniform && !t.isConst(s))
	}
	return t.abi.LoadResourceDescriptor(t.env, abi.DescriptorRequest{
		Set: set, Binding: binding, Index: idx, Kind: kind,
	})
}

func (t *translator) lowerTex(tx *sir.TexInstr) {
	def := t.def(tx.Dest)
	class := t.texClass(tx.Op)

	var texWF, sampWF waterfall
	res := t.texDescriptor(tx, false, &texWF)
	var samp value.Value
	if class.needsSampler() && tx.Dim != sir.DimBuf {
		samp = t.texDescriptor(tx, true, &sampWF)
	}
	guarded := texWF.active || sampWF.active

	v := t.texOp(tx, def, res, samp)
	if class != texQuery {
		t.record(Access{Value: tx.Dest, Memory: MemImage, Kind: AccessLoad,
			Size: uint32(int(def.Components) * elemBytes(def.BitSize)), Waterfall: guarded})
	}
	v = t.exitWaterfall(&sampWF, v)
	v = t.exitWaterfall(&texWF, v)
	t.define(tx.Dest, v)
}

func (t *translator) texOp(tx *sir.TexInstr, def sir.Def, res, samp value.Value) value.Value {
	n := int(def.Components)
	switch tx.Op {
	case sir.TexSize:
		if tx.Dim == sir.DimBuf {
			return t.texelBufferSize(res)
		}
		lod := value.Value(tir.I32(0))
		if s, ok := tx.Src(sir.TexSrcLod); ok {
			lod = t.srcI32(s)
		}
		return t.imageSizeOf(res, lod, tx.Dim, tx.IsArray, n)
	case sir.TexQueryLevels:
		info := t.buildImageOp(&imageArgs{
			op: imgGetResInfo, dim: tx.Dim, array: tx.IsArray,
			resource: res, dmask: 0xf, ret: ivec(32, 4),
		})
		return t.b.Extract(info, 3)
	case sir.TexQuerySamples:
		return t.descriptorSamples(res)
	}

	if tx.Dim == sir.DimBuf {
		coord, ok := tx.Src(sir.TexSrcCoord)
		if !ok {
			t.fatal("%s without coordinate", tx.Op)
		}
		ret := texelType(def.BitSize, n)
		return t.b.Call(tir.Overload("llvm.amdgcn.struct.buffer.load.format", ret), ret,
			res, t.b.Extract(t.srcI32(coord), 0), tir.I32(0), tir.I32(0), tir.I32(0))
	}

	a := t.texArgs(tx, def, res, samp)
	if tx.Op == sir.TexGather && tx.DestType != sir.BaseFloat && t.target.NeedsGather4IntegerFix() {
		return t.gather4Integer(tx, a)
	}
	v := t.buildImageOp(a)
	if tx.Op == sir.TexGather {
		return t.b.Trim(v, n)
	}
	return v
}

// texArgs assembles the operands of a sampling or fetch operation.
func (t *translator) texArgs(tx *sir.TexInstr, def sir.Def, res, samp value.Value) *imageArgs {
	n := int(def.Components)
	a := &imageArgs{
		dim: tx.Dim, array: tx.IsArray,
		resource: res, sampler: samp,
		unorm: tx.Dim == sir.DimRect,
		dmask: 1<<n - 1,
		ret:   texelType(def.BitSize, n),
	}
	switch tx.Op {
	case sir.TexFetch, sir.TexFetchMS:
		a.op = imgLoad
	case sir.TexGather:
		a.op = imgGather4
		a.dmask = 1 << tx.Component
		if tx.IsShadow {
			a.dmask = 1
		}
		a.ret = texelType(def.BitSize, 4)
	case sir.TexQueryLod:
		a.op = imgGetLod
		a.dmask = 3
		a.ret = fvec(32, 2)
	case sir.TexSample, sir.TexSampleBias, sir.TexSampleLod, sir.TexSampleGrad:
		a.op = imgSample
	default:
		t.fatal("unsupported texture operation %s", tx.Op)
	}
	fetch := a.op == imgLoad

	coord, ok := tx.Src(sir.TexSrcCoord)
	if !ok {
		t.fatal("%s without coordinate", tx.Op)
	}
	want := tx.CoordComponents()
	var comps []value.Value
	if fetch {
		comps = t.b.Components(t.b.Resize(t.srcInt(coord), 32, false))
	} else {
		comps = t.b.Components(t.srcFloat(coord))
	}
	if len(comps) < want {
		t.fatal("%s coordinate has %d components, want %d", tx.Op, len(comps), want)
	}
	comps = comps[:want]

	if tx.IsArray && !fetch && tx.Dim != sir.DimCube && tx.Op != sir.TexQueryLod {
		layer := len(comps) - 1
		comps[layer] = t.intrin("llvm.rint", comps[layer])
	}

	if ddx, ok := tx.Src(sir.TexSrcDdx); ok {
		ddy, _ := tx.Src(sir.TexSrcDdy)
		a.ddx = t.b.Components(t.srcFloat(ddx))
		a.ddy = t.b.Components(t.srcFloat(ddy))
	}

	switch {
	case tx.Dim == sir.DimCube && !fetch:
		comps, a.ddx, a.ddy = t.cubeCoords(comps, tx.IsArray, a.ddx, a.ddy)
	case tx.Dim == sir.DimCube && tx.IsArray:
		blk := t.cur()
		comps[2] = blk.NewAdd(blk.NewMul(comps[3], tir.I32(6)), comps[2])
		comps = comps[:3]
	}

	if t.gfx9Is1D(tx.Dim) && tx.Op != sir.TexQueryLod {
		var filler value.Value = tir.F32(0.5)
		if fetch {
			filler = tir.I32(0)
		}
		comps = insertAt(comps, 1, filler)
		if a.ddx != nil {
			a.ddx = append(a.ddx, tir.F32(0))
			a.ddy = append(a.ddy, tir.F32(0))
		}
	}

	if s, ok := tx.Src(sir.TexSrcMSIndex); ok {
		comps = append(comps, t.srcI32(s))
	}
	a.coords = comps

	if s, ok := tx.Src(sir.TexSrcOffset); ok {
		a.offset = t.packOffsets(s)
	}
	if s, ok := tx.Src(sir.TexSrcBias); ok {
		a.bias = t.srcFloat(s)
	}
	if s, ok := tx.Src(sir.TexSrcLod); ok {
		if fetch {
			a.lod = t.srcI32(s)
		} else {
			a.lod = t.srcFloat(s)
		}
		if bits, ok := t.constScalar(s); ok && bits == 0 && t.target.Gen >= gpu.GFX9 {
			a.lodZero = true
		}
	}
	if s, ok := tx.Src(sir.TexSrcComparator); ok {
		cmp := t.srcFloat(s)
		if t.target.Gen == gpu.GFX8 {
			cmp = t.intrin("llvm.maxnum", cmp, tir.F32(0))
			cmp = t.intrin("llvm.minnum", cmp, tir.F32(1))
		}
		a.compare = cmp
	}
	if tx.Op == sir.TexFetchMS && a.lod != nil {
		a.lod = nil
	}
	return a
}

// packOffsets packs texel offsets into 6-bit fields, one byte apart.
func (t *translator) packOffsets(s sir.Src) value.Value {
	if bits, ok := t.constBits(s); ok {
		var packed int64
		for i, b := range bits {
			packed |= int64(b&0x3f) << (8 * i)
		}
		return tir.I32(packed)
	}
	comps := t.b.Components(t.b.Resize(t.srcInt(s), 32, false))
	var packed value.Value
	for i, c := range comps {
		blk := t.cur()
		field := value.Value(blk.NewAnd(c, tir.I32(0x3f)))
		if i > 0 {
			field = blk.NewShl(field, tir.I32(int64(8*i)))
		}
		if packed == nil {
			packed = field
		} else {
			packed = blk.NewOr(packed, field)
		}
	}
	return packed
}

// cubeCoords turns a direction (and layer) into face coordinates and a
// face index, with the layer folded into the face as layer*8+face.
// Derivatives are projected onto the face of the coordinate.
func (t *translator) cubeCoords(comps []value.Value, array bool, ddx, ddy []value.Value) ([]value.Value, []value.Value, []value.Value) {
	dir := comps[:3]
	sc := t.b.Call("llvm.amdgcn.cubesc", types.Float, dir...)
	tc := t.b.Call("llvm.amdgcn.cubetc", types.Float, dir...)
	ma := t.b.Call("llvm.amdgcn.cubema", types.Float, dir...)
	id := t.b.Call("llvm.amdgcn.cubeid", types.Float, dir...)

	blk := t.cur()
	invMa := blk.NewFDiv(tir.F32(1), t.intrin("llvm.fabs", ma))
	s := blk.NewFAdd(blk.NewFMul(sc, invMa), tir.F32(cubeCoordOffset))
	tt := blk.NewFAdd(blk.NewFMul(tc, invMa), tir.F32(cubeCoordOffset))
	face := value.Value(id)
	if array {
		layer := t.intrin("llvm.rint", comps[3])
		face = blk.NewFAdd(blk.NewFMul(layer, tir.F32(8)), id)
	}

	if ddx != nil {
		ddx = t.cubeDerivative(dir, ddx, s, tt)
		ddy = t.cubeDerivative(dir, ddy, s, tt)
	}
	return []value.Value{s, tt, face}, ddx, ddy
}

// cubeDerivative approximates the face-space derivative as the
// difference of face coordinates at dir+d and dir.
func (t *translator) cubeDerivative(dir, d []value.Value, s, tt value.Value) []value.Value {
	moved := make([]value.Value, 3)
	for i := range moved {
		moved[i] = t.cur().NewFAdd(dir[i], d[i])
	}
	sc := t.b.Call("llvm.amdgcn.cubesc", types.Float, moved...)
	tc := t.b.Call("llvm.amdgcn.cubetc", types.Float, moved...)
	ma := t.b.Call("llvm.amdgcn.cubema", types.Float, moved...)
	blk := t.cur()
	invMa := blk.NewFDiv(tir.F32(1), t.intrin("llvm.fabs", ma))
	s2 := blk.NewFAdd(blk.NewFMul(sc, invMa), tir.F32(cubeCoordOffset))
	t2 := blk.NewFAdd(blk.NewFMul(tc, invMa), tir.F32(cubeCoordOffset))
	return []value.Value{blk.NewFSub(s2, s), blk.NewFSub(t2, tt)}
}

// gather4Integer works around gather4 on integer formats returning
// filtered values on older generations. Non-cube textures shift the
// coordinates by half a texel; cube textures sample through a scaled
// number format and convert back.
func (t *translator) gather4Integer(tx *sir.TexInstr, a *imageArgs) value.Value {
	signed := tx.DestType == sir.BaseInt
	var is8888 value.Value

	if tx.Dim == sir.DimCube {
		blk := t.cur()
		w1 := t.b.Extract(a.resource, 1)
		dfmt := blk.NewAnd(blk.NewLShr(w1, tir.I32(20)), tir.I32(0x3f))
		is8888 = blk.NewICmp(enum.IPredEQ, dfmt, tir.I32(dataFormat8888))
		scaled, exact := int64(numFormatUScaled), int64(numFormatUint)
		if signed {
			scaled, exact = numFormatSScaled, numFormatSint
		}
		format := blk.NewSelect(is8888, tir.I32(scaled), tir.I32(exact))
		a.resource = t.patchNumFormat(a.resource, format)
	} else {
		size := t.buildImageOp(&imageArgs{
			op: imgGetResInfo, dim: tx.Dim, array: tx.IsArray,
			resource: a.resource, lod: tir.I32(0), dmask: 0xf, ret: ivec(32, 4),
		})
		for i := 0; i < 2 && i < len(a.coords); i++ {
			blk := t.cur()
			extent := blk.NewSIToFP(t.b.Extract(size, i), types.Float)
			half := blk.NewFDiv(tir.F32(-0.5), extent)
			a.coords[i] = blk.NewFAdd(a.coords[i], half)
		}
	}

	v := t.buildImageOp(a)
	raw := t.b.ToInt(v)
	if is8888 == nil {
		return t.b.Trim(raw, int(t.def(tx.Dest).Components))
	}
	blk := t.cur()
	var conv value.Value
	if signed {
		conv = blk.NewFPToSI(v, ivec(32, 4))
	} else {
		conv = blk.NewFPToUI(v, ivec(32, 4))
	}
	out := blk.NewSelect(is8888, conv, raw)
	return t.b.Trim(out, int(t.def(tx.Dest).Components))
}
