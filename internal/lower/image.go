package lower

import (
	"strings"

	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/abi"
	"wavefront/internal/gpu"
	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

type imageOp uint8

const (
	imgSample imageOp = iota
	imgGather4
	imgLoad
	imgStore
	imgAtomic
	imgGetResInfo
	imgGetLod
)

// imageArgs collects the operands of one image instruction. Coordinates
// are scalars in the order the hardware expects them, the array layer
// and sample index included.
type imageArgs struct {
	op    imageOp
	dim   sir.Dim
	array bool

	resource value.Value
	sampler  value.Value

	coords  []value.Value
	ddx     []value.Value
	ddy     []value.Value
	offset  value.Value
	bias    value.Value
	lod     value.Value
	lodZero bool
	compare value.Value
	unorm   bool

	dmask  int
	ret    types.Type
	data   value.Value
	cmp    value.Value
	atomic sir.AtomicOp
	policy Policy
}

// hwDim returns the dimension suffix of image intrinsics. 1D images are
// laid out as 2D on GFX9.
func hwDim(target gpu.Target, dim sir.Dim, array bool) string {
	var s string
	switch dim {
	case sir.Dim1D:
		s = "1d"
		if target.Gen == gpu.GFX9 {
			s = "2d"
		}
	case sir.Dim3D:
		return "3d"
	case sir.DimCube:
		return "cube"
	case sir.DimMS, sir.DimSubpassMS:
		s = "2dmsaa"
		if array {
			return "2darraymsaa"
		}
		return s
	default:
		s = "2d"
	}
	if array {
		s += "array"
	}
	return s
}

// gfx9Is1D reports whether a 1D image needs the filler coordinate.
func (t *translator) gfx9Is1D(dim sir.Dim) bool {
	return dim == sir.Dim1D && t.target.Gen == gpu.GFX9
}

// buildImageOp emits the image intrinsic described by a.
func (t *translator) buildImageOp(a *imageArgs) value.Value {
	dim := hwDim(t.target, a.dim, a.array)
	policy := tir.I32(int64(a.policy))
	var coordTy types.Type = types.I32
	if len(a.coords) > 0 {
		coordTy = a.coords[0].Type()
	}

	switch a.op {
	case imgSample, imgGather4, imgGetLod:
		var name strings.Builder
		name.WriteString("llvm.amdgcn.image.")
		switch a.op {
		case imgSample:
			name.WriteString("sample")
		case imgGather4:
			name.WriteString("gather4")
		default:
			name.WriteString("getlod")
		}
		if a.compare != nil {
			name.WriteString(".c")
		}
		overloads := []types.Type{a.ret}
		switch {
		case a.ddx != nil:
			name.WriteString(".d")
			overloads = append(overloads, a.ddx[0].Type())
		case a.bias != nil:
			name.WriteString(".b")
			overloads = append(overloads, a.bias.Type())
		case a.lod != nil && a.lodZero:
			name.WriteString(".lz")
		case a.lod != nil:
			name.WriteString(".l")
		}
		if a.offset != nil {
			name.WriteString(".o")
		}
		name.WriteString("." + dim)
		overloads = append(overloads, coordTy)

		args := []value.Value{tir.I32(int64(a.dmask))}
		if a.offset != nil {
			args = append(args, a.offset)
		}
		if a.bias != nil {
			args = append(args, a.bias)
		}
		if a.compare != nil {
			args = append(args, a.compare)
		}
		args = append(args, a.ddx...)
		args = append(args, a.ddy...)
		args = append(args, a.coords...)
		if a.lod != nil && !a.lodZero && a.ddx == nil && a.bias == nil {
			args = append(args, a.lod)
		}
		args = append(args, a.resource, a.sampler, tir.Bool(a.unorm), tir.I32(0), policy)
		return t.b.Call(tir.Overload(name.String(), overloads...), a.ret, args...)

	case imgLoad:
		base := "llvm.amdgcn.image.load"
		args := []value.Value{tir.I32(int64(a.dmask))}
		args = append(args, a.coords...)
		if a.lod != nil && !a.lodZero {
			base += ".mip"
			args = append(args, a.lod)
		}
		args = append(args, a.resource, tir.I32(0), policy)
		return t.b.Call(tir.Overload(base+"."+dim, a.ret, coordTy), a.ret, args...)

	case imgStore:
		base := "llvm.amdgcn.image.store"
		args := []value.Value{a.data, tir.I32(int64(a.dmask))}
		args = append(args, a.coords...)
		if a.lod != nil && !a.lodZero {
			base += ".mip"
			args = append(args, a.lod)
		}
		args = append(args, a.resource, tir.I32(0), policy)
		return t.b.Call(tir.Overload(base+"."+dim, a.data.Type(), coordTy), types.Void, args...)

	case imgAtomic:
		name := "llvm.amdgcn.image.atomic." + intrinsicAtomicName(a.atomic) + "." + dim
		args := []value.Value{a.data}
		if a.cmp != nil {
			args = append(args, a.cmp)
		}
		args = append(args, a.coords...)
		args = append(args, a.resource, tir.I32(0), policy)
		return t.b.Call(tir.Overload(name, a.data.Type(), coordTy), a.data.Type(), args...)

	case imgGetResInfo:
		lod := a.lod
		if lod == nil {
			lod = tir.I32(0)
		}
		name := tir.Overload("llvm.amdgcn.image.getresinfo."+dim, a.ret, types.I32)
		return t.b.Call(name, a.ret, tir.I32(int64(a.dmask)), lod, a.resource, tir.I32(0), policy)
	}
	t.fatal("unknown image operation %d", a.op)
	return nil
}

// imageDescriptor loads the descriptor of an image intrinsic, inside a
// divergence guard when the index is non-uniform.
func (t *translator) imageDescriptor(in *sir.IntrinsicInstr, write bool, wf *waterfall) value.Value {
	idx := t.enterWaterfall(wf, t.srcI32(in.Srcs[0]), t.nonUniform(in.Access, in.Srcs[0]))
	kind := abi.DescImage
	if in.ImageDim == sir.DimBuf {
		kind = abi.DescTexelBuffer
	}
	return t.abi.LoadResourceDescriptor(t.env, abi.DescriptorRequest{
		Set: in.Set, Binding: in.Binding, Index: idx, Kind: kind, Write: write,
	})
}

// imageCoords extracts the integer coordinates of an image intrinsic,
// appending the sample index for multisampled images.
func (t *translator) imageCoords(in *sir.IntrinsicInstr) []value.Value {
	n := (&sir.TexInstr{Dim: in.ImageDim, IsArray: in.ImageArray}).CoordComponents()
	if in.ImageDim == sir.DimCube {
		n = 3
	}
	all := t.b.Components(t.b.Resize(t.srcInt(in.Srcs[1]), 32, false))
	if len(all) < n {
		t.fatal("%s coordinate has %d components, want %d", in.Op, len(all), n)
	}
	coords := all[:n]
	if t.gfx9Is1D(in.ImageDim) {
		coords = insertAt(coords, 1, tir.I32(0))
	}
	if in.ImageDim == sir.DimMS || in.ImageDim == sir.DimSubpassMS {
		coords = append(coords, t.srcI32(in.Srcs[2]))
	}
	return coords
}

func insertAt(vals []value.Value, i int, v value.Value) []value.Value {
	out := make([]value.Value, 0, len(vals)+1)
	out = append(out, vals[:i]...)
	out = append(out, v)
	return append(out, vals[i:]...)
}

// texelType is the return type of an image read of n components.
func texelType(bits uint8, n int) types.Type {
	if bits == 16 {
		return fvec(16, n)
	}
	return fvec(32, n)
}

func (t *translator) imageLoad(in *sir.IntrinsicInstr) {
	def := t.def(in.Dest)
	n := int(def.Components)
	var wf waterfall
	desc := t.imageDescriptor(in, false, &wf)
	guarded := wf.active
	policy := cachePolicy(t.target, in.Access, false, true)
	ret := texelType(def.BitSize, n)

	var v value.Value
	if in.ImageDim == sir.DimBuf {
		vindex := t.b.Extract(t.srcI32(in.Srcs[1]), 0)
		v = t.b.Call(tir.Overload("llvm.amdgcn.struct.buffer.load.format", ret), ret,
			desc, vindex, tir.I32(0), tir.I32(0), tir.I32(int64(policy)))
	} else {
		v = t.buildImageOp(&imageArgs{
			op: imgLoad, dim: in.ImageDim, array: in.ImageArray,
			resource: desc, coords: t.imageCoords(in),
			dmask: 1<<n - 1, ret: ret, policy: policy,
		})
	}
	t.record(Access{Value: in.Dest, Memory: MemImage, Kind: AccessLoad,
		Size: uint32(n * elemBytes(def.BitSize)), Policy: policy, Waterfall: guarded})
	t.define(in.Dest, t.exitWaterfall(&wf, v))
}

func (t *translator) imageStore(in *sir.IntrinsicInstr) {
	var wf waterfall
	desc := t.imageDescriptor(in, true, &wf)
	guarded := wf.active
	policy := cachePolicy(t.target, in.Access, true, false)
	data := t.srcFloat(in.Srcs[3])
	n := tir.NumComponents(data.Type())

	if in.ImageDim == sir.DimBuf {
		vindex := t.b.Extract(t.srcI32(in.Srcs[1]), 0)
		t.b.Call(tir.Overload("llvm.amdgcn.struct.buffer.store.format", data.Type()), types.Void,
			data, desc, vindex, tir.I32(0), tir.I32(0), tir.I32(int64(policy)))
	} else {
		t.buildImageOp(&imageArgs{
			op: imgStore, dim: in.ImageDim, array: in.ImageArray,
			resource: desc, coords: t.imageCoords(in),
			dmask: 1<<n - 1, data: data, policy: policy,
		})
	}
	t.record(Access{Value: in.Srcs[3].Value, Memory: MemImage, Kind: AccessStore,
		Size: uint32(n * elemBytes(tir.ScalarBits(data.Type()))), Policy: policy, Waterfall: guarded})
	t.exitWaterfall(&wf, nil)
}

func (t *translator) imageAtomic(in *sir.IntrinsicInstr, swap bool) {
	op := t.atomicOp(in, swap)
	def := t.def(in.Dest)
	var wf waterfall
	desc := t.imageDescriptor(in, true, &wf)
	guarded := wf.active
	cmp, data := t.atomicOperands(in, in.Srcs[3:], swap)

	var v value.Value
	switch {
	case in.ImageDim == sir.DimBuf && swap && def.BitSize == 64:
		v = t.texelBufferCmpSwap64(desc, t.b.Extract(t.srcI32(in.Srcs[1]), 0), cmp, data)
	case in.ImageDim == sir.DimBuf:
		vindex := t.b.Extract(t.srcI32(in.Srcs[1]), 0)
		ty := data.Type()
		args := []value.Value{data}
		if swap {
			args = append(args, cmp)
		}
		args = append(args, desc, vindex, tir.I32(0), tir.I32(0), tir.I32(0))
		v = t.b.Call(tir.Overload("llvm.amdgcn.struct.buffer.atomic."+intrinsicAtomicName(op), ty), ty, args...)
	default:
		v = t.buildImageOp(&imageArgs{
			op: imgAtomic, dim: in.ImageDim, array: in.ImageArray,
			resource: desc, coords: t.imageCoords(in),
			data: data, cmp: cmp, atomic: op,
		})
	}
	t.record(Access{Value: in.Dest, Memory: MemImage, Kind: AccessAtomic,
		Size: uint32(elemBytes(def.BitSize)), Waterfall: guarded})
	t.define(in.Dest, t.exitWaterfall(&wf, v))
}

// texelBufferCmpSwap64 is the 64-bit compare-exchange of a texel buffer:
// the element address is the descriptor base plus index times stride.
func (t *translator) texelBufferCmpSwap64(desc, index, cmp, data value.Value) value.Value {
	blk := t.cur()
	stride := blk.NewAnd(blk.NewLShr(t.b.Extract(desc, 1), tir.I32(16)), tir.I32(0x3fff))
	off := blk.NewMul(index, stride)
	return t.bufferCmpSwap64(desc, off, cmp, data)
}

// texelBufferSize returns the number of elements of a texel buffer.
// GFX8 descriptors hold a byte count.
func (t *translator) texelBufferSize(desc value.Value) value.Value {
	size := t.b.Extract(desc, 2)
	if t.target.Gen != gpu.GFX8 {
		return size
	}
	blk := t.cur()
	stride := blk.NewAnd(blk.NewLShr(t.b.Extract(desc, 1), tir.I32(16)), tir.I32(0x3fff))
	return blk.NewUDiv(size, stride)
}

// imageSizeOf queries the size of a non-buffer image. Cube arrays report
// layers rather than faces.
func (t *translator) imageSizeOf(desc, lod value.Value, dim sir.Dim, array bool, n int) value.Value {
	ret := ivec(32, 4)
	res := t.buildImageOp(&imageArgs{
		op: imgGetResInfo, dim: dim, array: array,
		resource: desc, lod: lod, dmask: 0xf, ret: ret,
	})
	comps := t.b.Components(res)
	if t.gfx9Is1D(dim) && array {
		comps[1] = comps[2]
	}
	if dim == sir.DimCube && array {
		comps[2] = t.cur().NewSDiv(comps[2], tir.I32(6))
	}
	return t.b.Gather(comps[:n])
}

func (t *translator) imageSize(in *sir.IntrinsicInstr) {
	def := t.def(in.Dest)
	var wf waterfall
	desc := t.imageDescriptor(in, false, &wf)
	var v value.Value
	if in.ImageDim == sir.DimBuf {
		v = t.texelBufferSize(desc)
	} else {
		v = t.imageSizeOf(desc, t.srcI32(in.Srcs[1]), in.ImageDim, in.ImageArray, int(def.Components))
	}
	t.define(in.Dest, t.exitWaterfall(&wf, v))
}

// descriptorSamples decodes the sample count of an image descriptor:
// 1 << LAST_LEVEL for MSAA resource types, else 1.
func (t *translator) descriptorSamples(desc value.Value) value.Value {
	blk := t.cur()
	w3 := t.b.Extract(desc, 3)
	typ := blk.NewLShr(w3, tir.I32(28))
	msaa := blk.NewICmp(enum.IPredUGE, typ, tir.I32(0xe))
	log2 := blk.NewAnd(blk.NewLShr(w3, tir.I32(16)), tir.I32(0xf))
	samples := blk.NewShl(tir.I32(1), log2)
	return blk.NewSelect(msaa, samples, tir.I32(1))
}

func (t *translator) imageSamples(in *sir.IntrinsicInstr) {
	var wf waterfall
	desc := t.imageDescriptor(in, false, &wf)
	t.define(in.Dest, t.exitWaterfall(&wf, t.descriptorSamples(desc)))
}

// patchNumFormat replaces the NUM_FORMAT field of an image descriptor.
func (t *translator) patchNumFormat(desc, format value.Value) value.Value {
	blk := t.cur()
	w1 := t.b.Extract(desc, 1)
	cleared := blk.NewAnd(w1, tir.I32(numFormatClearMask))
	return blk.NewInsertElement(desc, blk.NewOr(cleared, format), tir.I32(1))
}

// Image descriptor word 1 fields.
const (
	numFormatClearMask = int64(-0x3c000001) // ~(0xf << 26)
	dataFormat8888     = 10
	numFormatUScaled   = 2 << 26
	numFormatSScaled   = 3 << 26
	numFormatUint      = 4 << 26
	numFormatSint      = 5 << 26
)
