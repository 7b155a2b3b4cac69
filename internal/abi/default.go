package abi

import (
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// Ring descriptor offsets relative to ArgRingOffsets.
const (
	RingGSVS            = 0
	RingSamplePositions = 16
)

// MaxDescriptorSets is the number of descriptor set addresses Default
// passes in SGPRs.
const MaxDescriptorSets = 4

// DefaultBindingStride is the byte distance between bindings without an
// explicit layout.
const DefaultBindingStride = 256

// BindingLayout places one binding inside its descriptor set.
type BindingLayout struct {
	Offset uint32
	// Stride is the size of one array element in bytes.
	Stride uint32
}

// Default is a Vulkan-style reference ABI: descriptor sets, push
// constants, rings and vertex buffers are reached through 32-bit
// constant-memory addresses passed in SGPRs.
type Default struct {
	Robust bool
	// AddressHi supplies the upper 32 bits of every 32-bit address.
	AddressHi uint32
	// Samples is the framebuffer sample count used for sample positions.
	Samples uint8
	// Layouts[set][binding]. Missing entries use DefaultBindingStride.
	Layouts [][]BindingLayout
}

var _ ABI = (*Default)(nil)

// NewDefault returns the reference ABI.
func NewDefault(robust bool) *Default {
	return &Default{Robust: robust, Samples: 1}
}

// DeclareArgs implements ABI.
func (d *Default) DeclareArgs(args *Args, stage sir.Stage) {
	args.Add(ArgDescriptorSets, SGPR, types.NewVector(MaxDescriptorSets, types.I32))
	args.Add(ArgPushConstants, SGPR, types.I32)
	args.Add(ArgRingOffsets, SGPR, types.I32)
	if stage == sir.StageVertex {
		args.Add(ArgVertexBuffers, SGPR, types.I32)
	}
}

func (d *Default) layout(set, binding uint32, kind DescriptorKind) BindingLayout {
	if int(set) < len(d.Layouts) && int(binding) < len(d.Layouts[set]) {
		if l := d.Layouts[set][binding]; l.Stride != 0 {
			return l
		}
	}
	return BindingLayout{Offset: binding * DefaultBindingStride, Stride: uint32(kind.Dwords() * 4)}
}

// address builds a constant-memory i8 pointer from a 32-bit address.
func (d *Default) address(e *Env, lo value.Value) value.Value {
	blk := e.B.Cur()
	addr := blk.NewZExt(e.B.ToInt(lo), types.I64)
	var full value.Value = addr
	if d.AddressHi != 0 {
		full = blk.NewOr(addr, tir.I64(int64(d.AddressHi)<<32))
	}
	return e.B.ToPointer(full, types.I8, tir.AddrSpaceConstant)
}

func (d *Default) argAddress(e *Env, kind ArgKind) value.Value {
	v, ok := e.Args.Value(kind)
	if !ok {
		panic("abi: missing argument " + kind.String())
	}
	return d.address(e, v)
}

func (d *Default) loadConst(e *Env, base, offset value.Value, t types.Type) value.Value {
	blk := e.B.Cur()
	p := blk.NewGetElementPtr(types.I8, base, offset)
	tp := e.B.ToPointer(p, t, tir.AddrSpaceConstant)
	return blk.NewLoad(t, tp)
}

// LoadResourceDescriptor implements ABI.
func (d *Default) LoadResourceDescriptor(e *Env, req DescriptorRequest) value.Value {
	sets, ok := e.Args.Value(ArgDescriptorSets)
	if !ok {
		panic("abi: missing descriptor sets")
	}
	blk := e.B.Cur()
	setAddr := blk.NewExtractElement(sets, tir.I32(int64(req.Set%MaxDescriptorSets)))
	base := d.address(e, setAddr)

	l := d.layout(req.Set, req.Binding, req.Kind)
	start := l.Offset
	if req.Kind == DescFmask {
		start += 32
	}
	var off value.Value = tir.I32(int64(start))
	if req.Index != nil {
		if idx, isConst := tir.ConstValue(req.Index); isConst {
			off = tir.I32(int64(start) + int64(idx)*int64(l.Stride))
		} else {
			scaled := blk.NewMul(e.B.ToInt(req.Index), tir.I32(int64(l.Stride)))
			off = blk.NewAdd(scaled, tir.I32(int64(start)))
		}
	}
	return d.loadConst(e, base, off, types.NewVector(uint64(req.Kind.Dwords()), types.I32))
}

// LoadUniformBuffer implements ABI.
func (d *Default) LoadUniformBuffer(e *Env, set, binding uint32, index value.Value) value.Value {
	return d.LoadResourceDescriptor(e, DescriptorRequest{Set: set, Binding: binding, Index: index, Kind: DescBuffer})
}

// LoadStorageBuffer implements ABI.
func (d *Default) LoadStorageBuffer(e *Env, set, binding uint32, index value.Value, write bool) value.Value {
	return d.LoadResourceDescriptor(e, DescriptorRequest{Set: set, Binding: binding, Index: index, Kind: DescBuffer, Write: write})
}

// LoadPushConstant implements ABI.
func (d *Default) LoadPushConstant(e *Env, offset value.Value, bits, comps uint8) value.Value {
	base := d.argAddress(e, ArgPushConstants)
	return d.loadConst(e, base, e.B.ToInt(offset), tir.Legalize(bits, comps))
}

// samplePositionsOffset returns the byte offset of the table for a
// sample count; tables for 1, 2, 4, 8 and 16 samples follow each other.
func samplePositionsOffset(samples uint8) int64 {
	var off int64
	for n := uint8(1); n < samples && n < 16; n *= 2 {
		off += int64(n) * 8
	}
	return off
}

// SamplePosition implements ABI.
func (d *Default) SamplePosition(e *Env, sampleID value.Value) value.Value {
	blk := e.B.Cur()
	ring := d.argAddress(e, ArgRingOffsets)
	desc := d.loadConst(e, ring, tir.I32(RingSamplePositions), types.NewVector(4, types.I32))
	off := blk.NewMul(e.B.ToInt(sampleID), tir.I32(8))
	off2 := blk.NewAdd(off, tir.I32(samplePositionsOffset(d.Samples)))
	v2f := types.NewVector(2, types.Float)
	return e.B.Call(tir.Overload("llvm.amdgcn.raw.buffer.load", v2f), v2f,
		desc, off2, tir.I32(0), tir.I32(0))
}

// LoadVertexInput implements ABI.
func (d *Default) LoadVertexInput(e *Env, location uint32, component, bits, comps uint8) value.Value {
	blk := e.B.Cur()
	vbs := d.argAddress(e, ArgVertexBuffers)
	desc := d.loadConst(e, vbs, tir.I32(int64(location)*16), types.NewVector(4, types.I32))
	vid, _ := e.Args.Value(ArgVertexID)
	base, _ := e.Args.Value(ArgBaseVertex)
	vindex := blk.NewAdd(vid, base)

	v4f := types.NewVector(4, types.Float)
	raw := e.B.Call(tir.Overload("llvm.amdgcn.struct.buffer.load.format", v4f), v4f,
		desc, vindex, tir.I32(0), tir.I32(0), tir.I32(0))
	v := e.B.ExtractRange(e.B.ToInt(raw), int(component), int(comps))
	if bits < 32 {
		return e.B.Resize(v, bits, false)
	}
	return v
}

// Export targets.
const (
	expMRT0   = 0
	expPos0   = 12
	expParam0 = 32
)

// EmitStageOutputs implements ABI.
func (d *Default) EmitStageOutputs(e *Env, outputs []Output) {
	if e.Stage != sir.StageVertex && e.Stage != sir.StageFragment {
		return
	}
	for i, out := range outputs {
		target := int64(expMRT0) + int64(out.Location)
		if e.Stage == sir.StageVertex {
			target = expParam0 + int64(out.Location)
			if out.Location == 0 {
				target = expPos0
			}
		}
		var en int64
		args := []value.Value{tir.I32(target), nil}
		for c, v := range out.Components {
			if v == nil {
				args = append(args, tir.Undef(types.Float))
				continue
			}
			en |= 1 << c
			args = append(args, e.B.ToFloat(v))
		}
		args[1] = tir.I32(en)
		done := i == len(outputs)-1
		args = append(args, tir.Bool(done), tir.Bool(e.Stage == sir.StageFragment))
		e.B.Call("llvm.amdgcn.exp.f32", types.Void, args...)
	}
}

func (d *Default) sendMsg(e *Env, msg int64) {
	wave, ok := e.Args.Value(ArgGSWaveID)
	if !ok {
		wave = tir.I32(0)
	}
	e.B.Call("llvm.amdgcn.s.sendmsg", types.Void, tir.I32(msg), wave)
}

const (
	sendMsgGS     = 2
	sendMsgGSCut  = 1 << 4
	sendMsgGSEmit = 2 << 4
)

// EmitVertex implements ABI. Outputs are written to the GSVS ring, one
// dword per component, before the emit message.
func (d *Default) EmitVertex(e *Env, stream uint8, outputs []Output) {
	if len(outputs) > 0 {
		ring := d.GSVSRing(e)
		for _, out := range outputs {
			for c, v := range out.Components {
				if v == nil {
					continue
				}
				off := (int64(out.Location)*4 + int64(c)) * 4
				e.B.Call("llvm.amdgcn.raw.buffer.store.i32", types.Void,
					e.B.ToInt(v), ring, tir.I32(off), tir.I32(0), tir.I32(3))
			}
		}
	}
	d.sendMsg(e, sendMsgGS|sendMsgGSEmit|int64(stream)<<8)
}

// EndPrimitive implements ABI.
func (d *Default) EndPrimitive(e *Env, stream uint8) {
	d.sendMsg(e, sendMsgGS|sendMsgGSCut|int64(stream)<<8)
}

// RobustBufferAccess implements ABI.
func (d *Default) RobustBufferAccess() bool { return d.Robust }

// GSVSRing returns the descriptor of the geometry output ring.
func (d *Default) GSVSRing(e *Env) value.Value {
	ring := d.argAddress(e, ArgRingOffsets)
	return d.loadConst(e, ring, tir.I32(RingGSVS), types.NewVector(4, types.I32))
}
