// Package abi describes how a translated shader reaches hardware state:
// resource descriptors, constant data, vertex inputs and stage outputs.
package abi

import (
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/gpu"
	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// DescriptorKind selects the descriptor a request resolves to.
type DescriptorKind uint8

const (
	DescBuffer DescriptorKind = iota
	DescImage
	DescSampler
	DescFmask
	// DescTexelBuffer is a typed buffer view of an image binding.
	DescTexelBuffer
)

// String returns the string representation of DescriptorKind.
func (k DescriptorKind) String() string {
	switch k {
	case DescBuffer:
		return "buffer"
	case DescImage:
		return "image"
	case DescSampler:
		return "sampler"
	case DescFmask:
		return "fmask"
	case DescTexelBuffer:
		return "texel_buffer"
	default:
		return "unknown"
	}
}

// Dwords returns the descriptor width in 32-bit words.
func (k DescriptorKind) Dwords() int {
	if k == DescImage || k == DescFmask {
		return 8
	}
	return 4
}

// DescriptorRequest names a descriptor by binding and dynamic array index.
// Index is a wave-uniform i32.
type DescriptorRequest struct {
	Set     uint32
	Binding uint32
	Index   value.Value
	Kind    DescriptorKind
	Write   bool
}

// Output is one written output location; components that were never
// written are nil. Components are i32 in the order x, y, z, w.
type Output struct {
	Location   uint32
	Components [4]value.Value
}

// Env is the per-translation state handed to ABI callbacks.
type Env struct {
	B      *tir.Builder
	Args   *Args
	Target gpu.Target
	Stage  sir.Stage
}

// ABI is the capability interface the lowering reaches hardware state
// through. Implementations must be safe to share between translations;
// per-translation state lives in Env.
type ABI interface {
	// DeclareArgs adds the arguments the ABI needs before the target
	// function is created.
	DeclareArgs(args *Args, stage sir.Stage)

	LoadResourceDescriptor(e *Env, req DescriptorRequest) value.Value
	LoadUniformBuffer(e *Env, set, binding uint32, index value.Value) value.Value
	LoadStorageBuffer(e *Env, set, binding uint32, index value.Value, write bool) value.Value
	// LoadPushConstant loads comps components of bits each at a byte offset.
	LoadPushConstant(e *Env, offset value.Value, bits, comps uint8) value.Value
	// SamplePosition returns the <2 x float> position of a sample within
	// the pixel.
	SamplePosition(e *Env, sampleID value.Value) value.Value
	LoadVertexInput(e *Env, location uint32, component, bits, comps uint8) value.Value

	EmitStageOutputs(e *Env, outputs []Output)
	// EmitVertex hands the current geometry outputs to the hardware.
	EmitVertex(e *Env, stream uint8, outputs []Output)
	EndPrimitive(e *Env, stream uint8)

	// RobustBufferAccess reports whether out-of-bounds buffer accesses
	// must be bounds checked explicitly where hardware clamping does not
	// apply.
	RobustBufferAccess() bool
}
