package abi

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/gpu"
	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

// RegFile is the register file an argument is passed in.
type RegFile uint8

const (
	// SGPR holds wave-uniform values.
	SGPR RegFile = iota
	// VGPR holds per-lane values.
	VGPR
)

// String returns the string representation of RegFile.
func (f RegFile) String() string {
	if f == VGPR {
		return "vgpr"
	}
	return "sgpr"
}

// ArgKind identifies a logical shader input.
type ArgKind uint8

const (
	ArgDescriptorSets ArgKind = iota
	ArgPushConstants
	ArgRingOffsets
	ArgVertexBuffers
	ArgBaseVertex
	ArgVertexID
	ArgInstanceID
	ArgWorkgroupID
	ArgNumWorkgroups
	ArgLocalInvocationID
	ArgPrimMask
	ArgPerspCenter
	ArgPerspCentroid
	ArgPerspSample
	ArgLinearCenter
	ArgFragCoord
	ArgFrontFace
	ArgAncillary
	ArgSampleCoverage
	ArgPrimitiveID
	ArgGSWaveID

	numArgKinds
)

var argNames = [numArgKinds]string{
	ArgDescriptorSets:    "descriptor_sets",
	ArgPushConstants:     "push_constants",
	ArgRingOffsets:       "ring_offsets",
	ArgVertexBuffers:     "vertex_buffers",
	ArgBaseVertex:        "base_vertex",
	ArgVertexID:          "vertex_id",
	ArgInstanceID:        "instance_id",
	ArgWorkgroupID:       "workgroup_id",
	ArgNumWorkgroups:     "num_workgroups",
	ArgLocalInvocationID: "local_invocation_id",
	ArgPrimMask:          "prim_mask",
	ArgPerspCenter:       "persp_center",
	ArgPerspCentroid:     "persp_centroid",
	ArgPerspSample:       "persp_sample",
	ArgLinearCenter:      "linear_center",
	ArgFragCoord:         "frag_coord",
	ArgFrontFace:         "front_face",
	ArgAncillary:         "ancillary",
	ArgSampleCoverage:    "sample_coverage",
	ArgPrimitiveID:       "primitive_id",
	ArgGSWaveID:          "gs_wave_id",
}

// String returns the string representation of ArgKind.
func (k ArgKind) String() string {
	if int(k) < len(argNames) {
		return argNames[k]
	}
	return "unknown"
}

// Arg is one logical input bound to consecutive registers.
type Arg struct {
	Kind ArgKind
	File RegFile
	// Reg is the first register of the slot within its file.
	Reg  int
	Regs int
	Type types.Type
}

// Args maps logical inputs to register slots for one translation. Each
// argument becomes one parameter of the target function, SGPRs first.
type Args struct {
	list   []Arg
	byKind [numArgKinds]int
	params []*ir.Param
	nsgpr  int
	nvgpr  int
}

// NewArgs returns the system-value arguments of a stage.
func NewArgs(stage sir.Stage, target gpu.Target) *Args {
	a := &Args{}
	for i := range a.byKind {
		a.byKind[i] = -1
	}
	v3 := types.NewVector(3, types.I32)
	switch stage {
	case sir.StageVertex:
		a.Add(ArgBaseVertex, SGPR, types.I32)
		a.Add(ArgVertexID, VGPR, types.I32)
		a.Add(ArgInstanceID, VGPR, types.I32)
	case sir.StageGeometry:
		a.Add(ArgGSWaveID, SGPR, types.I32)
		a.Add(ArgPrimitiveID, VGPR, types.I32)
	case sir.StageFragment:
		a.Add(ArgPrimMask, SGPR, types.I32)
		v2 := types.NewVector(2, types.Float)
		a.Add(ArgPerspSample, VGPR, v2)
		a.Add(ArgPerspCenter, VGPR, v2)
		a.Add(ArgPerspCentroid, VGPR, v2)
		a.Add(ArgLinearCenter, VGPR, v2)
		a.Add(ArgFragCoord, VGPR, types.NewVector(4, types.Float))
		a.Add(ArgFrontFace, VGPR, types.Float)
		a.Add(ArgAncillary, VGPR, types.I32)
		a.Add(ArgSampleCoverage, VGPR, types.I32)
		if target.Gen >= gpu.GFX10 {
			a.Add(ArgPrimitiveID, SGPR, types.I32)
		}
	case sir.StageCompute:
		a.Add(ArgWorkgroupID, SGPR, v3)
		a.Add(ArgNumWorkgroups, SGPR, v3)
		a.Add(ArgLocalInvocationID, VGPR, v3)
	}
	return a
}

// Add appends an argument unless one of that kind exists. It returns the
// slot index.
func (a *Args) Add(kind ArgKind, file RegFile, t types.Type) int {
	if idx := a.byKind[kind]; idx >= 0 {
		return idx
	}
	if a.params != nil {
		panic(fmt.Sprintf("abi: argument %s added after parameters were created", kind))
	}
	regs := (int(tir.ScalarBits(t))*tir.NumComponents(t) + 31) / 32
	arg := Arg{Kind: kind, File: file, Regs: regs, Type: t}
	if file == SGPR {
		arg.Reg = a.nsgpr
		a.nsgpr += regs
	} else {
		arg.Reg = a.nvgpr
		a.nvgpr += regs
	}
	a.byKind[kind] = len(a.list)
	a.list = append(a.list, arg)
	return a.byKind[kind]
}

// List returns the arguments in parameter order.
func (a *Args) List() []Arg {
	out := make([]Arg, 0, len(a.list))
	for _, file := range []RegFile{SGPR, VGPR} {
		for _, arg := range a.list {
			if arg.File == file {
				out = append(out, arg)
			}
		}
	}
	return out
}

// Lookup returns the argument of a kind.
func (a *Args) Lookup(kind ArgKind) (Arg, bool) {
	idx := a.byKind[kind]
	if idx < 0 {
		return Arg{}, false
	}
	return a.list[idx], true
}

// Params creates one parameter per argument in List order.
func (a *Args) Params() []*ir.Param {
	if a.params != nil {
		return a.params
	}
	list := a.List()
	a.params = make([]*ir.Param, len(list))
	for i, arg := range list {
		a.params[i] = ir.NewParam(arg.Kind.String(), arg.Type)
	}
	return a.params
}

// Value returns the parameter bound to kind.
func (a *Args) Value(kind ArgKind) (value.Value, bool) {
	if a.params == nil || a.byKind[kind] < 0 {
		return nil, false
	}
	for i, arg := range a.List() {
		if arg.Kind == kind {
			return a.params[i], true
		}
	}
	return nil, false
}

// Registers returns the number of SGPRs and VGPRs taken by arguments.
func (a *Args) Registers() (sgprs, vgprs int) { return a.nsgpr, a.nvgpr }
