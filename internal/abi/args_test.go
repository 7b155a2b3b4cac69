package abi

import (
	"testing"

	"github.com/llir/llvm/ir/types"

	"wavefront/internal/gpu"
	"wavefront/internal/sir"
)

func TestNewArgsPerStage(t *testing.T) {
	tests := []struct {
		stage  sir.Stage
		gen    gpu.Gen
		want   []ArgKind
		absent []ArgKind
		sgprs  int
		vgprs  int
	}{
		{sir.StageVertex, gpu.GFX9, []ArgKind{ArgBaseVertex, ArgVertexID, ArgInstanceID}, []ArgKind{ArgWorkgroupID}, 1, 2},
		{sir.StageCompute, gpu.GFX9, []ArgKind{ArgWorkgroupID, ArgNumWorkgroups, ArgLocalInvocationID}, []ArgKind{ArgVertexID}, 6, 3},
		{sir.StageGeometry, gpu.GFX9, []ArgKind{ArgGSWaveID, ArgPrimitiveID}, nil, 1, 1},
		{sir.StageFragment, gpu.GFX9, []ArgKind{ArgPrimMask, ArgFragCoord, ArgFrontFace}, []ArgKind{ArgPrimitiveID}, 1, 15},
		{sir.StageFragment, gpu.GFX10, []ArgKind{ArgPrimitiveID}, nil, 2, 15},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String()+"_"+tt.gen.String(), func(t *testing.T) {
			tg := gpu.DefaultTarget()
			tg.Gen = tt.gen
			a := NewArgs(tt.stage, tg)
			for _, k := range tt.want {
				if _, ok := a.Lookup(k); !ok {
					t.Errorf("missing %s", k)
				}
			}
			for _, k := range tt.absent {
				if _, ok := a.Lookup(k); ok {
					t.Errorf("unexpected %s", k)
				}
			}
			s, v := a.Registers()
			if s != tt.sgprs || v != tt.vgprs {
				t.Errorf("registers = %d sgpr, %d vgpr; want %d, %d", s, v, tt.sgprs, tt.vgprs)
			}
		})
	}
}

func TestArgsParamsOrder(t *testing.T) {
	a := NewArgs(sir.StageVertex, gpu.DefaultTarget())
	NewDefault(false).DeclareArgs(a, sir.StageVertex)

	list := a.List()
	seenVGPR := false
	for _, arg := range list {
		if arg.File == VGPR {
			seenVGPR = true
		} else if seenVGPR {
			t.Fatalf("sgpr %s follows a vgpr argument", arg.Kind)
		}
	}
	sets, _ := a.Lookup(ArgDescriptorSets)
	if sets.Regs != MaxDescriptorSets || sets.Reg != 1 {
		t.Fatalf("descriptor sets at s%d x%d", sets.Reg, sets.Regs)
	}

	if _, ok := a.Value(ArgVertexID); ok {
		t.Fatalf("Value before Params")
	}
	params := a.Params()
	if len(params) != len(list) {
		t.Fatalf("%d params for %d args", len(params), len(list))
	}
	for i, arg := range list {
		if params[i].Name() != arg.Kind.String() {
			t.Fatalf("param %d is %s, want %s", i, params[i].Name(), arg.Kind)
		}
		v, ok := a.Value(arg.Kind)
		if !ok || v != params[i] {
			t.Fatalf("Value(%s) is not param %d", arg.Kind, i)
		}
	}
	if again := a.Params(); &again[0] != &params[0] {
		t.Fatalf("Params rebuilt the parameter list")
	}
}

func TestArgsAdd(t *testing.T) {
	a := NewArgs(sir.StageCompute, gpu.DefaultTarget())
	first := a.Add(ArgPushConstants, SGPR, types.I32)
	if again := a.Add(ArgPushConstants, SGPR, types.I64); again != first {
		t.Fatalf("second Add returned slot %d, want %d", again, first)
	}
	if arg, _ := a.Lookup(ArgPushConstants); arg.Regs != 1 {
		t.Fatalf("duplicate Add changed the argument: %+v", arg)
	}
	a.Add(ArgRingOffsets, SGPR, types.I64)
	if arg, _ := a.Lookup(ArgRingOffsets); arg.Regs != 2 {
		t.Fatalf("i64 argument takes %d registers", arg.Regs)
	}

	a.Params()
	defer func() {
		if recover() == nil {
			t.Fatalf("Add after Params did not panic")
		}
	}()
	a.Add(ArgVertexBuffers, SGPR, types.I32)
}

func TestArgKindNames(t *testing.T) {
	seen := make(map[string]ArgKind)
	for k := ArgKind(0); k < numArgKinds; k++ {
		name := k.String()
		if name == "" || name == "unknown" {
			t.Fatalf("kind %d has no name", k)
		}
		if prev, dup := seen[name]; dup {
			t.Fatalf("%s named like %d", name, prev)
		}
		seen[name] = k
	}
}
