package abi

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"wavefront/internal/gpu"
	"wavefront/internal/sir"
	"wavefront/internal/tir"
)

func newEnv(t *testing.T, d *Default, stage sir.Stage) *Env {
	t.Helper()
	tg := gpu.DefaultTarget()
	args := NewArgs(stage, tg)
	d.DeclareArgs(args, stage)
	mod := ir.NewModule()
	f := mod.NewFunc("t", types.Void, args.Params()...)
	b := tir.NewBuilder(mod, f)
	b.SetInsert(b.NewBlock())
	return &Env{B: b, Args: args, Target: tg, Stage: stage}
}

func lastGEP(t *testing.T, e *Env) *ir.InstGetElementPtr {
	t.Helper()
	insts := e.B.Cur().Insts
	for i := len(insts) - 1; i >= 0; i-- {
		if gep, ok := insts[i].(*ir.InstGetElementPtr); ok {
			return gep
		}
	}
	t.Fatalf("no getelementptr emitted")
	return nil
}

func callsTo(e *Env, name string) []*ir.InstCall {
	var out []*ir.InstCall
	for _, blk := range e.B.Func.Blocks {
		for _, inst := range blk.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			if fn, ok := call.Callee.(*ir.Func); ok && fn.Name() == name {
				out = append(out, call)
			}
		}
	}
	return out
}

func constArg(t *testing.T, v value.Value) int64 {
	t.Helper()
	c, ok := v.(*constant.Int)
	if !ok {
		t.Fatalf("%v is not an integer constant", v)
	}
	return c.X.Int64()
}

func TestLoadResourceDescriptorOffset(t *testing.T) {
	layouts := [][]BindingLayout{nil, {{Offset: 64, Stride: 48}}}
	tests := []struct {
		name    string
		layouts [][]BindingLayout
		req     DescriptorRequest
		want    int64
		dwords  uint64
	}{
		{"buffer_no_index", nil, DescriptorRequest{Binding: 1, Kind: DescBuffer}, 256, 4},
		{"buffer_index", nil, DescriptorRequest{Binding: 1, Index: tir.I32(2), Kind: DescBuffer}, 256 + 2*16, 4},
		{"image_index", nil, DescriptorRequest{Binding: 2, Index: tir.I32(3), Kind: DescImage}, 512 + 3*32, 8},
		{"fmask", nil, DescriptorRequest{Binding: 0, Kind: DescFmask}, 32, 8},
		{"explicit_layout", layouts, DescriptorRequest{Set: 1, Binding: 0, Index: tir.I32(1), Kind: DescFmask}, 64 + 32 + 48, 8},
		{"layout_other_set", layouts, DescriptorRequest{Set: 0, Binding: 0, Kind: DescSampler}, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDefault(false)
			d.Layouts = tt.layouts
			e := newEnv(t, d, sir.StageCompute)
			desc := d.LoadResourceDescriptor(e, tt.req)
			if got := tir.NumComponents(desc.Type()); uint64(got) != tt.dwords {
				t.Fatalf("descriptor has %d dwords, want %d", got, tt.dwords)
			}
			gep := lastGEP(t, e)
			if got := constArg(t, gep.Indices[0]); got != tt.want {
				t.Fatalf("offset = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLoadResourceDescriptorDynamicIndex(t *testing.T) {
	d := NewDefault(false)
	e := newEnv(t, d, sir.StageCompute)
	idx, _ := e.Args.Value(ArgPushConstants)
	d.LoadStorageBuffer(e, 0, 1, idx, true)

	gep := lastGEP(t, e)
	add, ok := gep.Indices[0].(*ir.InstAdd)
	if !ok {
		t.Fatalf("dynamic offset is %T, want add", gep.Indices[0])
	}
	if got := constArg(t, add.Y); got != 256 {
		t.Fatalf("binding start = %d, want 256", got)
	}
	mul, ok := add.X.(*ir.InstMul)
	if !ok || constArg(t, mul.Y) != 16 || mul.X != idx {
		t.Fatalf("index scaling = %v", add.X)
	}
}

func TestLoadResourceDescriptorMissingSets(t *testing.T) {
	tg := gpu.DefaultTarget()
	args := NewArgs(sir.StageCompute, tg)
	mod := ir.NewModule()
	f := mod.NewFunc("t", types.Void, args.Params()...)
	b := tir.NewBuilder(mod, f)
	b.SetInsert(b.NewBlock())
	e := &Env{B: b, Args: args, Target: tg, Stage: sir.StageCompute}

	defer func() {
		if recover() == nil {
			t.Fatalf("no panic without descriptor sets")
		}
	}()
	NewDefault(false).LoadUniformBuffer(e, 0, 0, nil)
}

func TestAddressHi(t *testing.T) {
	d := NewDefault(false)
	d.AddressHi = 0x8000
	e := newEnv(t, d, sir.StageCompute)
	d.LoadPushConstant(e, tir.I32(4), 32, 2)

	var or *ir.InstOr
	for _, inst := range e.B.Cur().Insts {
		if o, ok := inst.(*ir.InstOr); ok {
			or = o
		}
	}
	if or == nil {
		t.Fatalf("high address bits were not merged")
	}
	if got := constArg(t, or.Y); got != 0x8000<<32 {
		t.Fatalf("high bits = %#x", got)
	}
}

func TestSamplePositionsOffset(t *testing.T) {
	tests := []struct {
		samples uint8
		want    int64
	}{
		{0, 0}, {1, 0}, {2, 8}, {4, 24}, {8, 56}, {16, 120},
	}
	for _, tt := range tests {
		if got := samplePositionsOffset(tt.samples); got != tt.want {
			t.Errorf("samplePositionsOffset(%d) = %d, want %d", tt.samples, got, tt.want)
		}
	}
}

func TestEmitStageOutputs(t *testing.T) {
	x, z := tir.I32(1), tir.I32(3)
	outputs := []Output{
		{Location: 2, Components: [4]value.Value{x, nil, z, nil}},
		{Location: 0, Components: [4]value.Value{x, x, x, x}},
	}
	tests := []struct {
		stage   sir.Stage
		targets []int64
		vm      bool
	}{
		{sir.StageFragment, []int64{expMRT0 + 2, expMRT0}, true},
		{sir.StageVertex, []int64{expParam0 + 2, expPos0}, false},
		{sir.StageCompute, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.stage.String(), func(t *testing.T) {
			d := NewDefault(false)
			e := newEnv(t, d, tt.stage)
			d.EmitStageOutputs(e, outputs)

			calls := callsTo(e, "llvm.amdgcn.exp.f32")
			if len(calls) != len(tt.targets) {
				t.Fatalf("%d exports, want %d", len(calls), len(tt.targets))
			}
			wantEn := []int64{0b0101, 0b1111}
			for i, call := range calls {
				if len(call.Args) != 8 {
					t.Fatalf("export %d has %d args", i, len(call.Args))
				}
				if got := constArg(t, call.Args[0]); got != tt.targets[i] {
					t.Errorf("export %d target = %d, want %d", i, got, tt.targets[i])
				}
				if got := constArg(t, call.Args[1]); got != wantEn[i] {
					t.Errorf("export %d enable = %#b, want %#b", i, got, wantEn[i])
				}
				if _, undef := call.Args[3].(*constant.Undef); undef != (i == 0) {
					t.Errorf("export %d: unwritten y is %v", i, call.Args[3])
				}
				done := constArg(t, call.Args[6]) == 1
				if done != (i == len(calls)-1) {
					t.Errorf("export %d done = %v", i, done)
				}
				if vm := constArg(t, call.Args[7]) == 1; vm != tt.vm {
					t.Errorf("export %d vm = %v", i, vm)
				}
			}
		})
	}
}

func TestEmitVertexWritesRing(t *testing.T) {
	d := NewDefault(false)
	e := newEnv(t, d, sir.StageGeometry)
	v := tir.I32(7)
	d.EmitVertex(e, 1, []Output{{Location: 1, Components: [4]value.Value{v, nil, v, nil}}})
	d.EndPrimitive(e, 1)

	stores := callsTo(e, "llvm.amdgcn.raw.buffer.store.i32")
	if len(stores) != 2 {
		t.Fatalf("%d ring stores, want 2", len(stores))
	}
	for i, want := range []int64{16, 24} {
		if got := constArg(t, stores[i].Args[2]); got != want {
			t.Errorf("store %d offset = %d, want %d", i, got, want)
		}
	}

	msgs := callsTo(e, "llvm.amdgcn.s.sendmsg")
	if len(msgs) != 2 {
		t.Fatalf("%d messages, want 2", len(msgs))
	}
	wantMsg := []int64{sendMsgGS | sendMsgGSEmit | 1<<8, sendMsgGS | sendMsgGSCut | 1<<8}
	wave, _ := e.Args.Value(ArgGSWaveID)
	for i, call := range msgs {
		if got := constArg(t, call.Args[0]); got != wantMsg[i] {
			t.Errorf("message %d = %#x, want %#x", i, got, wantMsg[i])
		}
		if call.Args[1] != wave {
			t.Errorf("message %d does not pass the wave id", i)
		}
	}
}

func TestRobustBufferAccess(t *testing.T) {
	if NewDefault(false).RobustBufferAccess() || !NewDefault(true).RobustBufferAccess() {
		t.Fatalf("RobustBufferAccess does not follow the constructor")
	}
}
