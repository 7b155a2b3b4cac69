package lower_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"

	"wavefront/internal/gpu"
	"wavefront/internal/lower"
	"wavefront/internal/sir"
	"wavefront/internal/testkit"
	"wavefront/internal/tir"
)

type fenceShape struct {
	ord   enum.AtomicOrdering
	scope string
}

func fences(f *ir.Func) []fenceShape {
	var out []fenceShape
	for _, blk := range f.Blocks {
		for _, inst := range blk.Insts {
			if fe, ok := inst.(*ir.InstFence); ok {
				out = append(out, fenceShape{fe.Ordering, fe.SyncScope})
			}
		}
	}
	return out
}

func TestBarriers(t *testing.T) {
	tests := []struct {
		name     string
		op       sir.IntrinsicOp
		scope    sir.Scope
		memScope sir.Scope
		barrier  int
		fences   []fenceShape
	}{
		{
			"workgroup_barrier", sir.IntrControlBarrier, sir.ScopeWorkgroup, sir.ScopeWorkgroup, 1,
			[]fenceShape{{enum.AtomicOrderingRelease, "workgroup"}, {enum.AtomicOrderingAcquire, "workgroup"}},
		},
		{
			"barrier_with_device_memory", sir.IntrControlBarrier, sir.ScopeWorkgroup, sir.ScopeDevice, 1,
			[]fenceShape{{enum.AtomicOrderingRelease, "agent"}, {enum.AtomicOrderingAcquire, "agent"}},
		},
		{"execution_only", sir.IntrControlBarrier, sir.ScopeWorkgroup, sir.ScopeNone, 1, nil},
		{"subgroup_execution", sir.IntrControlBarrier, sir.ScopeSubgroup, sir.ScopeNone, 0, nil},
		{
			"subgroup_memory", sir.IntrControlBarrier, sir.ScopeSubgroup, sir.ScopeSubgroup, 0,
			[]fenceShape{{enum.AtomicOrderingRelease, "wavefront"}, {enum.AtomicOrderingAcquire, "wavefront"}},
		},
		{
			"memory_barrier", sir.IntrMemoryBarrier, sir.ScopeNone, sir.ScopeDevice, 0,
			[]fenceShape{{enum.AtomicOrderingAcqRel, "agent"}},
		},
		{"memory_barrier_none", sir.IntrMemoryBarrier, sir.ScopeNone, sir.ScopeNone, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sir.NewBuilder("barrier", sir.StageCompute)
			b.SetWorkgroupSize(64, 1, 1)
			b.Intrinsic(sir.IntrinsicInstr{Op: tt.op, Scope: tt.scope, MemScope: tt.memScope}, 0, 0)

			res := translate(t, b.Func(), gpu.DefaultTarget())
			if n := countInsts(res.Func, isCallTo("llvm.amdgcn.s.barrier")); n != tt.barrier {
				t.Errorf("got %d s.barrier calls, want %d", n, tt.barrier)
			}
			got := fences(res.Func)
			if len(got) != len(tt.fences) {
				t.Fatalf("got fences %v, want %v", got, tt.fences)
			}
			for i := range got {
				if got[i] != tt.fences[i] {
					t.Errorf("fence %d is %v, want %v", i, got[i], tt.fences[i])
				}
			}
		})
	}
}

func TestShaderClock(t *testing.T) {
	tests := []struct {
		name   string
		scope  sir.Scope
		bits   uint8
		comps  uint8
		callee string
	}{
		{"device_u64", sir.ScopeDevice, 64, 1, "llvm.amdgcn.s.memrealtime"},
		{"subgroup_u64", sir.ScopeSubgroup, 64, 1, "llvm.readcyclecounter"},
		{"subgroup_uvec2", sir.ScopeSubgroup, 32, 2, "llvm.readcyclecounter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sir.NewBuilder("clock", sir.StageCompute)
			b.SetWorkgroupSize(64, 1, 1)
			clk := b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrShaderClock, Scope: tt.scope}, tt.bits, tt.comps)

			res := translate(t, b.Func(), gpu.DefaultTarget())
			if n := countInsts(res.Func, isCallTo(tt.callee)); n != 1 {
				t.Fatalf("got %d calls to %s, want 1", n, tt.callee)
			}
			ty := res.Values[clk].Type()
			if tir.ScalarBits(ty) != tt.bits || tir.NumComponents(ty) != int(tt.comps) {
				t.Errorf("clock has type %s", ty)
			}
		})
	}
}

func TestKillAndDemote(t *testing.T) {
	tests := []struct {
		name   string
		op     sir.IntrinsicOp
		cond   bool
		callee string
		xors   int
	}{
		{"discard", sir.IntrDiscard, false, "llvm.amdgcn.kill", 0},
		{"discard_if", sir.IntrDiscardIf, true, "llvm.amdgcn.kill", 1},
		{"demote", sir.IntrDemote, false, "llvm.amdgcn.wqm.demote", 0},
		{"demote_if", sir.IntrDemoteIf, true, "llvm.amdgcn.wqm.demote", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sir.NewBuilder("kill", sir.StageFragment)
			in := sir.IntrinsicInstr{Op: tt.op}
			if tt.cond {
				face := b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadFrontFace}, 1, 1)
				in.Srcs = []sir.Src{sir.Use(face)}
			}
			b.Intrinsic(in, 0, 0)

			res := translate(t, b.Func(), gpu.DefaultTarget())
			calls := callsTo(res.Func, tt.callee)
			if len(calls) != 1 {
				t.Fatalf("got %d calls to %s, want 1", len(calls), tt.callee)
			}
			if !tt.cond {
				if c, ok := calls[0].Args[0].(*constant.Int); !ok || c.X.Sign() != 0 {
					t.Errorf("unconditional %s keeps lanes alive: %v", tt.name, calls[0].Args[0])
				}
			}
			if n := countInsts(res.Func, isInst[*ir.InstXor]); n != tt.xors {
				t.Errorf("got %d xor, want %d", n, tt.xors)
			}
		})
	}
}

func TestTerminateLeavesFunction(t *testing.T) {
	b := sir.NewBuilder("terminate", sir.StageFragment)
	face := b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadFrontFace}, 1, 1)
	b.If(sir.Use(face), func() {
		b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrTerminate}, 0, 0)
	}, nil)
	x := b.ConstF32(1)
	b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrStoreOutput, Srcs: []sir.Src{sir.Use(x)}, WriteMask: 1}, 0, 0)

	res := translate(t, b.Func(), gpu.DefaultTarget())
	if err := testkit.CheckFunc(res.Func); err != nil {
		t.Fatal(err)
	}
	if n := countInsts(res.Func, isCallTo("llvm.amdgcn.kill")); n != 1 {
		t.Fatalf("got %d kill calls, want 1", n)
	}
	// Both the terminated path and the fall-through reach the single
	// epilogue that exports.
	if n := countInsts(res.Func, isCallTo("llvm.amdgcn.exp")); n != 1 {
		t.Fatalf("got %d exports, want 1", n)
	}
	rets := 0
	for _, blk := range res.Func.Blocks {
		if _, ok := blk.Term.(*ir.TermRet); ok {
			rets++
		}
	}
	if rets != 1 {
		t.Fatalf("got %d returns, want 1", rets)
	}
}

func TestSystemValues(t *testing.T) {
	wave32 := gfx(gpu.GFX10)
	wave32.WaveSize = 32

	tests := []struct {
		name   string
		stage  sir.Stage
		target gpu.Target
		op     sir.IntrinsicOp
		bits   uint8
		comps  uint8
		check  func(t *testing.T, res *lower.Result, v ir.Instruction)
	}{
		{
			name: "subgroup_size_wave64", stage: sir.StageCompute, target: gpu.DefaultTarget(),
			op: sir.IntrLoadSubgroupSize, bits: 32, comps: 1,
		},
		{
			name: "subgroup_invocation_wave64", stage: sir.StageCompute, target: gpu.DefaultTarget(),
			op: sir.IntrLoadSubgroupInvocation, bits: 32, comps: 1,
			check: func(t *testing.T, res *lower.Result, v ir.Instruction) {
				if !isCallTo("llvm.amdgcn.mbcnt.hi")(v) {
					t.Errorf("lane index comes from %s", v.LLString())
				}
				if n := countInsts(res.Func, isCallTo("llvm.amdgcn.mbcnt.lo")); n != 1 {
					t.Errorf("got %d mbcnt.lo, want 1", n)
				}
			},
		},
		{
			name: "subgroup_invocation_wave32", stage: sir.StageCompute, target: wave32,
			op: sir.IntrLoadSubgroupInvocation, bits: 32, comps: 1,
			check: func(t *testing.T, res *lower.Result, v ir.Instruction) {
				if !isCallTo("llvm.amdgcn.mbcnt.lo")(v) {
					t.Errorf("lane index comes from %s", v.LLString())
				}
				if n := countInsts(res.Func, isCallTo("llvm.amdgcn.mbcnt.hi")); n != 0 {
					t.Errorf("got %d mbcnt.hi on wave32", n)
				}
			},
		},
		{
			name: "helper_invocation", stage: sir.StageFragment, target: gpu.DefaultTarget(),
			op: sir.IntrLoadHelperInvocation, bits: 1, comps: 1,
			check: func(t *testing.T, res *lower.Result, v ir.Instruction) {
				x, ok := v.(*ir.InstXor)
				if !ok {
					t.Fatalf("helper flag is %T, want xor", v)
				}
				if live, ok := x.X.(ir.Instruction); !ok || !isCallTo("llvm.amdgcn.ps.live")(live) {
					t.Errorf("helper flag does not invert ps.live: %s", x.LLString())
				}
			},
		},
		{
			name: "sample_id", stage: sir.StageFragment, target: gpu.DefaultTarget(),
			op: sir.IntrLoadSampleID, bits: 32, comps: 1,
			check: func(t *testing.T, res *lower.Result, v ir.Instruction) {
				call, ok := v.(*ir.InstCall)
				if !ok || !isCallTo("llvm.amdgcn.ubfe.i32")(v) {
					t.Fatalf("sample id is %s", v.LLString())
				}
				if constArg(t, call, 1) != 8 || constArg(t, call, 2) != 4 {
					t.Errorf("sample id field %s, want bits 8..11", call.LLString())
				}
			},
		},
		{
			name: "front_face", stage: sir.StageFragment, target: gpu.DefaultTarget(),
			op: sir.IntrLoadFrontFace, bits: 1, comps: 1,
			check: func(t *testing.T, res *lower.Result, v ir.Instruction) {
				c, ok := v.(*ir.InstICmp)
				if !ok || c.Pred != enum.IPredNE {
					t.Fatalf("front face is %s, want icmp ne", v.LLString())
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sir.NewBuilder("sysval", tt.stage)
			if tt.stage == sir.StageCompute {
				b.SetWorkgroupSize(64, 1, 1)
			}
			v := b.Intrinsic(sir.IntrinsicInstr{Op: tt.op}, tt.bits, tt.comps)
			res := translate(t, b.Func(), tt.target)

			if tt.op == sir.IntrLoadSubgroupSize {
				c, ok := res.Values[v].(*constant.Int)
				if !ok || c.X.Int64() != int64(tt.target.WaveSize) {
					t.Fatalf("subgroup size is %v, want %d", res.Values[v], tt.target.WaveSize)
				}
				return
			}
			inst, ok := res.Values[v].(ir.Instruction)
			if !ok {
				t.Fatalf("%s lowered to %T", tt.op, res.Values[v])
			}
			tt.check(t, res, inst)
		})
	}
}

func TestLocalInvocationIndex(t *testing.T) {
	b := sir.NewBuilder("index", sir.StageCompute)
	b.SetWorkgroupSize(8, 4, 2)
	v := b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadLocalInvocationIndex}, 32, 1)

	res := translate(t, b.Func(), gpu.DefaultTarget())
	add, ok := res.Values[v].(*ir.InstAdd)
	if !ok {
		t.Fatalf("index is %T, want add", res.Values[v])
	}
	var scales []int64
	for _, blk := range res.Func.Blocks {
		for _, inst := range blk.Insts {
			if m, ok := inst.(*ir.InstMul); ok {
				if c, ok := m.Y.(*constant.Int); ok {
					scales = append(scales, c.X.Int64())
				}
			}
		}
	}
	if len(scales) != 2 || scales[0] != 32 || scales[1] != 8 {
		t.Fatalf("z and y scaled by %v, want [32 8]", scales)
	}
	if _, ok := add.Y.(*ir.InstExtractElement); !ok {
		t.Errorf("x enters the index as %T", add.Y)
	}

	// Without a workgroup size the index cannot be formed.
	b = sir.NewBuilder("index", sir.StageCompute)
	b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadLocalInvocationIndex}, 32, 1)
	_, err := lower.Translate(context.Background(), b.Func(), lower.Options{Target: gpu.DefaultTarget()})
	if !errors.Is(err, lower.ErrFatal) || !strings.Contains(err.Error(), "workgroup size") {
		t.Fatalf("got %v", err)
	}
}

// exportMask returns the enable mask of the single export call.
func exportMask(t *testing.T, f *ir.Func) int64 {
	t.Helper()
	exps := callsTo(f, "llvm.amdgcn.exp.f32")
	if len(exps) != 1 {
		t.Fatalf("got %d exports, want 1", len(exps))
	}
	return constArg(t, exps[0], 1)
}

func TestOutputs(t *testing.T) {
	tests := []struct {
		name    string
		stage   sir.Stage
		build   func(b *sir.Builder)
		allocas int
		stores  int
		mask    int64
	}{
		{
			name: "masked_vec4", stage: sir.StageFragment,
			build: func(b *sir.Builder) {
				x := b.ConstF32(1, 2, 3, 4)
				b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrStoreOutput, Srcs: []sir.Src{sir.Use(x)}, WriteMask: 0b0101}, 0, 0)
			},
			allocas: 2, stores: 2, mask: 0b0101,
		},
		{
			name: "stores_in_both_branches", stage: sir.StageFragment,
			build: func(b *sir.Builder) {
				face := b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadFrontFace}, 1, 1)
				store := func(v float32) {
					x := b.ConstF32(v, v)
					b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrStoreOutput, Srcs: []sir.Src{sir.Use(x)}}, 0, 0)
				}
				b.If(sir.Use(face), func() { store(1) }, func() { store(0) })
			},
			allocas: 2, stores: 4, mask: 0b0011,
		},
		{
			name: "double_takes_two_dwords", stage: sir.StageVertex,
			build: func(b *sir.Builder) {
				x := b.Const(64, 0x3ff0000000000000)
				b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrStoreOutput, Srcs: []sir.Src{sir.Use(x)}, WriteMask: 1}, 0, 0)
			},
			allocas: 2, stores: 2, mask: 0b0011,
		},
		{
			name: "component_offset", stage: sir.StageVertex,
			build: func(b *sir.Builder) {
				x := b.ConstF32(5)
				b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrStoreOutput, Srcs: []sir.Src{sir.Use(x)}, WriteMask: 1, Component: 2}, 0, 0)
			},
			allocas: 1, stores: 1, mask: 0b0100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sir.NewBuilder("out", tt.stage)
			tt.build(b)
			res := translate(t, b.Func(), gpu.DefaultTarget())
			if err := testkit.CheckFunc(res.Func); err != nil {
				t.Fatal(err)
			}
			if n := countInsts(res.Func, isInst[*ir.InstAlloca]); n != tt.allocas {
				t.Errorf("got %d output slots, want %d", n, tt.allocas)
			}
			if n := countInsts(res.Func, isInst[*ir.InstStore]); n != tt.stores {
				t.Errorf("got %d slot stores, want %d", n, tt.stores)
			}
			if got := exportMask(t, res.Func); got != tt.mask {
				t.Errorf("export mask %#b, want %#b", got, tt.mask)
			}
		})
	}
}

func TestGeometryOutputsPerVertex(t *testing.T) {
	b := sir.NewBuilder("gs", sir.StageGeometry)
	x := b.ConstF32(1, 2)
	b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrStoreOutput, Srcs: []sir.Src{sir.Use(x)}}, 0, 0)
	b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrEmitVertex}, 0, 0)

	res := translate(t, b.Func(), gpu.DefaultTarget())
	if n := countInsts(res.Func, isCallTo("llvm.amdgcn.exp")); n != 0 {
		t.Fatalf("geometry shader exported %d times from its epilogue", n)
	}
	if n := countInsts(res.Func, isCallTo("llvm.amdgcn.raw.buffer.store.i32")); n != 2 {
		t.Fatalf("got %d ring stores, want 2", n)
	}
	if n := countInsts(res.Func, isCallTo("llvm.amdgcn.s.sendmsg")); n < 1 {
		t.Fatal("vertex emitted without a message")
	}
}

func TestFragmentInputs(t *testing.T) {
	tests := []struct {
		name    string
		interp  bool
		bits    uint8
		mov     int
		p2      int
		fptrunc int
	}{
		{"flat_f32", false, 32, 3, 0, 0},
		{"flat_f16", false, 16, 3, 0, 1},
		{"smooth_f32", true, 32, 0, 3, 0},
		{"smooth_f16", true, 16, 0, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sir.NewBuilder("in", sir.StageFragment)
			if tt.interp {
				bary := b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadBarycentric}, 32, 2)
				b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadInterpolatedInput, Srcs: []sir.Src{sir.Use(bary)}, Base: 2}, tt.bits, 3)
			} else {
				b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadInput, Base: 2}, tt.bits, 3)
			}
			res := translate(t, b.Func(), gpu.DefaultTarget())

			got := [3]int{
				countInsts(res.Func, isCallTo("llvm.amdgcn.interp.mov")),
				countInsts(res.Func, isCallTo("llvm.amdgcn.interp.p2")),
				countInsts(res.Func, isInst[*ir.InstFPTrunc]),
			}
			if want := [3]int{tt.mov, tt.p2, tt.fptrunc}; got != want {
				t.Fatalf("mov/p2/fptrunc = %v, want %v", got, want)
			}
		})
	}
}
