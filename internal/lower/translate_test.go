package lower_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"

	"wavefront/internal/gpu"
	"wavefront/internal/lower"
	"wavefront/internal/sir"
	"wavefront/internal/testkit"
	"wavefront/internal/tir"
)

func translate(t *testing.T, fn *sir.Func, target gpu.Target) *lower.Result {
	t.Helper()
	res, err := lower.Translate(context.Background(), fn, lower.Options{Target: target})
	if err != nil {
		t.Fatalf("Translate(%s): %v", fn.Name, err)
	}
	return res
}

func gfx(gen gpu.Gen) gpu.Target {
	tg := gpu.DefaultTarget()
	tg.Gen = gen
	return tg
}

func countInsts(f *ir.Func, match func(ir.Instruction) bool) int {
	n := 0
	for _, blk := range f.Blocks {
		for _, inst := range blk.Insts {
			if match(inst) {
				n++
			}
		}
	}
	return n
}

func calleeName(inst ir.Instruction) (string, bool) {
	call, ok := inst.(*ir.InstCall)
	if !ok {
		return "", false
	}
	fn, ok := call.Callee.(*ir.Func)
	if !ok {
		return "", false
	}
	return fn.Name(), true
}

func isCallTo(prefix string) func(ir.Instruction) bool {
	return func(inst ir.Instruction) bool {
		name, ok := calleeName(inst)
		return ok && strings.HasPrefix(name, prefix)
	}
}

func TestFAddOnFloatOperands(t *testing.T) {
	b := sir.NewBuilder("fadd", sir.StageFragment)
	bary := b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadBarycentric}, 32, 2)
	x := b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadInterpolatedInput, Srcs: []sir.Src{sir.Use(bary)}, Base: 0}, 32, 1)
	y := b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadInterpolatedInput, Srcs: []sir.Src{sir.Use(bary)}, Base: 1}, 32, 1)
	sum := b.ALU(sir.OpFAdd, 32, 1, sir.Use(x), sir.Use(y))

	res := translate(t, b.Func(), gpu.DefaultTarget())

	add, ok := res.Values[sum].(*ir.InstFAdd)
	if !ok {
		t.Fatalf("fadd lowered to %T, want *ir.InstFAdd", res.Values[sum])
	}
	if add.X != res.Values[x] || add.Y != res.Values[y] {
		t.Fatalf("fadd operands were converted: %s", add.LLString())
	}
	if n := countInsts(res.Func, func(i ir.Instruction) bool { _, ok := i.(*ir.InstFAdd); return ok }); n != 1 {
		t.Fatalf("got %d fadd instructions, want 1", n)
	}
	if n := countInsts(res.Func, func(i ir.Instruction) bool { _, ok := i.(*ir.InstBitCast); return ok }); n != 0 {
		t.Fatalf("got %d bitcasts, want none", n)
	}
}

func ssboLoad(b *sir.Builder, index sir.ValueID, comps uint8, access sir.Access) sir.ValueID {
	off := b.ConstU32(0)
	return b.Intrinsic(sir.IntrinsicInstr{
		Op:     sir.IntrLoadSSBO,
		Srcs:   []sir.Src{sir.Use(index), sir.Use(off)},
		Access: access,
		Align:  4,
	}, 32, comps)
}

func TestUniformSSBOLoad(t *testing.T) {
	b := sir.NewBuilder("uniform", sir.StageCompute)
	idx := b.ConstU32(2)
	v := ssboLoad(b, idx, 4, sir.AccessNonUniform)

	res := translate(t, b.Func(), gpu.DefaultTarget())

	if res.Waterfalls != 0 {
		t.Fatalf("constant index opened %d waterfalls", res.Waterfalls)
	}
	if n := countInsts(res.Func, isCallTo("llvm.amdgcn.readfirstlane")); n != 0 {
		t.Fatalf("got %d readfirstlane calls for a constant index", n)
	}
	if n := countInsts(res.Func, isCallTo("llvm.amdgcn.raw.buffer.load")); n != 1 {
		t.Fatalf("got %d buffer loads, want 1", n)
	}
	if len(res.Accesses) != 1 || res.Accesses[0].Value != v || res.Accesses[0].Size != 16 || res.Accesses[0].Waterfall {
		t.Fatalf("unexpected access table %+v", res.Accesses)
	}
}

// divergentLoad loads one dword from the storage buffer selected by the
// instance id of each lane.
func divergentLoad() (*sir.Func, sir.ValueID) {
	b := sir.NewBuilder("divergent", sir.StageVertex)
	idx := b.SetDivergent(b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadInstanceID}, 32, 1))
	v := ssboLoad(b, idx, 1, sir.AccessNonUniform)
	return b.Func(), v
}

func TestDivergentSSBOLoadOrder(t *testing.T) {
	fn, _ := divergentLoad()
	res := translate(t, fn, gpu.DefaultTarget())

	if res.Waterfalls != 1 {
		t.Fatalf("got %d waterfalls, want 1", res.Waterfalls)
	}

	// Walk the function in layout order and note where each step of the
	// guard appears.
	const (
		stepHeader = iota
		stepBroadcast
		stepCompare
		stepEnter
		stepLoad
		stepExit
		stepBreakGuard
		stepLoopEnd
		numSteps
	)
	pos := make([]int, numSteps)
	for i := range pos {
		pos[i] = -1
	}
	seen := func(step, at int) {
		if pos[step] < 0 {
			pos[step] = at
		}
	}
	index := make(map[*ir.Block]int)
	for i, blk := range res.Func.Blocks {
		index[blk] = i
	}

	at := 0
	var header *ir.Block
	for _, blk := range res.Func.Blocks {
		for _, inst := range blk.Insts {
			at++
			name, _ := calleeName(inst)
			switch {
			case name == "llvm.amdgcn.readfirstlane":
				header = blk
				seen(stepHeader, at-1)
				seen(stepBroadcast, at)
			case strings.HasPrefix(name, "llvm.amdgcn.raw.buffer.load"):
				seen(stepLoad, at)
			}
			if _, ok := inst.(*ir.InstICmp); ok && pos[stepBroadcast] >= 0 {
				seen(stepCompare, at)
			}
			if _, ok := inst.(*ir.InstPhi); ok && pos[stepLoad] >= 0 {
				seen(stepExit, at)
			}
			if call, ok := inst.(*ir.InstCall); ok {
				if _, asm := call.Callee.(*ir.InlineAsm); asm {
					seen(stepBreakGuard, at)
				}
			}
		}
		at++
		switch term := blk.Term.(type) {
		case *ir.TermCondBr:
			if blk == header {
				seen(stepEnter, at)
			}
		case *ir.TermBr:
			if header != nil && pos[stepBreakGuard] >= 0 && term.Succs()[0] == header {
				seen(stepLoopEnd, at)
			}
		}
	}
	for step := 1; step < numSteps; step++ {
		if pos[step] < 0 {
			t.Fatalf("step %d of the guard is missing:\n%s", step, res.Func.LLString())
		}
		if pos[step] < pos[step-1] {
			t.Fatalf("step %d at %d comes before step %d at %d:\n%s", step, pos[step], step-1, pos[step-1], res.Func.LLString())
		}
	}
	if len(res.Accesses) != 1 || !res.Accesses[0].Waterfall {
		t.Fatalf("guarded load not recorded as such: %+v", res.Accesses)
	}
}

func TestVec3StoreSplitOnGFX6(t *testing.T) {
	b := sir.NewBuilder("store", sir.StageCompute)
	data := b.ConstU32(1, 2, 3)
	idx := b.ConstU32(0)
	off := b.ConstU32(16)
	b.Intrinsic(sir.IntrinsicInstr{
		Op:    sir.IntrStoreSSBO,
		Srcs:  []sir.Src{sir.Use(data), sir.Use(idx), sir.Use(off)},
		Align: 4,
	}, 0, 0)

	res := translate(t, b.Func(), gfx(gpu.GFX6))

	if n := countInsts(res.Func, isCallTo("llvm.amdgcn.raw.buffer.store")); n != 2 {
		t.Fatalf("got %d buffer stores, want 2", n)
	}
	if len(res.Accesses) != 2 {
		t.Fatalf("got %d accesses, want 2: %+v", len(res.Accesses), res.Accesses)
	}
	first, second := res.Accesses[0], res.Accesses[1]
	if first.Offset != 0 || first.Size != 8 {
		t.Errorf("first store covers [%d,+%d), want [0,+8)", first.Offset, first.Size)
	}
	if second.Offset != 8 || second.Size != 4 {
		t.Errorf("second store covers [%d,+%d), want [8,+4)", second.Offset, second.Size)
	}

	// The same store is a single access on a generation with vec3 stores.
	res = translate(t, b.Func(), gfx(gpu.GFX7))
	if n := countInsts(res.Func, isCallTo("llvm.amdgcn.raw.buffer.store")); n != 1 {
		t.Fatalf("gfx7: got %d buffer stores, want 1", n)
	}
}

// loopWithCounter builds
//
//	i = 0
//	loop { i' = phi(i, i+1); if i' >= 4 { break } else {}; i+1 }
func loopWithCounter() *sir.Func {
	b := sir.NewBuilder("counter", sir.StageCompute)
	zero := b.ConstU32(0)
	four := b.ConstU32(4)
	one := b.ConstU32(1)
	entry := b.CurrentBlock()

	b.Loop(func() {
		phi := b.Phi(32, 1, sir.PhiSrc{Pred: entry, Value: zero})
		cond := b.ALU(sir.OpIGe, 1, 1, sir.Use(phi), sir.Use(four))
		b.If(sir.Use(cond), func() { b.Break() }, nil)
		next := b.ALU(sir.OpIAdd, 32, 1, sir.Use(phi), sir.Use(one))
		b.AddPhiSrc(phi, b.CurrentBlock(), next)
	})
	b.Return()
	return b.Func()
}

func ifMerge() *sir.Func {
	b := sir.NewBuilder("merge", sir.StageFragment)
	c := b.Const(1, 1)
	var x, y sir.ValueID
	var tb, eb sir.BlockID
	b.If(sir.Use(c), func() {
		x = b.ConstF32(1)
		tb = b.CurrentBlock()
	}, func() {
		y = b.ConstF32(2)
		eb = b.CurrentBlock()
	})
	b.Phi(32, 1, sir.PhiSrc{Pred: tb, Value: x}, sir.PhiSrc{Pred: eb, Value: y})
	return b.Func()
}

func predecessors(f *ir.Func) map[*ir.Block]int {
	preds := make(map[*ir.Block]int)
	for _, blk := range f.Blocks {
		if blk.Term == nil {
			continue
		}
		for _, succ := range blk.Term.Succs() {
			preds[succ]++
		}
	}
	return preds
}

func TestPhiIncomingMatchesPredecessors(t *testing.T) {
	tests := []struct {
		name string
		fn   *sir.Func
	}{
		{"loop_counter", loopWithCounter()},
		{"if_merge", ifMerge()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := translate(t, tt.fn, gpu.DefaultTarget())
			if err := testkit.CheckFunc(res.Func); err != nil {
				t.Fatal(err)
			}
			preds := predecessors(res.Func)
			phis := 0
			for _, blk := range res.Func.Blocks {
				for _, inst := range blk.Insts {
					phi, ok := inst.(*ir.InstPhi)
					if !ok {
						continue
					}
					phis++
					if len(phi.Incs) != preds[blk] {
						t.Errorf("phi %s has %d incoming values, block has %d predecessors",
							phi.Ident(), len(phi.Incs), preds[blk])
					}
				}
			}
			if phis == 0 {
				t.Fatalf("no phis in translated function")
			}
		})
	}
}

func TestTranslateIsDeterministic(t *testing.T) {
	for _, build := range []func() *sir.Func{loopWithCounter, ifMerge} {
		fn := build()
		first := translate(t, fn, gpu.DefaultTarget()).Module.String()
		second := translate(t, fn, gpu.DefaultTarget()).Module.String()
		if first != second {
			t.Fatalf("%s: translations differ:\n%s\n---\n%s", fn.Name, first, second)
		}
	}
}

type shape struct{ bits, comps uint8 }

// opShape returns a destination and source shapes an opcode accepts.
func opShape(op sir.Op, info sir.OpInfo) (shape, []shape) {
	s32 := shape{32, 1}
	srcs := func(s ...shape) []shape { return s }
	repeat := func(s shape, n int) []shape {
		out := make([]shape, n)
		for i := range out {
			out[i] = s
		}
		return out
	}
	switch op {
	case sir.OpVec2, sir.OpVec3, sir.OpVec4, sir.OpVec5:
		n := uint8(op-sir.OpVec2) + 2
		return shape{32, n}, repeat(s32, int(n))
	case sir.OpFDot2, sir.OpFDot3, sir.OpFDot4:
		n := uint8(op-sir.OpFDot2) + 2
		return s32, repeat(shape{32, n}, 2)
	case sir.OpBCsel:
		return s32, srcs(shape{1, 1}, s32, s32)
	case sir.OpB2F, sir.OpB2I:
		return s32, srcs(shape{1, 1})
	case sir.OpF2F16, sir.OpF2F16Rtz, sir.OpF2F16Rtne, sir.OpI2I, sir.OpU2U:
		return shape{16, 1}, srcs(s32)
	case sir.OpF2F:
		return shape{64, 1}, srcs(s32)
	case sir.OpPackSnorm2x16, sir.OpPackUnorm2x16, sir.OpPackUint2x16, sir.OpPackSint2x16:
		return s32, srcs(shape{32, 2})
	case sir.OpPack64_2x32:
		return shape{64, 1}, srcs(shape{32, 2})
	case sir.OpPack64_2x32Split:
		return shape{64, 1}, srcs(s32, s32)
	case sir.OpUnpack64_2x32:
		return shape{32, 2}, srcs(shape{64, 1})
	case sir.OpUnpack64_2x32SplitX, sir.OpUnpack64_2x32SplitY:
		return s32, srcs(shape{64, 1})
	case sir.OpPack32_2x16:
		return s32, srcs(shape{16, 2})
	case sir.OpPack32_2x16Split:
		return s32, srcs(shape{16, 1}, shape{16, 1})
	case sir.OpUnpack32_2x16:
		return shape{16, 2}, srcs(s32)
	case sir.OpPack32_4x8:
		return s32, srcs(shape{8, 4})
	case sir.OpUnpack32_4x8:
		return shape{8, 4}, srcs(s32)
	case sir.OpCubeFaceCoord:
		return shape{32, 2}, srcs(shape{32, 3})
	case sir.OpCubeFaceIndex:
		return s32, srcs(shape{32, 3})
	}
	dst := s32
	if info.Output == sir.ClassBool {
		dst = shape{1, 1}
	}
	return dst, repeat(s32, info.Inputs)
}

func TestEveryOpLowersToLegalWidth(t *testing.T) {
	for i := 0; i < sir.NumOps; i++ {
		op := sir.Op(i)
		info, _ := op.Info()
		t.Run(info.Name, func(t *testing.T) {
			b := sir.NewBuilder(info.Name, sir.StageFragment)
			dst, in := opShape(op, info)
			srcs := make([]sir.Src, len(in))
			for j, s := range in {
				srcs[j] = sir.Use(b.Undef(s.bits, s.comps))
			}
			out := b.ALU(op, dst.bits, dst.comps, srcs...)

			res := translate(t, b.Func(), gpu.DefaultTarget())
			v := res.Values[out]
			if v == nil {
				t.Fatalf("%s produced no value", info.Name)
			}
			want := tir.Legalize(dst.bits, dst.comps)
			if tir.ScalarBits(v.Type()) != tir.ScalarBits(want) || tir.NumComponents(v.Type()) != tir.NumComponents(want) {
				t.Fatalf("%s lowered to %s, want the width of %s", info.Name, v.Type(), want)
			}
		})
	}
}

func TestValueWidthsAcrossFunction(t *testing.T) {
	fn := loopWithCounter()
	res := translate(t, fn, gpu.DefaultTarget())
	for _, d := range fn.Values {
		v := res.Values[d.ID]
		if v == nil {
			t.Fatalf("%%%d was not translated", d.ID)
		}
		want := tir.Legalize(d.BitSize, d.Components)
		if !types.Equal(tir.IntOf(v.Type()), want) {
			t.Errorf("%%%d has type %s, want %s", d.ID, v.Type(), want)
		}
	}
}

func TestFatalErrors(t *testing.T) {
	tests := []struct {
		name   string
		target gpu.Target
		build  func() *sir.Func
		want   string
	}{
		{
			name:   "fma32_without_fast_fma",
			target: gfx(gpu.GFX8),
			build: func() *sir.Func {
				b := sir.NewBuilder("fma", sir.StageCompute)
				x := b.ConstF32(1)
				b.ALU(sir.OpFFma, 32, 1, sir.Use(x), sir.Use(x), sir.Use(x))
				return b.Func()
			},
			want: "fma",
		},
		{
			name:   "unknown_op",
			target: gpu.DefaultTarget(),
			build: func() *sir.Func {
				b := sir.NewBuilder("unknown", sir.StageCompute)
				x := b.ConstU32(1)
				b.ALU(sir.Op(sir.NumOps+7), 32, 1, sir.Use(x))
				return b.Func()
			},
			want: "unsupported operation",
		},
		{
			name:   "unknown_intrinsic",
			target: gpu.DefaultTarget(),
			build: func() *sir.Func {
				b := sir.NewBuilder("unknown", sir.StageCompute)
				b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrinsicOp(sir.NumIntrinsics + 3)}, 0, 0)
				return b.Func()
			},
			want: "unknown intrinsic",
		},
		{
			name:   "system_value_missing_in_stage",
			target: gpu.DefaultTarget(),
			build: func() *sir.Func {
				b := sir.NewBuilder("frontface", sir.StageCompute)
				b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrLoadFrontFace}, 1, 1)
				return b.Func()
			},
			want: "front_face",
		},
		{
			name:   "negative_output_location",
			target: gpu.DefaultTarget(),
			build: func() *sir.Func {
				b := sir.NewBuilder("out", sir.StageFragment)
				x := b.ConstF32(1)
				b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrStoreOutput, Srcs: []sir.Src{sir.Use(x)}, WriteMask: 1, Base: -1}, 0, 0)
				return b.Func()
			},
			want: "invalid location",
		},
		{
			name:   "vector_reduction",
			target: gpu.DefaultTarget(),
			build: func() *sir.Func {
				b := sir.NewBuilder("reduce", sir.StageCompute)
				b.SetWorkgroupSize(64, 1, 1)
				x := b.ConstU32(1, 2)
				b.Intrinsic(sir.IntrinsicInstr{Op: sir.IntrReduce, Srcs: []sir.Src{sir.Use(x)}, ReduceOp: sir.OpIAdd}, 32, 2)
				return b.Func()
			},
			want: "reduce of a vector",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := lower.Translate(context.Background(), tt.build(), lower.Options{Target: tt.target})
			if err == nil {
				t.Fatalf("expected a fatal error")
			}
			if res != nil {
				t.Fatalf("partial result returned with error")
			}
			if !errors.Is(err, lower.ErrFatal) {
				t.Fatalf("error %v does not wrap ErrFatal", err)
			}
			var fe *lower.FatalError
			if !errors.As(err, &fe) || !strings.Contains(fe.Msg, tt.want) {
				t.Fatalf("error %v does not mention %q", err, tt.want)
			}
		})
	}
}

func TestInvalidTarget(t *testing.T) {
	tg := gpu.DefaultTarget()
	tg.WaveSize = 48
	_, err := lower.Translate(context.Background(), ifMerge(), lower.Options{Target: tg})
	if err == nil || errors.Is(err, lower.ErrFatal) {
		t.Fatalf("want a plain target error, got %v", err)
	}
}

func TestUnknownTextureOpRejected(t *testing.T) {
	b := sir.NewBuilder("tex", sir.StageFragment)
	coord := b.ConstF32(0.5, 0.5)
	b.Tex(sir.TexInstr{
		Op:   sir.TexQuerySamples + 1,
		Dim:  sir.Dim2D,
		Srcs: []sir.TexSrc{{Kind: sir.TexSrcCoord, Src: sir.Use(coord)}},
	}, 32, 4)

	res, err := lower.Translate(context.Background(), b.Func(), lower.Options{Target: gpu.DefaultTarget()})
	if err == nil || res != nil {
		t.Fatalf("Translate = %v, %v; want an error and no result", res, err)
	}
	if !strings.Contains(err.Error(), "unknown texture operation") {
		t.Fatalf("error %v does not name the texture operation", err)
	}
}
