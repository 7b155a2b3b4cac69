package lower_test

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"

	"wavefront/internal/gpu"
	"wavefront/internal/sir"
	"wavefront/internal/testkit"
	"wavefront/internal/tir"
)

func scanOf(b *sir.Builder, op sir.IntrinsicOp, reduce sir.Op, cluster uint8, x sir.ValueID, bits uint8) sir.ValueID {
	return b.Intrinsic(sir.IntrinsicInstr{
		Op:          op,
		Srcs:        []sir.Src{sir.Use(x)},
		ReduceOp:    reduce,
		ClusterSize: cluster,
	}, bits, 1)
}

func callsTo(f *ir.Func, name string) []*ir.InstCall {
	var out []*ir.InstCall
	for _, blk := range f.Blocks {
		for _, inst := range blk.Insts {
			if n, ok := calleeName(inst); ok && n == name {
				out = append(out, inst.(*ir.InstCall))
			}
		}
	}
	return out
}

func constArg(t *testing.T, call *ir.InstCall, i int) int64 {
	t.Helper()
	c, ok := call.Args[i].(*constant.Int)
	if !ok {
		t.Fatalf("argument %d of %s is %T, want a constant", i, call.LLString(), call.Args[i])
	}
	return c.X.Int64()
}

func TestScanClusterSizes(t *testing.T) {
	wave32 := gfx(gpu.GFX10)
	wave32.WaveSize = 32

	tests := []struct {
		name      string
		op        sir.IntrinsicOp
		cluster   uint8
		target    gpu.Target
		bpermutes int
		readLane  int64 // -1 when the result leaves through bpermute
	}{
		{"reduce_wave64", sir.IntrReduce, 0, gpu.DefaultTarget(), 6, 63},
		{"reduce_cluster4", sir.IntrReduce, 4, gpu.DefaultTarget(), 3, -1},
		{"reduce_cluster16", sir.IntrReduce, 16, gpu.DefaultTarget(), 5, -1},
		{"reduce_cluster_is_wave", sir.IntrReduce, 64, gpu.DefaultTarget(), 6, 63},
		{"reduce_wave32", sir.IntrReduce, 0, wave32, 5, 31},
		{"reduce_wave32_cluster8", sir.IntrReduce, 8, wave32, 4, -1},
		{"inclusive_ignores_cluster", sir.IntrInclusiveScan, 4, gpu.DefaultTarget(), 6, -1},
		{"exclusive", sir.IntrExclusiveScan, 0, gpu.DefaultTarget(), 7, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sir.NewBuilder("scan", sir.StageCompute)
			b.SetWorkgroupSize(64, 1, 1)
			x := b.ConstU32(3)
			dest := scanOf(b, tt.op, sir.OpIAdd, tt.cluster, x, 32)

			res := translate(t, b.Func(), tt.target)
			if err := testkit.CheckFunc(res.Func); err != nil {
				t.Fatal(err)
			}

			if n := countInsts(res.Func, isCallTo("llvm.amdgcn.ds.bpermute")); n != tt.bpermutes {
				t.Errorf("got %d bpermutes, want %d", n, tt.bpermutes)
			}
			inactive := callsTo(res.Func, "llvm.amdgcn.set.inactive.i32")
			if len(inactive) != 1 || constArg(t, inactive[0], 1) != 0 {
				t.Fatalf("set.inactive calls %d, want one filling with 0", len(inactive))
			}
			if n := countInsts(res.Func, isCallTo("llvm.amdgcn.wwm")); n != 1 {
				t.Errorf("got %d wwm calls, want 1", n)
			}

			lanes := callsTo(res.Func, "llvm.amdgcn.readlane")
			if tt.readLane < 0 {
				if len(lanes) != 0 {
					t.Fatalf("got %d readlane calls, want none", len(lanes))
				}
			} else {
				if len(lanes) != 1 {
					t.Fatalf("got %d readlane calls, want 1", len(lanes))
				}
				if got := constArg(t, lanes[0], 1); got != tt.readLane {
					t.Errorf("readlane of lane %d, want %d", got, tt.readLane)
				}
			}

			if got := tir.ScalarBits(res.Values[dest].Type()); got != 32 {
				t.Errorf("result is %d bits, want 32", got)
			}
		})
	}
}

func TestScanFloat16(t *testing.T) {
	tests := []struct {
		name  string
		op    sir.IntrinsicOp
		red   sir.Op
		ident int64
	}{
		{"reduce_fadd", sir.IntrReduce, sir.OpFAdd, 0},
		{"inclusive_fmin", sir.IntrInclusiveScan, sir.OpFMin, 0x7c00},
		{"exclusive_fmax", sir.IntrExclusiveScan, sir.OpFMax, 0xfc00},
		{"reduce_fmul", sir.IntrReduce, sir.OpFMul, 0x3c00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sir.NewBuilder("scan16", sir.StageCompute)
			b.SetWorkgroupSize(64, 1, 1)
			x := b.Const(16, 0x3c00)
			dest := scanOf(b, tt.op, tt.red, 0, x, 16)

			res := translate(t, b.Func(), gpu.DefaultTarget())
			if err := testkit.CheckFunc(res.Func); err != nil {
				t.Fatal(err)
			}

			inactive := callsTo(res.Func, "llvm.amdgcn.set.inactive.i32")
			if len(inactive) != 1 {
				t.Fatalf("got %d set.inactive calls, want 1", len(inactive))
			}
			if got := constArg(t, inactive[0], 1); got != tt.ident {
				t.Errorf("inactive lanes hold %#x, want %#x", got, tt.ident)
			}

			// Each of the six steps reads both operands back as half.
			toHalf := countInsts(res.Func, func(i ir.Instruction) bool {
				bc, ok := i.(*ir.InstBitCast)
				return ok && bc.To.Equal(types.Half)
			})
			if toHalf != 12 {
				t.Errorf("got %d bitcasts to half, want 12", toHalf)
			}
			if got := tir.ScalarBits(res.Values[dest].Type()); got != 16 {
				t.Errorf("result is %d bits, want 16", got)
			}
		})
	}
}
