package lower_test

import (
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"

	"wavefront/internal/gpu"
	"wavefront/internal/sir"
	"wavefront/internal/testkit"
)

func TestFloatToHalf(t *testing.T) {
	opengl := gpu.DefaultTarget()
	opengl.FloatMode = gpu.FloatModeOpenGL
	oldBackend := gpu.DefaultTarget()
	oldBackend.BackendMajor = gpu.PackedF16MinBackend - 1
	flush := gpu.DefaultTarget()
	flush.FloatMode = gpu.FloatModeFlushDenorms
	flushGFX7 := gfx(gpu.GFX7)
	flushGFX7.FloatMode = gpu.FloatModeFlushDenorms

	tests := []struct {
		name    string
		target  gpu.Target
		op      sir.Op
		comps   uint8
		pkrtz   int
		fptrunc int
		class   int
		fabs    int
	}{
		{"rtz_pair_packed", gpu.DefaultTarget(), sir.OpF2F16Rtz, 2, 1, 0, 0, 0},
		{"opengl_default_rounding_packed", opengl, sir.OpF2F16, 2, 1, 0, 0, 0},
		{"opengl_rtne_truncates", opengl, sir.OpF2F16Rtne, 2, 0, 1, 0, 0},
		{"default_mode_truncates", gpu.DefaultTarget(), sir.OpF2F16, 2, 0, 1, 0, 0},
		{"rtz_old_backend_truncates", oldBackend, sir.OpF2F16Rtz, 2, 0, 1, 0, 0},
		{"rtz_scalar_truncates", gpu.DefaultTarget(), sir.OpF2F16Rtz, 1, 0, 1, 0, 0},
		{"flush_class_test", flush, sir.OpF2F16Rtne, 2, 0, 1, 2, 0},
		{"flush_before_class_test", flushGFX7, sir.OpF2F16Rtne, 2, 0, 1, 0, 1},
		{"flush_ignored_by_pkrtz", flush, sir.OpF2F16Rtz, 2, 1, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sir.NewBuilder("f2f16", sir.StageCompute)
			var x sir.ValueID
			if tt.comps == 2 {
				x = b.ConstF32(1, 2)
			} else {
				x = b.ConstF32(1)
			}
			b.ALU(tt.op, 16, tt.comps, sir.Use(x))

			res := translate(t, b.Func(), tt.target)
			if err := testkit.CheckFunc(res.Func); err != nil {
				t.Fatal(err)
			}
			got := [4]int{
				countInsts(res.Func, isCallTo("llvm.amdgcn.cvt.pkrtz")),
				countInsts(res.Func, isInst[*ir.InstFPTrunc]),
				countInsts(res.Func, isCallTo("llvm.amdgcn.class.f16")),
				countInsts(res.Func, isCallTo("llvm.fabs")),
			}
			want := [4]int{tt.pkrtz, tt.fptrunc, tt.class, tt.fabs}
			if got != want {
				t.Fatalf("pkrtz/fptrunc/class/fabs = %v, want %v", got, want)
			}
			if tt.fabs == 0 {
				return
			}
			// Without a class test, tiny magnitudes are found by comparing
			// against the smallest normal half.
			tiny := countInsts(res.Func, func(i ir.Instruction) bool {
				c, ok := i.(*ir.InstFCmp)
				return ok && c.Pred == enum.FPredUGT
			})
			if tiny != 1 {
				t.Errorf("got %d magnitude compares, want 1", tiny)
			}
			if n := countInsts(res.Func, isInst[*ir.InstFPExt]); n != 1 {
				t.Errorf("got %d fpext, want 1", n)
			}
		})
	}
}
