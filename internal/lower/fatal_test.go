package lower

import (
	"errors"
	"strings"
	"testing"

	"wavefront/internal/sir"
)

// expectFatal runs fn and returns the FatalError it aborted with.
func expectFatal(t *testing.T, fn func()) (fe *FatalError) {
	t.Helper()
	defer func() {
		r := recover()
		var ok bool
		if fe, ok = r.(*FatalError); !ok {
			t.Fatalf("recovered %v, want *FatalError", r)
		}
		if !errors.Is(fe, ErrFatal) {
			t.Fatalf("fatal error does not wrap ErrFatal")
		}
	}()
	fn()
	return nil
}

func TestLowerTexUnknownOp(t *testing.T) {
	b := sir.NewBuilder("tex", sir.StageFragment)
	coord := b.ConstF32(0.5, 0.5)
	srcs := []sir.TexSrc{{Kind: sir.TexSrcCoord, Src: sir.Use(coord)}}
	dest := b.Tex(sir.TexInstr{Op: sir.TexSample, Dim: sir.Dim2D, Srcs: srcs}, 32, 4)

	tr := newBareTranslator()
	tr.fn = b.Func()
	tx := &sir.TexInstr{Op: sir.TexQuerySamples + 1, Dest: dest, Dim: sir.Dim2D, Srcs: srcs}

	fe := expectFatal(t, func() { tr.lowerTex(tx) })
	if !strings.Contains(fe.Msg, "unsupported texture operation") {
		t.Fatalf("message %q", fe.Msg)
	}
	if n := len(tr.f.Blocks[0].Insts); n != 0 {
		t.Fatalf("%d instructions emitted before the abort", n)
	}
}

func TestTexArgsRejectsQueries(t *testing.T) {
	b := sir.NewBuilder("tex", sir.StageFragment)
	coord := b.ConstF32(0.5, 0.5)
	srcs := []sir.TexSrc{{Kind: sir.TexSrcCoord, Src: sir.Use(coord)}}
	dest := b.Tex(sir.TexInstr{Op: sir.TexSize, Dim: sir.Dim2D, Srcs: srcs}, 32, 2)

	tr := newBareTranslator()
	tr.fn = b.Func()
	tx := &sir.TexInstr{Op: sir.TexSize, Dest: dest, Dim: sir.Dim2D, Srcs: srcs}
	fe := expectFatal(t, func() { tr.texArgs(tx, tr.def(dest), nil, nil) })
	if !strings.Contains(fe.Msg, "txs") {
		t.Fatalf("message %q does not name the operation", fe.Msg)
	}
}
