package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"wavefront/internal/abi"
	"wavefront/internal/gpu"
	"wavefront/internal/lower"
	"wavefront/internal/sir"
)

func addFunc(name string) *sir.Func {
	b := sir.NewBuilder(name, sir.StageCompute)
	x := b.ConstU32(3)
	b.ALU(sir.OpIAdd, 32, 1, sir.Use(x), sir.Use(x))
	return b.Func()
}

func badFunc(name string) *sir.Func {
	b := sir.NewBuilder(name, sir.StageCompute)
	x := b.ConstU32(1)
	b.ALU(sir.Op(sir.NumOps+7), 32, 1, sir.Use(x))
	return b.Func()
}

func testModule(n int, bad ...int) *sir.Module {
	mod := &sir.Module{Name: "test"}
	isBad := make(map[int]bool, len(bad))
	for _, i := range bad {
		isBad[i] = true
	}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("f%d", i)
		if isBad[i] {
			mod.Funcs = append(mod.Funcs, badFunc(name))
		} else {
			mod.Funcs = append(mod.Funcs, addFunc(name))
		}
	}
	return mod
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) final() map[string]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Event)
	for _, ev := range s.events {
		if ev.Status == StatusDone || ev.Status == StatusError {
			out[ev.Func] = ev
		}
	}
	return out
}

func TestTranslateModuleKeepsOrder(t *testing.T) {
	for _, jobs := range []int{1, 3, 0} {
		t.Run(fmt.Sprintf("jobs_%d", jobs), func(t *testing.T) {
			mod := testModule(8)
			out, err := TranslateModule(context.Background(), mod, Request{Target: gpu.DefaultTarget(), Jobs: jobs})
			if err != nil {
				t.Fatalf("TranslateModule: %v", err)
			}
			if len(out.Funcs) != len(mod.Funcs) {
				t.Fatalf("%d results for %d functions", len(out.Funcs), len(mod.Funcs))
			}
			for i, fr := range out.Funcs {
				if fr.Name != mod.Funcs[i].Name {
					t.Fatalf("result %d is %q, want %q", i, fr.Name, mod.Funcs[i].Name)
				}
				if fr.Err != nil || fr.Result == nil {
					t.Fatalf("%s: err %v, result %v", fr.Name, fr.Err, fr.Result)
				}
				if !strings.Contains(fr.IR, "@"+fr.Name) {
					t.Fatalf("%s: IR does not define the function:\n%s", fr.Name, fr.IR)
				}
			}
			if out.Err() != nil {
				t.Fatalf("Err() = %v", out.Err())
			}
		})
	}
}

func TestTranslateModuleIsolatesFailures(t *testing.T) {
	mod := testModule(6, 1, 4)
	sink := &recordingSink{}
	out, err := TranslateModule(context.Background(), mod, Request{Target: gpu.DefaultTarget(), Jobs: 2, Progress: sink})
	if err != nil {
		t.Fatalf("TranslateModule: %v", err)
	}
	if out.Failed() != 2 {
		t.Fatalf("Failed() = %d, want 2", out.Failed())
	}
	for i, fr := range out.Funcs {
		failed := i == 1 || i == 4
		if failed != (fr.Err != nil) {
			t.Fatalf("%s: err = %v", fr.Name, fr.Err)
		}
		if failed && !errors.Is(fr.Err, lower.ErrFatal) {
			t.Fatalf("%s: error %v does not wrap ErrFatal", fr.Name, fr.Err)
		}
	}
	if !errors.Is(out.Err(), lower.ErrFatal) {
		t.Fatalf("joined error %v does not wrap ErrFatal", out.Err())
	}

	final := sink.final()
	if len(final) != len(mod.Funcs) {
		t.Fatalf("final events for %d functions, want %d", len(final), len(mod.Funcs))
	}
	for i, fn := range mod.Funcs {
		want := StatusDone
		if i == 1 || i == 4 {
			want = StatusError
		}
		if got := final[fn.Name].Status; got != want {
			t.Fatalf("%s: final status %s, want %s", fn.Name, got, want)
		}
	}

	var buf bytes.Buffer
	if err := out.WriteIR(&buf); err != nil {
		t.Fatalf("WriteIR: %v", err)
	}
	if strings.Contains(buf.String(), "; function f1\n") || !strings.Contains(buf.String(), "; function f5\n") {
		t.Fatalf("WriteIR output:\n%s", buf.String())
	}
}

// crashingABI panics while declaring the arguments of fragment shaders.
type crashingABI struct{ abi.ABI }

func (a crashingABI) DeclareArgs(args *abi.Args, stage sir.Stage) {
	if stage == sir.StageFragment {
		panic("descriptor layout missing")
	}
	a.ABI.DeclareArgs(args, stage)
}

func TestTranslateModuleRecoversPanics(t *testing.T) {
	mod := testModule(4)
	b := sir.NewBuilder("frag", sir.StageFragment)
	b.ConstF32(1)
	mod.Funcs[2] = b.Func()

	sink := &recordingSink{}
	req := Request{Target: gpu.DefaultTarget(), ABI: crashingABI{abi.NewDefault(false)}, Jobs: 2, Progress: sink}
	out, err := TranslateModule(context.Background(), mod, req)
	if err != nil {
		t.Fatalf("TranslateModule: %v", err)
	}
	for i, fr := range out.Funcs {
		if i == 2 {
			if fr.Err == nil || !strings.Contains(fr.Err.Error(), "descriptor layout missing") {
				t.Fatalf("%s: err = %v", fr.Name, fr.Err)
			}
			continue
		}
		if fr.Err != nil || fr.IR == "" {
			t.Fatalf("%s: sibling did not finish: %v", fr.Name, fr.Err)
		}
	}
	if got := sink.final()["frag"].Status; got != StatusError {
		t.Fatalf("frag final status %s, want %s", got, StatusError)
	}
	failed := 0
	for _, f := range out.Timing.Funcs {
		if f.Failed {
			failed++
			if f.Name != "frag" {
				t.Fatalf("%s timed as failed", f.Name)
			}
		}
	}
	if failed != 1 || len(out.Timing.Funcs) != 4 {
		t.Fatalf("worker times %+v", out.Timing.Funcs)
	}
}

func TestTranslateModuleRejects(t *testing.T) {
	bad := gpu.DefaultTarget()
	bad.WaveSize = 32
	dup := &sir.Module{Funcs: []*sir.Func{addFunc("a"), addFunc("a")}}

	tests := []struct {
		name   string
		mod    *sir.Module
		target gpu.Target
		want   string
	}{
		{"nil_module", nil, gpu.DefaultTarget(), "nil module"},
		{"invalid_target", testModule(1), bad, "invalid target"},
		{"duplicate", dup, gpu.DefaultTarget(), "duplicate function"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TranslateModule(context.Background(), tt.mod, Request{Target: tt.target})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestTranslateModuleCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TranslateModule(ctx, testModule(4), Request{Target: gpu.DefaultTarget(), Jobs: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestTranslateModuleCache(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDiskCacheAt: %v", err)
	}
	mod := testModule(3, 2)
	req := Request{Target: gpu.DefaultTarget(), Cache: cache}

	first, err := TranslateModule(context.Background(), mod, req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := TranslateModule(context.Background(), mod, req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range mod.Funcs {
		a, b := first.Funcs[i], second.Funcs[i]
		if a.Cached {
			t.Fatalf("%s: first run hit the cache", a.Name)
		}
		if a.Err != nil {
			if b.Cached || b.Err == nil {
				t.Fatalf("%s: failed translation was cached", b.Name)
			}
			continue
		}
		if !b.Cached || b.Result != nil {
			t.Fatalf("%s: second run cached=%v result=%v", b.Name, b.Cached, b.Result)
		}
		if a.IR != b.IR || a.Accesses != b.Accesses || a.Waterfalls != b.Waterfalls {
			t.Fatalf("%s: cached output differs", b.Name)
		}
	}

	other := req
	other.Target.Gen = gpu.GFX8
	third, err := TranslateModule(context.Background(), mod, other)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third.Funcs[0].Cached {
		t.Fatalf("cache hit across targets")
	}

	if err := cache.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	fourth, err := TranslateModule(context.Background(), mod, req)
	if err != nil {
		t.Fatalf("fourth run: %v", err)
	}
	if fourth.Funcs[0].Cached {
		t.Fatalf("cache hit after DropAll")
	}
}

func TestWriteTimings(t *testing.T) {
	out, err := TranslateModule(context.Background(), testModule(7), Request{Target: gpu.DefaultTarget()})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := out.WriteTimings(&buf, "m.sirpk"); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	for _, want := range []string{"timings (translate)", "validate", "translate"} {
		if !strings.Contains(text, want) {
			t.Fatalf("timings missing %q:\n%s", want, text)
		}
	}
	if n := strings.Count(text, "  fn "); n != slowestShown {
		t.Fatalf("%d function lines, want %d", n, slowestShown)
	}
	if !strings.Contains(text, "// 7 funcs") {
		t.Fatalf("worker total missing:\n%s", text)
	}
	if len(out.Timing.Funcs) != 7 {
		t.Fatalf("%d worker times recorded, want 7", len(out.Timing.Funcs))
	}
	for i := 1; i < len(out.Timing.Funcs); i++ {
		if out.Timing.Funcs[i].MS > out.Timing.Funcs[i-1].MS {
			t.Fatalf("worker times not slowest first: %+v", out.Timing.Funcs)
		}
	}

	buf.Reset()
	if err := out.WriteTimingsJSON(&buf, "m.sirpk"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"path": "m.sirpk"`) || !strings.Contains(buf.String(), `"worker_ms"`) {
		t.Fatalf("json timings:\n%s", buf.String())
	}
}
