// Package driver translates whole SIR modules, one worker per function.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"wavefront/internal/abi"
	"wavefront/internal/gpu"
	"wavefront/internal/lower"
	"wavefront/internal/observ"
	"wavefront/internal/sir"
	"wavefront/internal/trace"
)

// Request configures a module translation.
type Request struct {
	Target gpu.Target
	// ABI is shared by every worker; nil selects abi.NewDefault(Robust).
	ABI    abi.ABI
	Robust bool
	// Jobs limits concurrent functions; <= 0 uses GOMAXPROCS.
	Jobs     int
	Progress ProgressSink
	// Cache, when set, skips functions whose digest was translated before.
	Cache *DiskCache
}

// FuncResult is the outcome of one function.
type FuncResult struct {
	Name string
	// Result is nil when the function failed or came from the cache.
	Result *lower.Result
	// IR is the printed target module.
	IR         string
	Waterfalls int
	Accesses   int
	Cached     bool
	Err        error
	Elapsed    time.Duration
}

// Output holds per-function results in module order.
type Output struct {
	Funcs  []FuncResult
	Timing observ.Report
}

// Err joins the errors of every failed function.
func (o *Output) Err() error {
	if o == nil {
		return nil
	}
	var errs []error
	for i := range o.Funcs {
		if o.Funcs[i].Err != nil {
			errs = append(errs, o.Funcs[i].Err)
		}
	}
	return errors.Join(errs...)
}

// Failed counts failed functions.
func (o *Output) Failed() int {
	n := 0
	for i := range o.Funcs {
		if o.Funcs[i].Err != nil {
			n++
		}
	}
	return n
}

// WriteIR writes the target modules of all successful functions.
func (o *Output) WriteIR(w io.Writer) error {
	for i := range o.Funcs {
		fr := &o.Funcs[i]
		if fr.Err != nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "; function %s\n%s\n", fr.Name, fr.IR); err != nil {
			return err
		}
	}
	return nil
}

// TranslateModule translates every function of mod concurrently. A
// function that fails records its error in its FuncResult without
// stopping the others; only context cancellation aborts the module.
func TranslateModule(ctx context.Context, mod *sir.Module, req Request) (*Output, error) {
	if mod == nil {
		return nil, errors.New("driver: nil module")
	}
	if err := req.Target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid target: %w", err)
	}
	if req.ABI == nil {
		req.ABI = abi.NewDefault(req.Robust)
	}

	span, ctx := trace.Start(ctx, trace.ScopeDriver, "translate_module")
	span.WithExtra("module", mod.Name).WithExtra("funcs", strconv.Itoa(len(mod.Funcs)))
	defer span.End("")

	timer := observ.NewTimer()
	out := &Output{Funcs: make([]FuncResult, len(mod.Funcs))}
	if len(mod.Funcs) == 0 {
		out.Timing = timer.Report()
		return out, nil
	}

	idx := timer.Begin("validate")
	names := make(map[string]bool, len(mod.Funcs))
	for i, fn := range mod.Funcs {
		if fn == nil {
			timer.End(idx, "")
			return nil, fmt.Errorf("driver: function %d is nil", i)
		}
		if names[fn.Name] {
			timer.End(idx, "")
			return nil, fmt.Errorf("driver: duplicate function %q", fn.Name)
		}
		names[fn.Name] = true
		out.Funcs[i].Name = fn.Name
		emit(req.Progress, Event{Func: fn.Name, Stage: StageQueued, Status: StatusQueued})
	}
	timer.End(idx, strconv.Itoa(len(mod.Funcs))+" funcs")

	jobs := req.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	idx = timer.Begin("translate")
	// each worker writes only its own slot
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(mod.Funcs)))
	for i, fn := range mod.Funcs {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			fr := translateIsolated(gctx, fn, &req)
			timer.Func(observ.FuncTime{Name: fr.Name, Dur: fr.Elapsed, Cached: fr.Cached, Failed: fr.Err != nil})
			out.Funcs[i] = fr
			return nil
		})
	}
	err := g.Wait()
	timer.End(idx, fmt.Sprintf("%d failed", out.Failed()))
	out.Timing = timer.Report()
	if err != nil {
		return nil, err
	}
	return out, nil
}

// translateIsolated turns a panic escaping one function into that
// function's error so its siblings still finish.
func translateIsolated(ctx context.Context, fn *sir.Func, req *Request) (fr FuncResult) {
	start := time.Now()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		fr = FuncResult{Name: fn.Name, Err: fmt.Errorf("%s: internal error: %v", fn.Name, r), Elapsed: time.Since(start)}
		emit(req.Progress, Event{Func: fn.Name, Stage: StageLower, Status: StatusError, Err: fr.Err, Elapsed: fr.Elapsed})
	}()
	return translateFunc(ctx, fn, req)
}

func translateFunc(ctx context.Context, fn *sir.Func, req *Request) FuncResult {
	start := time.Now()
	span, ctx := trace.Start(ctx, trace.ScopeFunction, "fn:"+fn.Name)

	fr := FuncResult{Name: fn.Name}
	finish := func() FuncResult {
		fr.Elapsed = time.Since(start)
		stage, status, detail := StagePrint, StatusDone, ""
		if fr.Err != nil {
			stage, status, detail = StageLower, StatusError, "failed"
		} else if fr.Cached {
			stage, detail = StageCache, "cached"
		}
		span.End(detail)
		emit(req.Progress, Event{Func: fn.Name, Stage: stage, Status: status, Err: fr.Err, Elapsed: fr.Elapsed})
		return fr
	}

	var key Digest
	if req.Cache != nil {
		emit(req.Progress, Event{Func: fn.Name, Stage: StageCache, Status: StatusWorking})
		var err error
		key, err = FuncDigest(fn, req.Target, req.ABI.RobustBufferAccess())
		if err == nil {
			var payload CachePayload
			if ok, _ := req.Cache.Get(key, &payload); ok {
				fr.IR = payload.IR
				fr.Waterfalls = payload.Waterfalls
				fr.Accesses = payload.Accesses
				fr.Cached = true
				return finish()
			}
		}
	}

	emit(req.Progress, Event{Func: fn.Name, Stage: StageLower, Status: StatusWorking})
	res, err := lower.Translate(ctx, fn, lower.Options{Target: req.Target, ABI: req.ABI})
	if err != nil {
		fr.Err = err
		return finish()
	}
	fr.Result = res
	fr.Waterfalls = res.Waterfalls
	fr.Accesses = len(res.Accesses)

	emit(req.Progress, Event{Func: fn.Name, Stage: StagePrint, Status: StatusWorking})
	fr.IR = res.Module.String()

	if req.Cache != nil && !key.IsZero() {
		payload := CachePayload{
			Func:       fn.Name,
			Target:     req.Target.String(),
			IR:         fr.IR,
			Waterfalls: fr.Waterfalls,
			Accesses:   fr.Accesses,
		}
		if err := req.Cache.Put(key, &payload); err != nil {
			trace.Point(trace.FromContext(ctx), trace.ScopeFunction, "cache_put", span.ID(), err.Error())
		}
	}
	return finish()
}
