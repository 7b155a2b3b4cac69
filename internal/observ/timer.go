// Package observ records how long a module translation spends in each
// driver phase and how long every function occupied a worker.
package observ

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// Phase is one sequential step of a module translation.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// FuncTime is the worker time of one function.
type FuncTime struct {
	Name   string
	Dur    time.Duration
	Cached bool
	Failed bool
}

// Timer tracks phases on the driver goroutine. Func may be called from
// workers concurrently; Begin and End may not.
type Timer struct {
	phases []Phase

	mu    sync.Mutex
	funcs []FuncTime
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer { return &Timer{phases: make([]Phase, 0, 4)} }

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Func records the worker time of one function.
func (t *Timer) Func(ft FuncTime) {
	t.mu.Lock()
	t.funcs = append(t.funcs, ft)
	t.mu.Unlock()
}

// PhaseReport is the serialized form of a phase.
type PhaseReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Note       string  `json:"note,omitempty"`
}

// FuncReport is the serialized form of a function's worker time.
type FuncReport struct {
	Name   string  `json:"name"`
	MS     float64 `json:"ms"`
	Cached bool    `json:"cached,omitempty"`
	Failed bool    `json:"failed,omitempty"`
}

// Report aggregates a timer. Funcs is ordered slowest first.
type Report struct {
	TotalMS  float64       `json:"total_ms"`
	WorkerMS float64       `json:"worker_ms,omitempty"`
	Phases   []PhaseReport `json:"phases"`
	Funcs    []FuncReport  `json:"funcs,omitempty"`
}

// Report snapshots the phases and function times in milliseconds.
func (t *Timer) Report() Report {
	t.mu.Lock()
	funcs := append([]FuncTime(nil), t.funcs...)
	t.mu.Unlock()
	if len(t.phases) == 0 && len(funcs) == 0 {
		return Report{}
	}

	var r Report
	var total time.Duration
	for _, p := range t.phases {
		total += p.Dur
		r.Phases = append(r.Phases, PhaseReport{Name: p.Name, DurationMS: Millis(p.Dur), Note: p.Note})
	}
	r.TotalMS = Millis(total)

	// ties keep the order the workers finished in
	sort.SliceStable(funcs, func(i, j int) bool { return funcs[i].Dur > funcs[j].Dur })
	var work time.Duration
	for _, f := range funcs {
		work += f.Dur
		r.Funcs = append(r.Funcs, FuncReport{Name: f.Name, MS: Millis(f.Dur), Cached: f.Cached, Failed: f.Failed})
	}
	r.WorkerMS = Millis(work)
	return r
}

// Slowest returns at most n functions, slowest first.
func (r Report) Slowest(n int) []FuncReport {
	if n < len(r.Funcs) {
		return r.Funcs[:n]
	}
	return r.Funcs
}

// Overlap is the summed worker time over the wall time of the named
// phase: 1 for serial work, up to the worker count when every worker
// stayed busy. It is zero when the phase is missing or took no time.
func (r Report) Overlap(phase string) float64 {
	for _, p := range r.Phases {
		if p.Name == phase && p.DurationMS > 0 {
			return r.WorkerMS / p.DurationMS
		}
	}
	return 0
}

// WriteText prints the phases, the worker total and the n slowest
// functions, one per line.
func (r Report) WriteText(w io.Writer, kind string, n int) error {
	if _, err := fmt.Fprintf(w, "timings (%s): total %.2f ms\n", kind, r.TotalMS); err != nil {
		return err
	}
	for _, p := range r.Phases {
		line := fmt.Sprintf("  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			line += "  // " + p.Note
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if len(r.Funcs) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "  %-20s %7.2f ms  // %d funcs\n", "workers", r.WorkerMS, len(r.Funcs)); err != nil {
		return err
	}
	for _, f := range r.Slowest(n) {
		note := ""
		switch {
		case f.Failed:
			note = "  // failed"
		case f.Cached:
			note = "  // cached"
		}
		if _, err := fmt.Fprintf(w, "  fn %-17s %7.2f ms%s\n", f.Name, f.MS, note); err != nil {
			return err
		}
	}
	return nil
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
