// Package prof wires the runtime profilers to command-line paths.
package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
)

// Options names the output files; empty paths disable a profiler.
type Options struct {
	CPU   string
	Heap  string
	Trace string
}

// Enabled reports whether any profiler is requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Trace != ""
}

// Profiler owns the files of one profiling run.
type Profiler struct {
	opts  Options
	cpu   *os.File
	trace *os.File
	once  sync.Once
	err   error
}

// Start enables the CPU profiler and the runtime tracer as requested. The
// heap profile is written by Stop.
func Start(opts Options) (*Profiler, error) {
	p := &Profiler{opts: opts}
	if opts.CPU != "" {
		f, err := os.Create(opts.CPU)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		p.cpu = f
	}
	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err == nil {
			if err = trace.Start(f); err != nil {
				_ = f.Close()
			}
		}
		if err != nil {
			p.stopCPU()
			return nil, fmt.Errorf("runtime trace: %w", err)
		}
		p.trace = f
	}
	return p, nil
}

func (p *Profiler) stopCPU() error {
	if p.cpu == nil {
		return nil
	}
	pprof.StopCPUProfile()
	err := p.cpu.Close()
	p.cpu = nil
	return err
}

// Stop ends every profiler and writes the heap profile. Later calls return
// the first result.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}
	p.once.Do(func() {
		var errs []error
		if p.trace != nil {
			trace.Stop()
			errs = append(errs, p.trace.Close())
			p.trace = nil
		}
		errs = append(errs, p.stopCPU())
		if p.opts.Heap != "" {
			errs = append(errs, writeHeap(p.opts.Heap))
		}
		p.err = errors.Join(errs...)
	})
	return p.err
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("heap profile: %w", err)
	}
	return f.Close()
}
