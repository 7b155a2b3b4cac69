package main

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"wavefront/internal/driver"
	"wavefront/internal/trace"
)

// tracing is the trace session of one command, plus the function counts
// its heartbeat reports.
type tracing struct {
	session *trace.Session
	total   atomic.Int64
	done    atomic.Int64
}

// setupTracing reads the --trace* flags, opens a session and attaches its
// tracer to the command context.
func setupTracing(cmd *cobra.Command) (*tracing, error) {
	flags := cmd.Root().PersistentFlags()
	output, err := flags.GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	formatStr, err := flags.GetString("trace-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	heartbeat, err := flags.GetDuration("trace-heartbeat")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-heartbeat flag: %w", err)
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	// --trace alone means phase-level tracing
	if level == trace.LevelOff && output != "" {
		level = trace.LevelPhase
	}
	mode, err := trace.ParseMode(modeStr)
	if err != nil {
		return nil, err
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	t := &tracing{}
	t.session, err = trace.Open(trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: output,
		RingSize:   ringSize,
		Heartbeat:  heartbeat,
		Status:     t.status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	ctx := trace.WithTracer(cmd.Context(), t.session.Tracer)
	cmd.SetContext(ctx)
	return t, nil
}

func (t *tracing) status() string {
	return fmt.Sprintf("%d/%d functions", t.done.Load(), t.total.Load())
}

// sink counts queued and finished functions for the heartbeat.
func (t *tracing) sink() driver.ProgressSink {
	return driver.SinkFunc(func(ev driver.Event) {
		switch ev.Status {
		case driver.StatusQueued:
			t.total.Add(1)
		case driver.StatusDone, driver.StatusError:
			t.done.Add(1)
		}
	})
}

// close writes and closes the session; a failed command dumps the
// failure ring.
func (t *tracing) close(cmd *cobra.Command, failed bool) {
	if t == nil {
		return
	}
	if err := t.session.Close(failed); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
	}
}
