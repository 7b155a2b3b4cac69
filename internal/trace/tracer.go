package trace

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Tracer receives trace events. Implementations are goroutine-safe.
type Tracer interface {
	Emit(ev *Event)
	Flush() error
	Close() error
	Level() Level
	// Enabled reports Level() > LevelOff.
	Enabled() bool
}

// StorageMode determines how events are stored.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // written as emitted
	ModeRing                          // kept in memory, written at Close
	ModeBoth
)

func (m StorageMode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeRing:
		return "ring"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to StorageMode.
func ParseMode(s string) (StorageMode, error) {
	switch strings.ToLower(s) {
	case "stream":
		return ModeStream, nil
	case "ring":
		return ModeRing, nil
	case "both":
		return ModeBoth, nil
	default:
		return ModeRing, fmt.Errorf("invalid storage mode: %q (expected: stream|ring|both)", s)
	}
}

// Config holds tracer configuration.
type Config struct {
	Level  Level
	Mode   StorageMode
	Format Format // FormatAuto picks from OutputPath
	// Output overrides OutputPath.
	Output io.Writer
	// OutputPath is a file, or "-" / "" for stderr.
	OutputPath string
	RingSize   int           // default 4096
	Heartbeat  time.Duration // 0 disables
	// Status, when set, is reported by every heartbeat.
	Status func() string
}

// Session owns the tracers built from a Config. At LevelError nothing is
// written unless the session closes after a failure; the ring then
// holds the function-level events leading up to it.
type Session struct {
	Tracer Tracer

	ring      *RingTracer
	out       io.Writer
	format    Format
	dumpRing  bool
	heartbeat *Heartbeat
}

// Open builds the tracers for cfg. A LevelOff config yields a session
// around Nop.
func Open(cfg Config) (*Session, error) {
	if cfg.Level == LevelOff {
		return &Session{Tracer: Nop}, nil
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = 4096
	}
	format := cfg.Format
	if format == FormatAuto {
		format = formatForPath(cfg.OutputPath)
	}

	s := &Session{format: format}
	if cfg.Level == LevelError {
		s.ring = NewRingTracer(cfg.RingSize, LevelDetail)
		s.Tracer = s.ring
		if err := s.openRingOutput(cfg); err != nil {
			return nil, err
		}
	} else {
		switch cfg.Mode {
		case ModeStream, ModeBoth:
			w, err := openOutput(cfg)
			if err != nil {
				return nil, err
			}
			stream := NewStreamTracer(w, cfg.Level, format)
			s.Tracer = stream
			if cfg.Mode == ModeBoth {
				s.ring = NewRingTracer(cfg.RingSize, cfg.Level)
				s.Tracer = NewMultiTracer(cfg.Level, stream, s.ring)
			}
		case ModeRing:
			s.ring = NewRingTracer(cfg.RingSize, cfg.Level)
			s.Tracer = s.ring
			s.dumpRing = true
			if err := s.openRingOutput(cfg); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
		}
	}
	s.heartbeat = StartHeartbeat(s.Tracer, cfg.Heartbeat, cfg.Status)
	return s, nil
}

func (s *Session) openRingOutput(cfg Config) error {
	w, err := openOutput(cfg)
	if err != nil {
		return err
	}
	s.out = w
	return nil
}

// Ring returns the in-memory ring, or nil without one.
func (s *Session) Ring() *RingTracer { return s.ring }

// Close stops the heartbeat and closes every output. A ring-only session
// writes its ring first; at LevelError it does so only when failed is set.
func (s *Session) Close(failed bool) error {
	if s == nil || s.Tracer == nil {
		return nil
	}
	s.heartbeat.Stop()
	var firstErr error
	if s.ring != nil && s.out != nil && (s.dumpRing || failed) {
		firstErr = s.ring.Dump(s.out, s.format)
	}
	if err := s.Tracer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if c, ok := s.out.(io.Closer); ok && s.out != os.Stderr {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func formatForPath(path string) Format {
	switch {
	case path == "" || path == "-":
		return FormatText
	case strings.HasSuffix(path, ".ndjson"):
		return FormatNDJSON
	case strings.HasSuffix(path, ".json"):
		return FormatChrome
	}
	return FormatText
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return os.Stderr, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}
