package trace

import (
	"io"
	"os"
	"sync"
)

// StreamTracer writes every event as it is emitted. Write errors are
// dropped; tracing never fails a translation.
type StreamTracer struct {
	mu     sync.Mutex
	w      io.Writer
	level  Level
	format Format
	// wrote is set after the first Chrome array element.
	wrote bool
}

// NewStreamTracer creates a StreamTracer. The Chrome format opens its
// event array immediately.
func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatChrome {
		_, _ = io.WriteString(w, "{\"traceEvents\":[\n")
	}
	return &StreamTracer{w: w, level: level, format: format}
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	ev.Seq = NextSeq()
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.format == FormatChrome {
		if t.wrote {
			_, _ = io.WriteString(t.w, ",\n")
		}
		t.wrote = true
	}
	_, _ = t.w.Write(data)
}

// Flush flushes writers that buffer.
func (t *StreamTracer) Flush() error {
	if flusher, ok := t.w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close terminates a Chrome array and closes the writer unless it is a
// standard stream.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if t.format == FormatChrome {
		_, _ = io.WriteString(t.w, "\n]}\n")
	}
	t.mu.Unlock()

	_ = t.Flush()
	if t.w == os.Stderr || t.w == os.Stdout {
		return nil
	}
	if closer, ok := t.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level { return t.level }

func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }
