package driver

import "time"

// Stage describes a per-function translation phase.
type Stage string

const (
	// StageQueued is reported for every function before work starts.
	StageQueued Stage = "queued"
	// StageCache is the translation cache lookup.
	StageCache Stage = "cache"
	// StageLower covers validation, lowering and id assignment.
	StageLower Stage = "lower"
	// StagePrint renders the target module as text.
	StagePrint Stage = "print"
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Event reports progress for a function (or for the whole module when Func is empty).
type Event struct {
	Func    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent is called from worker
// goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// SinkFunc adapts a function to ProgressSink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(evt Event) { f(evt) }

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}

type teeSink []ProgressSink

func (t teeSink) OnEvent(evt Event) {
	for _, s := range t {
		s.OnEvent(evt)
	}
}

// Tee forwards every event to each non-nil sink in order.
func Tee(sinks ...ProgressSink) ProgressSink {
	var out teeSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
