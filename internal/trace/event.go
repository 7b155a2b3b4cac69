package trace

import "time"

// Kind is the type of a trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	// KindHeartbeat is a periodic liveness signal carrying a status line.
	KindHeartbeat
)

var kindNames = [...]string{
	KindSpanBegin: "begin",
	KindSpanEnd:   "end",
	KindPoint:     "point",
	KindHeartbeat: "heartbeat",
}

func (k Kind) String() string {
	if k > 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Scope is the granularity of an event. Coarser scopes have lower values,
// so a level admits every scope up to its limit.
type Scope uint8

const (
	// ScopeDriver covers a whole module translation.
	ScopeDriver Scope = iota + 1
	// ScopePass covers validate, lower and finalize of one function.
	ScopePass
	ScopeFunction
	// ScopeBlock is one source block.
	ScopeBlock
)

var scopeNames = [...]string{
	ScopeDriver:   "driver",
	ScopePass:     "pass",
	ScopeFunction: "function",
	ScopeBlock:    "block",
}

func (s Scope) String() string {
	if s > 0 && int(s) < len(scopeNames) {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is one trace record. Seq is assigned by the tracer that stores or
// writes the event.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	// GID is the goroutine that emitted the event; workers translate
	// functions concurrently.
	GID    uint64
	Name   string // "translate_module", "fn:main", "lower", "bb3"
	Detail string
	Extra  map[string]string
}
