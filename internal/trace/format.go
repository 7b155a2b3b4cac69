package trace

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Format selects how events are serialized.
type Format uint8

const (
	// FormatAuto picks a format from the output path.
	FormatAuto Format = iota
	FormatText
	FormatNDJSON
	// FormatChrome writes chrome://tracing (Perfetto) JSON.
	FormatChrome
)

var formatNames = [...]string{
	FormatAuto:   "auto",
	FormatText:   "text",
	FormatNDJSON: "ndjson",
	FormatChrome: "chrome",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// ParseFormat parses a --trace-format value. "json" is accepted for ndjson.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(s)
	switch s {
	case "":
		return FormatAuto, nil
	case "json":
		return FormatNDJSON, nil
	}
	for f, name := range formatNames {
		if s == name {
			return Format(f), nil
		}
	}
	return FormatAuto, fmt.Errorf("invalid trace format %q (expected auto|text|ndjson|chrome)", s)
}

// FormatEvent serializes one event. Chrome events are bare array elements;
// the enclosing document is written by the tracer.
func FormatEvent(ev *Event, format Format) []byte {
	switch format {
	case FormatNDJSON:
		return formatNDJSON(ev)
	case FormatChrome:
		return formatChrome(ev)
	default:
		return formatText(ev)
	}
}

type jsonEvent struct {
	Time     string            `json:"time"`
	Seq      uint64            `json:"seq"`
	Kind     string            `json:"kind"`
	Scope    string            `json:"scope"`
	SpanID   uint64            `json:"span_id"`
	ParentID uint64            `json:"parent_id,omitempty"`
	GID      uint64            `json:"gid,omitempty"`
	Name     string            `json:"name"`
	Detail   string            `json:"detail,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

func formatNDJSON(ev *Event) []byte {
	data, _ := json.Marshal(jsonEvent{
		Time:     ev.Time.Format("2006-01-02T15:04:05.000000Z07:00"),
		Seq:      ev.Seq,
		Kind:     ev.Kind.String(),
		Scope:    ev.Scope.String(),
		SpanID:   ev.SpanID,
		ParentID: ev.ParentID,
		GID:      ev.GID,
		Name:     ev.Name,
		Detail:   ev.Detail,
		Extra:    ev.Extra,
	})
	return append(data, '\n')
}

type chromeEvent struct {
	Name  string            `json:"name"`
	Cat   string            `json:"cat"`
	Ph    string            `json:"ph"`
	Ts    int64             `json:"ts"`
	Pid   int               `json:"pid"`
	Tid   uint64            `json:"tid"`
	Scope string            `json:"s,omitempty"`
	Args  map[string]string `json:"args,omitempty"`
}

// chromePhase maps event kinds to trace-event phases; the rest are
// thread-scoped instants.
var chromePhase = map[Kind]string{KindSpanBegin: "B", KindSpanEnd: "E"}

func formatChrome(ev *Event) []byte {
	c := chromeEvent{
		Name: ev.Name,
		Cat:  ev.Scope.String(),
		Ph:   "i",
		Ts:   ev.Time.UnixMicro(),
		Pid:  1,
		Tid:  ev.GID,
		Args: ev.Extra,
	}
	if ph, ok := chromePhase[ev.Kind]; ok {
		c.Ph = ph
	} else {
		c.Scope = "t"
	}
	if ev.Detail != "" {
		args := maps.Clone(ev.Extra)
		if args == nil {
			args = make(map[string]string, 1)
		}
		args["detail"] = ev.Detail
		c.Args = args
	}
	data, _ := json.Marshal(c)
	return data
}

var textMarks = map[Kind]string{
	KindSpanBegin: "→ ",
	KindSpanEnd:   "← ",
	KindPoint:     "• ",
	KindHeartbeat: "♡ ",
}

// formatText writes "#seq [indent]mark scope:name (detail) {k=v, ...}".
// The sequence number stands in for a clock so output is stable; extras
// are sorted by key.
func formatText(ev *Event) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%06d ", ev.Seq)
	if ev.ParentID > 0 {
		sb.WriteString("  ")
	}
	sb.WriteString(textMarks[ev.Kind])
	sb.WriteString(ev.Scope.String())
	sb.WriteByte(':')
	sb.WriteString(ev.Name)
	if ev.Detail != "" {
		fmt.Fprintf(&sb, " (%s)", ev.Detail)
	}
	if len(ev.Extra) > 0 {
		sb.WriteString(" {")
		for i, k := range slices.Sorted(maps.Keys(ev.Extra)) {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k + "=" + ev.Extra[k])
		}
		sb.WriteByte('}')
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}
