package driver

import (
	"encoding/json"
	"io"

	"wavefront/internal/observ"
)

// slowestShown bounds the per-function lines of a timing report.
const slowestShown = 5

type timingPayload struct {
	Kind     string               `json:"kind"`
	Path     string               `json:"path,omitempty"`
	TotalMS  float64              `json:"total_ms"`
	WorkerMS float64              `json:"worker_ms"`
	Overlap  float64              `json:"overlap,omitempty"`
	Phases   []observ.PhaseReport `json:"phases"`
	Slowest  []observ.FuncReport  `json:"slowest,omitempty"`
}

func (o *Output) timingPayload(path string) timingPayload {
	return timingPayload{
		Kind:     "translate",
		Path:     path,
		TotalMS:  o.Timing.TotalMS,
		WorkerMS: o.Timing.WorkerMS,
		Overlap:  o.Timing.Overlap("translate"),
		Phases:   o.Timing.Phases,
		Slowest:  o.Timing.Slowest(slowestShown),
	}
}

// WriteTimings prints the phase timings followed by the slowest functions.
func (o *Output) WriteTimings(w io.Writer, _ string) error {
	return o.Timing.WriteText(w, "translate", slowestShown)
}

// WriteTimingsJSON writes the same report as one JSON object.
func (o *Output) WriteTimingsJSON(w io.Writer, path string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(o.timingPayload(path))
}
