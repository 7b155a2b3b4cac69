package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"wavefront/internal/version"
)

func TestVersionRender(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	info := version.Info{Version: "1.2.3", GitCommit: "abc123"}
	tests := []struct {
		name  string
		flags versionFlags
		want  []string
		not   []string
	}{
		{"plain", versionFlags{format: "pretty"}, []string{"wavefront 1.2.3: one wave at a time", "gfx10.3", "default gfx9/wave64"}, []string{"commit:"}},
		{"hash", versionFlags{format: "pretty", hash: true}, []string{"commit:  abc123"}, []string{"built:"}},
		{"full", versionFlags{format: "pretty", full: true}, []string{"commit:  abc123", "message: unknown", "built:   unknown"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.flags.render(&buf, info); err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output missing %q:\n%s", w, buf.String())
				}
			}
			for _, w := range tt.not {
				if strings.Contains(buf.String(), w) {
					t.Errorf("output has %q:\n%s", w, buf.String())
				}
			}
		})
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := (versionFlags{format: "JSON", date: true}).render(&buf, version.Info{Version: "0.1.0"}); err != nil {
		t.Fatal(err)
	}
	var r versionReport
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("not JSON: %v\n%s", err, buf.String())
	}
	if r.Tool != "wavefront" || r.BuildDate != "unknown" || r.GitCommit != "" || len(r.Generations) != 7 {
		t.Fatalf("report = %+v", r)
	}

	if err := (versionFlags{format: "yaml"}).render(&buf, version.Info{}); err == nil {
		t.Fatalf("yaml format accepted")
	}
}
