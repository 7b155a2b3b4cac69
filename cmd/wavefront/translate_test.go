package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"wavefront/internal/config"
	"wavefront/internal/driver"
	"wavefront/internal/gpu"
	"wavefront/internal/sir"
)

func newTranslateCmd(t *testing.T, flags map[string]string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "translate"}
	addTranslateFlags(cmd)
	for k, v := range flags {
		if err := cmd.Flags().Set(k, v); err != nil {
			t.Fatalf("set --%s: %v", k, err)
		}
	}
	return cmd
}

func TestBuildRequestOverrides(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.Config
		flags map[string]string
		want  gpu.Target
		jobs  int
	}{
		{
			name: "config_only",
			cfg:  config.Config{Target: config.TargetConfig{Gen: "gfx8"}, Translate: config.TranslateConfig{Jobs: 2}},
			want: gpu.Target{Gen: gpu.GFX8, WaveSize: 64, BackendMajor: 15},
			jobs: 2,
		},
		{
			name:  "gen_flag_resets_wave_size",
			cfg:   config.Config{Target: config.TargetConfig{Gen: "gfx9", WaveSize: 64}},
			flags: map[string]string{"gen": "gfx11"},
			want:  gpu.Target{Gen: gpu.GFX11, WaveSize: 32, BackendMajor: 15},
		},
		{
			name:  "explicit_wave_size",
			flags: map[string]string{"gen": "gfx10.3", "wave-size": "64", "jobs": "5"},
			want:  gpu.Target{Gen: gpu.GFX10_3, WaveSize: 64, BackendMajor: 15},
			jobs:  5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			req, err := buildRequest(newTranslateCmd(t, tt.flags), &cfg)
			if err != nil {
				t.Fatalf("buildRequest: %v", err)
			}
			if req.Target != tt.want || req.Jobs != tt.jobs {
				t.Fatalf("request = %s jobs %d, want %s jobs %d", req.Target, req.Jobs, tt.want, tt.jobs)
			}
		})
	}
}

func TestBuildRequestRejectsWave32OnGFX9(t *testing.T) {
	cfg := config.Config{}
	_, err := buildRequest(newTranslateCmd(t, map[string]string{"wave-size": "32"}), &cfg)
	if err == nil || !strings.Contains(err.Error(), "wave32") {
		t.Fatalf("error = %v", err)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiAuto, "AUTO": uiAuto, " on ": uiOn, "off": uiOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %d, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Errorf("readUIMode accepted an invalid value")
	}
	if !shouldUseTUI(uiOn) || shouldUseTUI(uiOff) {
		t.Errorf("explicit modes ignored")
	}
}

func translatedOutput(t *testing.T) *driver.Output {
	t.Helper()
	mod := &sir.Module{Name: "m"}
	for _, name := range []string{"vs", "cs"} {
		b := sir.NewBuilder(name, sir.StageCompute)
		x := b.ConstU32(1)
		b.ALU(sir.OpIAdd, 32, 1, sir.Use(x), sir.Use(x))
		mod.Funcs = append(mod.Funcs, b.Func())
	}
	out, err := driver.TranslateModule(context.Background(), mod, driver.Request{Target: gpu.DefaultTarget()})
	if err != nil {
		t.Fatalf("TranslateModule: %v", err)
	}
	return out
}

func TestWriteOutput(t *testing.T) {
	out := translatedOutput(t)

	var stdout bytes.Buffer
	if err := writeOutput(&stdout, "", out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "; function vs") || !strings.Contains(stdout.String(), "; function cs") {
		t.Fatalf("stdout output:\n%s", stdout.String())
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "all.ll")
	if err := writeOutput(nil, file, out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(file)
	if err != nil || !bytes.Equal(data, stdout.Bytes()) {
		t.Fatalf("file output differs from stdout output (err %v)", err)
	}

	split := filepath.Join(dir, "split") + string(filepath.Separator)
	if err := writeOutput(nil, split, out); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"vs", "cs"} {
		data, err := os.ReadFile(filepath.Join(split, name+".ll"))
		if err != nil {
			t.Fatalf("per-function file: %v", err)
		}
		if !strings.Contains(string(data), "@"+name) {
			t.Fatalf("%s.ll does not define @%s", name, name)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, gpu.DefaultTarget(), translatedOutput(t))
	if !strings.HasPrefix(buf.String(), "translated 2/2 functions for gfx9/wave64") {
		t.Fatalf("summary = %q", buf.String())
	}
}
