package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wavefront/internal/config"
	"wavefront/internal/driver"
	"wavefront/internal/gpu"
	"wavefront/internal/sir"
)

var translateCmd = &cobra.Command{
	Use:   "translate FILE.sirpk",
	Short: "Lower every function of a SIR module to LLVM IR",
	Long: `Lower every function of a SIR module to LLVM IR.

Without -o the IR is written to stdout. When -o names a directory (or ends
with a path separator) each function is written to <dir>/<function>.ll.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	addTranslateFlags(translateCmd)
}

func addTranslateFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("output", "o", "", "output file or directory")
	flags.String("config", "", "path to wavefront.toml (default: search upward)")
	flags.String("gen", "", "hardware generation (gfx6..gfx11)")
	flags.Int("wave-size", 0, "wave size (32|64)")
	flags.Int("jobs", 0, "max parallel functions (0=auto)")
	flags.String("ui", "auto", "progress UI (auto|on|off)")
	flags.Bool("cache", false, "reuse translations from the disk cache")
	flags.Bool("robust", false, "bounds check buffer accesses")
	flags.String("timings-json", "", "write the timing report as JSON to this file")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load(".")
}

// buildRequest merges wavefront.toml with the command-line overrides.
func buildRequest(cmd *cobra.Command, cfg *config.Config) (driver.Request, error) {
	flags := cmd.Flags()
	if flags.Changed("gen") {
		gen, _ := flags.GetString("gen")
		cfg.Target.Gen = gen
		if !flags.Changed("wave-size") {
			cfg.Target.WaveSize = 0
		}
	}
	if flags.Changed("wave-size") {
		cfg.Target.WaveSize, _ = flags.GetInt("wave-size")
	}
	if flags.Changed("jobs") {
		cfg.Translate.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("cache") {
		cfg.Translate.Cache, _ = flags.GetBool("cache")
	}
	if flags.Changed("robust") {
		cfg.Target.RobustBufferAccess, _ = flags.GetBool("robust")
	}

	target, err := cfg.GPUTarget()
	if err != nil {
		return driver.Request{}, err
	}
	req := driver.Request{
		Target: target,
		Robust: cfg.Target.RobustBufferAccess,
		Jobs:   cfg.Translate.Jobs,
	}
	if cfg.Translate.Cache {
		cache, err := driver.OpenDiskCache("wavefront")
		if err != nil {
			return driver.Request{}, fmt.Errorf("failed to open cache: %w", err)
		}
		req.Cache = cache
	}
	return req, nil
}

func runTranslate(cmd *cobra.Command, args []string) (err error) {
	tr, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer func() { tr.close(cmd, err != nil) }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req, err := buildRequest(cmd, cfg)
	if err != nil {
		return err
	}
	req.Progress = tr.sink()
	uiFlag, _ := cmd.Flags().GetString("ui")
	mode, err := readUIMode(uiFlag)
	if err != nil {
		return err
	}

	path := args[0]
	mod, err := sir.ReadModuleFile(path)
	if err != nil {
		return err
	}

	var out *driver.Output
	if shouldUseTUI(mode) && len(mod.Funcs) > 0 {
		title := fmt.Sprintf("translating %s for %s", filepath.Base(path), req.Target.Gen)
		out, err = runTranslateWithUI(cmd.Context(), title, mod, req)
	} else {
		out, err = driver.TranslateModule(cmd.Context(), mod, req)
	}
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if err := writeOutput(cmd.OutOrStdout(), output, out); err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	if timings, _ := cmd.Root().PersistentFlags().GetBool("timings"); timings {
		if err := out.WriteTimings(stderr, path); err != nil {
			return err
		}
	}
	if jsonPath, _ := cmd.Flags().GetString("timings-json"); jsonPath != "" {
		if err := writeTimingsJSON(jsonPath, path, out); err != nil {
			return err
		}
	}
	reportFailures(stderr, out)
	if !quiet(cmd) {
		printSummary(stderr, req.Target, out)
	}
	if n := out.Failed(); n > 0 {
		return fmt.Errorf("%d of %d functions failed", n, len(out.Funcs))
	}
	return nil
}

func writeOutput(stdout io.Writer, output string, out *driver.Output) error {
	if output == "" || output == "-" {
		return out.WriteIR(stdout)
	}
	info, err := os.Stat(output)
	isDir := err == nil && info.IsDir()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if !isDir && !strings.HasSuffix(output, string(filepath.Separator)) {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		if err := out.WriteIR(f); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}

	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}
	for i := range out.Funcs {
		fr := &out.Funcs[i]
		if fr.Err != nil {
			continue
		}
		name := filepath.Join(output, fr.Name+".ll")
		if err := os.WriteFile(name, []byte(fr.IR), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func writeTimingsJSON(dest, input string, out *driver.Output) error {
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := out.WriteTimingsJSON(f, input); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func reportFailures(w io.Writer, out *driver.Output) {
	label := color.New(color.FgRed, color.Bold)
	for i := range out.Funcs {
		fr := &out.Funcs[i]
		if fr.Err == nil {
			continue
		}
		fmt.Fprintf(w, "%s %s: %v\n", label.Sprint("failed"), fr.Name, fr.Err)
	}
}

func printSummary(w io.Writer, target gpu.Target, out *driver.Output) {
	var cached, waterfalls int
	for i := range out.Funcs {
		if out.Funcs[i].Cached {
			cached++
		}
		waterfalls += out.Funcs[i].Waterfalls
	}
	ok := len(out.Funcs) - out.Failed()
	fmt.Fprintf(w, "translated %d/%d functions for %s (%d cached, %d waterfall loops)\n",
		ok, len(out.Funcs), target, cached, waterfalls)
}
