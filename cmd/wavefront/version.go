package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"wavefront/internal/gpu"
	"wavefront/internal/version"
)

const versionTagline = "one wave at a time"

// versionReport is what `wavefront version` prints.
type versionReport struct {
	Tool          string   `json:"tool"`
	Version       string   `json:"version"`
	Tagline       string   `json:"tagline"`
	DefaultTarget string   `json:"default_target"`
	Generations   []string `json:"generations"`
	GitCommit     string   `json:"git_commit,omitempty"`
	GitMessage    string   `json:"git_message,omitempty"`
	BuildDate     string   `json:"build_date,omitempty"`
}

type versionFlags struct {
	format string
	hash   bool
	date   bool
	full   bool
}

var versionOpts versionFlags

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the wavefront version and supported targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return versionOpts.render(cmd.OutOrStdout(), version.Current())
	},
}

func init() {
	flags := versionCmd.Flags()
	flags.StringVar(&versionOpts.format, "format", "pretty", "output format (pretty|json)")
	flags.BoolVar(&versionOpts.hash, "hash", false, "include the git commit")
	flags.BoolVar(&versionOpts.date, "date", false, "include the build date")
	flags.BoolVar(&versionOpts.full, "full", false, "include all build metadata")
}

func newVersionReport(info version.Info, f versionFlags) versionReport {
	r := versionReport{
		Tool:          "wavefront",
		Version:       info.Version,
		Tagline:       versionTagline,
		DefaultTarget: gpu.DefaultTarget().String(),
	}
	for _, g := range gpu.AllGens() {
		r.Generations = append(r.Generations, g.String())
	}
	if f.hash || f.full {
		r.GitCommit = orUnknown(info.GitCommit)
	}
	if f.full {
		r.GitMessage = orUnknown(info.GitMessage)
	}
	if f.date || f.full {
		r.BuildDate = orUnknown(info.BuildDate)
	}
	return r
}

func (f versionFlags) render(w io.Writer, info version.Info) error {
	r := newVersionReport(info, f)
	switch strings.ToLower(f.format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "pretty", "":
	default:
		return fmt.Errorf("unsupported format %q (must be pretty or json)", f.format)
	}

	fmt.Fprintf(w, "wavefront %s: %s\n", version.Colored(r.Version), r.Tagline)
	fmt.Fprintf(w, "targets: %s (default %s)\n", strings.Join(r.Generations, " "), r.DefaultTarget)
	for _, kv := range [][2]string{{"commit", r.GitCommit}, {"message", r.GitMessage}, {"built", r.BuildDate}} {
		if kv[1] != "" {
			fmt.Fprintf(w, "%-8s %s\n", kv[0]+":", kv[1])
		}
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
