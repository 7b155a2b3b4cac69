package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wavefront/internal/prof"
)

var profiler *prof.Profiler

// startProfiling reads the persistent profiling flags. The profiler is
// stopped by main after the command returns.
func startProfiling(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	if opts.Heap, err = flags.GetString("mem-profile"); err != nil {
		return fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return fmt.Errorf("failed to get runtime-trace flag: %w", err)
	}
	if !opts.Enabled() {
		return nil
	}
	profiler, err = prof.Start(opts)
	if err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}
	return nil
}
