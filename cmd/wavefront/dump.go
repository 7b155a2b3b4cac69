package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"wavefront/internal/sir"
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE.sirpk",
	Short: "Print a SIR module in readable form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		tr, err := setupTracing(cmd)
		if err != nil {
			return err
		}
		defer func() { tr.close(cmd, err != nil) }()

		mod, err := sir.ReadModuleFile(args[0])
		if err != nil {
			return err
		}
		if err := sir.DumpModule(cmd.OutOrStdout(), mod); err != nil {
			return err
		}
		if validate, _ := cmd.Flags().GetBool("validate"); validate {
			if err := sir.Validate(mod); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
		}
		return nil
	},
}

func init() {
	dumpCmd.Flags().Bool("validate", false, "check the module's structure after printing")
}
