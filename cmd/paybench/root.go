package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "paybench",
		Short:         "Inspect, validate and import compensation spreadsheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newImportCmd())
	return cmd
}

func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		code := exitCode(err)
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(code)
	}
}
