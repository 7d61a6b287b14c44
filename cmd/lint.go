// File: cmd/lint.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/flightcheck/internal/scenario"
)

// newLintCmd creates the `lint` command. It parses and validates scenario
// files without launching a browser.
func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint [scenario files or directories...]",
		Short: "Parses and validates scenario files without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := scenario.LoadAll(args)
			if err != nil {
				return &ExitError{Code: ExitEnvErr, Err: err}
			}
			for _, sc := range scenarios {
				fmt.Fprintf(cmd.OutOrStdout(), "ok: %s (%d steps) [%s]\n", sc.Name, len(sc.Steps), sc.SourcePath)
			}
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newLintCmd())
}
