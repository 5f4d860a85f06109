// Command tactus is the reference CLI front-end described in spec.md §6:
// run, validate, test, and evaluate against a single procedure definition
// file, built with github.com/spf13/cobra (grounded on the teacher's own
// indirect spf13/cobra tool dependency).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tactus:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tactus",
		Short:         "Run, validate, and test Tactus procedure definitions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newTestCmd())
	root.AddCommand(newEvaluateCmd())
	return root
}
