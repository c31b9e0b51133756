package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runbook/runbook/pkg/plan"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan-file>",
		Short: "Validate a plan file without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if errs := plan.Validate(args[0]); len(errs) > 0 {
				for _, err := range errs {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %v\n", err)
				}
				return errs[0]
			}
			fmt.Printf("%s is valid\n", args[0])
			return nil
		},
	}
	return cmd
}
