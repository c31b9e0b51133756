package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/runbook/runbook/pkg/plan"
)

// errPipelineFailed signals an ordinary execution failure: the engine is
// healthy, a task failed. Maps to exit code 1.
var errPipelineFailed = errors.New("pipeline failed")

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Execute a pipeline plan",
		Long: `Run executes the tasks of a plan file in order, one at a time.

Tasks that already succeeded in a previous run are skipped, which makes an
aborted run resumable: fix the failing task and run the same plan again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			result, runErr := rt.runner.RunPipeline(ctx, p)
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return fmt.Errorf("encoding result: %w", err)
				}
			}
			if runErr != nil {
				return runErr
			}
			if !result.Passed {
				return errPipelineFailed
			}
			return nil
		},
	}
	return cmd
}
