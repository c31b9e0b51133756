package commands

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/runbook/runbook/pkg/engine"
)

func newTaskCommand() *cobra.Command {
	var (
		kind      string
		target    string
		taskArgs  []string
		required  bool
		timeout   int
		onFailure string
		retries   int
	)

	cmd := &cobra.Command{
		Use:   "task <id> <path>",
		Short: "Execute a single task outside a plan",
		Long: `Task runs one task by itself, with the same semantics as a plan run:
a prior recorded success is skipped, the outcome is recorded durably, and
output lands in the task's log artifact.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			task := engine.Descriptor{
				ID:             args[0],
				Kind:           engine.TaskKind(kind),
				Target:         target,
				Path:           args[1],
				Args:           taskArgs,
				Required:       required,
				TimeoutSeconds: timeout,
				OnFailure:      engine.FailureMode(onFailure),
				Retries:        retries,
			}
			if err := task.Validate(); err != nil {
				return err
			}

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			out, _, runErr := rt.runner.Run(ctx, task)
			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.Encode(out) //nolint:errcheck
			}
			if runErr != nil {
				return runErr
			}
			if out.Status == engine.StatusFailed {
				return errPipelineFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "shell", "task kind (playbook, shell, build)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "target scope or user@host for remote shell")
	cmd.Flags().StringArrayVarP(&taskArgs, "arg", "a", nil, "argument passed to the task (repeatable)")
	cmd.Flags().BoolVar(&required, "required", true, "whether failure is an execution failure")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "wall-clock bound in seconds, 0 for unbounded")
	cmd.Flags().StringVar(&onFailure, "on-failure", "fail", "failure policy (fail, continue, retry)")
	cmd.Flags().IntVar(&retries, "retries", 0, "retry bound for on-failure=retry")

	return cmd
}
