package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runbook/runbook/pkg/engine"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "runbook",
		Short: "Runbook - Stateful Task Execution Engine",
		Long: `Runbook executes deployment pipelines of named tasks exactly once.

Each task's outcome is recorded durably: re-running a pipeline skips every
task that already succeeded, so an aborted deployment resumes where it
stopped instead of starting over. Task output streams live to the console
and lands in a per-task log artifact.

Supported task kinds:
  - playbook: ansible-playbook runs against an inventory scope
  - shell:    local scripts, or remote over SSH via user@host targets
  - build:    build-tool targets`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newTaskCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newResetCommand())
	rootCmd.AddCommand(newValidateCommand())

	return rootCmd
}

// ExitCode maps an Execute error onto the process exit code: 0 success,
// 1 execution failure, 2 configuration error, 3 state corruption, 4 spawn
// failure, 130 interrupt.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case engine.IsConfig(err):
		return 2
	case engine.IsState(err):
		return 3
	case engine.IsSpawn(err):
		return 4
	case engine.IsCanceled(err):
		return 130
	default:
		return 1
	}
}
