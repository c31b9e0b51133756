package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runbook/runbook/pkg/engine"
	"github.com/runbook/runbook/pkg/state"
	"github.com/runbook/runbook/pkg/telemetry"
)

func newResetCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard all recorded task outcomes",
		Long: `Reset deletes the state file. Every task in the next run executes from
scratch, including tasks that already succeeded. Log artifacts and the
attempt journal are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadRuntimeConfig(configPath)
			if err != nil {
				return engine.NewConfigError("loading configuration", err)
			}
			logger, err := telemetry.NewLogger(cfg.Telemetry.Logging)
			if err != nil {
				return engine.NewConfigError("configuring logging", err)
			}

			store, err := state.Open(cfg.StatePath(), logger)
			if err != nil {
				return err
			}

			if !force {
				fmt.Printf("Discard %d recorded outcome(s) in %s? [y/N] ",
					len(store.Tasks()), store.Path())
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Println("aborted")
					return nil
				}
			}

			if err := store.Reset(); err != nil {
				return err
			}
			fmt.Println("state reset")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}
