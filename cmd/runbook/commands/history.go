package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/runbook/runbook/pkg/engine"
	"github.com/runbook/runbook/pkg/history"
)

func newHistoryCommand() *cobra.Command {
	var (
		taskID string
		runID  string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled execution attempts",
		Long: `History lists attempts from the journal, newest first. Unlike status,
this shows every attempt ever made, retries and skips included.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := LoadRuntimeConfig(configPath)
			if err != nil {
				return engine.NewConfigError("loading configuration", err)
			}
			path := cfg.HistoryPath()
			if path == "" {
				return engine.NewConfigError("the attempt journal is disabled", nil)
			}

			journal, err := history.Open(ctx, path)
			if err != nil {
				return err
			}
			defer journal.Close()

			attempts, err := journal.ListAttempts(ctx, history.Filter{
				TaskID: taskID,
				RunID:  runID,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(attempts)
			}

			if len(attempts) == 0 {
				fmt.Println("no recorded attempts")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tTASK\tATTEMPT\tSTATUS\tEXIT\tDURATION\tRUN")
			for _, a := range attempts {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%.1fs\t%s\n",
					a.StartedAt.Local().Format(time.DateTime),
					a.TaskID, a.Number, a.Status, a.ExitCode,
					a.DurationSeconds, shortID(a.RunID))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&taskID, "task", "", "only attempts for this task id")
	cmd.Flags().StringVar(&runID, "run", "", "only attempts for this run id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows to show, 0 for all")

	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
