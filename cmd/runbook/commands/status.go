package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/runbook/runbook/pkg/engine"
	"github.com/runbook/runbook/pkg/state"
	"github.com/runbook/runbook/pkg/telemetry"
)

func newStatusCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recorded task outcomes",
		Long: `Status lists every task the state store knows about, with its last
recorded outcome. With --watch it keeps printing as a concurrent run
updates the state file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := LoadRuntimeConfig(configPath)
			if err != nil {
				return engine.NewConfigError("loading configuration", err)
			}
			logger, err := telemetry.NewLogger(cfg.Telemetry.Logging)
			if err != nil {
				return engine.NewConfigError("configuring logging", err)
			}

			printOnce := func() error {
				store, err := state.Open(cfg.StatePath(), logger)
				if err != nil {
					return err
				}
				return printStatus(store.Tasks())
			}

			if err := printOnce(); err != nil {
				return err
			}
			if !watch {
				return nil
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("creating watcher: %w", err)
			}
			defer watcher.Close()

			// Watch the directory: the store replaces the file by rename, so
			// watching the file itself would lose the handle on every write.
			dir := filepath.Dir(cfg.StatePath())
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating state directory: %w", err)
			}
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Base(event.Name) != filepath.Base(cfg.StatePath()) {
						continue
					}
					if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
						continue
					}
					fmt.Println()
					if err := printOnce(); err != nil {
						return err
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Warn().Err(err).Msg("watch error")
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep printing as the state changes")
	return cmd
}

func printStatus(tasks map[string]engine.Outcome) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	}

	if len(tasks) == 0 {
		fmt.Println("no recorded outcomes")
		return nil
	}

	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tEXIT\tDURATION\tTARGET\tREASON")
	for _, id := range ids {
		out := tasks[id]
		fmt.Fprintf(w, "%s\t%s\t%d\t%.1fs\t%s\t%s\n",
			id, out.Status, out.ExitCode, out.DurationSeconds, out.Target, out.Reason)
	}
	return w.Flush()
}
