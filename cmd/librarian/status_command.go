package main

import (
	"fmt"
	"slices"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"librarian/internal/api"
	"librarian/internal/config"
	"librarian/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and library status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				running, err := daemonRunning(cfg)
				if err != nil {
					return err
				}
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, struct {
						DaemonRunning bool           `json:"daemonRunning"`
						Queue         api.QueueStats `json:"queue"`
					}{running, api.FromStats(stats)})
				}
				printStatus(cmd, cfg, running, stats)
				return nil
			})
		},
	}
}

// daemonRunning probes the daemon's lock file. A lock we can take means no
// daemon holds it.
func daemonRunning(cfg *config.Config) (bool, error) {
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func printStatus(cmd *cobra.Command, cfg *config.Config, running bool, stats queue.Stats) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("System", colorize) {
		fmt.Fprintln(out, line)
	}
	if running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "Running", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Library", statusInfo, cfg.Paths.LibraryDir, colorize))
	if cfg.Watch.Enabled {
		fmt.Fprintln(out, renderStatusLine("Watch folder", statusInfo, cfg.Watch.Folder, colorize))
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Library", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Books", statusInfo, itoa(stats.Books), colorize))
	statuses := make([]string, 0, len(stats.ByStatus))
	for status := range stats.ByStatus {
		statuses = append(statuses, string(status))
	}
	slices.Sort(statuses)
	for _, s := range statuses {
		status := queue.Status(s)
		fmt.Fprintln(out, renderStatusLine("  "+s, bookStatusKind(status), itoa(stats.ByStatus[status]), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Locked", statusInfo, itoa(stats.Locked), colorize))
	fixKind := statusInfo
	if stats.PendingFixes > 0 {
		fixKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Pending fixes", fixKind, itoa(stats.PendingFixes), colorize))
	fmt.Fprintln(out, renderStatusLine("Queued", statusInfo, itoa(stats.Queued), colorize))
	for layer := queue.LayerUnprocessed; layer <= queue.LayerTerminal; layer++ {
		if n := stats.QueuedByLayer[layer]; n > 0 {
			fmt.Fprintln(out, renderStatusLine("  "+layer.String(), statusInfo, itoa(n), colorize))
		}
	}
}
