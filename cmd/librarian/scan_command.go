package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"librarian/internal/config"
	"librarian/internal/queue"
	"librarian/internal/scanner"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var priority int
	cmd := &cobra.Command{
		Use:   "scan [DIR]",
		Short: "Register book folders and queue the ones that need identification",
		Long:  "Walks DIR (the library root by default), records every book folder and queues it when the requeue policy allows.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				dir := cfg.Paths.LibraryDir
				if len(args) == 1 {
					abs, err := filepath.Abs(args[0])
					if err != nil {
						return fmt.Errorf("resolve path: %w", err)
					}
					dir = abs
				}
				s := scanner.New(cfg, store, ctx.loggerValue())
				result, err := s.ScanDir(cmd.Context(), dir, scanner.Options{Priority: priority})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scanned %s: %d book folders, %d new, %d queued\n", dir, result.Folders, result.New, result.Queued)
				if len(result.Skipped) > 0 {
					reasons := make([]string, 0, len(result.Skipped))
					for reason, n := range result.Skipped {
						reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
					}
					slices.Sort(reasons)
					fmt.Fprintf(out, "Skipped: %s\n", strings.Join(reasons, " "))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&priority, "priority", 0, "Queue priority for books found by this scan")
	return cmd
}
