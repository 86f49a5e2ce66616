package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"librarian/internal/api"
	"librarian/internal/config"
	"librarian/internal/metrics"
	"librarian/internal/pipeline"
	"librarian/internal/queue"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one batch of queued books through the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				n := limit
				if n <= 0 {
					n = cfg.Pipeline.BatchSize
				}
				m, err := metrics.New(prometheus.NewRegistry())
				if err != nil {
					return err
				}
				fixes := newFixer(cfg, store, m, ctx.loggerValue())
				controller := pipeline.New(cfg, store, fixes, m, ctx.loggerValue())
				summary, err := controller.ProcessBatch(cmd.Context(), n)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromSummary(summary))
				}
				out := cmd.OutOrStdout()
				if summary.Processed == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(out,
					[]string{"Processed", "Advanced", "Verified", "Needs fix", "Fixed", "Needs attention", "Skipped"},
					[][]string{{
						itoa(summary.Processed), itoa(summary.Advanced), itoa(summary.Verified),
						itoa(summary.NeedsFix), itoa(summary.Fixed), itoa(summary.NeedsAttention), itoa(summary.Skipped),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum books to process (defaults to pipeline.batch_size)")
	return cmd
}
