package main

import (
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"librarian/internal/api"
	"librarian/internal/config"
	"librarian/internal/evidence"
	"librarian/internal/fixer"
	"librarian/internal/metrics"
	"librarian/internal/queue"
	"librarian/internal/safety"
)

func newFixCommand(ctx *commandContext) *cobra.Command {
	fixCmd := &cobra.Command{
		Use:   "fix",
		Short: "Propose, apply and revert folder fixes",
	}

	fixCmd.AddCommand(newFixClassifyCommand(ctx))
	fixCmd.AddCommand(newFixApplyCommand(ctx))
	fixCmd.AddCommand(newFixUndoCommand(ctx))
	fixCmd.AddCommand(newFixHistoryCommand(ctx))

	return fixCmd
}

// newFixer wires the safety gate with an fpcalc fingerprinter when the
// binary is installed.
func newFixer(cfg *config.Config, store *queue.Store, m *metrics.Metrics, logger *slog.Logger) *fixer.Service {
	var fp evidence.Fingerprinter
	if bin, err := exec.LookPath(cfg.Audio.FingerprintCommand); err == nil {
		fp = evidence.NewFPCalc(bin, cfg.Audio.WindowSeconds)
	}
	gate := safety.NewGate(cfg, fp, logger)
	return fixer.NewService(cfg, store, gate, m, logger)
}

// newStandaloneFixer builds a fixer with a private metrics registry for
// one-shot commands.
func newStandaloneFixer(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*fixer.Service, error) {
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	return newFixer(cfg, store, m, logger), nil
}

func newFixClassifyCommand(ctx *commandContext) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "classify BOOK_ID",
		Short: "Propose a destination for a book and record the verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book")
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				svc, err := newStandaloneFixer(cfg, store, ctx.loggerValue())
				if err != nil {
					return err
				}
				fix, historyID, err := svc.ClassifyFix(cmd.Context(), id)
				if err != nil {
					return err
				}
				applied := false
				if apply && fix.Classification == safety.AutoApply && historyID > 0 {
					if err := svc.Apply(cmd.Context(), historyID); err != nil {
						return err
					}
					applied = true
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, classifyOutput{
						HistoryID:      historyID,
						Classification: string(fix.Classification),
						Reason:         fix.Reason,
						OldPath:        fix.OldPath,
						NewPath:        fix.NewPath,
						Applied:        applied,
					})
				}
				printFix(cmd, fix, historyID, applied)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the fix right away when the gate allows it")
	return cmd
}

type classifyOutput struct {
	HistoryID      int64  `json:"historyId,omitempty"`
	Classification string `json:"classification"`
	Reason         string `json:"reason"`
	OldPath        string `json:"oldPath"`
	NewPath        string `json:"newPath,omitempty"`
	Applied        bool   `json:"applied"`
}

func printFix(cmd *cobra.Command, fix safety.ProposedFix, historyID int64, applied bool) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	kind := statusInfo
	switch fix.Classification {
	case safety.Verified, safety.AutoApply:
		kind = statusOK
	case safety.PendingApproval:
		kind = statusWarn
	case safety.Rejected:
		kind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Verdict", kind, fmt.Sprintf("%s (%s)", fix.Classification, fix.Reason), colorize))
	fmt.Fprintln(out, renderStatusLine("From", statusInfo, fix.OldPath, colorize))
	if fix.NewPath != "" && fix.NewPath != fix.OldPath {
		fmt.Fprintln(out, renderStatusLine("To", statusInfo, fix.NewPath, colorize))
	}
	if fix.Err != nil {
		fmt.Fprintln(out, renderStatusLine("Problem", statusError, fix.Err.Error(), colorize))
	}
	if len(fix.MissingFiles) > 0 {
		fmt.Fprintln(out, renderStatusLine("Missing files", statusError, itoa(len(fix.MissingFiles)), colorize))
	}
	switch {
	case applied:
		fmt.Fprintf(out, "Applied fix %d\n", historyID)
	case historyID > 0 && fix.Classification != safety.Rejected:
		fmt.Fprintf(out, "Recorded fix %d; run `librarian fix apply %d` to move the folder\n", historyID, historyID)
	case historyID > 0:
		fmt.Fprintf(out, "Recorded rejected fix %d\n", historyID)
	}
}

func newFixApplyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply HISTORY_ID",
		Short: "Move a book folder as recorded in a pending fix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "history")
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				svc, err := newStandaloneFixer(cfg, store, ctx.loggerValue())
				if err != nil {
					return err
				}
				if err := svc.Apply(cmd.Context(), id); err != nil {
					return err
				}
				return reportHistory(cmd, ctx, store, id, "Applied")
			})
		},
	}
}

func newFixUndoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "undo HISTORY_ID",
		Short: "Revert an applied fix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "history")
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				svc, err := newStandaloneFixer(cfg, store, ctx.loggerValue())
				if err != nil {
					return err
				}
				if err := svc.Undo(cmd.Context(), id); err != nil {
					return err
				}
				return reportHistory(cmd, ctx, store, id, "Reverted")
			})
		},
	}
}

func reportHistory(cmd *cobra.Command, ctx *commandContext, store *queue.Store, id int64, verb string) error {
	entry, err := store.GetHistory(cmd.Context(), id)
	if err != nil {
		return err
	}
	if ctx.jsonOutput() {
		return writeJSON(cmd, api.FromHistoryEntry(entry))
	}
	out := cmd.OutOrStdout()
	from, to := entry.OldPath, entry.NewPath
	if entry.Status == queue.HistoryUndone {
		from, to = to, from
	}
	fmt.Fprintf(out, "%s fix %d: %s -> %s\n", verb, id, from, to)
	return nil
}

func newFixHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [BOOK_ID]",
		Short: "List proposed and applied fixes, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var bookID int64
			if len(args) == 1 {
				id, err := parseID(args[0], "book")
				if err != nil {
					return err
				}
				bookID = id
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				entries, err := store.ListHistory(cmd.Context(), bookID, limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FromHistory(entries))
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No fixes recorded")
					return nil
				}
				fmt.Fprint(out, historyTable(out, entries))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Maximum rows to show (0 for all)")
	return cmd
}
