package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"librarian/internal/daemon"
	"librarian/internal/deps"
	"librarian/internal/logging"
	"librarian/internal/metrics"
	"librarian/internal/pipeline"
	"librarian/internal/preflight"
	"librarian/internal/queue"
	"librarian/internal/scanner"
	"librarian/internal/watch"
	"librarian/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the background workflow in the foreground",
		Long:  "Drains the identification queue continuously, follows the watch folder when enabled and serves the status API when [metrics] is enabled. Stops on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, ctx)
		},
	}
}

func runDaemon(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := ctx.loggerValue()

	checks := preflight.RunAll(signalCtx, cfg)
	for _, r := range checks {
		if !r.Passed {
			logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.Bool("fatal", r.Fatal),
				logging.String(logging.FieldErrorHint, "run `librarian doctor` for details"),
				logging.String(logging.FieldImpact, "the affected layer or directory is unavailable"),
			)
		}
	}
	if failed := preflight.Failed(checks); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, r := range failed {
			names = append(names, r.Name)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(names, ", "))
	}
	if missing := deps.Missing(deps.CheckBinaries(deps.Requirements(cfg))); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, s := range missing {
			names = append(names, s.Command)
		}
		return fmt.Errorf("missing required binaries: %s", strings.Join(names, ", "))
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		store.Close()
		return fmt.Errorf("init metrics: %w", err)
	}
	controller := pipeline.New(cfg, store, newFixer(cfg, store, m, logger), m, logger)
	manager := workflow.NewManager(cfg, controller, store, logger)

	opts := []daemon.Option{daemon.WithMetrics(m)}
	if cfg.Watch.Enabled {
		w := watch.New(cfg, scanner.New(cfg, store, logger), logger)
		opts = append(opts, daemon.WithWatcher(w))
	}
	d, err := daemon.New(cfg, store, logger, manager, opts...)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	logger.Info("librarian daemon started",
		logging.String("library", cfg.Paths.LibraryDir),
		logging.String("database", store.Path()),
		logging.String("api", d.Addr()),
	)

	<-signalCtx.Done()
	logger.Info("librarian daemon shutting down")
	return nil
}
