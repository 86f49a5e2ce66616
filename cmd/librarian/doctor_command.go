package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"librarian/internal/config"
	"librarian/internal/deps"
	"librarian/internal/preflight"
	"librarian/internal/queue"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, services, binaries and the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				checks := preflight.RunAll(cmd.Context(), cfg)
				binaries := deps.CheckBinaries(deps.Requirements(cfg))
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				failed := len(preflight.Failed(checks)) > 0 || len(deps.Missing(binaries)) > 0 || health.Error != "" || !health.IntegrityCheck

				if ctx.jsonOutput() {
					if err := writeJSON(cmd, doctorOutput{Checks: checks, Binaries: binaries, Database: health}); err != nil {
						return err
					}
				} else {
					printDoctor(cmd, checks, binaries, health)
				}
				if failed {
					return errors.New("doctor found problems")
				}
				return nil
			})
		},
	}
}

type doctorOutput struct {
	Checks   []preflight.Result   `json:"checks"`
	Binaries []deps.Status        `json:"binaries"`
	Database queue.DatabaseHealth `json:"database"`
}

func printDoctor(cmd *cobra.Command, checks []preflight.Result, binaries []deps.Status, health queue.DatabaseHealth) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	sections := []struct {
		title string
		lines []string
	}{
		{"Checks", checkLines(checks, colorize)},
		{"Binaries", dependencyLines(binaries, colorize)},
		{"Database", databaseLines(health, colorize)},
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(out)
		}
		for _, line := range renderSectionHeader(s.title, colorize) {
			fmt.Fprintln(out, line)
		}
		for _, line := range s.lines {
			fmt.Fprintln(out, line)
		}
	}
}

func databaseLines(h queue.DatabaseHealth, colorize bool) []string {
	lines := []string{renderStatusLine("Path", statusInfo, h.DBPath, colorize)}
	if h.Error != "" {
		return append(lines, renderStatusLine("Integrity", statusError, h.Error, colorize))
	}
	integrity := renderStatusLine("Integrity", statusOK, "ok", colorize)
	if !h.IntegrityCheck {
		integrity = renderStatusLine("Integrity", statusError, "integrity check failed", colorize)
	}
	return append(lines,
		renderStatusLine("Schema", statusInfo, fmt.Sprintf("v%d", h.SchemaVersion), colorize),
		integrity,
		renderStatusLine("Books", statusInfo, itoa(h.TotalBooks), colorize),
	)
}
