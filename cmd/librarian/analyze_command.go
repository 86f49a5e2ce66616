package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"librarian/internal/pipeline"
	"librarian/internal/profile"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze PATH",
		Short: "Identify one book folder without changing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			// A nil store keeps the dry run from persisting anything.
			controller := pipeline.New(cfg, nil, nil, nil, ctx.loggerValue())
			report, err := controller.AnalyzeReport(cmd.Context(), path)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, analyzeJSON(report))
			}
			printReport(cmd, report)
			return nil
		},
	}
}

type analyzeOutput struct {
	Path       string               `json:"path"`
	Status     string               `json:"status"`
	Reason     string               `json:"reason,omitempty"`
	Triage     string               `json:"triage"`
	Layers     []string             `json:"layers"`
	Confidence int                  `json:"confidence"`
	Profile    *profile.BookProfile `json:"profile,omitempty"`
}

func analyzeJSON(r pipeline.Report) analyzeOutput {
	out := analyzeOutput{
		Path:    r.Path,
		Status:  string(r.Status),
		Reason:  r.Reason,
		Triage:  string(r.Triage),
		Layers:  layerNames(r.Layers),
		Profile: r.Profile,
	}
	if r.Profile != nil {
		out.Confidence = r.Profile.Confidence()
	}
	return out
}

func printReport(cmd *cobra.Command, r pipeline.Report) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader(filepath.Base(r.Path), colorize) {
		fmt.Fprintln(out, line)
	}
	outcome := string(r.Status)
	if r.Reason != "" {
		outcome += " (" + r.Reason + ")"
	}
	fmt.Fprintln(out, renderStatusLine("Outcome", bookStatusKind(r.Status), outcome, colorize))
	fmt.Fprintln(out, renderStatusLine("Folder name", statusInfo, string(r.Triage), colorize))
	fmt.Fprintln(out, renderStatusLine("Layers", statusInfo, strings.Join(layerNames(r.Layers), " -> "), colorize))
	if r.Profile == nil {
		return
	}
	fmt.Fprintln(out, renderStatusLine("Confidence", statusInfo, strconv.Itoa(r.Profile.Confidence()), colorize))
	if len(r.Profile.Issues) > 0 {
		fmt.Fprintln(out, renderStatusLine("Issues", statusWarn, strings.Join(r.Profile.Issues, ", "), colorize))
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, profileTable(out, r.Profile))
}

func layerNames(layers []pipeline.Layer) []string {
	names := make([]string, 0, len(layers))
	for _, l := range layers {
		names = append(names, l.String())
	}
	return names
}
