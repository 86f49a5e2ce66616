package pipeline

import (
	"context"
	"path/filepath"

	"librarian/internal/evidence"
	"librarian/internal/profile"
	"librarian/internal/queue"
	"librarian/internal/services"
)

// Report is the outcome of a dry run over one folder.
type Report struct {
	Path    string
	Profile *profile.BookProfile
	Status  queue.Status
	Reason  string
	Layers  []Layer
	Triage  evidence.Triage
}

// Analyze identifies the folder at path through every enabled layer
// without touching the store.
func (c *Controller) Analyze(ctx context.Context, path string) (*profile.BookProfile, error) {
	report, err := c.AnalyzeReport(ctx, path)
	if err != nil {
		return nil, err
	}
	return report.Profile, nil
}

// AnalyzeReport is Analyze with the would-be outcome and the layers run.
func (c *Controller) AnalyzeReport(ctx context.Context, path string) (Report, error) {
	snap := c.Snapshot()
	path = filepath.Clean(path)
	folder, err := c.evidence.Collect(ctx, path)
	if err != nil {
		return Report{}, services.Wrap(services.ErrNotFound, "pipeline", "analyze", path, err)
	}
	current := naming{author: folder.Info.Author, title: folder.Info.Title}
	report := Report{Path: path, Triage: folder.Info.Triage}

	layer := LayerUnprocessed
	var p *profile.BookProfile
	for {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		s := c.runStep(ctx, snap, layer, p, folder, current)
		report.Layers = append(report.Layers, s.layer)
		p = s.profile
		if s.status != queue.StatusPending {
			report.Profile, report.Status, report.Reason = p, s.status, s.reason
			return report, nil
		}
		layer = s.next
	}
}
