package pipeline

import (
	"context"
	"fmt"
	"slices"

	"librarian/internal/evidence"
	"librarian/internal/profile"
	"librarian/internal/queue"
	"librarian/internal/services"
	"librarian/internal/textutil"
)

// Reasons recorded on terminal books.
const (
	ReasonMatchesPath  = "matches_path"
	ReasonRename       = "rename"
	ReasonPossibleSwap = "possible_swap"
)

type naming struct {
	author string
	title  string
}

type step struct {
	profile *profile.BookProfile
	layer   Layer
	next    Layer
	status  queue.Status
	reason  string
	triage  string
}

// runStep merges the folder's local evidence, runs layer and decides what
// happens next. When no enabled layer follows, the folder fallback runs in
// the same step so the book always leaves the queue.
func (c *Controller) runStep(ctx context.Context, snap Config, layer Layer, existing *profile.BookProfile, folder *evidence.Folder, current naming) step {
	at := c.now().UTC()
	p := c.engine.Merge(existing, folder.LocalObservations(at))
	markIssues(p, folder)

	switch layer {
	case LayerUnprocessed:
		p.AddLayer("local")
	case LayerAudio:
		p = c.runAudio(ctx, snap, p, folder)
	case LayerAI:
		p = c.runAI(ctx, snap, p, folder)
	case LayerAPI:
		p = c.runAPI(ctx, snap, p, folder)
	case LayerTerminal:
		return c.fallback(snap, p, folder, current)
	}

	if layer != LayerUnprocessed && !snap.DeepScan && p.Confidence() >= snap.Threshold {
		return finish(p, layer, current)
	}
	next := Next(layer, snap)
	if next == LayerTerminal {
		return c.fallback(snap, p, folder, current)
	}
	return step{profile: p, layer: layer, next: next, status: queue.StatusPending}
}

// fallback merges path evidence and settles the book.
func (c *Controller) fallback(snap Config, p *profile.BookProfile, folder *evidence.Folder, current naming) step {
	p = c.engine.Merge(p, folder.Info.Observations(c.engine.SourceWeight(profile.SourcePath), c.now().UTC()))
	p.AddLayer(LayerTerminal.String())
	markIssues(p, folder)

	author := p.Value(profile.FieldAuthor)
	switch {
	case p.Confidence() < snap.Floor || profile.IsPlaceholder(author):
		err := services.Wrap(services.ErrIdentificationExhausted, "pipeline", "folder fallback",
			fmt.Sprintf("confidence %d below floor %d or author %q unusable", p.Confidence(), snap.Floor, author), nil)
		return step{profile: p, layer: LayerTerminal, next: LayerTerminal, status: queue.StatusNeedsAttention, reason: services.ReasonFor(err)}
	case p.HasIssue(profile.IssuePossibleSwap) && pathOnly(p, profile.FieldAuthor):
		return step{profile: p, layer: LayerTerminal, next: LayerTerminal, status: queue.StatusNeedsAttention, reason: ReasonPossibleSwap}
	}
	return finish(p, LayerTerminal, current)
}

func finish(p *profile.BookProfile, layer Layer, current naming) step {
	s := step{profile: p, layer: layer, next: LayerTerminal, status: queue.StatusNeedsFix, reason: ReasonRename}
	if matches(p, current) {
		s.status, s.reason = queue.StatusVerified, ReasonMatchesPath
	}
	return s
}

// matches compares the resolved author and title with the folder's
// current naming.
func matches(p *profile.BookProfile, current naming) bool {
	author, title := p.Value(profile.FieldAuthor), p.Value(profile.FieldTitle)
	if author == "" || title == "" {
		return false
	}
	return textutil.Normalize(author) == textutil.Normalize(current.author) &&
		textutil.Normalize(title) == textutil.Normalize(current.title)
}

func pathOnly(p *profile.BookProfile, f profile.Field) bool {
	fv := p.Field(f)
	return fv != nil && len(fv.Sources) > 0 && !slices.ContainsFunc(fv.Sources, func(s profile.Source) bool {
		return s != profile.SourcePath
	})
}

func markIssues(p *profile.BookProfile, folder *evidence.Folder) {
	if folder.Info.PossibleSwap {
		p.AddIssue(profile.IssuePossibleSwap)
	}
	if folder.MultiBook.MultiBook {
		p.AddIssue(profile.IssueMultiBook)
	}
	if folder.Info.Triage == evidence.TriageGarbage {
		p.AddIssue(profile.IssueGarbageFolder)
	}
}
