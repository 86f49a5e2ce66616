package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/patrickmn/go-cache"

	"librarian/internal/evidence"
	"librarian/internal/logging"
	"librarian/internal/profile"
	"librarian/internal/providers"
	"librarian/internal/services"
	"librarian/internal/textutil"
)

const maxPromptFiles = 25

// spokenCoverage is the share of a known title's words that must appear in
// the intro for the audio layer to corroborate it.
const spokenCoverage = 0.8

// runAudio transcribes the opening of the first audio file and merges the
// spoken credits.
func (c *Controller) runAudio(ctx context.Context, snap Config, p *profile.BookProfile, folder *evidence.Folder) *profile.BookProfile {
	p.AddLayer(LayerAudio.String())
	first := folder.FirstAudio()
	if first == "" || c.transcriber == nil {
		return p
	}
	transcript, err := c.transcriber.Transcribe(ctx, first, evidence.Window{Start: 0, Duration: snap.AudioWindow})
	if err != nil {
		c.layerFailed(ctx, LayerAudio, "", err)
		return p
	}
	c.transcripts.Set(folder.Dir, transcript, cache.DefaultExpiration)
	credits := evidence.ParseCredits(transcript)
	if credits.Title == "" {
		if known := p.Value(profile.FieldTitle); known != "" && !profile.IsPlaceholder(known) && textutil.MentionCoverage(transcript, known) >= spokenCoverage {
			credits.Title = known
		}
	}
	if credits.Author == "" {
		if known := p.Value(profile.FieldAuthor); known != "" && !profile.IsPlaceholder(known) && textutil.MentionCoverage(transcript, known) >= spokenCoverage {
			credits.Author = known
		}
	}
	return c.engine.Merge(p, profile.Observe(profile.SourceAudio, 0, c.now().UTC(), map[profile.Field]string{
		profile.FieldAuthor:   credits.Author,
		profile.FieldTitle:    credits.Title,
		profile.FieldNarrator: credits.Narrator,
	}))
}

// runAI asks the model to identify the book from everything gathered so far.
func (c *Controller) runAI(ctx context.Context, snap Config, p *profile.BookProfile, folder *evidence.Folder) *profile.BookProfile {
	p.AddLayer(LayerAI.String())
	if c.ai == nil {
		return p
	}
	if breakerOpen(c.ai) {
		attrs := logging.DecisionAttrs("ai_layer", "skipped", "breaker_open")
		logging.WithContext(ctx, c.logger).Info("ai layer skipped", logging.Args(attrs...)...)
		return p
	}
	parsed, err := c.ai.Identify(ctx, c.buildPrompt(snap, p, folder))
	if err != nil {
		c.layerFailed(ctx, LayerAI, "", err)
		return p
	}
	if parsed == nil {
		return p
	}
	return c.engine.Merge(p, parsed.Observations(c.engine.SourceWeight(profile.SourceAI), c.now().UTC()))
}

func (c *Controller) buildPrompt(snap Config, p *profile.BookProfile, folder *evidence.Folder) providers.AIPrompt {
	prompt := providers.AIPrompt{
		FolderPath: folder.Dir,
		Tags:       folder.Tags,
		Hints:      make(map[profile.Field]string),
	}
	if rel, err := filepath.Rel(snap.LibraryRoot, folder.Dir); err == nil {
		prompt.FolderPath = rel
	}
	for _, f := range slices.Concat(folder.AudioFiles, folder.EbookFiles) {
		if len(prompt.Files) == maxPromptFiles {
			break
		}
		prompt.Files = append(prompt.Files, filepath.Base(f))
	}
	if cached, ok := c.transcripts.Get(folder.Dir); ok {
		prompt.Transcript, _ = cached.(string)
	}
	for _, f := range profile.AllFields {
		if v := p.Value(f); v != "" && !profile.IsPlaceholder(v) {
			prompt.Hints[f] = v
		}
	}
	if folder.Info.PossibleSwap {
		prompt.Notes = append(prompt.Notes, fmt.Sprintf(
			"The folder layout may be swapped: %q looks like a title and %q looks like a person.",
			folder.Info.Author, folder.Info.Title))
	}
	if folder.MultiBook.MultiBook {
		prompt.Notes = append(prompt.Notes, "The folder appears to hold several books; identify the first one.")
	}
	if folder.Info.Triage == evidence.TriageMessy {
		prompt.Notes = append(prompt.Notes, "The folder name contains release-group or encoding junk.")
	}
	return prompt
}

type searchHint struct {
	title  string
	author string
}

// runAPI queries the metadata providers whose breakers admit calls. An
// ASIN found locally is resolved first; a suspected swap also searches
// with the reversed hints.
func (c *Controller) runAPI(ctx context.Context, snap Config, p *profile.BookProfile, folder *evidence.Folder) *profile.BookProfile {
	p.AddLayer(LayerAPI.String())
	logger := logging.WithContext(ctx, c.logger)

	var open []providers.Lookup
	for _, l := range c.lookups {
		if !breakerOpen(l) {
			open = append(open, l)
		}
	}
	asin := folder.ASIN
	if c.asin == nil {
		asin = ""
	}
	if len(open) == 0 && asin == "" {
		attrs := logging.DecisionAttrs("api_layer", "skipped", "all_breakers_open")
		logger.Info("api layer skipped", logging.Args(attrs...)...)
		return p
	}

	var accepted []providers.CandidateRecord
	if asin != "" {
		rec, err := c.asin.Resolve(ctx, asin)
		switch {
		case err != nil:
			c.layerFailed(ctx, LayerAPI, "asin", err)
		case rec != nil:
			accepted = append(accepted, *rec)
		}
	}

	for _, hint := range searchHints(p, folder) {
		var candidates []providers.CandidateRecord
		for _, l := range open {
			if ctx.Err() != nil {
				return p
			}
			if breakerOpen(l) {
				continue
			}
			rec, err := l.Lookup(ctx, hint.title, hint.author)
			if err != nil {
				c.layerFailed(ctx, LayerAPI, l.Name(), err)
				continue
			}
			if rec != nil {
				candidates = append(candidates, *rec)
			}
		}
		accepted = append(accepted, providers.Accept(candidates, hint.title, hint.author, snap.APIMatchThreshold)...)
	}

	seen := make(map[string]struct{}, len(accepted))
	var observations []profile.Observation
	at := c.now().UTC()
	for _, rec := range accepted {
		if _, dup := seen[rec.Provider]; dup {
			continue
		}
		seen[rec.Provider] = struct{}{}
		observations = append(observations, rec.Observations(at)...)
	}
	if len(observations) == 0 {
		return p
	}
	return c.engine.Merge(p, observations)
}

func searchHints(p *profile.BookProfile, folder *evidence.Folder) []searchHint {
	title := p.Value(profile.FieldTitle)
	if title == "" {
		title = folder.Info.Title
	}
	author := p.Value(profile.FieldAuthor)
	if author == "" || profile.IsPlaceholder(author) {
		author = folder.Info.Author
	}
	title = evidence.CleanSearchTitle(title)
	if evidence.IsUnsearchable(title) {
		title = ""
	}
	hints := []searchHint{{title: title, author: author}}
	if folder.Info.PossibleSwap {
		swapped := folder.Info.Swapped()
		hints = append(hints, searchHint{title: evidence.CleanSearchTitle(swapped.Title), author: swapped.Author})
	}
	return hints
}

type breakered interface {
	Breaker() *providers.Breaker
}

func breakerOpen(adapter any) bool {
	b, ok := adapter.(breakered)
	return ok && b.Breaker() != nil && b.Breaker().IsOpen()
}

func (c *Controller) layerFailed(ctx context.Context, layer Layer, adapter string, err error) {
	if ctx.Err() != nil {
		return
	}
	logger := logging.WithContext(ctx, c.logger)
	if services.IsTransient(err) {
		logger.Debug("layer adapter unavailable",
			logging.String("layer_name", layer.String()),
			logging.String("adapter", adapter),
			logging.Error(err),
		)
		return
	}
	logging.WarnWithContext(logger, "layer adapter failed", "layer_adapter_failed",
		logging.String("layer_name", layer.String()),
		logging.String("adapter", adapter),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the adapter's configuration and connectivity"),
		logging.String(logging.FieldImpact, "layer contributed no observations"),
	)
}
