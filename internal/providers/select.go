package providers

import (
	"slices"
	"strings"

	"librarian/internal/evidence"
	"librarian/internal/profile"
	"librarian/internal/textutil"
)

const authorMatchSimilarity = 0.85

// VoteAuthor picks the author the candidates agree on. Placeholders get no
// vote. A lone vote only overrides current when current is a placeholder or
// disagrees with every candidate.
func VoteAuthor(candidates []CandidateRecord, current string) string {
	type tally struct {
		name  string
		votes int
	}
	var tallies []*tally
	for _, c := range candidates {
		name := strings.TrimSpace(c.Author)
		if name == "" || profile.IsPlaceholder(name) {
			continue
		}
		var found *tally
		for _, t := range tallies {
			if textutil.NameSimilarity(t.name, name) >= authorMatchSimilarity {
				found = t
				break
			}
		}
		if found == nil {
			found = &tally{name: name}
			tallies = append(tallies, found)
		}
		found.votes++
	}
	if len(tallies) == 0 {
		return ""
	}
	winner := tallies[0]
	for _, t := range tallies[1:] {
		if t.votes > winner.votes {
			winner = t
		}
	}
	current = strings.TrimSpace(current)
	if winner.votes > 1 || current == "" || profile.IsPlaceholder(current) {
		return winner.name
	}
	for _, t := range tallies {
		if textutil.NameSimilarity(t.name, current) >= authorMatchSimilarity {
			return t.name
		}
	}
	return winner.name
}

// Accept filters candidates down to the ones trustworthy enough to become
// observations: the title must be at least threshold similar to titleHint
// and not a garbage match, and the author must agree with the vote.
// Candidates that carry series information are ordered first.
func Accept(candidates []CandidateRecord, titleHint, authorHint string, threshold float64) []CandidateRecord {
	voted := VoteAuthor(candidates, authorHint)
	var accepted []CandidateRecord
	for _, c := range candidates {
		if c.Author != "" && voted != "" && textutil.NameSimilarity(c.Author, voted) < authorMatchSimilarity {
			continue
		}
		if c.Title == "" {
			if c.Author != "" && !profile.IsPlaceholder(c.Author) {
				accepted = append(accepted, c)
			}
			continue
		}
		if evidence.IsGarbageMatch(titleHint, c.Title, 0.3) {
			continue
		}
		if textutil.TitleSimilarity(titleHint, c.Title) < threshold {
			continue
		}
		if c.Series == "" {
			if info := evidence.ExtractSeries(c.Title); info.Series != "" {
				c.Series, c.SeriesNum, c.Title = info.Series, info.SeriesNum, info.Title
			}
		}
		accepted = append(accepted, c)
	}
	slices.SortStableFunc(accepted, func(a, b CandidateRecord) int {
		switch {
		case a.Series != "" && b.Series == "":
			return -1
		case a.Series == "" && b.Series != "":
			return 1
		}
		return 0
	})
	return accepted
}
