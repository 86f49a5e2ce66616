package providers

import (
	"context"
	"time"

	"librarian/internal/profile"
)

// CandidateRecord is one provider's answer to a lookup. An empty Title marks
// an author-only record (the provider confirmed the author's canonical
// spelling but could not name a book).
type CandidateRecord struct {
	Provider  string
	Title     string
	Author    string
	Narrator  string
	Series    string
	SeriesNum string
	Year      string
	Language  string
	ASIN      string
}

// Lookup searches one metadata provider. A nil record with a nil error
// means no match; errors wrapped with services.ErrTransient are retryable.
type Lookup interface {
	Name() string
	Lookup(ctx context.Context, titleHint, authorHint string) (*CandidateRecord, error)
}

// Source returns the observation source for the record's provider.
func (c CandidateRecord) Source() profile.Source {
	return profile.Source(c.Provider)
}

// Observations converts the record into observations at the provider's
// configured weight.
func (c CandidateRecord) Observations(at time.Time) []profile.Observation {
	values := map[profile.Field]string{
		profile.FieldAuthor:    c.Author,
		profile.FieldTitle:     c.Title,
		profile.FieldNarrator:  c.Narrator,
		profile.FieldSeries:    c.Series,
		profile.FieldSeriesNum: c.SeriesNum,
		profile.FieldYear:      c.Year,
		profile.FieldLanguage:  c.Language,
	}
	if c.Title == "" {
		values = map[profile.Field]string{profile.FieldAuthor: c.Author}
	}
	return profile.Observe(c.Source(), 0, at, values)
}
