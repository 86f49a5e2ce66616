package providers

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"librarian/internal/textutil"
)

var asinPattern = regexp.MustCompile(`^(?:B0[0-9A-Z]{8}|\d{9}[\dX])$`)

// IsASIN reports whether s looks like an Audible ASIN.
func IsASIN(s string) bool {
	return asinPattern.MatchString(strings.ToUpper(strings.TrimSpace(s)))
}

// Audnexus queries the community Audible metadata API. The API has no title
// search: a lookup either resolves an ASIN or confirms an author.
type Audnexus struct {
	baseURL string
	region  string
	http    *httpJSON
}

// NewAudnexus creates the client.
func NewAudnexus(baseURL string, timeout time.Duration) *Audnexus {
	return &Audnexus{
		baseURL: strings.TrimRight(baseURL, "/"),
		region:  "us",
		http:    newHTTPJSON("audnexus", timeout),
	}
}

// Name implements Lookup.
func (a *Audnexus) Name() string { return "audnexus" }

type audnexusAuthor struct {
	ASIN string `json:"asin"`
	Name string `json:"name"`
}

type audnexusBook struct {
	ASIN        string `json:"asin"`
	Title       string `json:"title"`
	Language    string `json:"language"`
	ReleaseDate string `json:"releaseDate"`
	Authors     []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Narrators []struct {
		Name string `json:"name"`
	} `json:"narrators"`
	SeriesPrimary *struct {
		Name     string `json:"name"`
		Position string `json:"position"`
	} `json:"seriesPrimary"`
}

// Lookup implements Lookup. An ASIN passed as titleHint is resolved
// directly; otherwise the author is confirmed through author search.
func (a *Audnexus) Lookup(ctx context.Context, titleHint, authorHint string) (*CandidateRecord, error) {
	if IsASIN(titleHint) {
		return a.LookupASIN(ctx, titleHint)
	}
	authorHint = strings.TrimSpace(authorHint)
	if authorHint == "" {
		return nil, nil
	}
	endpoint := a.baseURL + "/authors?" + url.Values{"name": {authorHint}, "region": {a.region}}.Encode()
	var authors []audnexusAuthor
	if err := a.http.get(ctx, endpoint, nil, &authors); err != nil {
		if errors.Is(err, errNoMatch) {
			return nil, nil
		}
		return nil, err
	}
	want := textutil.Normalize(authorHint)
	var best *audnexusAuthor
	for i := range authors {
		if textutil.Normalize(authors[i].Name) == want {
			best = &authors[i]
			break
		}
	}
	if best == nil && len(authors) > 0 && textutil.NameSimilarity(authors[0].Name, authorHint) >= 0.85 {
		best = &authors[0]
	}
	if best == nil || strings.TrimSpace(best.Name) == "" {
		return nil, nil
	}
	return &CandidateRecord{Provider: a.Name(), Author: strings.TrimSpace(best.Name)}, nil
}

// LookupASIN fetches one book by ASIN.
func (a *Audnexus) LookupASIN(ctx context.Context, asin string) (*CandidateRecord, error) {
	asin = strings.ToUpper(strings.TrimSpace(asin))
	endpoint := a.baseURL + "/books/" + url.PathEscape(asin) + "?" + url.Values{"region": {a.region}}.Encode()
	var book audnexusBook
	if err := a.http.get(ctx, endpoint, nil, &book); err != nil {
		if errors.Is(err, errNoMatch) {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(book.Title) == "" {
		return nil, nil
	}
	rec := &CandidateRecord{Provider: a.Name(), Title: strings.TrimSpace(book.Title), ASIN: asin}
	if len(book.Authors) > 0 {
		rec.Author = strings.TrimSpace(book.Authors[0].Name)
	}
	if len(book.Narrators) > 0 {
		rec.Narrator = strings.TrimSpace(book.Narrators[0].Name)
	}
	if book.SeriesPrimary != nil {
		rec.Series = strings.TrimSpace(book.SeriesPrimary.Name)
		rec.SeriesNum = strings.TrimSpace(book.SeriesPrimary.Position)
	}
	if len(book.ReleaseDate) >= 4 {
		rec.Year = book.ReleaseDate[:4]
	}
	rec.Language = normalizeLanguage(book.Language)
	return rec, nil
}
