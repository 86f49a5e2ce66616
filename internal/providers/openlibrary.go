package providers

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"librarian/internal/language"
)

// OpenLibrary searches openlibrary.org. No key is required.
type OpenLibrary struct {
	baseURL string
	http    *httpJSON
}

// NewOpenLibrary creates the client.
func NewOpenLibrary(baseURL string, timeout time.Duration) *OpenLibrary {
	return &OpenLibrary{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newHTTPJSON("openlibrary", timeout),
	}
}

// Name implements Lookup.
func (o *OpenLibrary) Name() string { return "openlibrary" }

type openLibrarySearch struct {
	Docs []struct {
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		FirstPublishYear int      `json:"first_publish_year"`
		Language         []string `json:"language"`
	} `json:"docs"`
}

// Lookup implements Lookup.
func (o *OpenLibrary) Lookup(ctx context.Context, titleHint, authorHint string) (*CandidateRecord, error) {
	titleHint = strings.TrimSpace(titleHint)
	if titleHint == "" {
		return nil, nil
	}
	params := url.Values{"title": {titleHint}, "limit": {"5"}}
	if a := strings.TrimSpace(authorHint); a != "" {
		params.Set("author", a)
	}
	var result openLibrarySearch
	if err := o.http.get(ctx, o.baseURL+"?"+params.Encode(), nil, &result); err != nil {
		if errors.Is(err, errNoMatch) {
			return nil, nil
		}
		return nil, err
	}
	if len(result.Docs) == 0 {
		return nil, nil
	}
	doc := result.Docs[0]
	if strings.TrimSpace(doc.Title) == "" || len(doc.AuthorName) == 0 {
		return nil, nil
	}
	rec := &CandidateRecord{
		Provider: o.Name(),
		Title:    strings.TrimSpace(doc.Title),
		Author:   strings.TrimSpace(doc.AuthorName[0]),
	}
	if doc.FirstPublishYear > 0 {
		rec.Year = strconv.Itoa(doc.FirstPublishYear)
	}
	if len(doc.Language) == 1 {
		rec.Language = normalizeLanguage(doc.Language[0])
	}
	return rec, nil
}

func normalizeLanguage(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return language.ToISO2(value)
}
