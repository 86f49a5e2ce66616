package providers

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	subtitleNovel    = regexp.MustCompile(`(?i)^A\s+(.+?)\s+Novel$`)
	subtitleBookOf   = regexp.MustCompile(`(?i)Book\s+(\d+)\s+of\s+(.+)`)
	subtitleSeriesNo = regexp.MustCompile(`(?i)^(.+?)\s+(?:Book|#)\s*(\d+)`)
)

// GoogleBooks searches the Google Books volumes API. The API key is
// optional.
type GoogleBooks struct {
	baseURL string
	apiKey  string
	http    *httpJSON
}

// NewGoogleBooks creates the client.
func NewGoogleBooks(baseURL, apiKey string, timeout time.Duration) *GoogleBooks {
	return &GoogleBooks{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    newHTTPJSON("googlebooks", timeout),
	}
}

// Name implements Lookup.
func (g *GoogleBooks) Name() string { return "googlebooks" }

type googleVolumes struct {
	Items []struct {
		VolumeInfo struct {
			Title         string   `json:"title"`
			Subtitle      string   `json:"subtitle"`
			Authors       []string `json:"authors"`
			PublishedDate string   `json:"publishedDate"`
			Language      string   `json:"language"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Lookup implements Lookup.
func (g *GoogleBooks) Lookup(ctx context.Context, titleHint, authorHint string) (*CandidateRecord, error) {
	titleHint = strings.TrimSpace(titleHint)
	if titleHint == "" {
		return nil, nil
	}
	query := titleHint
	if a := strings.TrimSpace(authorHint); a != "" {
		query += " inauthor:" + a
	}
	params := url.Values{"q": {query}, "maxResults": {"5"}}
	if g.apiKey != "" {
		params.Set("key", g.apiKey)
	}
	var volumes googleVolumes
	if err := g.http.get(ctx, g.baseURL+"?"+params.Encode(), nil, &volumes); err != nil {
		if errors.Is(err, errNoMatch) {
			return nil, nil
		}
		return nil, err
	}
	if len(volumes.Items) == 0 {
		return nil, nil
	}
	info := volumes.Items[0].VolumeInfo
	if strings.TrimSpace(info.Title) == "" || len(info.Authors) == 0 {
		return nil, nil
	}
	rec := &CandidateRecord{
		Provider: g.Name(),
		Title:    strings.TrimSpace(info.Title),
		Author:   strings.TrimSpace(info.Authors[0]),
		Language: normalizeLanguage(info.Language),
	}
	if len(info.PublishedDate) >= 4 {
		rec.Year = info.PublishedDate[:4]
	}
	rec.Series, rec.SeriesNum = seriesFromSubtitle(info.Subtitle)
	return rec, nil
}

// seriesFromSubtitle reads "A Mistborn Novel", "Book 2 of The Expanse" and
// "Mistborn #1" subtitles.
func seriesFromSubtitle(subtitle string) (string, string) {
	subtitle = strings.TrimSpace(subtitle)
	if subtitle == "" {
		return "", ""
	}
	if m := subtitleBookOf.FindStringSubmatch(subtitle); m != nil {
		return strings.TrimSpace(m[2]), m[1]
	}
	if m := subtitleSeriesNo.FindStringSubmatch(subtitle); m != nil {
		return strings.TrimSpace(m[1]), m[2]
	}
	if m := subtitleNovel.FindStringSubmatch(subtitle); m != nil {
		return strings.TrimSpace(m[1]), ""
	}
	return "", ""
}
