package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"librarian/internal/profile"
	"librarian/internal/services"
)

func noBackOff(h *httpJSON) {
	h.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
	}
}

func TestAudnexusLookupASIN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/books/B00ABCDEFG" || r.URL.Query().Get("region") != "us" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{
			"asin": "B00ABCDEFG",
			"title": "The Final Empire",
			"language": "english",
			"releaseDate": "2006-07-17T00:00:00.000Z",
			"authors": [{"name": "Brandon Sanderson"}],
			"narrators": [{"name": "Michael Kramer"}],
			"seriesPrimary": {"name": "Mistborn", "position": "1"}
		}`))
	}))
	defer srv.Close()

	client := NewAudnexus(srv.URL, time.Second)
	rec, err := client.Lookup(context.Background(), "b00abcdefg", "")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a record")
	}
	if rec.Title != "The Final Empire" || rec.Author != "Brandon Sanderson" || rec.Narrator != "Michael Kramer" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Series != "Mistborn" || rec.SeriesNum != "1" || rec.Year != "2006" || rec.Language != "en" {
		t.Fatalf("unexpected series/year/language %+v", rec)
	}
	if rec.Source() != profile.SourceAudnexus {
		t.Fatalf("source = %q", rec.Source())
	}

	missing, err := client.LookupASIN(context.Background(), "B00ZZZZZZZ")
	if err != nil || missing != nil {
		t.Fatalf("404 should be a miss, got %+v, %v", missing, err)
	}
}

func TestAudnexusAuthorSearchConfirmsAuthorOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authors" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("name"); got != "brandon sanderson" {
			t.Errorf("name query = %q", got)
		}
		_, _ = w.Write([]byte(`[{"asin":"B001IGFHW6","name":"Brandon Sanderson"}]`))
	}))
	defer srv.Close()

	client := NewAudnexus(srv.URL, time.Second)
	rec, err := client.Lookup(context.Background(), "mistborn", "brandon sanderson")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec == nil || rec.Author != "Brandon Sanderson" || rec.Title != "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	obs := rec.Observations(time.Now())
	if len(obs) != 1 || obs[0].Field != profile.FieldAuthor {
		t.Fatalf("author-only record should yield one author observation, got %+v", obs)
	}

	none, err := client.Lookup(context.Background(), "mistborn", "")
	if err != nil || none != nil {
		t.Fatalf("lookup without author = %+v, %v", none, err)
	}
}

func TestGoogleBooksLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "Leviathan Wakes inauthor:James S. A. Corey" {
			t.Errorf("q = %q", q.Get("q"))
		}
		if q.Get("key") != "secret" || q.Get("maxResults") != "5" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"items":[{"volumeInfo":{
			"title":"Leviathan Wakes",
			"subtitle":"Book 1 of The Expanse",
			"authors":["James S. A. Corey"],
			"publishedDate":"2011-06-02",
			"language":"en"}}]}`))
	}))
	defer srv.Close()

	client := NewGoogleBooks(srv.URL, "secret", time.Second)
	rec, err := client.Lookup(context.Background(), "Leviathan Wakes", "James S. A. Corey")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec == nil || rec.Title != "Leviathan Wakes" || rec.Author != "James S. A. Corey" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.Series != "The Expanse" || rec.SeriesNum != "1" || rec.Year != "2011" || rec.Language != "en" {
		t.Fatalf("unexpected details %+v", rec)
	}
}

func TestSeriesFromSubtitle(t *testing.T) {
	tests := []struct {
		in        string
		series    string
		seriesNum string
	}{
		{"A Mistborn Novel", "Mistborn", ""},
		{"Book 2 of The Expanse", "The Expanse", "2"},
		{"Mistborn #1", "Mistborn", "1"},
		{"Stormlight Archive Book 3", "Stormlight Archive", "3"},
		{"A Memoir", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		series, num := seriesFromSubtitle(tt.in)
		if series != tt.series || num != tt.seriesNum {
			t.Errorf("seriesFromSubtitle(%q) = %q, %q; want %q, %q", tt.in, series, num, tt.series, tt.seriesNum)
		}
	}
}

func TestGoogleBooksRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewGoogleBooks(srv.URL, "", time.Second)
	_, err := client.Lookup(context.Background(), "Dune", "")
	if !errors.Is(err, services.ErrRateLimited) || !services.IsTransient(err) {
		t.Fatalf("expected rate-limited transient error, got %v", err)
	}
}

func TestHTTPJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"docs":[{"title":"Dune","author_name":["Frank Herbert"],"first_publish_year":1965}]}`))
	}))
	defer srv.Close()

	client := NewOpenLibrary(srv.URL, time.Second)
	noBackOff(client.http)
	rec, err := client.Lookup(context.Background(), "Dune", "Frank Herbert")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want a retry after 502", calls.Load())
	}
	if rec == nil || rec.Year != "1965" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestOpenLibraryLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("title") != "Metro 2033" || q.Get("author") != "Dmitry Glukhovsky" || q.Get("limit") != "5" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"docs":[{"title":"Metro 2033","author_name":["Dmitry Glukhovsky"],"first_publish_year":2005,"language":["eng"]}]}`))
	}))
	defer srv.Close()

	rec, err := NewOpenLibrary(srv.URL, time.Second).Lookup(context.Background(), "Metro 2033", "Dmitry Glukhovsky")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec == nil || rec.Author != "Dmitry Glukhovsky" || rec.Year != "2005" || rec.Language != "en" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

type fakeLookup struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, title, author string) (*CandidateRecord, error)
}

func (f *fakeLookup) Name() string { return f.name }

func (f *fakeLookup) Lookup(ctx context.Context, title, author string) (*CandidateRecord, error) {
	f.calls.Add(1)
	return f.fn(ctx, title, author)
}

func TestGuardCachesHitsAndMisses(t *testing.T) {
	fake := &fakeLookup{name: "googlebooks", fn: func(_ context.Context, title, _ string) (*CandidateRecord, error) {
		if title == "Dune" {
			return &CandidateRecord{Provider: "googlebooks", Title: "Dune", Author: "Frank Herbert"}, nil
		}
		return nil, nil
	}}
	g := NewGuard(fake, GuardOptions{CacheTTL: time.Minute, FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		rec, err := g.Lookup(context.Background(), "Dune", "Frank Herbert")
		if err != nil || rec == nil || rec.Author != "Frank Herbert" {
			t.Fatalf("lookup %d = %+v, %v", i, rec, err)
		}
		miss, err := g.Lookup(context.Background(), "Nothing Here", "")
		if err != nil || miss != nil {
			t.Fatalf("miss %d = %+v, %v", i, miss, err)
		}
	}
	if got := fake.calls.Load(); got != 2 {
		t.Fatalf("provider called %d times, want 2", got)
	}
}

func TestGuardOpensAfterConsecutiveFailures(t *testing.T) {
	fake := &fakeLookup{name: "openlibrary", fn: func(context.Context, string, string) (*CandidateRecord, error) {
		return nil, services.Wrap(services.ErrTransient, "openlibrary", "request", "502", nil)
	}}
	g := NewGuard(fake, GuardOptions{FailureThreshold: 3, Cooldown: time.Hour})

	for i := 0; i < 3; i++ {
		if _, err := g.Lookup(context.Background(), "Dune", ""); !services.IsTransient(err) {
			t.Fatalf("failure %d: expected transient error, got %v", i, err)
		}
	}
	if !g.Breaker().IsOpen() {
		t.Fatal("breaker should be open after three failures")
	}
	_, err := g.Lookup(context.Background(), "Dune", "")
	if !errors.Is(err, ErrBreakerOpen) || !services.IsTransient(err) {
		t.Fatalf("expected open-breaker error, got %v", err)
	}
	if got := fake.calls.Load(); got != 3 {
		t.Fatalf("open breaker still called the provider: %d calls", got)
	}
}

func TestGuardRateLimitOpensImmediately(t *testing.T) {
	fake := &fakeLookup{name: "audnexus", fn: func(context.Context, string, string) (*CandidateRecord, error) {
		return nil, services.Wrap(services.ErrRateLimited, "audnexus", "request", "429", nil)
	}}
	g := NewGuard(fake, GuardOptions{FailureThreshold: 3, Cooldown: time.Hour})
	if _, err := g.Lookup(context.Background(), "Dune", "Frank Herbert"); !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if !g.Breaker().IsOpen() {
		t.Fatal("rate limit should open the breaker at once")
	}
}

func TestBreakerHalfOpensAfterCooldown(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	fake := &fakeLookup{name: "googlebooks", fn: func(context.Context, string, string) (*CandidateRecord, error) {
		if fail.Load() {
			return nil, services.Wrap(services.ErrTransient, "googlebooks", "request", "503", nil)
		}
		return nil, nil
	}}
	g := NewGuard(fake, GuardOptions{FailureThreshold: 1, Cooldown: 20 * time.Millisecond})
	_, _ = g.Lookup(context.Background(), "Dune", "")
	if !g.Breaker().IsOpen() {
		t.Fatal("breaker should be open")
	}
	time.Sleep(40 * time.Millisecond)
	if g.Breaker().IsOpen() {
		t.Fatal("breaker should half-open after the cooldown")
	}
	fail.Store(false)
	if _, err := g.Lookup(context.Background(), "Dune", ""); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if g.Breaker().IsOpen() {
		t.Fatal("successful probe should close the breaker")
	}
}

func TestVoteAuthor(t *testing.T) {
	cands := []CandidateRecord{
		{Author: "Brandon Sanderson"},
		{Author: "brandon sanderson"},
		{Author: "Unknown"},
		{Author: "Jane Austen"},
	}
	if got := VoteAuthor(cands, "Jane Austen"); got != "Brandon Sanderson" {
		t.Fatalf("majority should win, got %q", got)
	}

	split := []CandidateRecord{{Author: "Stephen King"}, {Author: "Dean Koontz"}}
	if got := VoteAuthor(split, "Dean Koontz"); got != "Dean Koontz" {
		t.Fatalf("current author among candidates should be kept, got %q", got)
	}
	if got := VoteAuthor(split, "Unknown"); got != "Stephen King" {
		t.Fatalf("placeholder current author should yield the winner, got %q", got)
	}
	if got := VoteAuthor([]CandidateRecord{{Author: "Various Authors"}}, ""); got != "" {
		t.Fatalf("placeholders must not vote, got %q", got)
	}
}

func TestAcceptFiltersAndOrders(t *testing.T) {
	cands := []CandidateRecord{
		{Provider: "openlibrary", Title: "Mistborn: The Final Empire", Author: "Brandon Sanderson"},
		{Provider: "googlebooks", Title: "The Final Empire", Author: "Brandon Sanderson", Series: "Mistborn", SeriesNum: "1"},
		{Provider: "audnexus", Author: "Brandon Sanderson"},
		{Provider: "googlebooks", Title: "Cooking for Dummies", Author: "Someone Else"},
		{Provider: "openlibrary", Title: "Empire Falls", Author: "Brandon Sanderson"},
	}
	got := Accept(cands, "The Final Empire", "Brandon Sanderson", 0.6)
	if len(got) != 3 {
		t.Fatalf("accepted %d candidates, want 3: %+v", len(got), got)
	}
	if got[0].Series != "Mistborn" {
		t.Fatalf("candidate with series should come first, got %+v", got[0])
	}
	for _, c := range got {
		if c.Author != "Brandon Sanderson" {
			t.Fatalf("author mismatch accepted: %+v", c)
		}
	}

	if got := Accept(cands, "Chapter 01", "", 0.6); len(got) != 1 || got[0].Title != "" {
		t.Fatalf("unsearchable titles should keep only author-only records, got %+v", got)
	}
}

type fakeCompleter struct {
	reply string
	err   error
	user  string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, user string) (string, error) {
	f.user = user
	return f.reply, f.err
}

func (f *fakeCompleter) Model() string { return "test-model" }

func TestAIIdentify(t *testing.T) {
	completer := &fakeCompleter{reply: "```json\n{\"author\":\"Dmitry Glukhovsky\",\"title\":\"Metro 2033\",\"series\":\"Metro\",\"series_num\":1,\"narrator\":null,\"year\":2005,\"language\":\"English\",\"confidence\":\"high\"}\n```"}
	ai := NewAIIdentifier("gemini", completer, nil)
	fields, err := ai.Identify(context.Background(), AIPrompt{
		FolderPath: "Metro 2033/Dmitry Glukhovsky",
		Files:      []string{"01.mp3"},
		Hints:      map[profile.Field]string{profile.FieldAuthor: "Metro 2033"},
		Notes:      []string{"author and title may be swapped"},
	})
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if fields.Author != "Dmitry Glukhovsky" || fields.Title != "Metro 2033" || fields.SeriesNum != "1" || fields.Year != "2005" {
		t.Fatalf("unexpected fields %+v", fields)
	}
	if fields.Language != "en" || fields.Confidence != 0.9 || fields.Narrator != "" {
		t.Fatalf("unexpected language/confidence %+v", fields)
	}
	if !strings.Contains(completer.user, "may be swapped") || !strings.Contains(completer.user, "Metro 2033/Dmitry Glukhovsky") {
		t.Fatalf("prompt missing evidence:\n%s", completer.user)
	}

	obs := fields.Observations(60, time.Now())
	if len(obs) != 6 || obs[0].Weight != 60 || obs[0].Source != profile.SourceAI {
		t.Fatalf("unexpected observations %+v", obs)
	}
}

func TestAILowConfidenceDowngradesWeight(t *testing.T) {
	fields := ParsedFields{Author: "Someone", Title: "Something", Confidence: 0.25}
	obs := fields.Observations(60, time.Now())
	if len(obs) != 2 || obs[0].Weight != 30 {
		t.Fatalf("weight should halve at confidence 0.25, got %+v", obs)
	}
}

func TestAIIdentifyRejectsGarbage(t *testing.T) {
	ai := NewAIIdentifier("openrouter", &fakeCompleter{reply: "I cannot help with that."}, nil)
	if _, err := ai.Identify(context.Background(), AIPrompt{FolderPath: "x"}); !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	empty := NewAIIdentifier("openrouter", &fakeCompleter{reply: `{"author":null,"title":null,"confidence":0}`}, nil)
	fields, err := empty.Identify(context.Background(), AIPrompt{FolderPath: "x"})
	if err != nil || fields != nil {
		t.Fatalf("empty answer = %+v, %v", fields, err)
	}
}

type countingCompleter struct {
	calls atomic.Int32
	err   error
}

func (c *countingCompleter) CompleteJSON(context.Context, string, string) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return `{"author":"Frank Herbert","title":"Dune","confidence":0.9}`, nil
}

func (c *countingCompleter) Model() string { return "test-model" }

func TestAIGuardRateLimitOpensBreaker(t *testing.T) {
	completer := &countingCompleter{err: services.Wrap(services.ErrRateLimited, "gemini", "generate", "quota exhausted", nil)}
	g := NewAIGuard("gemini", NewAIIdentifier("gemini", completer, nil), GuardOptions{FailureThreshold: 3, Cooldown: time.Hour})

	if _, err := g.Identify(context.Background(), AIPrompt{FolderPath: "Dune"}); !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if !g.Breaker().IsOpen() {
		t.Fatal("rate limit should open the AI breaker at once")
	}
	for i := 0; i < 5; i++ {
		if _, err := g.Identify(context.Background(), AIPrompt{FolderPath: "Dune"}); !errors.Is(err, ErrBreakerOpen) {
			t.Fatalf("call %d: expected open-breaker error, got %v", i, err)
		}
	}
	if got := completer.calls.Load(); got != 1 {
		t.Fatalf("backend called %d times, want 1", got)
	}
}

func TestAIGuardOpensAfterConsecutiveFailures(t *testing.T) {
	completer := &countingCompleter{err: services.Wrap(services.ErrTransient, "openrouter", "request", "503", nil)}
	g := NewAIGuard("openrouter", NewAIIdentifier("openrouter", completer, nil), GuardOptions{FailureThreshold: 2, Cooldown: time.Hour})
	for i := 0; i < 4; i++ {
		_, _ = g.Identify(context.Background(), AIPrompt{FolderPath: "Dune"})
	}
	if got := completer.calls.Load(); got != 2 {
		t.Fatalf("backend called %d times, want 2", got)
	}

	healthy := NewAIGuard("openrouter", NewAIIdentifier("openrouter", &countingCompleter{}, nil), GuardOptions{FailureThreshold: 2, Cooldown: time.Hour})
	fields, err := healthy.Identify(context.Background(), AIPrompt{FolderPath: "Dune"})
	if err != nil || fields == nil || fields.Author != "Frank Herbert" {
		t.Fatalf("identify = %+v, %v", fields, err)
	}
}

func TestParseConfidence(t *testing.T) {
	tests := map[string]float64{"0.8": 0.8, "85": 0.85, "85%": 0.85, "low": 0.3, "": 0, "bogus": 0, "1": 1}
	for in, want := range tests {
		if got := parseConfidence(in); got != want {
			t.Errorf("parseConfidence(%q) = %v, want %v", in, got, want)
		}
	}
}
