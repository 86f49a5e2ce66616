package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"librarian/internal/logging"
	"librarian/internal/profile"
	"librarian/internal/services"
	"librarian/internal/services/llm"
)

const aiSystemPrompt = `You identify audiobooks from messy evidence: folder names, file names, embedded tags and transcripts of the opening narration.
Folder names may have author and title swapped, may carry release-group junk, or may name a series instead of a book.
Return ONLY a JSON object with the keys author, title, series, series_num, narrator, year, language and confidence.
Use null for anything you cannot determine. confidence is a number between 0 and 1.
Never invent an author from a folder name that is clearly not a person.`

// Completer sends one JSON completion request. llm.Client and
// gemini.Client implement it.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// AI identifies a book from the gathered evidence.
type AI interface {
	Identify(ctx context.Context, prompt AIPrompt) (*ParsedFields, error)
}

// AIPrompt is the evidence handed to the model.
type AIPrompt struct {
	FolderPath string
	Files      []string
	Tags       map[string]string
	Transcript string
	// Hints are the current best values per field.
	Hints map[profile.Field]string
	// Notes carry extractor remarks such as a suspected author/title swap.
	Notes []string
}

// ParsedFields is the model's answer.
type ParsedFields struct {
	Author     string
	Title      string
	Series     string
	SeriesNum  string
	Narrator   string
	Year       string
	Language   string
	Confidence float64
}

// Observations converts the answer into observations. Answers the model
// itself rates below 0.5 carry proportionally less weight.
func (p ParsedFields) Observations(weight int, at time.Time) []profile.Observation {
	if p.Confidence > 0 && p.Confidence < 0.5 {
		weight = max(1, int(math.Round(float64(weight)*p.Confidence/0.5)))
	}
	return profile.Observe(profile.SourceAI, weight, at, map[profile.Field]string{
		profile.FieldAuthor:    p.Author,
		profile.FieldTitle:     p.Title,
		profile.FieldSeries:    p.Series,
		profile.FieldSeriesNum: p.SeriesNum,
		profile.FieldNarrator:  p.Narrator,
		profile.FieldYear:      p.Year,
		profile.FieldLanguage:  p.Language,
	})
}

// AIIdentifier implements AI over a Completer.
type AIIdentifier struct {
	completer Completer
	name      string
	logger    *slog.Logger
}

// NewAIIdentifier wraps completer. name labels the backend in logs.
func NewAIIdentifier(name string, completer Completer, logger *slog.Logger) *AIIdentifier {
	return &AIIdentifier{
		completer: completer,
		name:      name,
		logger:    logging.NewComponentLogger(logger, "ai"),
	}
}

// Name returns the backend label.
func (a *AIIdentifier) Name() string {
	return a.name
}

// Identify implements AI. A reply that cannot be decoded is an
// ErrExternalTool error; an empty answer is nil, nil.
func (a *AIIdentifier) Identify(ctx context.Context, prompt AIPrompt) (*ParsedFields, error) {
	content, err := a.completer.CompleteJSON(ctx, aiSystemPrompt, prompt.Render())
	if err != nil {
		return nil, err
	}
	var reply aiReply
	if err := llm.DecodeLLMJSON(content, &reply); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "ai", "decode", a.name, err)
	}
	fields := reply.fields()
	if fields.Author == "" && fields.Title == "" {
		return nil, nil
	}
	a.logger.Debug("ai identification",
		logging.String(logging.FieldProvider, a.name),
		logging.String("model", a.completer.Model()),
		logging.String("author", fields.Author),
		logging.String("title", fields.Title),
		logging.Float64("confidence", fields.Confidence),
	)
	return &fields, nil
}

// Render formats the prompt as the user message.
func (p AIPrompt) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Folder: %s\n", p.FolderPath)
	if len(p.Files) > 0 {
		files := p.Files
		if len(files) > 20 {
			files = files[:20]
		}
		fmt.Fprintf(&b, "Files (%d total):\n", len(p.Files))
		for _, f := range files {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if len(p.Tags) > 0 {
		keys := make([]string, 0, len(p.Tags))
		for k := range p.Tags {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		b.WriteString("Embedded tags:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, p.Tags[k])
		}
	}
	if len(p.Hints) > 0 {
		b.WriteString("Current best guess:\n")
		for _, f := range profile.AllFields {
			if v := p.Hints[f]; v != "" {
				fmt.Fprintf(&b, "- %s: %s\n", f, v)
			}
		}
	}
	for _, note := range p.Notes {
		fmt.Fprintf(&b, "Note: %s\n", note)
	}
	if t := strings.TrimSpace(p.Transcript); t != "" {
		if len(t) > 2000 {
			t = t[:2000]
		}
		fmt.Fprintf(&b, "Opening narration transcript:\n%q\n", t)
	}
	return b.String()
}

type aiReply struct {
	Author     looseString `json:"author"`
	Title      looseString `json:"title"`
	Series     looseString `json:"series"`
	SeriesNum  looseString `json:"series_num"`
	Narrator   looseString `json:"narrator"`
	Year       looseString `json:"year"`
	Language   looseString `json:"language"`
	Confidence looseString `json:"confidence"`
}

func (r aiReply) fields() ParsedFields {
	return ParsedFields{
		Author:     r.Author.clean(),
		Title:      r.Title.clean(),
		Series:     r.Series.clean(),
		SeriesNum:  r.SeriesNum.clean(),
		Narrator:   r.Narrator.clean(),
		Year:       r.Year.clean(),
		Language:   normalizeLanguage(r.Language.clean()),
		Confidence: parseConfidence(string(r.Confidence)),
	}
}

// looseString accepts strings, numbers and null.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = looseString(val)
	case float64:
		*s = looseString(strconv.FormatFloat(val, 'f', -1, 64))
	default:
		*s = ""
	}
	return nil
}

func (s looseString) clean() string {
	v := strings.TrimSpace(string(s))
	switch strings.ToLower(v) {
	case "null", "none", "n/a", "unknown":
		return ""
	}
	return v
}

// parseConfidence reads 0-1 numbers, percentages and high/medium/low.
func parseConfidence(raw string) float64 {
	raw = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%")))
	switch raw {
	case "high":
		return 0.9
	case "medium":
		return 0.6
	case "low":
		return 0.3
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	if v > 1 {
		v /= 100
	}
	return min(v, 1)
}
