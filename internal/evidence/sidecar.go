package evidence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"librarian/internal/language"
	"librarian/internal/profile"
)

const maxSidecarBytes = 1 << 20

var (
	nfoLine     = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z ./_-]{0,40}?)\s*[:=]\s*(.+?)\s*$`)
	yearPattern = regexp.MustCompile(`\b((?:18|19|20)\d{2})\b`)
)

var nfoKeys = map[string]profile.Field{
	"title":         profile.FieldTitle,
	"book title":    profile.FieldTitle,
	"album":         profile.FieldTitle,
	"author":        profile.FieldAuthor,
	"authors":       profile.FieldAuthor,
	"artist":        profile.FieldAuthor,
	"written by":    profile.FieldAuthor,
	"narrator":      profile.FieldNarrator,
	"narrators":     profile.FieldNarrator,
	"narrated by":   profile.FieldNarrator,
	"read by":       profile.FieldNarrator,
	"reader":        profile.FieldNarrator,
	"series":        profile.FieldSeries,
	"series name":   profile.FieldSeries,
	"series number": profile.FieldSeriesNum,
	"series part":   profile.FieldSeriesNum,
	"book number":   profile.FieldSeriesNum,
	"year":          profile.FieldYear,
	"release date":  profile.FieldYear,
	"published":     profile.FieldYear,
	"copyright":     profile.FieldYear,
	"language":      profile.FieldLanguage,
	"edition":       profile.FieldEdition,
	"version":       profile.FieldVariant,
}

// absMetadata is the subset of an Audiobookshelf metadata.json we read.
type absMetadata struct {
	Title         string          `json:"title"`
	Authors       []string        `json:"authors"`
	Narrators     []string        `json:"narrators"`
	Series        json.RawMessage `json:"series"`
	PublishedYear string          `json:"publishedYear"`
	Language      string          `json:"language"`
	Edition       string          `json:"edition"`
	ASIN          string          `json:"asin"`
}

// ReadSidecars reads metadata.json, *.nfo, reader.txt and desc.txt from dir.
// Unreadable or malformed sidecars are skipped; the error only reports
// failures to list the directory.
func ReadSidecars(dir string, at time.Time) ([]profile.Observation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read sidecars: %w", err)
	}
	var out []profile.Observation
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)
		switch lower := strings.ToLower(name); {
		case lower == "metadata.json":
			if values, ok := parseABSMetadata(path); ok {
				out = append(out, profile.Observe(profile.SourceJSON, 0, at, values)...)
			}
		case strings.HasSuffix(lower, ".nfo"):
			if data, ok := readSmall(path); ok {
				out = append(out, profile.Observe(profile.SourceNFO, 0, at, ParseNFO(data))...)
			}
		case lower == "reader.txt" || lower == "narrator.txt":
			if data, ok := readSmall(path); ok {
				if line := firstLine(data); line != "" {
					out = append(out, profile.Observe(profile.SourceNFO, 0, at, map[profile.Field]string{profile.FieldNarrator: line})...)
				}
			}
		case lower == "desc.txt" || lower == "description.txt":
			if data, ok := readSmall(path); ok {
				credits := ParseCredits(data)
				out = append(out, profile.Observe(profile.SourceNFO, 0, at, map[profile.Field]string{
					profile.FieldNarrator: credits.Narrator,
				})...)
			}
		}
	}
	return out, nil
}

// ParseNFO extracts known "Key: Value" lines from an .nfo file. The first
// occurrence of each field wins.
func ParseNFO(text string) map[profile.Field]string {
	values := make(map[profile.Field]string)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		m := nfoLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		key := strings.ToLower(strings.Trim(strings.TrimSpace(m[1]), "._-"))
		field, ok := nfoKeys[key]
		if !ok {
			continue
		}
		if _, exists := values[field]; exists {
			continue
		}
		value := strings.TrimSpace(m[2])
		switch field {
		case profile.FieldYear:
			ym := yearPattern.FindStringSubmatch(value)
			if ym == nil {
				continue
			}
			value = ym[1]
		case profile.FieldLanguage:
			if code := language.ToISO2(value); code != "" {
				value = code
			}
		}
		values[field] = value
	}
	return values
}

func parseABSMetadata(path string) (map[profile.Field]string, bool) {
	data, ok := readSmall(path)
	if !ok {
		return nil, false
	}
	var meta absMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return nil, false
	}
	values := map[profile.Field]string{
		profile.FieldTitle:   meta.Title,
		profile.FieldEdition: meta.Edition,
	}
	if len(meta.Authors) > 0 {
		values[profile.FieldAuthor] = meta.Authors[0]
	}
	if len(meta.Narrators) > 0 {
		values[profile.FieldNarrator] = meta.Narrators[0]
	}
	if ym := yearPattern.FindStringSubmatch(meta.PublishedYear); ym != nil {
		values[profile.FieldYear] = ym[1]
	}
	if code := language.ToISO2(meta.Language); code != "" {
		values[profile.FieldLanguage] = code
	}
	if series := absSeries(meta.Series); series != "" {
		info := ExtractSeries(series)
		if info.Series != "" {
			values[profile.FieldSeries] = info.Series
			values[profile.FieldSeriesNum] = info.SeriesNum
		} else {
			values[profile.FieldSeries] = series
		}
	}
	return values, true
}

// absSeries accepts both the ["Mistborn #1"] and the "Mistborn #1" shapes.
func absSeries(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 {
			return strings.TrimSpace(list[0])
		}
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	return ""
}

// SidecarASIN returns the ASIN recorded in dir/metadata.json, or "".
func SidecarASIN(dir string) string {
	data, ok := readSmall(filepath.Join(dir, "metadata.json"))
	if !ok {
		return ""
	}
	var meta absMetadata
	if err := json.Unmarshal([]byte(data), &meta); err != nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(meta.ASIN))
}

func readSmall(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxSidecarBytes {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.ToValidUTF8(string(data), ""), true
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
