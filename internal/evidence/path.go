package evidence

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"librarian/internal/profile"
)

var (
	narratorMarker = regexp.MustCompile(`\{([^{}]+)\}`)
	variantMarker  = regexp.MustCompile(`\[([^\[\]]+)\]`)
	yearMarker     = regexp.MustCompile(`\(((?:18|19|20)\d{2})\)`)
	byAuthorForm   = regexp.MustCompile(`^(.+?)\s+by\s+(.+)$`)
	junkVariant    = regexp.MustCompile(`(?i)^(?:\d+\s*k(?:bps)?|mp3|m4b|aac|flac|unabridged|abridged|vbr|cbr|\d+)$`)
	seriesHint     = regexp.MustCompile(`(?i)\b(?:book|vol(?:ume)?|part|series|saga|trilogy|cycle)\b|#\d`)
	initialsWord   = regexp.MustCompile(`^(?:\p{Lu}\.)+\p{Lu}?\.?$`)
)

// PathInfo is what a book folder's location says about the book.
type PathInfo struct {
	Author    string
	Title     string
	Series    string
	SeriesNum string
	Narrator  string
	Year      string
	Variant   string

	// PossibleSwap is set when the parent folder looks like a title and the
	// book folder looks like a person name ("Metro 2033/Dmitry Glukhovsky").
	PossibleSwap bool
	Triage       Triage
}

// ParsePath interprets the location of dir relative to the library root.
// Recognized layouts are Author/Title, Author/Series/NN - Title,
// "Author - Title" and "Title by Author", with optional (Year), {Narrator}
// and [Variant] markers in the book folder name.
func ParsePath(root, dir string) PathInfo {
	segments := relativeSegments(root, dir)
	if len(segments) == 0 {
		return PathInfo{Triage: TriageGarbage}
	}

	folder := segments[len(segments)-1]
	info := PathInfo{Triage: TriageFolder(folder)}
	if info.Triage == TriageGarbage {
		return info
	}

	core := folder
	if m := narratorMarker.FindStringSubmatch(core); m != nil {
		info.Narrator = strings.TrimSpace(m[1])
		core = narratorMarker.ReplaceAllString(core, "")
	}
	if m := yearMarker.FindStringSubmatch(core); m != nil {
		info.Year = m[1]
		core = yearMarker.ReplaceAllString(core, "")
	}
	for _, m := range variantMarker.FindAllStringSubmatch(core, -1) {
		candidate := strings.TrimSpace(m[1])
		if info.Variant == "" && !junkVariant.MatchString(candidate) && !isCapsTag(candidate) {
			info.Variant = candidate
		}
	}
	core = variantMarker.ReplaceAllString(core, "")
	if info.Triage == TriageMessy {
		core = CleanSearchTitle(core)
	}
	core = squashSpaces(core)

	var parent, grandparent string
	if len(segments) >= 2 {
		parent = strings.TrimSpace(segments[len(segments)-2])
	}
	if len(segments) >= 3 {
		grandparent = strings.TrimSpace(segments[len(segments)-3])
	}

	switch {
	case grandparent != "" && !IsSystemFolder(grandparent):
		info.Author = grandparent
		info.Series = parent
		num, rest, ok := splitLeadingNumber(core)
		if ok {
			info.SeriesNum = num
		}
		info.Title = rest
	case parent != "" && !IsSystemFolder(parent):
		info.Author = parent
		info.Title = core
		if looksLikeTitle(parent) && looksLikePersonName(core) {
			info.PossibleSwap = true
		}
	default:
		info.Author, info.Title = splitFolderForm(core)
	}

	if info.Author == "" || info.Title == "" {
		if a, t := splitFolderForm(core); a != "" {
			info.Author, info.Title = a, t
		}
	}
	if info.Series == "" {
		if s := ExtractSeries(info.Title); s.Series != "" {
			info.Series, info.SeriesNum, info.Title = s.Series, s.SeriesNum, s.Title
		}
	}
	if info.SeriesNum == "" {
		if num, rest, ok := splitLeadingNumber(info.Title); ok && info.Series != "" {
			info.SeriesNum, info.Title = num, rest
		}
	}
	if strings.HasPrefix(info.Author, "@") || strings.HasPrefix(info.Author, "#") || strings.HasPrefix(info.Author, ".") {
		info.Author = ""
	}
	if profile.IsPlaceholder(info.Author) {
		info.Author = ""
	}
	return info
}

// Observations converts the parsed path into path-sourced observations.
// The swapped interpretation, when detected, is emitted at half weight.
func (p PathInfo) Observations(weight int, at time.Time) []profile.Observation {
	if p.Triage == TriageGarbage {
		return nil
	}
	out := profile.Observe(profile.SourcePath, weight, at, map[profile.Field]string{
		profile.FieldAuthor:    p.Author,
		profile.FieldTitle:     p.Title,
		profile.FieldSeries:    p.Series,
		profile.FieldSeriesNum: p.SeriesNum,
		profile.FieldNarrator:  p.Narrator,
		profile.FieldYear:      p.Year,
		profile.FieldVariant:   p.Variant,
	})
	if p.PossibleSwap {
		out = append(out, profile.Observe(profile.SourcePath, max(weight/2, 1), at, map[profile.Field]string{
			profile.FieldAuthor: p.Title,
			profile.FieldTitle:  p.Author,
		})...)
	}
	return out
}

// Swapped returns the reversed author/title interpretation.
func (p PathInfo) Swapped() PathInfo {
	out := p
	out.Author, out.Title = p.Title, p.Author
	return out
}

func relativeSegments(root, dir string) []string {
	dir = filepath.Clean(dir)
	rel := dir
	if root != "" {
		if r, err := filepath.Rel(filepath.Clean(root), dir); err == nil && r != "." && !strings.HasPrefix(r, "..") {
			rel = r
		} else {
			rel = filepath.Base(dir)
		}
	}
	var out []string
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if seg = strings.TrimSpace(seg); seg != "" && seg != "." {
			out = append(out, seg)
		}
	}
	if len(out) > 3 {
		out = out[len(out)-3:]
	}
	return out
}

// splitFolderForm handles single-segment names: "Author - Title" and
// "Title by Author". A numeric left side ("01 - Title") is not an author.
func splitFolderForm(name string) (author, title string) {
	name = strings.TrimSpace(name)
	if left, right, ok := strings.Cut(name, " - "); ok {
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if _, _, numeric := splitLeadingNumber(name); !numeric && left != "" && right != "" {
			return left, right
		}
	}
	if m := byAuthorForm.FindStringSubmatch(name); m != nil && looksLikePersonName(m[2]) {
		return strings.TrimSpace(m[2]), strings.TrimSpace(m[1])
	}
	return "", name
}

func looksLikeTitle(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return seriesHint.MatchString(s)
}

// looksLikePersonName accepts two to four capitalized words without digits;
// initials such as "J.R.R." count as a word.
func looksLikePersonName(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if initialsWord.MatchString(w) {
			continue
		}
		runes := []rune(w)
		if !unicode.IsUpper(runes[0]) {
			return false
		}
		for _, r := range runes[1:] {
			if !unicode.IsLetter(r) && r != '\'' && r != '-' && r != '.' {
				return false
			}
		}
	}
	return true
}

func isCapsTag(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		} else if r != ' ' && r != '-' {
			return false
		}
	}
	return letters >= 2
}

func squashSpaces(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), " -_.")
}
