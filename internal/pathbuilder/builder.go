package pathbuilder

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"librarian/internal/config"
	"librarian/internal/language"
	"librarian/internal/services"
	"librarian/internal/textutil"
)

const unsafeTokenChars = `<>:"/\|?*`

var (
	tokenPattern     = regexp.MustCompile(`\{(author|title|series|series_num|narrator|year|language|language_code|author_last|edition|variant)\}`)
	emptyParens      = regexp.MustCompile(`\(\s*\)`)
	emptyBrackets    = regexp.MustCompile(`\[\s*\]`)
	emptyBraces      = regexp.MustCompile(`\{\s*\}`)
	danglingDash     = regexp.MustCompile(`\s+-\s*(/|$)`)
	leadingDash      = regexp.MustCompile(`(^|/)\s*-\s+`)
	repeatedDash     = regexp.MustCompile(`\s+-\s+(?:-\s+)+`)
	repeatedSlash    = regexp.MustCompile(`/{2,}`)
	repeatedSpace    = regexp.MustCompile(`[ \t]{2,}`)
	ellipsisRun      = regexp.MustCompile(`\.{2,}`)
	versionLetters   = "BCDEFGHIJKLMNOPQRSTUVWXYZ"
	errMissingFields = errors.New("author and title are required")
)

// Build returns the absolute destination folder for p. It fails with
// services.ErrUnsafePath when the result would escape the library root or
// be shallower than the template's minimum depth, and with
// services.ErrConflict when every version slot is taken.
func Build(p Profile, t Template, existing ExistingIndex) (string, error) {
	natural, err := Natural(p, t)
	if err != nil {
		return "", err
	}
	if fits(natural, p.Recording, existing, t) {
		return natural, nil
	}

	parent, base := filepath.Dir(natural), filepath.Base(natural)
	if narrator := cleanToken(p.Narrator); narrator != "" && !strings.Contains(base, "{"+narrator+"}") {
		if seg, ok := textutil.SanitizePathSegment(base + " {" + narrator + "}"); ok {
			candidate := filepath.Join(parent, seg)
			if fits(candidate, p.Recording, existing, t) {
				return candidate, nil
			}
		}
	}
	for _, letter := range versionLetters {
		seg, ok := textutil.SanitizePathSegment(base + " [Version " + string(letter) + "]")
		if !ok {
			break
		}
		candidate := filepath.Join(parent, seg)
		if fits(candidate, p.Recording, existing, t) {
			return candidate, nil
		}
	}
	return "", services.Wrap(services.ErrConflict, "pathbuilder", "build",
		fmt.Sprintf("no free version slot for %s", natural), nil)
}

// Natural returns the destination p would get in an empty library.
func Natural(p Profile, t Template) (string, error) {
	root := filepath.Clean(t.Root)
	if t.Root == "" || !filepath.IsAbs(root) {
		return "", services.Wrap(services.ErrConfiguration, "pathbuilder", "build", "library root must be an absolute path", nil)
	}
	author := cleanToken(p.Author)
	if t.StandardizeInitials {
		author = textutil.StandardizeInitials(author)
	}
	title := cleanToken(p.Title)
	if author == "" || title == "" {
		return "", services.Wrap(services.ErrUnsafePath, "pathbuilder", "build", "", errMissingFields)
	}

	var rendered string
	switch t.Format {
	case config.NamingCustom:
		if strings.HasPrefix(strings.TrimSpace(t.Custom), "/") {
			return "", services.Wrap(services.ErrUnsafePath, "pathbuilder", "build", "custom template must be relative", nil)
		}
		rendered = renderCustom(t.Custom, p, author, title)
	case config.NamingAuthorDashTitle:
		rendered = author + " - " + titleFolder(p, title, t.SeriesGrouping)
	default:
		series := cleanToken(p.Series)
		if t.SeriesGrouping && series != "" {
			rendered = author + "/" + series + "/" + titleFolder(p, title, true)
		} else {
			rendered = author + "/" + titleFolder(p, title, false)
		}
	}

	segments, err := splitSegments(collapse(rendered))
	if err != nil {
		return "", err
	}
	if len(segments) < t.EffectiveMinDepth() {
		return "", services.Wrap(services.ErrUnsafePath, "pathbuilder", "build",
			fmt.Sprintf("destination %q is shallower than %d levels", strings.Join(segments, "/"), t.EffectiveMinDepth()), nil)
	}
	dest := filepath.Join(append([]string{root}, segments...)...)
	if !Within(root, dest) {
		return "", services.Wrap(services.ErrUnsafePath, "pathbuilder", "build", fmt.Sprintf("destination %q escapes library root", dest), nil)
	}
	return dest, nil
}

// Within reports whether path lies strictly below root.
func Within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Depth counts the folders between root and path.
func Depth(root, path string) int {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

func fits(candidate string, rec Recording, existing ExistingIndex, t Template) bool {
	occupant, ok := existing.get(candidate)
	if !ok {
		return true
	}
	return sameRecording(rec, occupant, t.VersionSimilarity)
}

// titleFolder decorates the title with the series number prefix and the
// version marker: [variant], else [edition], else (year).
func titleFolder(p Profile, title string, withSeriesNum bool) string {
	folder := title
	if withSeriesNum && cleanToken(p.Series) != "" {
		if num := PadSeriesNum(p.SeriesNum); num != "" {
			folder = num + " - " + folder
		}
	}
	switch variant, edition, year := cleanToken(p.Variant), cleanToken(p.Edition), cleanToken(p.Year); {
	case variant != "":
		folder += " [" + variant + "]"
	case edition != "":
		folder += " [" + edition + "]"
	case year != "":
		folder += " (" + year + ")"
	}
	return folder
}

func renderCustom(tmpl string, p Profile, author, title string) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = "{author}/{title}"
	}
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(tok string) string {
		switch strings.Trim(tok, "{}") {
		case "author":
			return author
		case "title":
			return title
		case "series":
			return cleanToken(p.Series)
		case "series_num":
			return PadSeriesNum(p.SeriesNum)
		case "narrator":
			return cleanToken(p.Narrator)
		case "year":
			return cleanToken(p.Year)
		case "language":
			if strings.TrimSpace(p.Language) == "" {
				return ""
			}
			return cleanToken(language.DisplayName(p.Language))
		case "language_code":
			return language.ToISO2(p.Language)
		case "author_last":
			return authorLast(author)
		case "edition":
			return cleanToken(p.Edition)
		case "variant":
			return cleanToken(p.Variant)
		}
		return ""
	})
}

// collapse removes the punctuation left behind by empty tokens.
func collapse(s string) string {
	for {
		prev := s
		s = emptyParens.ReplaceAllString(s, "")
		s = emptyBrackets.ReplaceAllString(s, "")
		s = emptyBraces.ReplaceAllString(s, "")
		s = repeatedDash.ReplaceAllString(s, " - ")
		s = danglingDash.ReplaceAllString(s, "$1")
		s = leadingDash.ReplaceAllString(s, "$1")
		s = repeatedSlash.ReplaceAllString(s, "/")
		s = repeatedSpace.ReplaceAllString(s, " ")
		if s == prev {
			break
		}
	}
	return strings.Trim(s, " /")
}

func splitSegments(rendered string) ([]string, error) {
	var out []string
	for _, raw := range strings.Split(rendered, "/") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "..") || strings.HasPrefix(raw, `\`) {
			return nil, services.Wrap(services.ErrUnsafePath, "pathbuilder", "build", fmt.Sprintf("segment %q is a traversal", raw), nil)
		}
		if seg, ok := textutil.SanitizePathSegment(raw); ok {
			out = append(out, seg)
		}
	}
	return out, nil
}

// cleanToken strips path separators and unsafe characters from a value
// before it is substituted, so values can never introduce segments.
func cleanToken(value string) string {
	value = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case strings.ContainsRune(unsafeTokenChars, r):
			return ' '
		}
		return r
	}, value)
	value = ellipsisRun.ReplaceAllString(value, "…")
	value = strings.Join(strings.Fields(value), " ")
	return strings.Trim(value, ". ")
}

// PadSeriesNum zero-pads whole series numbers to two digits and keeps
// fractional ones as written.
func PadSeriesNum(num string) string {
	num = strings.TrimLeft(strings.TrimSpace(num), "#")
	if num == "" {
		return ""
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(num, ",", "."), 64)
	if err != nil || f < 0 {
		return cleanToken(num)
	}
	if f == float64(int64(f)) {
		return fmt.Sprintf("%02d", int64(f))
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func authorLast(author string) string {
	fields := strings.Fields(author)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
