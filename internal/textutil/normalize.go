package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var titleCaser = cases.Title(language.English)

// FoldAccents strips combining marks so "Müller" and "Muller" compare equal.
func FoldAccents(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// Normalize produces the comparison key for a metadata value. Accents are
// folded, case is dropped, "&" reads as "and", punctuation becomes spacing
// and runs of single letters merge, so "J.R.R. Tolkien", "J. R. R. Tolkien"
// and "JRR Tolkien" all become "jrr tolkien".
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = strings.ToLower(FoldAccents(value))
	value = strings.ReplaceAll(value, "&", " and ")

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// apostrophes join words: "ender's" -> "enders"
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(mergeInitials(strings.Fields(b.String())), " ")
}

// mergeInitials joins consecutive single-letter tokens into one token.
func mergeInitials(words []string) []string {
	out := make([]string, 0, len(words))
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			out = append(out, run.String())
			run.Reset()
		}
	}
	for _, w := range words {
		if len([]rune(w)) == 1 && unicode.IsLetter([]rune(w)[0]) {
			run.WriteString(w)
			continue
		}
		flush()
		out = append(out, w)
	}
	flush()
	return out
}

// TitleCase applies English title casing to a value that arrived all lower
// or all upper case. Mixed-case input is returned untouched.
func TitleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if value != strings.ToLower(value) && value != strings.ToUpper(value) {
		return value
	}
	return titleCaser.String(value)
}

// StandardizeInitials rewrites leading initials in a person name to the
// dotted form: "JRR Tolkien" and "J. R. R. Tolkien" become "J.R.R. Tolkien".
// The final word is always treated as a surname.
func StandardizeInitials(name string) string {
	words := strings.Fields(strings.TrimSpace(name))
	if len(words) < 2 {
		return strings.TrimSpace(name)
	}

	out := make([]string, 0, len(words))
	var initials []rune
	flush := func() {
		if len(initials) == 0 {
			return
		}
		var b strings.Builder
		for _, r := range initials {
			b.WriteRune(r)
			b.WriteByte('.')
		}
		out = append(out, b.String())
		initials = initials[:0]
	}

	for i, w := range words {
		if i < len(words)-1 {
			if letters, ok := initialLetters(w); ok {
				initials = append(initials, letters...)
				continue
			}
		}
		flush()
		out = append(out, w)
	}
	flush()
	return strings.Join(out, " ")
}

// initialLetters reports whether word is a block of initials ("J.", "JRR",
// "J.R.R", "C.S.") and returns the letters.
func initialLetters(word string) ([]rune, bool) {
	stripped := strings.ReplaceAll(word, ".", "")
	letters := []rune(stripped)
	if len(letters) == 0 || len(letters) > 3 {
		return nil, false
	}
	for _, r := range letters {
		if !unicode.IsUpper(r) {
			return nil, false
		}
	}
	dotted := strings.Contains(word, ".")
	if len(letters) == 1 || dotted {
		return letters, true
	}
	// Undotted all-caps blocks of two or three letters read as initials.
	return letters, len(letters) >= 2
}
