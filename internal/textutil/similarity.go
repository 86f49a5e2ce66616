package textutil

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"
)

var wordSplitPattern = regexp.MustCompile(`[^\pL\pN]+`)

var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {}, "in": {},
	"to": {}, "for": {}, "by": {}, "part": {}, "book": {}, "volume": {},
}

// NameSimilarity scores two values by edit distance over their normalized
// forms. Identical keys score 1.
func NameSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return levenshtein.Similarity(na, nb, nil)
}

// TitleWords returns the distinct significant words of a title, lowercased
// and with stop words removed.
func TitleWords(title string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range wordSplitPattern.Split(strings.ToLower(FoldAccents(title)), -1) {
		if w == "" {
			continue
		}
		if _, stop := titleStopWords[w]; stop {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}

// TitleSimilarity is the Jaccard overlap of the significant words of two
// titles, in [0, 1].
func TitleSimilarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	wa, wb := TitleWords(a), TitleWords(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// NameParts returns the distinct words of a person name longer than one
// character, with punctuation removed.
func NameParts(name string) map[string]struct{} {
	parts := make(map[string]struct{})
	for _, w := range wordSplitPattern.Split(strings.ToLower(FoldAccents(name)), -1) {
		if len([]rune(w)) > 1 {
			parts[w] = struct{}{}
		}
	}
	return parts
}

// LongestPart returns the longest entry of parts, which is usually the surname.
// Ties resolve alphabetically so the result is stable.
func LongestPart(parts map[string]struct{}) string {
	best := ""
	for p := range parts {
		if len(p) > len(best) || (len(p) == len(best) && p < best) {
			best = p
		}
	}
	return best
}
