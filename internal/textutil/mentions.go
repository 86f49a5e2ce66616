package textutil

import "strings"

// termSet returns the distinct lowercase, accent-folded words of text that
// are at least three letters long. Shorter words ("of", "a") carry no signal.
func termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, w := range wordSplitPattern.Split(strings.ToLower(FoldAccents(text)), -1) {
		if len([]rune(w)) >= 3 {
			terms[w] = struct{}{}
		}
	}
	return terms
}

// MentionCoverage returns the fraction of phrase's terms that occur
// anywhere in text. A phrase with no usable terms scores 0.
func MentionCoverage(text, phrase string) float64 {
	want := termSet(phrase)
	if len(want) == 0 {
		return 0
	}
	have := termSet(text)
	hit := 0
	for term := range want {
		if _, ok := have[term]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(want))
}
