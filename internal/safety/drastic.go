package safety

import (
	"strings"

	"librarian/internal/profile"
	"librarian/internal/textutil"
)

const drasticOverlap = 0.3

// IsDrasticAuthorChange reports whether moving a book from oldAuthor to
// newAuthor replaces the author rather than correcting it. Renaming away
// from a placeholder is never drastic.
func IsDrasticAuthorChange(oldAuthor, newAuthor string) bool {
	if profile.IsPlaceholder(oldAuthor) || profile.IsPlaceholder(newAuthor) {
		return false
	}
	if textutil.Normalize(oldAuthor) == textutil.Normalize(newAuthor) {
		return false
	}
	oldParts, newParts := textutil.NameParts(oldAuthor), textutil.NameParts(newAuthor)
	if len(oldParts) == 0 || len(newParts) == 0 {
		return false
	}
	shared := 0
	for p := range oldParts {
		if _, ok := newParts[p]; ok {
			shared++
		}
	}
	if shared == 0 {
		oldLast, newLast := textutil.LongestPart(oldParts), textutil.LongestPart(newParts)
		return !strings.Contains(oldLast, newLast) && !strings.Contains(newLast, oldLast)
	}
	return float64(shared)/float64(max(len(oldParts), len(newParts))) < drasticOverlap
}
