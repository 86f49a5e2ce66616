package textutil

import (
	"strings"
	"unicode"
)

const unsafeSegmentChars = `<>:"/\|?*`

// SanitizePathSegment cleans one directory name for use on common
// filesystems. It returns false when nothing usable remains or the input
// looks like a traversal attempt.
func SanitizePathSegment(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", false
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(unsafeSegmentChars, r) {
			return -1
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	name = strings.Trim(name, ". ")
	if len([]rune(name)) < 2 {
		return "", false
	}
	return name, true
}

// SanitizeFileName replaces filesystem-unsafe characters in a single file
// name with dashes. Unlike SanitizePathSegment it never rejects input.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case strings.ContainsRune(unsafeSegmentChars, r):
			return '-'
		}
		return r
	}, name))
}
