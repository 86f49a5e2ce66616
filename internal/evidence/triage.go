package evidence

import (
	"regexp"
	"strings"
)

// Triage classifies how much a folder name can be trusted.
type Triage string

const (
	TriageClean   Triage = "clean"
	TriageMessy   Triage = "messy"
	TriageGarbage Triage = "garbage"
)

var messyPatterns = compileAll(
	`\[[A-Z]{2,}[^\]]*\]`,
	`(?i)\((?:narrator|read by|unabridged|abridged|rip|\d+\s*kbps)[^)]*\)`,
	`^\d{4}\s*-`,
	`\d{2}\.\d{2}\.\d{2}`,
	`(?i)\d+k\b`,
	`(?i)kbps`,
	`\b(?:HQ|LQ)\b`,
	`-[A-Z0-9]{2,}$`,
	`(?i)\.com\b`,
	`(?i)\bwww\.`,
	`(?i)\b(?:rip|scene|retail)\b`,
	`(?i)\b(?:mp3|m4b|aac|flac|opus|vbr|cbr|lame)\b`,
)

var garbagePatterns = compileAll(
	`(?i)^[0-9a-f]{12,}$`,
	`^\d+$`,
	`(?i)^(?:new folder|tmp|temp|downloads?|torrents?|audiobooks?|untitled|incoming)(?:\s*\(\d+\))?$`,
	`(?i)^(?:cd|disc|disk|track|part)\s*\d+$`,
	`(?i)^unknown(?:\s+(?:artist|author|album))?$`,
)

var systemFolders = map[string]struct{}{
	"@eadir":                    {},
	"#recycle":                  {},
	".appledouble":              {},
	"__macosx":                  {},
	"$recycle.bin":              {},
	".trash":                    {},
	".trashes":                  {},
	"system volume information": {},
	"lost+found":                {},
}

// TriageFolder classifies a folder name as clean, messy (release junk that
// needs cleaning) or garbage (no usable information).
func TriageFolder(name string) Triage {
	name = strings.TrimSpace(name)
	if name == "" || IsSystemFolder(name) {
		return TriageGarbage
	}
	for _, re := range garbagePatterns {
		if re.MatchString(name) {
			return TriageGarbage
		}
	}
	for _, re := range messyPatterns {
		if re.MatchString(name) {
			return TriageMessy
		}
	}
	return TriageClean
}

// IsSystemFolder reports whether name is a NAS, OS or archive metadata
// folder that never holds a book.
func IsSystemFolder(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	if _, ok := systemFolders[lower]; ok {
		return true
	}
	return strings.HasPrefix(lower, "@") || strings.HasPrefix(lower, ".")
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
