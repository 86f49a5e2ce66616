package evidence

import (
	"regexp"
	"strings"
)

const (
	nameWord   = `(?:\p{Lu}\.(?:\s?\p{Lu}\.)*|\p{Lu}[\p{L}'’-]*)`
	personName = nameWord + `(?:\s+` + nameWord + `){0,3}`
	titleWord  = `[\p{Lu}\d][\p{L}\d'’:-]*`
	smallWord  = `(?:of|the|a|an|and|in|on|to|for|at)`
	titleRun   = titleWord + `(?:,?\s+(?:` + titleWord + `|` + smallWord + `))*`
)

var (
	narratedBy = regexp.MustCompile(`(?:[Nn]arrated|[Rr]ead|[Pp]erformed)\s+by\s+(` + personName + `)`)
	writtenBy  = regexp.MustCompile(`[Ww]ritten\s+by\s+(` + personName + `)`)
	titleBy    = regexp.MustCompile(`(` + titleRun + `),?\s+(?:[Ww]ritten\s+)?by\s+(` + personName + `)`)
)

var creditVerbs = map[string]struct{}{
	"narrated": {}, "read": {}, "performed": {}, "written": {}, "presented": {}, "produced": {},
}

// Credits are the names spoken in an audiobook intro.
type Credits struct {
	Title    string
	Author   string
	Narrator string
}

// ParseCredits extracts "Title by Author", "written by Author" and
// "narrated by Narrator" phrases from a transcript or description.
func ParseCredits(text string) Credits {
	text = strings.Join(strings.Fields(text), " ")
	var c Credits
	if m := narratedBy.FindStringSubmatch(text); m != nil {
		c.Narrator = cleanName(m[1])
	}
	for _, m := range titleBy.FindAllStringSubmatch(text, -1) {
		title := strings.TrimSpace(strings.TrimRight(m[1], ","))
		words := strings.Fields(title)
		last := strings.ToLower(words[len(words)-1])
		if _, verb := creditVerbs[last]; verb {
			continue
		}
		if _, verb := creditVerbs[strings.ToLower(words[0])]; verb && len(words) == 1 {
			continue
		}
		c.Title = title
		c.Author = cleanName(m[2])
		break
	}
	if c.Author == "" {
		if m := writtenBy.FindStringSubmatch(text); m != nil {
			c.Author = cleanName(m[1])
		}
	}
	if c.Narrator != "" && c.Narrator == c.Author {
		c.Narrator = ""
	}
	return c
}

// cleanName stops a name at the next credit verb ("Rupert Degas Narrated").
func cleanName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if _, verb := creditVerbs[strings.ToLower(w)]; verb && i > 0 {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}
