package profile

import "strings"

var placeholderValues = map[string]struct{}{
	"": {}, "unknown": {}, "unknown author": {}, "various": {}, "various authors": {},
	"va": {}, "n/a": {}, "none": {}, "audiobook": {}, "audiobooks": {},
	"ebook": {}, "ebooks": {}, "book": {}, "books": {}, "author": {}, "authors": {},
	"narrator": {}, "untitled": {}, "no author": {}, "metadata": {}, "tmp": {},
	"temp": {}, "streams": {}, "cache": {}, "data": {}, "log": {}, "logs": {},
	"audio": {}, "media": {}, "files": {}, "downloads": {}, "torrents": {},
	"watch": {}, "incoming": {}, "new": {}, "import": {}, "imports": {},
	"inbox": {}, "input": {}, "drop": {},
}

// IsPlaceholder reports whether value is a sentinel such as "Unknown" or
// "Various Authors" that carries no identification.
func IsPlaceholder(value string) bool {
	_, ok := placeholderValues[strings.ToLower(strings.TrimSpace(value))]
	return ok
}
