package evidence

import (
	"regexp"
	"strconv"
	"strings"

	"librarian/internal/textutil"
)

var (
	seriesBookPattern      = regexp.MustCompile(`(?i)^(?:The\s+)?(.+?)\s*(?:Series)?,?\s*Book\s+(\d+(?:\.\d+)?)\s*[:\s-]+(.+)$`)
	seriesHashPattern      = regexp.MustCompile(`^(.+?)\s*#(\d+(?:\.\d+)?)\s*[:\s-]+(.+)$`)
	seriesBookEndPattern   = regexp.MustCompile(`(?i)^(.+?)\s+Book\s+(\d+(?:\.\d+)?)\s*$`)
	seriesHashEndPattern   = regexp.MustCompile(`^(.+?)\s*#(\d+(?:\.\d+)?)\s*$`)
	seriesParenPattern     = regexp.MustCompile(`(?i)^(.+?)\s*\(([^()]+?),?\s+(?:Book\s+|#)?(\d+(?:\.\d+)?)\)\s*$`)
	trailingSeriesSuffix   = regexp.MustCompile(`(?i)\s*Series\s*$`)
	leadingNumberPattern   = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*[-–—.:]\s*(.+)$`)
	bracketJunkPattern     = regexp.MustCompile(`\[[^\]]*\]`)
	parenJunkPattern       = regexp.MustCompile(`(?i)\((?:Unabridged|Abridged|MP3|M4B|EPUB|PDF|\d+k|VBR|r\d+\.\d+|multi|mono|stereo)[^)]*\)`)
	calibreIDPattern       = regexp.MustCompile(`\s*\(\d+\)$`)
	curlyJunkPattern       = regexp.MustCompile(`\{[^}]*\}`)
	bitratePattern         = regexp.MustCompile(`(?i)\b\d+k(?:bps)?\b`)
	sizePattern            = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?(?:mb|gb|kb)\b`)
	codecPattern           = regexp.MustCompile(`(?i)\b(?:mono|stereo|multi|vbr|cbr|aac|lame|opus|mp3|m4b)\b`)
	extensionPattern       = regexp.MustCompile(`(?i)\.(?:mp3|m4b|m4a|epub|pdf|mobi|webm|opus|flac|ogg)$`)
	byAuthorSuffix         = regexp.MustCompile(`(?i)\s+by\s+[\pL\s.'-]+$`)
	audiobookJunk          = regexp.MustCompile(`(?i)\b(?:full\s+)?(?:audio\s*book|audiobook)\b|\b(?:complete|unabridged|abridged|free|download|hd|hq)\b`)
	trackPrefixPattern     = regexp.MustCompile(`(?i)^(?:track\s*)?\d+\s*[-–—:.]?\s+`)
	unsearchableNumbers    = regexp.MustCompile(`^\d+$`)
	unsearchableChapter    = regexp.MustCompile(`^(?:chapter|ch|chap)\s*\d+$`)
	unsearchableTrack      = regexp.MustCompile(`^(?:track|disc|cd|part|pt)\s*\d+$`)
	unsearchableAudiobook  = regexp.MustCompile(`^(?:full\s+)?audiobook$`)
	multipleSpacesPattern  = regexp.MustCompile(`\s+`)
	seriesIndicatorPattern = regexp.MustCompile(`(?i)\b(?:book|series|volume|vol|part|chapter)\b|#\d`)
)

// SeriesInfo is the result of splitting a combined series/title string.
type SeriesInfo struct {
	Series    string
	SeriesNum string
	Title     string
}

// ExtractSeries splits titles such as "Mistborn Book 1: The Final Empire",
// "The Expanse #3 - Abaddon's Gate" or "Storm Front (Dresden Files, Book 1)".
// When no pattern applies the title is returned unchanged.
func ExtractSeries(title string) SeriesInfo {
	normalized := strings.NewReplacer("꞉", ":", "：", ":").Replace(strings.TrimSpace(title))
	if m := seriesBookPattern.FindStringSubmatch(normalized); m != nil {
		series := strings.TrimSpace(trailingSeriesSuffix.ReplaceAllString(m[1], ""))
		return SeriesInfo{Series: series, SeriesNum: m[2], Title: strings.TrimSpace(m[3])}
	}
	if m := seriesHashPattern.FindStringSubmatch(normalized); m != nil {
		return SeriesInfo{Series: strings.TrimSpace(m[1]), SeriesNum: m[2], Title: strings.TrimSpace(m[3])}
	}
	if m := seriesParenPattern.FindStringSubmatch(normalized); m != nil {
		return SeriesInfo{Series: strings.TrimSpace(m[2]), SeriesNum: m[3], Title: strings.TrimSpace(m[1])}
	}
	if m := seriesBookEndPattern.FindStringSubmatch(normalized); m != nil {
		series := strings.TrimSpace(m[1])
		return SeriesInfo{Series: series, SeriesNum: m[2], Title: series}
	}
	if m := seriesHashEndPattern.FindStringSubmatch(normalized); m != nil {
		series := strings.TrimSpace(m[1])
		return SeriesInfo{Series: series, SeriesNum: m[2], Title: series}
	}
	return SeriesInfo{Title: normalized}
}

// CleanSearchTitle strips release junk (bitrates, codecs, bracketed tags,
// "unabridged", track prefixes) from a folder or file name so it can be
// used as a lookup query.
func CleanSearchTitle(messy string) string {
	clean := strings.ReplaceAll(messy, "_", " ")
	clean = bracketJunkPattern.ReplaceAllString(clean, "")
	clean = parenJunkPattern.ReplaceAllString(clean, "")
	clean = calibreIDPattern.ReplaceAllString(clean, "")
	clean = curlyJunkPattern.ReplaceAllString(clean, "")
	clean = bitratePattern.ReplaceAllString(clean, "")
	clean = sizePattern.ReplaceAllString(clean, "")
	clean = extensionPattern.ReplaceAllString(clean, "")
	clean = codecPattern.ReplaceAllString(clean, "")
	clean = byAuthorSuffix.ReplaceAllString(clean, "")
	clean = audiobookJunk.ReplaceAllString(clean, "")
	clean = trackPrefixPattern.ReplaceAllString(clean, "")
	clean = multipleSpacesPattern.ReplaceAllString(clean, " ")
	return strings.Trim(clean, " -_.")
}

// IsUnsearchable reports whether a title is clearly not a book title
// (bare numbers, "Chapter 5", "Disc 2", "audiobook", one or two characters).
func IsUnsearchable(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	if len([]rune(lower)) <= 2 {
		return true
	}
	return unsearchableNumbers.MatchString(lower) ||
		unsearchableChapter.MatchString(lower) ||
		unsearchableTrack.MatchString(lower) ||
		unsearchableAudiobook.MatchString(lower)
}

// IsGarbageMatch reports whether a suggested title from a provider is too far
// from the original to be trusted, including suggestions that lost the
// series context of a long original title.
func IsGarbageMatch(original, suggested string, threshold float64) bool {
	if IsUnsearchable(original) {
		return true
	}
	similarity := textutil.TitleSimilarity(original, suggested)
	origCount := significantWordCount(original)
	suggCount := significantWordCount(suggested)
	if origCount <= 2 && similarity >= 0.2 {
		return false
	}
	suggInOrig := strings.Contains(strings.ToLower(original), strings.ToLower(strings.TrimSpace(suggested)))
	if origCount >= 5 && suggCount <= 2 && !suggInOrig && similarity < 0.5 {
		return true
	}
	if seriesIndicatorPattern.MatchString(original) && !seriesIndicatorPattern.MatchString(suggested) && similarity < 0.5 && !suggInOrig {
		return true
	}
	return similarity < threshold
}

func significantWordCount(s string) int {
	count := 0
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 2 {
			count++
		}
	}
	return count
}

// splitLeadingNumber splits "03 - The Well of Ascension" into ("3", "The Well of Ascension").
func splitLeadingNumber(name string) (string, string, bool) {
	m := leadingNumberPattern.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return "", name, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", name, false
	}
	return strconv.FormatFloat(n, 'f', -1, 64), strings.TrimSpace(m[2]), true
}
