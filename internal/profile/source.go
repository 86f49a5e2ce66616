package profile

import "strings"

// Source identifies where an observation came from.
type Source string

const (
	SourceUser        Source = "user"
	SourceAudio       Source = "audio"
	SourceID3         Source = "id3"
	SourceJSON        Source = "json"
	SourceNFO         Source = "nfo"
	SourceBookDB      Source = "bookdb"
	SourceAI          Source = "ai"
	SourceAudnexus    Source = "audnexus"
	SourceGoogleBooks Source = "googlebooks"
	SourceOpenLibrary Source = "openlibrary"
	SourcePath        Source = "path"
)

// UnknownSourceWeight is the weight of a source missing from the weight table.
const UnknownSourceWeight = 30

var defaultSourceWeights = map[Source]int{
	SourceUser:        100,
	SourceAudio:       85,
	SourceID3:         80,
	SourceJSON:        75,
	SourceNFO:         70,
	SourceBookDB:      65,
	SourceAI:          60,
	SourceAudnexus:    55,
	SourceGoogleBooks: 50,
	SourceOpenLibrary: 45,
	SourcePath:        40,
}

// DefaultSourceWeight returns the built-in trust weight for a source.
func DefaultSourceWeight(src Source) int {
	if w, ok := defaultSourceWeights[src]; ok {
		return w
	}
	return UnknownSourceWeight
}

// Field names one tracked metadata attribute of a book.
type Field string

const (
	FieldAuthor    Field = "author"
	FieldTitle     Field = "title"
	FieldNarrator  Field = "narrator"
	FieldSeries    Field = "series"
	FieldSeriesNum Field = "series_num"
	FieldLanguage  Field = "language"
	FieldYear      Field = "year"
	FieldEdition   Field = "edition"
	FieldVariant   Field = "variant"
)

// AllFields lists tracked fields in display order.
var AllFields = []Field{
	FieldAuthor, FieldTitle, FieldNarrator, FieldSeries, FieldSeriesNum,
	FieldLanguage, FieldYear, FieldEdition, FieldVariant,
}

// ParseField converts a field name to a Field.
func ParseField(name string) (Field, bool) {
	candidate := Field(strings.ToLower(strings.TrimSpace(name)))
	for _, f := range AllFields {
		if f == candidate {
			return f, true
		}
	}
	return "", false
}

// numeric reports whether values of the field compare as numbers.
func (f Field) numeric() bool {
	return f == FieldSeriesNum || f == FieldYear
}

// fuzzy reports whether values of the field may cluster by similarity.
func (f Field) fuzzy() bool {
	switch f {
	case FieldAuthor, FieldTitle, FieldNarrator, FieldSeries:
		return true
	default:
		return false
	}
}
