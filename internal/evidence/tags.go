package evidence

import (
	"strings"
	"time"

	"librarian/internal/language"
	"librarian/internal/profile"
)

// TagObservations maps lower-cased container tags (as returned by
// ffprobe.Result.Tags) to id3 observations. album wins over title because
// per-file title tags usually carry chapter names.
func TagObservations(tags map[string]string, at time.Time) []profile.Observation {
	if len(tags) == 0 {
		return nil
	}
	pick := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(tags[k]); v != "" {
				return v
			}
		}
		return ""
	}

	values := map[profile.Field]string{
		profile.FieldAuthor:    pick("album_artist", "albumartist", "artist", "author"),
		profile.FieldNarrator:  pick("narrator", "composer", "performer"),
		profile.FieldSeries:    pick("series", "mvnm", "grouping"),
		profile.FieldSeriesNum: pick("series-part", "series_part", "mvin"),
	}

	title := pick("album")
	if title == "" {
		if t := pick("title"); t != "" && !IsUnsearchable(t) && !chapterIndicator.MatchString(t) {
			title = t
		}
	}
	if title != "" && values[profile.FieldSeries] == "" {
		if info := ExtractSeries(title); info.Series != "" {
			values[profile.FieldSeries] = info.Series
			values[profile.FieldSeriesNum] = info.SeriesNum
			title = info.Title
		}
	}
	values[profile.FieldTitle] = title

	if ym := yearPattern.FindStringSubmatch(pick("date", "year", "originaldate", "tdrc")); ym != nil {
		values[profile.FieldYear] = ym[1]
	}
	if code := language.ToISO2(pick("language", "lang")); code != "" {
		values[profile.FieldLanguage] = code
	}
	if values[profile.FieldNarrator] == values[profile.FieldAuthor] {
		delete(values, profile.FieldNarrator)
	}
	return profile.Observe(profile.SourceID3, 0, at, values)
}
