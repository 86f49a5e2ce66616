package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// supported seeds the name index; codes outside it still resolve through
// BCP 47 parsing but not by name.
var supported = []string{
	"en", "es", "fr", "de", "it", "pt", "ja", "ko", "zh", "ru", "ar", "hi",
	"nl", "pl", "sv", "da", "no", "fi", "cs", "hu", "tr", "el", "he", "uk",
}

// ISO 639-2/B codes that BCP 47 parsing does not accept.
var bibliographic = map[string]string{
	"fre": "fr", "ger": "de", "dut": "nl", "chi": "zh", "cze": "cs", "gre": "el",
}

var byName map[string]string

func init() {
	byName = make(map[string]string, len(supported)*2)
	english := display.English.Languages()
	for _, code := range supported {
		tag := xlang.MustParse(code)
		if name := english.Name(tag); name != "" {
			byName[strings.ToLower(name)] = code
		}
		if self := display.Self.Name(tag); self != "" {
			byName[strings.ToLower(self)] = code
		}
	}
}

// ToISO2 converts a language code, tag or name to ISO 639-1. Returns empty
// string for unrecognized input.
func ToISO2(value string) string {
	value = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(value, "\u0000", "")))
	if value == "" {
		return ""
	}
	if code, ok := byName[value]; ok {
		return code
	}
	if code, ok := bibliographic[value]; ok {
		return code
	}
	tag, err := xlang.Parse(strings.ReplaceAll(value, "_", "-"))
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == xlang.No {
		return ""
	}
	code := base.String()
	if code == "und" || len(code) != 2 {
		return ""
	}
	return code
}

// ToISO3 converts a recognized language to ISO 639-2/T. Returns "und" when
// the input is not recognized.
func ToISO3(value string) string {
	code := ToISO2(value)
	if code == "" {
		return "und"
	}
	base, _ := xlang.MustParse(code).Base()
	return base.ISO3()
}

// DisplayName returns the English name for a recognized language, "Unknown"
// for empty input, or the uppercased input otherwise.
func DisplayName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "Unknown"
	}
	code := ToISO2(trimmed)
	if code == "" {
		return strings.ToUpper(trimmed)
	}
	return display.English.Languages().Name(xlang.MustParse(code))
}

// ExtractFromTags returns the first non-empty language value in embedded
// metadata tags, normalized to ISO 639-1 when recognized.
func ExtractFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "lang", "LANG"} {
		value := strings.TrimSpace(strings.ReplaceAll(tags[key], "\u0000", ""))
		if value == "" {
			continue
		}
		if code := ToISO2(value); code != "" {
			return code
		}
		return strings.ToLower(value)
	}
	return ""
}
