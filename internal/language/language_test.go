package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "en"},
		{"eng", "en"},
		{"English", "en"},
		{"fre", "fr"},
		{"fra", "fr"},
		{"Deutsch", "de"},
		{"german", "de"},
		{"en-US", "en"},
		{"pt_BR", "pt"},
		{"", ""},
		{"not a language", ""},
	}
	for _, tt := range tests {
		if got := ToISO2(tt.in); got != tt.want {
			t.Errorf("ToISO2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestToISO3(t *testing.T) {
	if got := ToISO3("en"); got != "eng" {
		t.Fatalf("ToISO3(en) = %q", got)
	}
	if got := ToISO3("French"); got != "fra" {
		t.Fatalf("ToISO3(French) = %q", got)
	}
	if got := ToISO3("???"); got != "und" {
		t.Fatalf("ToISO3(???) = %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "English"},
		{"ger", "German"},
		{"", "Unknown"},
		{"???", "???"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractFromTags(t *testing.T) {
	if got := ExtractFromTags(map[string]string{"LANGUAGE": "eng"}); got != "en" {
		t.Fatalf("ExtractFromTags = %q", got)
	}
	if got := ExtractFromTags(map[string]string{"title": "x"}); got != "" {
		t.Fatalf("ExtractFromTags without language = %q", got)
	}
}
