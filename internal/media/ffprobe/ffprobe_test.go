package ffprobe

import (
	"context"
	"errors"
	"testing"

	"librarian/internal/services"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "tags": {"title": "cover"}},
    {"index": 1, "codec_type": "audio", "codec_name": "mp3", "tags": {"LANGUAGE": "eng", "title": "Stream Title"}}
  ],
  "format": {
    "filename": "/books/Metro 2033/01.mp3",
    "duration": "5412.300000",
    "tags": {"artist": " Dmitry Glukhovsky ", "ALBUM": "Metro 2033", "title": "Chapter 1", "composer": "Rupert Degas"}
  }
}`

func TestTagsMergeStreamUnderFormat(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tags := result.Tags()
	if tags["album"] != "Metro 2033" || tags["artist"] != "Dmitry Glukhovsky" {
		t.Fatalf("format tags = %v", tags)
	}
	if tags["language"] != "eng" {
		t.Fatalf("audio stream tags should fold in, got %v", tags)
	}
	if result.Tag("Title") != "Chapter 1" {
		t.Fatalf("format tags should win over stream tags, got %q", result.Tag("title"))
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestInspectWrapsMissingBinary(t *testing.T) {
	_, err := Inspect(context.Background(), "/nonexistent/ffprobe", "a.mp3")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if _, err := Inspect(context.Background(), "", " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
