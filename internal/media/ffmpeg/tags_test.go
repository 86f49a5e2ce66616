package ffmpeg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteTagsReplacesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "01.mp3")
	if err := os.WriteFile(path, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	tagger := NewTagger("ffmpeg")
	var seen []string
	tagger.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		seen = args
		return os.WriteFile(args[len(args)-1], []byte("tagged"), 0o644)
	})

	err := tagger.WriteTags(context.Background(), path, map[string]string{"artist": "Robin Hobb", "album": "Assassin's Apprentice", "composer": ""})
	if err != nil {
		t.Fatalf("WriteTags: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "tagged" {
		t.Fatalf("file not replaced: %q", data)
	}
	joined := strings.Join(seen, " ")
	if !strings.Contains(joined, "-metadata album=Assassin's Apprentice -metadata artist=Robin Hobb -metadata composer=") {
		t.Fatalf("unexpected args: %s", joined)
	}
	if !strings.Contains(joined, "-c copy") {
		t.Fatalf("tags must be written without re-encoding: %s", joined)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temporary file left behind: %v", entries)
	}
}

func TestWriteTagsNoopWithoutTags(t *testing.T) {
	tagger := NewTagger("")
	tagger.WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("runner should not be called")
		return nil
	})
	if err := tagger.WriteTags(context.Background(), "/nope.mp3", nil); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}
}
