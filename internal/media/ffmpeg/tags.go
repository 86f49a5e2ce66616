// Package ffmpeg rewrites container metadata of audiobook files in place.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"librarian/internal/services"
)

// Tagger embeds metadata tags with "ffmpeg -c copy", so audio is never
// re-encoded.
type Tagger struct {
	binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewTagger creates a tagger using the given ffmpeg binary.
func NewTagger(binary string) *Tagger {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Tagger{binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (t *Tagger) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	t.commandRunner = runner
}

// WriteTags rewrites the given tags on path. An empty value clears the tag.
// The file is written next to the original and renamed over it.
func (t *Tagger) WriteTags(ctx context.Context, path string, tags map[string]string) error {
	if len(tags) == 0 {
		return nil
	}
	ext := filepath.Ext(path)
	tmp := filepath.Join(filepath.Dir(path), ".librarian-tag-"+strings.TrimSuffix(filepath.Base(path), ext)+ext)

	if err := t.run(ctx, tagArgs(path, tmp, tags)...); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (t *Tagger) run(ctx context.Context, args ...string) error {
	if t.commandRunner != nil {
		return t.commandRunner(ctx, t.binary, args...)
	}
	cmd := exec.CommandContext(ctx, t.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrExternalTool, "ffmpeg", "write tags", strings.TrimSpace(string(output)), err)
	}
	return nil
}

func tagArgs(src, dest string, tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", src, "-map", "0", "-map_metadata", "0", "-c", "copy"}
	for _, k := range keys {
		args = append(args, "-metadata", k+"="+tags[k])
	}
	return append(args, dest)
}
