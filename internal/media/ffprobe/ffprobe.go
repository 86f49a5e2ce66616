package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"librarian/internal/services"
)

// Result is the subset of `ffprobe -show_format -show_streams` output the
// tag readers use.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream is one media stream.
type Stream struct {
	CodecType string            `json:"codec_type"`
	Tags      map[string]string `json:"tags"`
}

// Format is the container.
type Format struct {
	Filename string            `json:"filename"`
	Tags     map[string]string `json:"tags"`
}

// Inspect runs binary (ffprobe when empty) on path.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe: empty path")
	}
	out, err := exec.CommandContext(ctx, binary, //nolint:gosec
		"-v", "error", "-hide_banner", "-of", "json", "-show_format", "-show_streams", "--", path,
	).Output()
	if err != nil {
		detail := ""
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return Result{}, services.Wrap(services.ErrExternalTool, "ffprobe", "inspect", detail, err)
	}
	return Parse(out)
}

// Parse decodes ffprobe JSON.
func Parse(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("decode ffprobe output: %w", err)
	}
	return r, nil
}

// Tags merges the first audio stream's tags under the container tags, with
// lowercased keys and trimmed values. Ogg and Opus carry tags on the stream.
func (r Result) Tags() map[string]string {
	tags := make(map[string]string, len(r.Format.Tags))
	merge := func(src map[string]string) {
		for k, v := range src {
			tags[strings.ToLower(k)] = strings.TrimSpace(v)
		}
	}
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "audio") {
			merge(s.Tags)
			break
		}
	}
	merge(r.Format.Tags)
	return tags
}

// Tag looks up one tag case-insensitively.
func (r Result) Tag(key string) string {
	return r.Tags()[strings.ToLower(key)]
}
