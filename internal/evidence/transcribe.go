package evidence

import (
	"context"
	"fmt"
	"os"

	"librarian/internal/services/whisperx"
)

// Window selects a slice of an audio file in whole seconds.
type Window struct {
	Start    int
	Duration int
}

// Transcriber turns a window of an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, window Window) (string, error)
}

// Fingerprinter computes an acoustic fingerprint for version detection.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, path string) ([]byte, error)
}

// WhisperTranscriber adapts the WhisperX service to Transcriber. Each call
// works in its own temporary directory under workDir.
type WhisperTranscriber struct {
	service *whisperx.Service
	workDir string
}

// NewWhisperTranscriber wraps svc.
func NewWhisperTranscriber(svc *whisperx.Service, workDir string) *WhisperTranscriber {
	return &WhisperTranscriber{service: svc, workDir: workDir}
}

// Transcribe implements Transcriber.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, path string, window Window) (string, error) {
	if window.Duration <= 0 {
		return "", fmt.Errorf("transcribe %s: empty window", path)
	}
	if err := os.MkdirAll(w.workDir, 0o755); err != nil {
		return "", fmt.Errorf("transcribe: ensure work dir: %w", err)
	}
	dir, err := os.MkdirTemp(w.workDir, "transcribe-")
	if err != nil {
		return "", fmt.Errorf("transcribe: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	transcript, err := w.service.Transcribe(ctx, path, window.Start, window.Duration, dir)
	if err != nil {
		return "", err
	}
	return transcript.Text(), nil
}
