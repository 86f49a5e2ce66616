package whisperx

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"librarian/internal/services"
)

// Command is the launcher WhisperX runs under.
const Command = "uvx"

const (
	defaultModel = "large-v3-turbo"
	defaultVAD   = "silero"
	sampleRate   = "16000"
)

// Config selects the model and hardware for transcription.
type Config struct {
	Model string
	// CUDA runs on the GPU with the CUDA wheel index.
	CUDA bool
	// VAD is "silero" (default) or "pyannote".
	VAD string
	// Language is passed through language.ToISO2; empty lets WhisperX detect.
	Language string
	// FFmpeg is the ffmpeg binary used to cut windows. Defaults to "ffmpeg".
	FFmpeg string
}

// Runner executes an external command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// pyannote checkpoints fail to load under torch's weights_only default.
	cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	return cmd.CombinedOutput()
}

// Service transcribes windows of audio files.
type Service struct {
	cfg Config
	run Runner
}

// NewService returns a service that shells out to ffmpeg and uvx.
func NewService(cfg Config) *Service {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.VAD == "" {
		cfg.VAD = defaultVAD
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	return &Service{cfg: cfg, run: execRunner}
}

// WithRunner replaces command execution, for tests.
func (s *Service) WithRunner(run Runner) *Service {
	s.run = run
	return s
}

// Model reports the configured model.
func (s *Service) Model() string { return s.cfg.Model }

// Transcribe cuts [start, start+duration) seconds of source into workDir and
// transcribes it. workDir also receives the WhisperX JSON output.
func (s *Service) Transcribe(ctx context.Context, source string, start, duration int, workDir string) (Transcript, error) {
	if duration <= 0 {
		return Transcript{}, fmt.Errorf("transcribe %s: window of %ds", source, duration)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Transcript{}, fmt.Errorf("transcribe: work dir: %w", err)
	}
	wav := filepath.Join(workDir, fmt.Sprintf("window_%d_%d.wav", max(start, 0), duration))
	if out, err := s.run(ctx, s.cfg.FFmpeg, cutArgs(source, max(start, 0), duration, wav)...); err != nil {
		return Transcript{}, services.Wrap(services.ErrExternalTool, "whisperx", "cut window", strings.TrimSpace(string(out)), err)
	}
	if out, err := s.run(ctx, Command, s.whisperArgs(wav, workDir)...); err != nil {
		return Transcript{}, services.Wrap(services.ErrExternalTool, "whisperx", "transcribe", strings.TrimSpace(string(out)), err)
	}
	return ReadTranscript(strings.TrimSuffix(wav, ".wav") + ".json")
}
