package whisperx

import (
	"strconv"

	"librarian/internal/language"
)

const (
	pypiIndex = "https://pypi.org/simple"
	cudaIndex = "https://download.pytorch.org/whl/cu128"
)

// cutArgs extracts a mono 16 kHz PCM window from the first audio stream.
func cutArgs(source string, start, duration int, dest string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", strconv.Itoa(start),
		"-t", strconv.Itoa(duration),
		"-i", source,
		"-map", "0:a:0", "-vn",
		"-ac", "1", "-ar", sampleRate, "-c:a", "pcm_s16le",
		dest,
	}
}

func (s *Service) whisperArgs(wav, outDir string) []string {
	var args []string
	if s.cfg.CUDA {
		args = append(args, "--index-url", cudaIndex, "--extra-index-url", pypiIndex)
	} else {
		args = append(args, "--index-url", pypiIndex)
	}
	args = append(args, "whisperx", wav,
		"--model", s.cfg.Model,
		"--output_dir", outDir,
		"--output_format", "json",
		"--batch_size", "4",
		"--chunk_size", "15",
		"--beam_size", "5",
		"--temperature", "0.0",
		"--vad_method", s.cfg.VAD,
	)
	if code := language.ToISO2(s.cfg.Language); code != "" {
		args = append(args, "--language", code)
	}
	if s.cfg.CUDA {
		return append(args, "--device", "cuda")
	}
	return append(args, "--device", "cpu", "--compute_type", "float32")
}
