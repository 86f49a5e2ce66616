// Package deps reports on the external binaries librarian shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"librarian/internal/config"
	"librarian/internal/services/whisperx"
)

// Requirement defines an external dependency librarian relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the binaries the configuration needs. Tools behind a
// disabled feature are omitted.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for reading embedded tags",
		},
	}
	if cfg.Naming.MetadataEmbedding || cfg.Pipeline.EnableAudioAnalysis {
		reqs = append(reqs, Requirement{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for tag embedding and audio extraction",
		})
	}
	if cfg.Pipeline.EnableAudioAnalysis {
		reqs = append(reqs,
			Requirement{
				Name:        "uvx",
				Command:     whisperx.Command,
				Description: "Required for WhisperX-driven transcription",
			},
			Requirement{
				Name:        "fpcalc",
				Command:     cfg.Audio.FingerprintCommand,
				Description: "Enables version detection from audio fingerprints",
				Optional:    true,
			},
		)
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch resolved, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Available = true
			status.Command = resolved
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}
