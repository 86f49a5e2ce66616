package evidence

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/bits"
	"os/exec"
	"strconv"
	"strings"

	"librarian/internal/services"
)

// FPCalc fingerprints audio with chromaprint's fpcalc tool.
type FPCalc struct {
	binary        string
	lengthSeconds int
	commandOutput func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewFPCalc creates a fingerprinter that reads the first lengthSeconds of
// audio.
func NewFPCalc(binary string, lengthSeconds int) *FPCalc {
	if strings.TrimSpace(binary) == "" {
		binary = "fpcalc"
	}
	if lengthSeconds <= 0 {
		lengthSeconds = 120
	}
	return &FPCalc{binary: binary, lengthSeconds: lengthSeconds}
}

// WithCommandOutput sets a custom command runner (for testing).
func (f *FPCalc) WithCommandOutput(fn func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	f.commandOutput = fn
}

type fpcalcOutput struct {
	Duration    float64  `json:"duration"`
	Fingerprint []uint32 `json:"fingerprint"`
}

// Fingerprint implements Fingerprinter. The raw chromaprint integers are
// returned little-endian encoded.
func (f *FPCalc) Fingerprint(ctx context.Context, path string) ([]byte, error) {
	args := []string{"-raw", "-json", "-length", strconv.Itoa(f.lengthSeconds), path}
	var (
		out []byte
		err error
	)
	if f.commandOutput != nil {
		out, err = f.commandOutput(ctx, f.binary, args...)
	} else {
		out, err = exec.CommandContext(ctx, f.binary, args...).Output() //nolint:gosec
	}
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "fingerprint", f.binary, path, err)
	}
	var parsed fpcalcOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("fingerprint: parse fpcalc output: %w", err)
	}
	buf := make([]byte, 4*len(parsed.Fingerprint))
	for i, v := range parsed.Fingerprint {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf, nil
}

// FingerprintSimilarity compares two raw chromaprint fingerprints as the
// fraction of matching bits over their common prefix.
func FingerprintSimilarity(a, b []byte) float64 {
	n := min(len(a), len(b)) / 4
	if n == 0 {
		return 0
	}
	diff := 0
	for i := 0; i < n; i++ {
		x := binary.LittleEndian.Uint32(a[i*4:]) ^ binary.LittleEndian.Uint32(b[i*4:])
		diff += bits.OnesCount32(x)
	}
	return 1 - float64(diff)/float64(32*n)
}
