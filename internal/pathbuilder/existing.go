package pathbuilder

import (
	"path/filepath"

	"librarian/internal/evidence"
	"librarian/internal/textutil"
)

const narratorMatchSimilarity = 0.85

// Recording describes the audio held by a folder. Any field may be empty.
type Recording struct {
	Narrator    string
	Fingerprint []byte
	ContentKey  string
}

// ExistingIndex is a snapshot of folders already present in the library,
// keyed by cleaned absolute path.
type ExistingIndex map[string]Recording

// Add records a folder.
func (ix ExistingIndex) Add(path string, rec Recording) {
	ix[filepath.Clean(path)] = rec
}

func (ix ExistingIndex) get(path string) (Recording, bool) {
	rec, ok := ix[filepath.Clean(path)]
	return rec, ok
}

// sameRecording decides whether two folders hold the same audiobook
// recording. Identical content always matches; otherwise acoustic
// fingerprints decide when both are known, and narrators after that.
func sameRecording(a, b Recording, similarity float64) bool {
	if a.ContentKey != "" && a.ContentKey == b.ContentKey {
		return true
	}
	if len(a.Fingerprint) > 0 && len(b.Fingerprint) > 0 {
		return evidence.FingerprintSimilarity(a.Fingerprint, b.Fingerprint) >= similarity
	}
	if a.Narrator != "" && b.Narrator != "" {
		return textutil.NameSimilarity(a.Narrator, b.Narrator) >= narratorMatchSimilarity
	}
	return false
}
