package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Manifest maps slash-separated file paths relative to a folder to their
// sizes. Two folders with equal manifests are treated as holding the same
// content.
type Manifest map[string]int64

// ReadManifest walks dir. A missing dir yields an empty manifest.
func ReadManifest(dir string) (Manifest, error) {
	m := make(Manifest)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && os.IsNotExist(err) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		m[filepath.ToSlash(rel)] = info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", dir, err)
	}
	return m, nil
}

// Names returns the relative paths in lexical order.
func (m Manifest) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Key is a stable digest of names and sizes, or "" for an empty manifest.
func (m Manifest) Key() string {
	if len(m) == 0 {
		return ""
	}
	h := sha256.New()
	for _, name := range m.Names() {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(strconv.FormatInt(m[name], 10)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Equal reports whether both manifests list the same files with the same sizes.
func (m Manifest) Equal(other Manifest) bool {
	if len(m) != len(other) {
		return false
	}
	for name, size := range m {
		if s, ok := other[name]; !ok || s != size {
			return false
		}
	}
	return true
}

// StrictSubsetOf reports whether every file of m appears in other with the
// same size and other holds at least one more file.
func (m Manifest) StrictSubsetOf(other Manifest) bool {
	if len(m) == 0 || len(m) >= len(other) {
		return false
	}
	for name, size := range m {
		if s, ok := other[name]; !ok || s != size {
			return false
		}
	}
	return true
}

// Missing returns the entries of other that m lacks, in lexical order.
func (m Manifest) Missing(other Manifest) []string {
	var out []string
	for _, name := range other.Names() {
		if _, ok := m[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// String renders a short summary for logs.
func (m Manifest) String() string {
	var total int64
	for _, size := range m {
		total += size
	}
	return strings.Join([]string{strconv.Itoa(len(m)), "files", strconv.FormatInt(total, 10), "bytes"}, " ")
}
