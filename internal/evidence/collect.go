package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"librarian/internal/config"
	"librarian/internal/logging"
	"librarian/internal/media/ffprobe"
	"librarian/internal/profile"
)

// Folder is the local evidence gathered for one book folder.
type Folder struct {
	Dir        string
	Info       PathInfo
	AudioFiles []string
	EbookFiles []string
	Tags       map[string]string
	Sidecars   []profile.Observation
	MultiBook  MultiBookResult
	// ASIN comes from embedded tags or metadata.json when present.
	ASIN string
}

// LocalObservations returns the tag and sidecar observations. Path
// observations are kept apart because they are only merged by the folder
// fallback layer.
func (f *Folder) LocalObservations(at time.Time) []profile.Observation {
	if f == nil {
		return nil
	}
	out := TagObservations(f.Tags, at)
	return append(out, f.Sidecars...)
}

// FirstAudio returns the first audio file in name order or "".
func (f *Folder) FirstAudio() string {
	if f == nil || len(f.AudioFiles) == 0 {
		return ""
	}
	return f.AudioFiles[0]
}

// ProbeFunc inspects one media file.
type ProbeFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Collector gathers local evidence for book folders.
type Collector struct {
	root      string
	audioExts map[string]struct{}
	ebookExts map[string]struct{}
	probe     ProbeFunc
	logger    *slog.Logger
}

// NewCollector builds a collector from the library settings.
func NewCollector(cfg *config.Config, logger *slog.Logger) *Collector {
	binary := cfg.FFprobeBinary()
	return &Collector{
		root:      cfg.Paths.LibraryDir,
		audioExts: extensionSet(cfg.Library.AudioExtensions),
		ebookExts: extensionSet(cfg.Library.EbookExtensions),
		probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, binary, path)
		},
		logger: logging.NewComponentLogger(logger, "evidence"),
	}
}

// WithProbe replaces the ffprobe call (for testing).
func (c *Collector) WithProbe(fn ProbeFunc) {
	c.probe = fn
}

// IsAudio reports whether name has a configured audio extension.
func (c *Collector) IsAudio(name string) bool {
	_, ok := c.audioExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// IsEbook reports whether name has a configured ebook extension.
func (c *Collector) IsEbook(name string) bool {
	_, ok := c.ebookExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Collect reads dir. Tag inspection failures are logged and leave Tags
// empty; only a missing or unreadable folder is an error.
func (c *Collector) Collect(ctx context.Context, dir string) (*Folder, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("collect evidence: %w", err)
	}
	folder := &Folder{Dir: dir, Info: ParsePath(c.root, dir)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case c.IsAudio(name):
			folder.AudioFiles = append(folder.AudioFiles, filepath.Join(dir, name))
		case c.IsEbook(name):
			folder.EbookFiles = append(folder.EbookFiles, filepath.Join(dir, name))
		}
	}
	slices.Sort(folder.AudioFiles)
	slices.Sort(folder.EbookFiles)
	folder.MultiBook = DetectMultiBook(folder.AudioFiles)

	at := time.Now().UTC()
	if folder.Sidecars, err = ReadSidecars(dir, at); err != nil {
		return nil, err
	}

	if first := folder.FirstAudio(); first != "" && c.probe != nil {
		result, err := c.probe(ctx, first)
		if err != nil {
			logging.WarnWithContext(c.logger, "tag inspection failed", "tag_probe_failed",
				logging.String("file", first),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify ffprobe is installed and the file is readable"),
				logging.String(logging.FieldImpact, "embedded tags ignored for this book"),
			)
		} else {
			folder.Tags = result.Tags()
		}
	}
	folder.ASIN = firstNonEmpty(folder.Tags["asin"], folder.Tags["audible_asin"], SidecarASIN(dir))
	return folder, nil
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return strings.ToUpper(v)
		}
	}
	return ""
}
