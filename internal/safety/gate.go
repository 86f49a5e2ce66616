package safety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"librarian/internal/config"
	"librarian/internal/evidence"
	"librarian/internal/fileutil"
	"librarian/internal/logging"
	"librarian/internal/pathbuilder"
	"librarian/internal/profile"
	"librarian/internal/services"
)

// Classification is the gate's verdict on a proposed move.
type Classification string

const (
	AutoApply       Classification = "auto_apply"
	PendingApproval Classification = "pending_approval"
	Rejected        Classification = "rejected"
	// Verified means the book already sits at its destination; no fix exists.
	Verified Classification = "verified"
)

// Reasons attached to classifications.
const (
	ReasonConflict            = "conflict"
	ReasonDuplicate           = "duplicate"
	ReasonUnsafePath          = "unsafe_path"
	ReasonAuthorChange        = "author_change"
	ReasonUnidentified        = "unidentified"
	ReasonCompletePartialMove = "complete_partial_move"
	ReasonPartialMoveSuperset = "partial_move_superset"
	ReasonAutoFix             = "auto_fix"
	ReasonApprovalRequired    = "approval_required"
	ReasonAlreadyCorrect      = "already_correct"
)

// ProposedFix is a classified folder move.
type ProposedFix struct {
	OldPath        string
	NewPath        string
	OldAuthor      string
	NewAuthor      string
	OldTitle       string
	NewTitle       string
	Classification Classification
	Reason         string
	// Err carries the marker behind a rejection.
	Err error
	// MissingFiles lists the source files an interrupted move still has to
	// transfer, relative to OldPath.
	MissingFiles []string
}

// Executable reports whether the fix may be applied once approved.
func (f ProposedFix) Executable() bool {
	return f.Classification == AutoApply || f.Classification == PendingApproval
}

// Policy holds the [safety] switches.
type Policy struct {
	AutoFix              bool
	ProtectAuthorChanges bool
}

// Gate classifies proposed moves.
type Gate struct {
	template      pathbuilder.Template
	policy        Policy
	audioExts     map[string]struct{}
	fingerprinter evidence.Fingerprinter
	logger        *slog.Logger
}

// NewGate builds a gate from config. fingerprinter may be nil, in which
// case versions are told apart by content and narrator only.
func NewGate(cfg *config.Config, fingerprinter evidence.Fingerprinter, logger *slog.Logger) *Gate {
	exts := make(map[string]struct{}, len(cfg.Library.AudioExtensions))
	for _, ext := range cfg.Library.AudioExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Gate{
		template: pathbuilder.TemplateFromConfig(cfg),
		policy: Policy{
			AutoFix:              cfg.Safety.AutoFix,
			ProtectAuthorChanges: cfg.Safety.ProtectAuthorChanges,
		},
		audioExts:     exts,
		fingerprinter: fingerprinter,
		logger:        logging.NewComponentLogger(logger, "safety"),
	}
}

// Template returns the naming template the gate builds destinations with.
func (g *Gate) Template() pathbuilder.Template {
	return g.template
}

// Classify proposes a destination for the book at oldPath and classifies
// the move. Rejections are reported through the returned fix; the error is
// reserved for failures to inspect the filesystem.
func (g *Gate) Classify(ctx context.Context, p *profile.BookProfile, oldPath string) (ProposedFix, error) {
	oldPath = filepath.Clean(oldPath)
	current := evidence.ParsePath(g.template.Root, oldPath)
	fix := ProposedFix{
		OldPath:   oldPath,
		OldAuthor: current.Author,
		OldTitle:  current.Title,
		NewAuthor: p.Value(profile.FieldAuthor),
		NewTitle:  p.Value(profile.FieldTitle),
	}
	logger := logging.WithContext(ctx, g.logger)

	source, err := fileutil.ReadManifest(oldPath)
	if err != nil {
		return fix, err
	}
	book := pathbuilder.FromBookProfile(p)
	book.Recording = pathbuilder.Recording{
		Narrator:    book.Narrator,
		ContentKey:  source.Key(),
		Fingerprint: g.fingerprint(ctx, oldPath, source),
	}

	natural, err := pathbuilder.Natural(book, g.template)
	if err != nil {
		return g.reject(logger, fix, err), nil
	}
	index, err := g.snapshot(ctx, natural, source)
	if err != nil {
		return fix, err
	}
	newPath, err := pathbuilder.Build(book, g.template, index)
	if err != nil {
		return g.reject(logger, fix, err), nil
	}
	fix.NewPath = newPath

	if newPath == oldPath {
		return g.decide(logger, fix, Verified, ReasonAlreadyCorrect), nil
	}

	dest, err := fileutil.ReadManifest(newPath)
	if err != nil {
		return fix, err
	}
	related := dest.StrictSubsetOf(source) || source.StrictSubsetOf(dest)

	// 1. occupied. Matching names and sizes do not prove the bytes match, so
	// an identical-looking copy is left for the user to resolve.
	if len(dest) > 0 && dest.Equal(source) {
		err := services.Wrap(services.ErrConflict, "safety", "classify",
			fmt.Sprintf("%s already holds a copy with the same files (%s)", newPath, dest), nil)
		return g.rejectAs(logger, fix, ReasonDuplicate, err), nil
	}
	if len(dest) > 0 && !related {
		err := services.Wrap(services.ErrConflict, "safety", "classify",
			fmt.Sprintf("%s already holds different content (%s)", newPath, dest), nil)
		return g.reject(logger, fix, err), nil
	}
	// 2. outside the root or too shallow
	if !pathbuilder.Within(g.template.Root, newPath) || pathbuilder.Depth(g.template.Root, newPath) < g.template.EffectiveMinDepth() {
		err := services.Wrap(services.ErrUnsafePath, "safety", "classify",
			fmt.Sprintf("%s is outside the library or too shallow", newPath), nil)
		return g.reject(logger, fix, err), nil
	}
	// 3. drastic author change
	if g.policy.ProtectAuthorChanges && IsDrasticAuthorChange(fix.OldAuthor, fix.NewAuthor) {
		return g.decide(logger, fix, PendingApproval, ReasonAuthorChange), nil
	}
	// 4. unidentified author
	if profile.IsPlaceholder(fix.NewAuthor) {
		return g.decide(logger, fix, PendingApproval, ReasonUnidentified), nil
	}
	// 5. interrupted move
	if dest.StrictSubsetOf(source) {
		fix.MissingFiles = dest.Missing(source)
		return g.decide(logger, fix, AutoApply, ReasonCompletePartialMove), nil
	}
	if source.StrictSubsetOf(dest) {
		return g.decide(logger, fix, PendingApproval, ReasonPartialMoveSuperset), nil
	}
	// 6. policy
	if g.policy.AutoFix {
		return g.decide(logger, fix, AutoApply, ReasonAutoFix), nil
	}
	return g.decide(logger, fix, PendingApproval, ReasonApprovalRequired), nil
}

// snapshot indexes the natural target and its version siblings. Folders
// whose files overlap the source as a strict subset or superset are
// indexed as the same content so an interrupted move is resumed in place.
func (g *Gate) snapshot(ctx context.Context, natural string, source fileutil.Manifest) (pathbuilder.ExistingIndex, error) {
	index := pathbuilder.ExistingIndex{}
	parent, base := filepath.Dir(natural), filepath.Base(natural)
	entries, err := os.ReadDir(parent)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return index, nil
		}
		return nil, fmt.Errorf("snapshot %s: %w", parent, err)
	}
	sourceKey := source.Key()
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), base) {
			continue
		}
		dir := filepath.Join(parent, entry.Name())
		manifest, err := fileutil.ReadManifest(dir)
		if err != nil {
			return nil, err
		}
		if len(manifest) == 0 {
			continue
		}
		rec := pathbuilder.Recording{
			Narrator:   evidence.ParsePath(g.template.Root, dir).Narrator,
			ContentKey: manifest.Key(),
		}
		if manifest.StrictSubsetOf(source) || source.StrictSubsetOf(manifest) {
			rec.ContentKey = sourceKey
		} else {
			rec.Fingerprint = g.fingerprint(ctx, dir, manifest)
		}
		index.Add(dir, rec)
	}
	return index, nil
}

func (g *Gate) fingerprint(ctx context.Context, dir string, manifest fileutil.Manifest) []byte {
	if g.fingerprinter == nil {
		return nil
	}
	for _, name := range manifest.Names() {
		if _, ok := g.audioExts[strings.ToLower(filepath.Ext(name))]; !ok {
			continue
		}
		fp, err := g.fingerprinter.Fingerprint(ctx, filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			g.logger.Debug("fingerprint unavailable", logging.String("dir", dir), logging.Error(err))
			return nil
		}
		return fp
	}
	return nil
}

func (g *Gate) reject(logger *slog.Logger, fix ProposedFix, err error) ProposedFix {
	return g.rejectAs(logger, fix, services.ReasonFor(err), err)
}

func (g *Gate) rejectAs(logger *slog.Logger, fix ProposedFix, reason string, err error) ProposedFix {
	fix.Classification = Rejected
	fix.Err = err
	fix.Reason = reason
	logging.WarnWithContext(logger, "fix rejected", "fix_rejected",
		logging.String("old_path", fix.OldPath),
		logging.String("new_path", fix.NewPath),
		logging.String("reason", fix.Reason),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "resolve the destination manually or lock the book's author and title"),
		logging.String(logging.FieldImpact, "book left in place"),
	)
	return fix
}

func (g *Gate) decide(logger *slog.Logger, fix ProposedFix, c Classification, reason string) ProposedFix {
	fix.Classification = c
	fix.Reason = reason
	attrs := append(logging.DecisionAttrs("fix_classification", string(c), reason),
		logging.String("old_path", fix.OldPath),
		logging.String("new_path", fix.NewPath),
	)
	logger.Info("fix classified", logging.Args(attrs...)...)
	return fix
}
