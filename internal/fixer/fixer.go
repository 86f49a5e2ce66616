package fixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"librarian/internal/config"
	"librarian/internal/evidence"
	"librarian/internal/fileutil"
	"librarian/internal/logging"
	"librarian/internal/media/ffmpeg"
	"librarian/internal/media/ffprobe"
	"librarian/internal/metrics"
	"librarian/internal/profile"
	"librarian/internal/queue"
	"librarian/internal/safety"
	"librarian/internal/services"
)

// Store is the part of the queue store the fixer uses.
type Store interface {
	GetBook(ctx context.Context, id int64) (*queue.Book, error)
	UpdateBookStatus(ctx context.Context, bookID int64, status queue.Status, reason string) error
	MoveBook(ctx context.Context, bookID int64, path, author, title string, status queue.Status) error
	InsertHistory(ctx context.Context, entry queue.HistoryEntry) (int64, error)
	GetHistory(ctx context.Context, id int64) (*queue.HistoryEntry, error)
	UpdateHistoryStatus(ctx context.Context, id int64, status queue.HistoryStatus, errMessage string) error
	SetHistoryUndo(ctx context.Context, id int64, undoJSON string) error
}

// TagWriter embeds metadata tags into an audio file.
type TagWriter interface {
	WriteTags(ctx context.Context, path string, tags map[string]string) error
}

// Service classifies, applies and reverts folder fixes.
type Service struct {
	store   Store
	gate    *safety.Gate
	tagger  TagWriter
	probe   evidence.ProbeFunc
	embed   bool
	root    string
	audio   map[string]struct{}
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a fixer with the ffmpeg tagger and ffprobe reader named
// in cfg.
func NewService(cfg *config.Config, store Store, gate *safety.Gate, m *metrics.Metrics, logger *slog.Logger) *Service {
	probeBinary := cfg.FFprobeBinary()
	audio := make(map[string]struct{}, len(cfg.Library.AudioExtensions))
	for _, ext := range cfg.Library.AudioExtensions {
		audio[strings.ToLower(ext)] = struct{}{}
	}
	return &Service{
		store:  store,
		gate:   gate,
		tagger: ffmpeg.NewTagger(cfg.FFmpegBinary()),
		probe: func(ctx context.Context, path string) (ffprobe.Result, error) {
			return ffprobe.Inspect(ctx, probeBinary, path)
		},
		embed:   cfg.Naming.MetadataEmbedding,
		root:    cfg.Paths.LibraryDir,
		audio:   audio,
		metrics: m,
		logger:  logging.NewComponentLogger(logger, "fixer"),
		now:     time.Now,
	}
}

// WithTagIO replaces the tag writer and reader (for testing).
func (s *Service) WithTagIO(w TagWriter, probe evidence.ProbeFunc) {
	s.tagger = w
	s.probe = probe
}

// ClassifyFix proposes a move for the book and records the verdict as a
// history row. A book already at its destination is marked verified and no
// row is written (id 0).
func (s *Service) ClassifyFix(ctx context.Context, bookID int64) (safety.ProposedFix, int64, error) {
	ctx = services.WithBookID(ctx, bookID)
	book, p, err := s.loadBook(ctx, bookID)
	if err != nil {
		return safety.ProposedFix{}, 0, err
	}
	fix, err := s.gate.Classify(ctx, p, book.Path)
	if err != nil {
		return fix, 0, err
	}
	if fix.Classification == safety.Verified {
		if err := s.store.UpdateBookStatus(ctx, book.ID, queue.StatusVerified, fix.Reason); err != nil {
			return fix, 0, err
		}
		s.metrics.RecordFix("classify", string(fix.Classification))
		return fix, 0, nil
	}

	entry := queue.HistoryEntry{
		BookID:    book.ID,
		OldAuthor: book.CurrentAuthor,
		OldTitle:  book.CurrentTitle,
		OldPath:   fix.OldPath,
		NewAuthor: fix.NewAuthor,
		NewTitle:  fix.NewTitle,
		NewPath:   fix.NewPath,
		Status:    historyStatus(fix.Classification),
		Reason:    fix.Reason,
	}
	if fix.Err != nil {
		entry.Error = fix.Err.Error()
	}
	id, err := s.store.InsertHistory(ctx, entry)
	if err != nil {
		return fix, 0, err
	}
	if fix.Classification == safety.Rejected {
		if err := s.store.UpdateBookStatus(ctx, book.ID, queue.StatusNeedsAttention, fix.Reason); err != nil {
			return fix, id, err
		}
	}
	s.metrics.RecordFix("classify", string(fix.Classification))
	return fix, id, nil
}

// Apply executes the fix recorded in history row historyID. Pending rows of
// either kind may be applied; applying a pending_approval row is the
// approval. The move is classified again first so a destination that
// changed since classification is never overwritten.
func (s *Service) Apply(ctx context.Context, historyID int64) error {
	entry, err := s.store.GetHistory(ctx, historyID)
	if err != nil {
		return err
	}
	ctx = services.WithBookID(ctx, entry.BookID)
	logger := logging.WithContext(ctx, s.logger)

	switch entry.Status {
	case queue.HistoryPendingFix, queue.HistoryPendingApproval:
	case queue.HistoryRejected:
		s.metrics.RecordFix("apply", "refused")
		return services.Wrap(services.ErrRejectedFix, "fixer", "apply", fmt.Sprintf("history %d was rejected: %s", historyID, entry.Reason), nil)
	default:
		return services.Wrap(services.ErrValidation, "fixer", "apply", fmt.Sprintf("history %d is %s", historyID, entry.Status), nil)
	}

	book, p, err := s.loadBook(ctx, entry.BookID)
	if err != nil {
		return err
	}
	fix, err := s.gate.Classify(ctx, p, book.Path)
	if err != nil {
		return err
	}
	switch {
	case fix.Classification == safety.Rejected:
		return s.refuse(ctx, logger, historyID, book.ID, fix.Reason, fix.Err)
	case fix.Classification == safety.Verified:
		return services.Wrap(services.ErrValidation, "fixer", "apply", "book is already at its destination", nil)
	case fix.NewPath != entry.NewPath:
		err := services.Wrap(services.ErrConflict, "fixer", "apply",
			fmt.Sprintf("destination changed from %s to %s; classify again", entry.NewPath, fix.NewPath), nil)
		return s.refuse(ctx, logger, historyID, 0, "stale classification", err)
	}

	source, err := fileutil.ReadManifest(fix.OldPath)
	if err != nil {
		return err
	}
	done, err := fileutil.ReadManifest(fix.NewPath)
	if err != nil {
		return err
	}
	moves, transferred, err := splitTransferred(fix.OldPath, fix.NewPath, source, done)
	switch {
	case errors.Is(err, services.ErrConflict):
		return s.refuse(ctx, logger, historyID, book.ID, services.ReasonFor(err), err)
	case err != nil:
		return err
	}

	undo := UndoPackage{
		ID:          uuid.NewString(),
		HistoryID:   historyID,
		BookID:      book.ID,
		OldPath:     fix.OldPath,
		NewPath:     fix.NewPath,
		OldAuthor:   book.CurrentAuthor,
		OldTitle:    book.CurrentTitle,
		CreatedAt:   s.now().UTC(),
		Files:       moves,
		Transferred: transferred,
	}
	newTags := embeddedTags(p)
	if s.embed {
		undo.Tags = s.originalTags(ctx, fix.OldPath, moves, newTags)
	}
	raw, err := undo.encode()
	if err != nil {
		return err
	}
	if err := s.store.SetHistoryUndo(ctx, historyID, raw); err != nil {
		return err
	}

	for _, name := range transferred {
		if err := os.Remove(filepath.Join(fix.OldPath, filepath.FromSlash(name))); err != nil && !errors.Is(err, os.ErrNotExist) {
			return s.failApply(ctx, logger, historyID, fix, err)
		}
	}
	moved := 0
	for _, name := range moves {
		src := filepath.Join(fix.OldPath, filepath.FromSlash(name))
		dst := filepath.Join(fix.NewPath, filepath.FromSlash(name))
		if err := fileutil.MoveFile(src, dst); err != nil {
			return s.failApply(ctx, logger, historyID, fix, err)
		}
		moved++
	}
	fileutil.RemoveEmptyDirs(fix.OldPath, s.root)

	if s.embed {
		s.writeTags(ctx, logger, fix.NewPath, moves, func(string) map[string]string { return newTags })
	}
	if err := s.store.MoveBook(ctx, book.ID, fix.NewPath, fix.NewAuthor, fix.NewTitle, queue.StatusFixed); err != nil {
		return err
	}
	if err := s.store.UpdateHistoryStatus(ctx, historyID, queue.HistoryFixed, ""); err != nil {
		return err
	}
	s.metrics.RecordFix("apply", "fixed")
	attrs := append(logging.DecisionAttrs("fix_apply", "fixed", fix.Reason),
		logging.String("old_path", fix.OldPath),
		logging.String("new_path", fix.NewPath),
		logging.Int("files_moved", moved),
		logging.String("undo_id", undo.ID),
	)
	logger.Info("fix applied", logging.Args(attrs...)...)
	return nil
}

// Undo reverts the fixed history row historyID from its undo package.
func (s *Service) Undo(ctx context.Context, historyID int64) error {
	entry, err := s.store.GetHistory(ctx, historyID)
	if err != nil {
		return err
	}
	ctx = services.WithBookID(ctx, entry.BookID)
	logger := logging.WithContext(ctx, s.logger)
	if entry.Status != queue.HistoryFixed && entry.Status != queue.HistoryError {
		return services.Wrap(services.ErrValidation, "fixer", "undo", fmt.Sprintf("history %d is %s", historyID, entry.Status), nil)
	}
	undo, err := decodeUndo(entry.UndoJSON)
	if err != nil {
		return err
	}

	for _, name := range undo.Transferred {
		src := filepath.Join(undo.NewPath, filepath.FromSlash(name))
		dst := filepath.Join(undo.OldPath, filepath.FromSlash(name))
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := fileutil.CopyFile(src, dst); err != nil {
			s.metrics.RecordFix("undo", "error")
			return fmt.Errorf("undo %s: %w", name, err)
		}
	}
	moved := 0
	for _, name := range undo.Files {
		src := filepath.Join(undo.NewPath, filepath.FromSlash(name))
		dst := filepath.Join(undo.OldPath, filepath.FromSlash(name))
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := fileutil.MoveFile(src, dst); err != nil {
			s.metrics.RecordFix("undo", "error")
			return fmt.Errorf("undo %s: %w", name, err)
		}
		moved++
	}
	fileutil.RemoveEmptyDirs(undo.NewPath, s.root)

	if len(undo.Tags) > 0 {
		s.writeTags(ctx, logger, undo.OldPath, undo.Files, func(name string) map[string]string { return undo.Tags[name] })
	}
	if err := s.store.MoveBook(ctx, undo.BookID, undo.OldPath, undo.OldAuthor, undo.OldTitle, queue.StatusNeedsAttention); err != nil {
		return err
	}
	if err := s.store.UpdateBookStatus(ctx, undo.BookID, queue.StatusNeedsAttention, "undone"); err != nil {
		return err
	}
	if err := s.store.UpdateHistoryStatus(ctx, historyID, queue.HistoryUndone, ""); err != nil {
		return err
	}
	s.metrics.RecordFix("undo", "undone")
	attrs := append(logging.DecisionAttrs("fix_undo", "undone", "user_request"),
		logging.String("restored_path", undo.OldPath),
		logging.Int("files_moved", moved),
	)
	logger.Info("fix undone", logging.Args(attrs...)...)
	return nil
}

func (s *Service) loadBook(ctx context.Context, bookID int64) (*queue.Book, *profile.BookProfile, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, nil, err
	}
	p, err := book.Profile()
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, services.Wrap(services.ErrValidation, "fixer", "load book",
			fmt.Sprintf("book %d has not been identified; run process first", bookID), nil)
	}
	return book, p, nil
}

// splitTransferred separates the source files still to move from those an
// interrupted move already placed at the destination. A destination file is
// only taken as transferred when its bytes match the source; any other
// collision is an error and nothing may be touched.
func splitTransferred(oldDir, newDir string, source, done fileutil.Manifest) (moves, transferred []string, err error) {
	for _, name := range source.Names() {
		if _, ok := done[name]; !ok {
			moves = append(moves, name)
			continue
		}
		same, err := fileutil.SameContent(filepath.Join(oldDir, filepath.FromSlash(name)), filepath.Join(newDir, filepath.FromSlash(name)))
		if err != nil {
			return nil, nil, fmt.Errorf("compare %s: %w", name, err)
		}
		if !same {
			return nil, nil, services.Wrap(services.ErrConflict, "fixer", "apply",
				fmt.Sprintf("%s differs from the file already at %s", name, newDir), nil)
		}
		transferred = append(transferred, name)
	}
	return moves, transferred, nil
}

// refuse marks the history row rejected and reports the fix as refused. A
// non-zero bookID also moves the book to needs_attention. No file has been
// touched.
func (s *Service) refuse(ctx context.Context, logger *slog.Logger, historyID, bookID int64, reason string, cause error) error {
	message := reason
	if cause != nil {
		message = cause.Error()
	}
	s.setHistoryStatus(ctx, logger, historyID, queue.HistoryRejected, message)
	if bookID != 0 {
		if err := s.store.UpdateBookStatus(ctx, bookID, queue.StatusNeedsAttention, reason); err != nil {
			logging.WarnWithContext(logger, "book status not recorded", "book_update_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the database is writable"),
				logging.String(logging.FieldImpact, "book stays needs_fix after a refused fix"),
			)
		}
	}
	s.metrics.RecordFix("apply", "refused")
	return services.Wrap(services.ErrRejectedFix, "fixer", "apply", reason, cause)
}

func (s *Service) setHistoryStatus(ctx context.Context, logger *slog.Logger, historyID int64, status queue.HistoryStatus, message string) {
	if err := s.store.UpdateHistoryStatus(ctx, historyID, status, message); err != nil {
		logging.WarnWithContext(logger, "history status not recorded", "history_update_failed",
			logging.Int64("history_id", historyID),
			logging.String("status", string(status)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the database is writable, then inspect the row with fix history"),
			logging.String(logging.FieldImpact, "history row keeps its previous status"),
		)
	}
}

func (s *Service) failApply(ctx context.Context, logger *slog.Logger, historyID int64, fix safety.ProposedFix, err error) error {
	s.setHistoryStatus(ctx, logger, historyID, queue.HistoryError, err.Error())
	s.metrics.RecordFix("apply", "error")
	logging.ErrorWithContext(logger, "fix interrupted", "fix_apply_failed",
		logging.String("old_path", fix.OldPath),
		logging.String("new_path", fix.NewPath),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "run fix undo to move the transferred files back, or classify again to resume"),
		logging.String(logging.FieldImpact, "book split between two folders"),
	)
	return fmt.Errorf("apply history %d: %w", historyID, err)
}

// originalTags reads the current value of every key that will be embedded.
func (s *Service) originalTags(ctx context.Context, dir string, files []string, keys map[string]string) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, name := range files {
		if !s.isAudio(name) {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(name))
		result, err := s.probe(ctx, path)
		if err != nil {
			s.logger.Debug("original tags unreadable", logging.String("file", path), logging.Error(err))
			continue
		}
		current := result.Tags()
		saved := make(map[string]string, len(keys))
		for k := range keys {
			saved[k] = current[k]
		}
		out[name] = saved
	}
	return out
}

func (s *Service) writeTags(ctx context.Context, logger *slog.Logger, dir string, files []string, tagsFor func(string) map[string]string) {
	for _, name := range files {
		if !s.isAudio(name) {
			continue
		}
		tags := tagsFor(name)
		if len(tags) == 0 {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := s.tagger.WriteTags(ctx, path, tags); err != nil {
			logging.WarnWithContext(logger, "tag embedding failed", "tag_write_failed",
				logging.String("file", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "verify ffmpeg is installed and the file is writable"),
				logging.String(logging.FieldImpact, "file moved with its previous tags"),
			)
		}
	}
}

func (s *Service) isAudio(name string) bool {
	_, ok := s.audio[strings.ToLower(filepath.Ext(name))]
	return ok
}

// embeddedTags maps the profile to container tags. Keys with no value are
// omitted so existing tags are left alone.
func embeddedTags(p *profile.BookProfile) map[string]string {
	values := map[string]string{
		"artist":       p.Value(profile.FieldAuthor),
		"album_artist": p.Value(profile.FieldAuthor),
		"album":        p.Value(profile.FieldTitle),
		"composer":     p.Value(profile.FieldNarrator),
		"date":         p.Value(profile.FieldYear),
		"series":       p.Value(profile.FieldSeries),
		"series-part":  p.Value(profile.FieldSeriesNum),
	}
	for k, v := range values {
		if v == "" || profile.IsPlaceholder(v) {
			delete(values, k)
		}
	}
	return values
}

func historyStatus(c safety.Classification) queue.HistoryStatus {
	switch c {
	case safety.AutoApply:
		return queue.HistoryPendingFix
	case safety.PendingApproval:
		return queue.HistoryPendingApproval
	}
	return queue.HistoryRejected
}
