package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"librarian/internal/config"
	"librarian/internal/evidence"
	"librarian/internal/logging"
	"librarian/internal/metrics"
	"librarian/internal/profile"
	"librarian/internal/providers"
	"librarian/internal/queue"
	"librarian/internal/safety"
	"librarian/internal/services"
	"librarian/internal/services/whisperx"
)

const transcriptTTL = time.Hour

// Store is the part of the queue store the controller uses.
type Store interface {
	DequeueBatch(ctx context.Context, n int) ([]*queue.QueueItem, error)
	GetBook(ctx context.Context, id int64) (*queue.Book, error)
	CommitStep(ctx context.Context, step queue.StepResult) error
	RemoveFromQueue(ctx context.Context, bookID int64) (bool, error)
	QueueDepth(ctx context.Context) (int, error)
}

// EvidenceSource gathers the local evidence for a book folder.
type EvidenceSource interface {
	Collect(ctx context.Context, dir string) (*evidence.Folder, error)
}

// ASINResolver looks up a book by Audible ASIN.
type ASINResolver interface {
	Resolve(ctx context.Context, asin string) (*providers.CandidateRecord, error)
}

// Fixer classifies and applies the fix for a book that settled on
// needs_fix.
type Fixer interface {
	ClassifyFix(ctx context.Context, bookID int64) (safety.ProposedFix, int64, error)
	Apply(ctx context.Context, historyID int64) error
}

// Dependencies are the collaborators of a Controller. Optional adapters
// left nil disable their layer regardless of configuration.
type Dependencies struct {
	Store       Store
	Evidence    EvidenceSource
	Engine      *profile.Engine
	Transcriber evidence.Transcriber
	AI          providers.AI
	Lookups     []providers.Lookup
	ASIN        ASINResolver
	Fixer       Fixer
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Controller runs the layer state machine over the queue.
type Controller struct {
	cfg         *config.Config
	store       Store
	evidence    EvidenceSource
	engine      *profile.Engine
	transcriber evidence.Transcriber
	ai          providers.AI
	lookups     []providers.Lookup
	asin        ASINResolver
	fixer       Fixer
	metrics     *metrics.Metrics
	logger      *slog.Logger

	transcripts *cache.Cache
	now         func() time.Time
}

// NewController wires a controller from explicit dependencies.
func NewController(cfg *config.Config, deps Dependencies) *Controller {
	engine := deps.Engine
	if engine == nil {
		engine = profile.NewEngine(profile.ConfigFromSettings(cfg.Consensus), deps.Logger)
	}
	return &Controller{
		cfg:         cfg,
		store:       deps.Store,
		evidence:    deps.Evidence,
		engine:      engine,
		transcriber: deps.Transcriber,
		ai:          deps.AI,
		lookups:     deps.Lookups,
		asin:        deps.ASIN,
		fixer:       deps.Fixer,
		metrics:     deps.Metrics,
		logger:      logging.NewComponentLogger(deps.Logger, "pipeline"),
		transcripts: cache.New(transcriptTTL, 2*transcriptTTL),
		now:         time.Now,
	}
}

// New builds a controller with the production adapters named in cfg.
// fixer may be nil, in which case books stop at needs_fix.
func New(cfg *config.Config, store Store, fixer Fixer, m *metrics.Metrics, logger *slog.Logger) *Controller {
	deps := Dependencies{
		Store:    store,
		Evidence: evidence.NewCollector(cfg, logger),
		Fixer:    fixer,
		Metrics:  m,
		Logger:   logger,
	}
	if cfg.Pipeline.EnableAudioAnalysis {
		svc := whisperx.NewService(whisperx.Config{
			Model:    cfg.Audio.WhisperXModel,
			CUDA:     cfg.Audio.CUDAEnabled,
			VAD:      cfg.Audio.VADMethod,
			Language: cfg.Audio.Language,
			FFmpeg:   cfg.FFmpegBinary(),
		})
		deps.Transcriber = evidence.NewWhisperTranscriber(svc, cfg.Paths.WorkDir)
	}
	set := providers.NewSet(cfg, m, logger)
	for _, g := range set.Lookups {
		deps.Lookups = append(deps.Lookups, g)
	}
	if set.ASIN != nil {
		deps.ASIN = set.ASIN
	}
	if set.AI != nil {
		deps.AI = set.AI
	}
	return NewController(cfg, deps)
}

// Snapshot returns the pipeline settings for one batch. Layers without an
// adapter are reported as disabled.
func (c *Controller) Snapshot() Config {
	snap := ConfigFromSettings(c.cfg)
	snap.Audio = snap.Audio && c.transcriber != nil
	snap.AI = snap.AI && c.ai != nil
	snap.API = snap.API && (len(c.lookups) > 0 || c.asin != nil)
	return snap
}

// ProcessBatch runs one layer step for up to n queued books, highest
// priority first. n <= 0 uses the configured batch size. Cancellation is
// observed between books; a book interrupted mid-step is left untouched.
func (c *Controller) ProcessBatch(ctx context.Context, n int) (Summary, error) {
	snap := c.Snapshot()
	if n <= 0 {
		n = snap.BatchSize
	}
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, c.logger)

	var summary Summary
	items, err := c.store.DequeueBatch(ctx, n)
	if err != nil {
		return summary, fmt.Errorf("dequeue batch: %w", err)
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		outcome, err := c.processItem(ctx, snap, item)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			return summary, err
		}
		summary.add(outcome)
	}
	if depth, err := c.store.QueueDepth(ctx); err == nil {
		c.metrics.SetQueueDepth(depth)
	}
	if summary.Processed > 0 {
		logger.Info("batch processed",
			logging.Int("processed", summary.Processed),
			logging.Int("advanced", summary.Advanced),
			logging.Int("verified", summary.Verified),
			logging.Int("needs_fix", summary.NeedsFix),
			logging.Int("fixed", summary.Fixed),
			logging.Int("needs_attention", summary.NeedsAttention),
			logging.Int("skipped", summary.Skipped),
		)
	}
	return summary, nil
}

func (c *Controller) processItem(ctx context.Context, snap Config, item *queue.QueueItem) (Outcome, error) {
	ctx = services.WithBookID(ctx, item.BookID)
	ctx = services.WithLayer(ctx, item.Layer.String())
	logger := logging.WithContext(ctx, c.logger)

	book, err := c.store.GetBook(ctx, item.BookID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			if _, err := c.store.RemoveFromQueue(ctx, item.BookID); err != nil {
				logging.WarnWithContext(logger, "orphaned queue entry not removed", "queue_remove_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "run queue prune to clear entries for deleted books"),
					logging.String(logging.FieldImpact, "entry is dequeued again next batch"),
				)
			}
			return OutcomeSkipped, nil
		}
		return "", err
	}
	if book.UserLocked {
		if _, err := c.store.RemoveFromQueue(ctx, book.ID); err != nil {
			return "", err
		}
		attrs := logging.DecisionAttrs("layer_step", string(OutcomeSkipped), "user_locked")
		logger.Info("locked book removed from queue", logging.Args(attrs...)...)
		return OutcomeSkipped, nil
	}

	existing, err := book.Profile()
	if err != nil {
		logging.WarnWithContext(logger, "stored profile unreadable", "profile_decode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the profile is rebuilt from fresh evidence"),
			logging.String(logging.FieldImpact, "earlier observations discarded"),
		)
		existing = nil
	}

	folder, err := c.evidence.Collect(ctx, book.Path)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		failure := services.Wrap(services.ErrNotFound, "pipeline", "collect evidence", book.Path, err)
		logging.WarnWithContext(logger, "book folder unreadable", "evidence_failed",
			logging.String("path", book.Path),
			logging.Error(failure),
			logging.String(logging.FieldErrorHint, "rescan the library if the folder was moved or deleted"),
			logging.String(logging.FieldImpact, "book needs attention"),
		)
		return c.commit(ctx, logger, book, step{
			profile: existing,
			layer:   item.Layer,
			next:    LayerTerminal,
			status:  queue.StatusNeedsAttention,
			reason:  services.ReasonFor(failure),
		})
	}

	result := c.runStep(ctx, snap, item.Layer, existing, folder, naming{author: book.CurrentAuthor, title: book.CurrentTitle})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	result.triage = string(folder.Info.Triage)
	return c.commit(ctx, logger, book, result)
}

func (c *Controller) commit(ctx context.Context, logger *slog.Logger, book *queue.Book, s step) (Outcome, error) {
	stepResult := queue.StepResult{
		BookID:       book.ID,
		Profile:      s.profile,
		Layer:        s.layer,
		Status:       s.status,
		Reason:       s.reason,
		Next:         s.next,
		FolderTriage: s.triage,
	}
	if s.status == queue.StatusNeedsAttention {
		stepResult.History = &queue.HistoryEntry{
			OldAuthor: book.CurrentAuthor,
			OldTitle:  book.CurrentTitle,
			OldPath:   book.Path,
			NewAuthor: s.profile.Value(profile.FieldAuthor),
			NewTitle:  s.profile.Value(profile.FieldTitle),
			Status:    queue.HistoryNeedsAttention,
			Reason:    s.reason,
		}
	}
	if err := c.store.CommitStep(ctx, stepResult); err != nil {
		return "", fmt.Errorf("commit book %d: %w", book.ID, err)
	}

	outcome := outcomeFor(s.status)
	c.metrics.RecordOutcome(s.layer.String(), string(outcome))
	attrs := append(logging.DecisionAttrs("layer_step", string(outcome), s.reason),
		logging.String("ran", s.layer.String()),
		logging.String("next", s.next.String()),
		logging.Int("confidence", s.profile.Confidence()),
	)
	logger.Info("layer step complete", logging.Args(attrs...)...)
	if s.status == queue.StatusNeedsFix && c.fixer != nil {
		return c.settle(ctx, logger, book.ID), nil
	}
	return outcome, nil
}

// settle records a proposed fix for the book and applies it when the gate
// allows that without approval. Failures leave the book at needs_fix.
func (c *Controller) settle(ctx context.Context, logger *slog.Logger, bookID int64) Outcome {
	fix, historyID, err := c.fixer.ClassifyFix(ctx, bookID)
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(logger, "fix classification failed", "fix_classify_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run fix classify for the book once the cause is resolved"),
				logging.String(logging.FieldImpact, "book stays needs_fix without a proposed fix"),
			)
		}
		return OutcomeNeedsFix
	}
	switch {
	case fix.Classification == safety.Verified:
		return OutcomeVerified
	case fix.Classification == safety.Rejected:
		return OutcomeNeedsAttention
	case fix.Classification != safety.AutoApply || historyID == 0:
		return OutcomeNeedsFix
	}
	if err := c.fixer.Apply(ctx, historyID); err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(logger, "automatic fix failed", "fix_auto_apply_failed",
				logging.Int64("history_id", historyID),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the history row and run fix apply or fix undo"),
				logging.String(logging.FieldImpact, "book left for manual review"),
			)
		}
		if errors.Is(err, services.ErrRejectedFix) {
			return OutcomeNeedsAttention
		}
		return OutcomeNeedsFix
	}
	return OutcomeFixed
}
