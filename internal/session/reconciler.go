package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/llm"
	"github.com/hpungsan/mate/internal/logging"
)

// SessionStartLayout formats the seed marker timestamp.
const SessionStartLayout = "2006-01-02 15:04:05"

// GenerationSource reports the session generation. A change means the
// session was flushed, possibly by another process.
type GenerationSource interface {
	Generation() (int64, error)
}

// SQLGeneration reads the generation from the session_state table.
type SQLGeneration struct {
	DB *sql.DB
}

// Generation implements GenerationSource.
func (g SQLGeneration) Generation() (int64, error) {
	return db.GetGeneration(g.DB)
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Model      string
	MaxTokens  int
	Generation GenerationSource
	Logger     *zap.Logger
	Now        func() time.Time
}

// Reconciler owns the rolling summary. It is the only writer of both the
// in-memory value and the summary file.
type Reconciler struct {
	gateway   llm.Gateway
	file      SummaryFile
	model     string
	maxTokens int
	logger    *zap.Logger
	now       func() time.Time
	source    GenerationSource

	mu      sync.Mutex
	summary string
	epoch   uint64 // bumped by every flush
	gen     int64
}

// NewReconciler loads any existing summary from file.
func NewReconciler(gw llm.Gateway, file SummaryFile, opts ReconcilerOptions) (*Reconciler, error) {
	existing, err := file.Load()
	if err != nil {
		return nil, err
	}
	var gen int64
	if opts.Generation != nil {
		if gen, err = opts.Generation.Generation(); err != nil {
			return nil, err
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		gateway:   gw,
		file:      file,
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		logger:    logging.OrNop(opts.Logger).Named("reconciler"),
		now:       now,
		source:    opts.Generation,
		summary:   existing,
		gen:       gen,
	}, nil
}

// Current returns the rolling summary ("" before the first reconcile).
func (r *Reconciler) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncLocked()
	return r.summary
}

// syncLocked drops the summary when the session was flushed elsewhere and
// reports whether it did.
func (r *Reconciler) syncLocked() bool {
	if r.source == nil {
		return false
	}
	gen, err := r.source.Generation()
	if err != nil {
		r.logger.Warn("failed to read session generation", zap.Error(err))
		return false
	}
	if gen == r.gen {
		return false
	}
	r.logger.Info("session flushed elsewhere; dropping summary",
		zap.Int64("from", r.gen), zap.Int64("to", gen))
	r.summary = ""
	r.epoch++
	r.gen = gen
	return true
}

// Reconcile folds doc into the rolling summary. An empty summary is seeded
// and prefixed with the session start marker; otherwise the model either
// extends the summary or returns it unchanged. On failure the previous
// summary stays as it was.
func (r *Reconciler) Reconcile(ctx context.Context, objective string, doc Document) (string, error) {
	r.mu.Lock()
	r.syncLocked()
	existing := r.summary
	epoch := r.epoch
	r.mu.Unlock()

	seed := strings.TrimSpace(existing) == ""
	prompt := updatePrompt(objective, existing, doc.Text)
	if seed {
		prompt = seedPrompt(objective, doc.Text)
	}

	text, err := llm.CompleteWithRetry(ctx, r.gateway, r.logger, func() llm.Request {
		return llm.Request{
			Model:     r.model,
			Prompt:    prompt,
			MaxTokens: r.maxTokens,
		}
	})
	if err != nil {
		r.logger.Warn("summary not updated", zap.Error(err))
		return existing, err
	}

	updated := strings.TrimSpace(text)
	if seed {
		updated = fmt.Sprintf("[Session Started: %s]\n\n%s", r.now().Format(SessionStartLayout), updated)
	} else if updated == strings.TrimSpace(existing) {
		updated = existing
	}

	r.mu.Lock()
	r.syncLocked()
	if r.epoch != epoch {
		// flushed while the model was thinking; the result belongs to the old session
		r.mu.Unlock()
		r.logger.Info("discarding summary from a flushed session")
		return "", nil
	}
	changed := updated != r.summary
	r.summary = updated
	saveErr := r.file.Save(updated)
	if r.syncLocked() {
		// a flush elsewhere raced the save and may have deleted the file first
		err := r.file.Delete()
		r.mu.Unlock()
		if err != nil {
			r.logger.Warn("failed to remove summary from a flushed session", zap.Error(err))
		}
		r.logger.Info("discarding summary from a flushed session")
		return "", nil
	}
	r.mu.Unlock()

	if saveErr != nil {
		// memory keeps the update; the next successful reconcile rewrites the file
		r.logger.Error("failed to persist summary",
			zap.String("code", string(errors.CodeOf(saveErr))),
			zap.String("path", r.file.Path),
			zap.Error(saveErr))
	}

	r.logger.Info("summary reconciled",
		zap.Bool("seeded", seed),
		zap.Bool("changed", changed),
		zap.Int("chars", len(updated)))
	return updated, nil
}

// Flush ends the session: the summary file is deleted and memory cleared.
// Call it after the session generation has been bumped.
func (r *Reconciler) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = ""
	r.epoch++
	if r.source != nil {
		if gen, err := r.source.Generation(); err == nil {
			r.gen = gen
		}
	}
	return r.file.Delete()
}
