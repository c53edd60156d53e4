package session

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/logging"
)

// History persists every document a store accepts.
type History interface {
	SaveDocument(ctx context.Context, d Document) error
	LatestDocument(ctx context.Context) (*Document, error)
}

// ContextStore holds the latest context document. Each Replace supersedes
// the previous document; nothing is merged.
type ContextStore struct {
	mu      sync.Mutex
	latest  *Document
	history History
	logger  *zap.Logger
}

// NewContextStore creates an empty store. history may be nil.
func NewContextStore(history History, logger *zap.Logger) *ContextStore {
	return &ContextStore{
		history: history,
		logger:  logging.OrNop(logger).Named("contexts"),
	}
}

// Replace makes d the latest document. A history write failure is logged
// and does not block the replacement.
func (s *ContextStore) Replace(ctx context.Context, d Document) {
	s.mu.Lock()
	s.latest = &d
	s.mu.Unlock()

	if s.history == nil {
		return
	}
	if err := s.history.SaveDocument(ctx, d); err != nil {
		s.logger.Warn("failed to save context history", zap.String("id", d.ID), zap.Error(err))
	}
}

// Latest returns the current document.
func (s *ContextStore) Latest() (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Document{}, false
	}
	return *s.latest, true
}

// Clear drops the held document. History is untouched.
func (s *ContextStore) Clear() {
	s.mu.Lock()
	s.latest = nil
	s.mu.Unlock()
}

// Restore seeds the store from history when it holds nothing yet.
// An empty history is not an error.
func (s *ContextStore) Restore(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	d, err := s.history.LatestDocument(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		s.latest = d
	}
	return nil
}

// SQLHistory stores documents in the contexts table.
type SQLHistory struct {
	DB *sql.DB
}

// SaveDocument implements History.
func (h SQLHistory) SaveDocument(_ context.Context, d Document) error {
	return db.InsertContext(h.DB, d.Record())
}

// LatestDocument implements History.
func (h SQLHistory) LatestDocument(_ context.Context) (*Document, error) {
	r, err := db.GetLatestContext(h.DB)
	if err != nil {
		return nil, err
	}
	d := DocumentFromRecord(r)
	return &d, nil
}
