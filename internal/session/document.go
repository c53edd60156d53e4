// Package session holds the per-session state: the latest screen context
// document and the rolling summary of the study session.
package session

import (
	"time"

	"github.com/hpungsan/mate/internal/db"
)

// Document is one extracted screen context. Immutable once created.
type Document struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// NewDocument stamps a fresh document with a ULID.
func NewDocument(text, source string, capturedAt time.Time) Document {
	return Document{
		ID:         db.NewID(),
		Text:       text,
		Source:     source,
		CapturedAt: capturedAt,
	}
}

// Record converts d to its database row.
func (d Document) Record() *db.ContextRecord {
	return &db.ContextRecord{
		ID:            d.ID,
		Source:        d.Source,
		Document:      d.Text,
		DocumentChars: len([]rune(d.Text)),
		CapturedAt:    d.CapturedAt.Unix(),
	}
}

// DocumentFromRecord converts a database row back to a Document.
func DocumentFromRecord(r *db.ContextRecord) Document {
	return Document{
		ID:         r.ID,
		Text:       r.Document,
		Source:     r.Source,
		CapturedAt: time.Unix(r.CapturedAt, 0),
	}
}
