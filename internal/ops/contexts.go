package ops

import (
	"database/sql"

	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/session"
)

// ContextItem describes one context document.
type ContextItem struct {
	ID            string `json:"id"`
	Source        string `json:"source,omitempty"`
	CapturedAt    int64  `json:"captured_at"`
	DocumentChars int    `json:"document_chars"`
	Document      string `json:"document,omitempty"` // only if include_text
}

func itemFromRecord(r *db.ContextRecord, includeText bool) ContextItem {
	item := ContextItem{
		ID:            r.ID,
		Source:        r.Source,
		CapturedAt:    r.CapturedAt,
		DocumentChars: r.DocumentChars,
	}
	if includeText {
		item.Document = r.Document
	}
	return item
}

// LatestInput contains parameters for the Latest operation.
type LatestInput struct {
	IncludeText *bool // default: true
}

// LatestOutput contains the result of the Latest operation.
type LatestOutput struct {
	Item *ContextItem `json:"item"` // nil if nothing captured yet
}

// Latest returns the most recent context document.
func Latest(database *sql.DB, rt *Runtime, input LatestInput) (*LatestOutput, error) {
	includeText := true
	if input.IncludeText != nil {
		includeText = *input.IncludeText
	}

	doc, ok, err := LatestDocument(database, rt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &LatestOutput{Item: nil}, nil
	}
	item := itemFromRecord(doc.Record(), includeText)
	return &LatestOutput{Item: &item}, nil
}

// LatestDocument returns the held document from rt, or the newest stored one.
func LatestDocument(database *sql.DB, rt *Runtime) (session.Document, bool, error) {
	if rt != nil && rt.Store != nil {
		if d, ok := rt.Store.Latest(); ok {
			return d, true, nil
		}
	}
	if database == nil {
		return session.Document{}, false, nil
	}
	r, err := db.GetLatestContext(database)
	if errors.Is(err, errors.ErrNotFound) {
		return session.Document{}, false, nil
	}
	if err != nil {
		return session.Document{}, false, err
	}
	return session.DocumentFromRecord(r), true, nil
}

// GetContext returns one stored document by id.
func GetContext(database *sql.DB, id string) (*ContextItem, error) {
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	r, err := db.GetContextByID(database, id)
	if err != nil {
		return nil, err
	}
	item := itemFromRecord(r, true)
	return &item, nil
}

// ListContextsInput contains parameters for the ListContexts operation.
type ListContextsInput struct {
	Limit       int // default: 20, max: 100
	Offset      int
	IncludeText bool
}

// ListContextsOutput contains the result of the ListContexts operation.
type ListContextsOutput struct {
	Items      []ContextItem `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// ListContexts pages through the context history, newest first.
func ListContexts(database *sql.DB, input ListContextsInput) (*ListContextsOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	records, err := db.ListContexts(database, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountContexts(database)
	if err != nil {
		return nil, err
	}

	items := make([]ContextItem, 0, len(records))
	for i := range records {
		items = append(items, itemFromRecord(&records[i], input.IncludeText))
	}

	return &ListContextsOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "captured_at_desc",
	}, nil
}
