package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/mate/internal/errors"
)

// ContextRecord is one stored context document.
type ContextRecord struct {
	ID            string `json:"id"`
	Source        string `json:"source,omitempty"`
	Document      string `json:"document"`
	DocumentChars int    `json:"document_chars"`
	CapturedAt    int64  `json:"captured_at"`
}

// VisitedURL is one ledger row.
type VisitedURL struct {
	URL     string `json:"url"`
	AddedAt int64  `json:"added_at"`
}

// Suggestion is one logged link suggestion.
type Suggestion struct {
	ID        string  `json:"id"`
	URL       *string `json:"url,omitempty"`
	Summary   *string `json:"summary,omitempty"`
	Objective string  `json:"objective"`
	CreatedAt int64   `json:"created_at"`
}

// NewID returns a fresh ULID string.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// InsertContext stores a context document.
func InsertContext(db *sql.DB, r *ContextRecord) error {
	query := `
		INSERT INTO contexts (id, source, document, document_chars, captured_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, r.ID, toNullString(nonEmpty(r.Source)), r.Document, r.DocumentChars, r.CapturedAt)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetLatestContext returns the most recently captured document.
func GetLatestContext(db *sql.DB) (*ContextRecord, error) {
	query := `
		SELECT id, source, document, document_chars, captured_at
		FROM contexts
		ORDER BY captured_at DESC, id DESC
		LIMIT 1
	`
	row := db.QueryRow(query)
	r, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("context")
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// GetContextByID returns one document by ULID.
func GetContextByID(db *sql.DB, id string) (*ContextRecord, error) {
	query := `
		SELECT id, source, document, document_chars, captured_at
		FROM contexts
		WHERE id = ?
	`
	row := db.QueryRow(query, id)
	r, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListContexts returns documents newest first.
func ListContexts(db *sql.DB, limit, offset int) ([]ContextRecord, error) {
	query := `
		SELECT id, source, document, document_chars, captured_at
		FROM contexts
		ORDER BY captured_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []ContextRecord{}
	for rows.Next() {
		r, err := scanContext(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// StreamContexts returns rows for export, oldest first. Caller must close.
func StreamContexts(ctx context.Context, db *sql.DB) (*sql.Rows, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, source, document, document_chars, captured_at
		FROM contexts
		ORDER BY captured_at ASC, id ASC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanContextFromRows scans the current row of a StreamContexts result.
func ScanContextFromRows(rows *sql.Rows) (*ContextRecord, error) {
	return scanContext(rows)
}

// CountContexts returns the number of stored documents.
func CountContexts(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM contexts").Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// PurgeContexts deletes documents captured before the given unix time.
// before <= 0 deletes every document.
func PurgeContexts(db *sql.DB, before int64) (int64, error) {
	var (
		result sql.Result
		err    error
	)
	if before <= 0 {
		result, err = db.Exec("DELETE FROM contexts")
	} else {
		result, err = db.Exec("DELETE FROM contexts WHERE captured_at < ?", before)
	}
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// GetGeneration returns the session generation. Every flush bumps it, so a
// process holding session state can tell that another process reset it.
func GetGeneration(db *sql.DB) (int64, error) {
	var gen int64
	if err := db.QueryRow("SELECT generation FROM session_state WHERE id = 1").Scan(&gen); err != nil {
		return 0, errors.NewInternal(err)
	}
	return gen, nil
}

// BumpGeneration starts a new session generation and returns it.
func BumpGeneration(db *sql.DB) (int64, error) {
	var gen int64
	err := db.QueryRow("UPDATE session_state SET generation = generation + 1 WHERE id = 1 RETURNING generation").Scan(&gen)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return gen, nil
}

// ReplaceVisited makes visited_urls match urls exactly. Rows that survive
// keep their original added_at.
func ReplaceVisited(db *sql.DB, urls []string) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if err := replaceVisitedTx(tx, urls); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ReplaceVisitedAt is ReplaceVisited for the given session generation. It
// writes nothing and reports false when the generation has moved on.
func ReplaceVisitedAt(db *sql.DB, urls []string, generation int64) (bool, error) {
	tx, err := db.Begin()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	defer tx.Rollback()

	var current int64
	if err := tx.QueryRow("SELECT generation FROM session_state WHERE id = 1").Scan(&current); err != nil {
		return false, errors.NewInternal(err)
	}
	if current != generation {
		return false, nil
	}
	if err := replaceVisitedTx(tx, urls); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

func replaceVisitedTx(tx *sql.Tx, urls []string) error {
	now := time.Now().Unix()
	keep := make([]any, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, err := tx.Exec("INSERT OR IGNORE INTO visited_urls (url, added_at) VALUES (?, ?)", u, now); err != nil {
			return errors.NewInternal(err)
		}
		keep = append(keep, u)
	}

	var err error
	if len(keep) == 0 {
		_, err = tx.Exec("DELETE FROM visited_urls")
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
		_, err = tx.Exec("DELETE FROM visited_urls WHERE url NOT IN ("+placeholders+")", keep...)
	}
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListVisited returns the ledger sorted by URL.
func ListVisited(db *sql.DB) ([]VisitedURL, error) {
	rows, err := db.Query("SELECT url, added_at FROM visited_urls ORDER BY url")
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []VisitedURL{}
	for rows.Next() {
		var v VisitedURL
		if err := rows.Scan(&v.URL, &v.AddedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ClearVisited empties the ledger table.
func ClearVisited(db *sql.DB) (int64, error) {
	return execCount(db, "DELETE FROM visited_urls")
}

// InsertSuggestions stores a batch of suggestions in one transaction.
// Missing IDs and timestamps are filled in.
func InsertSuggestions(db *sql.DB, items []Suggestion) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	for i := range items {
		s := &items[i]
		if s.ID == "" {
			s.ID = NewID()
		}
		if s.CreatedAt == 0 {
			s.CreatedAt = now
		}
		_, err := tx.Exec(
			"INSERT INTO suggestions (id, url, summary, objective, created_at) VALUES (?, ?, ?, ?, ?)",
			s.ID, toNullString(s.URL), toNullString(s.Summary), s.Objective, s.CreatedAt,
		)
		if err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListSuggestions returns suggestions newest first.
func ListSuggestions(db *sql.DB, limit, offset int) ([]Suggestion, error) {
	query := `
		SELECT id, url, summary, objective, created_at
		FROM suggestions
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := []Suggestion{}
	for rows.Next() {
		var (
			s       Suggestion
			url     sql.NullString
			summary sql.NullString
		)
		if err := rows.Scan(&s.ID, &url, &summary, &s.Objective, &s.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		s.URL = fromNullString(url)
		s.Summary = fromNullString(summary)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// CountSuggestions returns the number of logged suggestions.
func CountSuggestions(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM suggestions").Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// ClearSuggestions deletes every logged suggestion.
func ClearSuggestions(db *sql.DB) (int64, error) {
	return execCount(db, "DELETE FROM suggestions")
}

func execCount(db *sql.DB, query string) (int64, error) {
	result, err := db.Exec(query)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanContext scans a single row into a ContextRecord.
func scanContext(row rowScanner) (*ContextRecord, error) {
	var (
		r      ContextRecord
		source sql.NullString
	)
	if err := row.Scan(&r.ID, &source, &r.Document, &r.DocumentChars, &r.CapturedAt); err != nil {
		return nil, err
	}
	if source.Valid {
		r.Source = source.String
	}
	return &r, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
