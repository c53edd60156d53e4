package insights

import (
	"context"
	"database/sql"

	"github.com/hpungsan/mate/internal/db"
)

// SQLRecorder logs suggested links to the suggestions table.
type SQLRecorder struct {
	DB *sql.DB
}

// RecordSuggestions implements Recorder.
func (r SQLRecorder) RecordSuggestions(_ context.Context, objective string, links []Link) error {
	rows := make([]db.Suggestion, 0, len(links))
	for _, l := range links {
		rows = append(rows, db.Suggestion{
			URL:       l.URL,
			Summary:   l.Summary,
			Objective: objective,
		})
	}
	return db.InsertSuggestions(r.DB, rows)
}

// SQLSession reads the session generation and stores the ledger in the
// visited_urls table.
type SQLSession struct {
	DB *sql.DB
}

// Generation implements Session.
func (s SQLSession) Generation() (int64, error) {
	return db.GetGeneration(s.DB)
}

// SaveVisited implements Session.
func (s SQLSession) SaveVisited(generation int64, urls []string) (bool, error) {
	return db.ReplaceVisitedAt(s.DB, urls, generation)
}
