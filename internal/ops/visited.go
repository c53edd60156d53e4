package ops

import (
	"database/sql"

	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/ledger"
)

// VisitedOutput contains the visited-URL ledger.
type VisitedOutput struct {
	URLs     []string `json:"urls"`
	Rendered string   `json:"rendered"`
	Count    int      `json:"count"`
}

// Visited returns the ledger, from memory when a session is running in this
// process and from the visited_urls table otherwise.
func Visited(database *sql.DB, rt *Runtime) (*VisitedOutput, error) {
	var urls []string
	if rt != nil && rt.Ledger != nil {
		urls = rt.Ledger.Snapshot()
	} else {
		rows, err := db.ListVisited(database)
		if err != nil {
			return nil, err
		}
		urls = make([]string, 0, len(rows))
		for _, r := range rows {
			urls = append(urls, r.URL)
		}
	}

	rendered := ledger.None
	if len(urls) > 0 {
		l := ledger.New()
		l.AddAll(urls)
		rendered = l.Rendered()
	}
	return &VisitedOutput{URLs: urls, Rendered: rendered, Count: len(urls)}, nil
}

// LoadLedger builds a ledger from the visited_urls table plus an extra seed
// (the VISITED_URLS environment value). Seed URLs are written back to the
// table.
func LoadLedger(database *sql.DB, seed string) (*ledger.Ledger, error) {
	rows, err := db.ListVisited(database)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(rows))
	for _, r := range rows {
		urls = append(urls, r.URL)
	}

	l := ledger.New()
	l.AddAll(urls)
	if l.AddAll(ledger.Split(seed)) > 0 {
		if err := db.ReplaceVisited(database, l.Snapshot()); err != nil {
			return nil, err
		}
	}
	return l, nil
}
