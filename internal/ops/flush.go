package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/session"
)

// FlushInput contains parameters for the Flush operation.
type FlushInput struct {
	KeepHistory bool // keep the contexts and suggestions tables
}

// FlushOutput contains the result of the Flush operation.
type FlushOutput struct {
	VisitedCleared     int64  `json:"visited_cleared"`
	ContextsPurged     int64  `json:"contexts_purged"`
	SuggestionsCleared int64  `json:"suggestions_cleared"`
	Message            string `json:"message"`
}

// Flush resets the session: the summary file is deleted, the visited ledger
// emptied and, unless KeepHistory, the stored contexts and suggestions
// dropped. In-process state in rt is cleared too. The session generation is
// bumped first so a session running in another process discards its state
// instead of writing it back.
func Flush(ctx context.Context, database *sql.DB, cfg *config.Config, rt *Runtime, input FlushInput) (*FlushOutput, error) {
	if _, err := db.BumpGeneration(database); err != nil {
		return nil, err
	}

	out := &FlushOutput{}
	var err error
	if out.VisitedCleared, err = db.ClearVisited(database); err != nil {
		return nil, err
	}
	if !input.KeepHistory {
		if out.ContextsPurged, err = db.PurgeContexts(database, 0); err != nil {
			return nil, err
		}
		if out.SuggestionsCleared, err = db.ClearSuggestions(database); err != nil {
			return nil, err
		}
	}

	if rt != nil && rt.Reconciler != nil {
		if err := rt.Reconciler.Flush(); err != nil {
			return nil, err
		}
	} else if err := (session.SummaryFile{Path: cfg.SummaryPath()}).Delete(); err != nil {
		return nil, err
	}

	if rt != nil {
		if rt.Store != nil {
			rt.Store.Clear()
		}
		if rt.Generator != nil {
			rt.Generator.Reset()
		} else {
			if rt.Ledger != nil {
				rt.Ledger.Clear()
			}
			if rt.Links != nil {
				rt.Links.Clear()
			}
		}
		if rt.Board != nil {
			rt.Board.Reset()
		}
	}

	out.Message = fmt.Sprintf("Session flushed: %d visited urls, %d contexts, %d suggestions removed",
		out.VisitedCleared, out.ContextsPurged, out.SuggestionsCleared)
	return out, nil
}
