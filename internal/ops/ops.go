// Package ops holds the operations shared by the CLI, the web dashboard and
// the MCP server.
package ops

import (
	"github.com/hpungsan/mate/internal/insights"
	"github.com/hpungsan/mate/internal/ledger"
	"github.com/hpungsan/mate/internal/mailbox"
	"github.com/hpungsan/mate/internal/present"
	"github.com/hpungsan/mate/internal/session"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Runtime is the in-process state of a running session. Operations read it
// when present and fall back to the database and summary file otherwise
// (one-shot CLI commands, a second process).
type Runtime struct {
	Objective  string
	Store      *session.ContextStore
	Reconciler *session.Reconciler
	Ledger     *ledger.Ledger
	Links      *mailbox.Mailbox[[]insights.Link]
	Generator  *insights.Generator
	Board      *present.Board
}

// clampPage applies limit defaults and bounds and a non-negative offset.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}
