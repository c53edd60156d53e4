package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	OlderThanDays *int // optional; nil purges every stored context
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int64  `json:"purged"`
	Message string `json:"message"`
}

// Purge deletes stored context documents. The held document and the rolling
// summary are not affected.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	var before int64
	if input.OlderThanDays != nil {
		if *input.OlderThanDays < 0 {
			return nil, errors.NewInvalidRequest("older_than_days must not be negative")
		}
		before = time.Now().AddDate(0, 0, -*input.OlderThanDays).Unix()
	}

	count, err := db.PurgeContexts(database, before)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int64, olderThanDays *int) string {
	if count == 0 {
		return "No stored contexts to purge"
	}

	word := "context"
	if count > 1 {
		word = "contexts"
	}

	msg := fmt.Sprintf("Permanently deleted %d %s", count, word)
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (captured more than %d days ago)", *olderThanDays)
	}
	return msg
}
