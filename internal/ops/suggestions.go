package ops

import (
	"database/sql"

	"github.com/hpungsan/mate/internal/db"
)

// SuggestionsInput contains parameters for the Suggestions operation.
type SuggestionsInput struct {
	Limit  int // default: 20, max: 100
	Offset int
}

// SuggestionsOutput contains the result of the Suggestions operation.
type SuggestionsOutput struct {
	Items      []db.Suggestion `json:"items"`
	Pagination Pagination      `json:"pagination"`
}

// Suggestions pages through previously suggested links, newest first.
func Suggestions(database *sql.DB, input SuggestionsInput) (*SuggestionsOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	items, err := db.ListSuggestions(database, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountSuggestions(database)
	if err != nil {
		return nil, err
	}

	return &SuggestionsOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}
