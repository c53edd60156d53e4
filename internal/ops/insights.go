package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/insights"
)

// InsightsInput contains parameters for the GenerateInsights operation.
type InsightsInput struct {
	Objective string
	Summary   string // rolling summary; may be empty
}

// InsightsOutput contains the result of the GenerateInsights operation.
type InsightsOutput struct {
	Insights  *insights.Insights `json:"insights"`
	ContextID string             `json:"context_id"`
	Visited   int                `json:"visited"`
}

// GenerateInsights asks for a summary, links and suggestions based on the
// rolling summary and the latest context document.
func GenerateInsights(ctx context.Context, database *sql.DB, rt *Runtime, gen *insights.Generator, input InsightsInput) (*InsightsOutput, error) {
	if gen == nil {
		return nil, errors.NewInvalidRequest("insight generation is not configured")
	}
	if strings.TrimSpace(input.Objective) == "" {
		return nil, errors.NewInvalidRequest("learning objective is required (set LEARNING_OBJECTIVE)")
	}

	doc, ok, err := LatestDocument(database, rt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewNotFound("context")
	}

	out, err := gen.GenerateInsights(ctx, input.Objective, InsightsContext(input.Summary, doc.Text))
	if err != nil {
		return nil, err
	}
	if rt != nil && rt.Board != nil {
		rt.Board.ShowInsights(out)
	}

	return &InsightsOutput{
		Insights:  out,
		ContextID: doc.ID,
		Visited:   gen.Ledger().Len(),
	}, nil
}

// InsightsContext joins the rolling summary and the current screen document
// into the screen information given to the insight prompt.
func InsightsContext(summary, screen string) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return screen
	}
	var b strings.Builder
	b.WriteString("Summary of the study session so far:\n")
	b.WriteString(summary)
	b.WriteString("\n\nCurrent screen:\n")
	b.WriteString(screen)
	return b.String()
}
