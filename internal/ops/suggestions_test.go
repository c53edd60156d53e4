package ops

import (
	"testing"

	"github.com/hpungsan/mate/internal/db"
)

func TestSuggestions_Pagination(t *testing.T) {
	database, _ := setupTest(t)

	u1, u2, u3 := "https://a.example", "https://b.example", "https://c.example"
	if err := db.InsertSuggestions(database, []db.Suggestion{
		{URL: &u1, Objective: "learn"},
		{URL: &u2, Objective: "learn"},
		{URL: &u3, Objective: "learn"},
	}); err != nil {
		t.Fatalf("InsertSuggestions failed: %v", err)
	}

	out, err := Suggestions(database, SuggestionsInput{Limit: 2})
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(out.Items))
	}
	if out.Pagination.Total != 3 || !out.Pagination.HasMore {
		t.Errorf("Pagination = %+v", out.Pagination)
	}

	out, err = Suggestions(database, SuggestionsInput{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Suggestions failed: %v", err)
	}
	if len(out.Items) != 1 || out.Pagination.HasMore {
		t.Errorf("last page: items=%d pagination=%+v", len(out.Items), out.Pagination)
	}
}
