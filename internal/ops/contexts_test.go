package ops

import (
	"context"
	"testing"
	"time"

	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/session"
)

func TestLatest_Empty(t *testing.T) {
	database, _ := setupTest(t)

	out, err := Latest(database, nil, LatestInput{})
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if out.Item != nil {
		t.Errorf("Item = %+v, want nil", out.Item)
	}
}

func TestLatest_FromDatabase(t *testing.T) {
	database, _ := setupTest(t)

	insertContext(t, database, "older screen", 1000)
	newest := insertContext(t, database, "newest screen", 2000)

	out, err := Latest(database, nil, LatestInput{})
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if out.Item == nil {
		t.Fatal("Item = nil, want newest")
	}
	if out.Item.ID != newest.ID {
		t.Errorf("ID = %q, want %q", out.Item.ID, newest.ID)
	}
	if out.Item.Document != "newest screen" {
		t.Errorf("Document = %q, want text included by default", out.Item.Document)
	}

	noText := false
	out, err = Latest(database, nil, LatestInput{IncludeText: &noText})
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if out.Item.Document != "" {
		t.Errorf("Document = %q, want empty with include_text=false", out.Item.Document)
	}
	if out.Item.DocumentChars != len("newest screen") {
		t.Errorf("DocumentChars = %d", out.Item.DocumentChars)
	}
}

func TestLatest_PrefersRuntimeStore(t *testing.T) {
	database, _ := setupTest(t)
	insertContext(t, database, "stored screen", 1000)

	store := session.NewContextStore(nil, nil)
	held := session.NewDocument("held screen", "display:0", time.Unix(500, 0))
	store.Replace(context.Background(), held)

	out, err := Latest(database, &Runtime{Store: store}, LatestInput{})
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if out.Item == nil || out.Item.ID != held.ID {
		t.Fatalf("Item = %+v, want held document", out.Item)
	}
}

func TestGetContext(t *testing.T) {
	database, _ := setupTest(t)
	d := insertContext(t, database, "one screen", 1000)

	item, err := GetContext(database, d.ID)
	if err != nil {
		t.Fatalf("GetContext failed: %v", err)
	}
	if item.Document != "one screen" {
		t.Errorf("Document = %q", item.Document)
	}

	if _, err := GetContext(database, ""); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("empty id: got %v, want ErrInvalidRequest", err)
	}
	if _, err := GetContext(database, "01MISSING"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("missing id: got %v, want ErrNotFound", err)
	}
}

func TestListContexts_Pagination(t *testing.T) {
	database, _ := setupTest(t)
	for i := 0; i < 5; i++ {
		insertContext(t, database, "screen", int64(1000+i))
	}

	out, err := ListContexts(database, ListContextsInput{Limit: 2})
	if err != nil {
		t.Fatalf("ListContexts failed: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(out.Items))
	}
	if out.Items[0].CapturedAt != 1004 {
		t.Errorf("first CapturedAt = %d, want newest first", out.Items[0].CapturedAt)
	}
	if out.Items[0].Document != "" {
		t.Error("Document should be omitted without include_text")
	}
	if !out.Pagination.HasMore || out.Pagination.Total != 5 {
		t.Errorf("Pagination = %+v", out.Pagination)
	}
	if out.Sort != "captured_at_desc" {
		t.Errorf("Sort = %q", out.Sort)
	}

	out, err = ListContexts(database, ListContextsInput{Limit: 2, Offset: 4, IncludeText: true})
	if err != nil {
		t.Fatalf("ListContexts failed: %v", err)
	}
	if len(out.Items) != 1 || out.Pagination.HasMore {
		t.Errorf("last page: items=%d pagination=%+v", len(out.Items), out.Pagination)
	}
	if out.Items[0].Document != "screen" {
		t.Errorf("Document = %q, want text with include_text", out.Items[0].Document)
	}
}

func TestListContexts_EmptyIsNonNil(t *testing.T) {
	database, _ := setupTest(t)

	out, err := ListContexts(database, ListContextsInput{})
	if err != nil {
		t.Fatalf("ListContexts failed: %v", err)
	}
	if out.Items == nil {
		t.Error("Items = nil, want empty slice")
	}
}
