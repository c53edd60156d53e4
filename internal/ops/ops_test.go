package ops

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/session"
)

// setupTest returns a fresh database and a config rooted in a temp dir.
func setupTest(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.BaseDir = tmpDir
	return database, cfg
}

func insertContext(t *testing.T, database *sql.DB, text string, capturedAt int64) session.Document {
	t.Helper()
	d := session.NewDocument(text, "file:/tmp/screen.png", time.Unix(capturedAt, 0))
	if err := db.InsertContext(database, d.Record()); err != nil {
		t.Fatalf("InsertContext failed: %v", err)
	}
	return d
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		name                  string
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{"defaults", 0, 0, DefaultListLimit, 0},
		{"negative limit", -5, 3, DefaultListLimit, 3},
		{"over max", MaxListLimit + 1, 0, MaxListLimit, 0},
		{"negative offset", 10, -1, 10, 0},
		{"passthrough", 7, 14, 7, 14},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			limit, offset := clampPage(tc.limit, tc.offset)
			if limit != tc.wantLimit || offset != tc.wantOffset {
				t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)",
					tc.limit, tc.offset, limit, offset, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}
