package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/llm/llmtest"
	"github.com/hpungsan/mate/internal/ops"
	"github.com/hpungsan/mate/internal/session"
)

// setupTestDB creates a temporary database and a config rooted beside it.
func setupTestDB(t *testing.T) (*sql.DB, *config.Config) {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.BaseDir = tmpDir
	return database, cfg
}

// runCLI runs the app with args and returns what it wrote to stdout.
func runCLI(t *testing.T, database *sql.DB, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	defer func() { stdout = old }()

	app := newCLIApp(database, cfg, nil)
	err := app.Run(append([]string{"mate"}, args...))
	return buf.String(), err
}

func seedContext(t *testing.T, database *sql.DB, text string, capturedAt time.Time) session.Document {
	t.Helper()
	d := session.NewDocument(text, "file:/tmp/screen.png", capturedAt)
	if err := db.InsertContext(database, d.Record()); err != nil {
		t.Fatalf("InsertContext failed: %v", err)
	}
	return d
}

// TestParseDuration tests the parseDuration helper function.
func TestParseDuration(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    int
		expectError bool
	}{
		{name: "valid days", input: "7d", expected: 7},
		{name: "zero days", input: "0d", expected: 0},
		{name: "large number", input: "365d", expected: 365},
		{name: "negative days", input: "-7d", expectError: true},
		{name: "no suffix", input: "7", expectError: true},
		{name: "wrong suffix", input: "7h", expectError: true},
		{name: "invalid number", input: "abcd", expectError: true},
		{name: "empty string", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := parseDuration(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

// TestCLISummary tests the summary command.
func TestCLISummary(t *testing.T) {
	database, cfg := setupTestDB(t)
	if err := (session.SummaryFile{Path: cfg.SummaryPath()}).Save("Learned slices"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Run("json", func(t *testing.T) {
		out, err := runCLI(t, database, cfg, "summary")
		if err != nil {
			t.Fatalf("summary command failed: %v", err)
		}
		var output ops.SummaryOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
		}
		if output.Summary != "Learned slices" || output.Empty {
			t.Errorf("unexpected output: %+v", output)
		}
	})

	t.Run("raw", func(t *testing.T) {
		out, err := runCLI(t, database, cfg, "summary", "--raw")
		if err != nil {
			t.Fatalf("summary command failed: %v", err)
		}
		if strings.TrimSpace(out) != "Learned slices" {
			t.Errorf("expected raw summary, got %q", out)
		}
	})
}

// TestCLILatest tests the latest command.
func TestCLILatest(t *testing.T) {
	database, cfg := setupTestDB(t)

	out, err := runCLI(t, database, cfg, "latest")
	if err != nil {
		t.Fatalf("latest command failed: %v", err)
	}
	var empty ops.LatestOutput
	if err := json.Unmarshal([]byte(out), &empty); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if empty.Item != nil {
		t.Errorf("expected no item, got %+v", empty.Item)
	}

	seedContext(t, database, "older", time.Unix(1000, 0))
	newest := seedContext(t, database, "newest", time.Unix(2000, 0))

	out, err = runCLI(t, database, cfg, "latest", "--no-text")
	if err != nil {
		t.Fatalf("latest command failed: %v", err)
	}
	var output ops.LatestOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Item == nil || output.Item.ID != newest.ID {
		t.Fatalf("expected newest item, got %+v", output.Item)
	}
	if output.Item.Document != "" {
		t.Errorf("expected text to be omitted, got %q", output.Item.Document)
	}
}

// TestCLIContexts tests the contexts and context commands.
func TestCLIContexts(t *testing.T) {
	database, cfg := setupTestDB(t)
	first := seedContext(t, database, "first", time.Unix(1000, 0))
	seedContext(t, database, "second", time.Unix(2000, 0))

	out, err := runCLI(t, database, cfg, "contexts", "--limit=1")
	if err != nil {
		t.Fatalf("contexts command failed: %v", err)
	}
	var list ops.ListContextsOutput
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if len(list.Items) != 1 || !list.Pagination.HasMore || list.Pagination.Total != 2 {
		t.Errorf("unexpected list output: %+v", list)
	}

	out, err = runCLI(t, database, cfg, "context", first.ID)
	if err != nil {
		t.Fatalf("context command failed: %v", err)
	}
	var item ops.ContextItem
	if err := json.Unmarshal([]byte(out), &item); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if item.ID != first.ID || item.Document != "first" {
		t.Errorf("unexpected item: %+v", item)
	}
}

// TestCLIVisited tests the visited command.
func TestCLIVisited(t *testing.T) {
	database, cfg := setupTestDB(t)
	if err := db.ReplaceVisited(database, []string{"https://go.dev/tour", "https://pkg.go.dev"}); err != nil {
		t.Fatalf("ReplaceVisited failed: %v", err)
	}

	out, err := runCLI(t, database, cfg, "visited")
	if err != nil {
		t.Fatalf("visited command failed: %v", err)
	}
	var output ops.VisitedOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Count != 2 {
		t.Errorf("expected 2 urls, got %+v", output)
	}
}

// TestCLISuggestions tests the suggestions command.
func TestCLISuggestions(t *testing.T) {
	database, cfg := setupTestDB(t)

	out, err := runCLI(t, database, cfg, "suggestions")
	if err != nil {
		t.Fatalf("suggestions command failed: %v", err)
	}
	var output ops.SuggestionsOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if len(output.Items) != 0 {
		t.Errorf("expected no suggestions, got %d", len(output.Items))
	}
}

// TestCLIFlush tests the flush command.
func TestCLIFlush(t *testing.T) {
	database, cfg := setupTestDB(t)
	seedContext(t, database, "kept or not", time.Unix(1000, 0))
	if err := db.ReplaceVisited(database, []string{"https://go.dev"}); err != nil {
		t.Fatalf("ReplaceVisited failed: %v", err)
	}
	if err := (session.SummaryFile{Path: cfg.SummaryPath()}).Save("old summary"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := runCLI(t, database, cfg, "flush", "--keep-history")
	if err != nil {
		t.Fatalf("flush command failed: %v", err)
	}
	var output ops.FlushOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.VisitedCleared != 1 || output.ContextsPurged != 0 {
		t.Errorf("unexpected flush output: %+v", output)
	}
	if _, err := os.Stat(cfg.SummaryPath()); !os.IsNotExist(err) {
		t.Errorf("expected summary file removed, stat err = %v", err)
	}
	if n, _ := db.CountContexts(database); n != 1 {
		t.Errorf("expected history kept, got %d contexts", n)
	}
}

// TestCLIExport tests the export command.
func TestCLIExport(t *testing.T) {
	database, cfg := setupTestDB(t)
	seedContext(t, database, "exported", time.Unix(1000, 0))

	path := filepath.Join(ops.ExportsDir(cfg), "session.jsonl")
	out, err := runCLI(t, database, cfg, "export", "--path="+path)
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}
	var output ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Count != 1 || output.Path != path {
		t.Errorf("unexpected export output: %+v", output)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected export file: %v", err)
	}
}

// TestCLIPurge tests the purge command.
func TestCLIPurge(t *testing.T) {
	database, cfg := setupTestDB(t)
	seedContext(t, database, "ancient", time.Now().AddDate(0, 0, -30))
	seedContext(t, database, "fresh", time.Now())

	out, err := runCLI(t, database, cfg, "purge", "--older-than=7d")
	if err != nil {
		t.Fatalf("purge command failed: %v", err)
	}
	var output ops.PurgeOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Purged != 1 {
		t.Errorf("expected 1 purged, got %d", output.Purged)
	}
	if n, _ := db.CountContexts(database); n != 1 {
		t.Errorf("expected 1 remaining, got %d", n)
	}
}

// TestCLIErrorHandling tests error handling in CLI commands.
func TestCLIErrorHandling(t *testing.T) {
	database, cfg := setupTestDB(t)

	t.Run("context not found returns error", func(t *testing.T) {
		// cli.Exit writes to stderr, so just verify the error is returned
		_, err := runCLI(t, database, cfg, "context", "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("invalid duration format returns error", func(t *testing.T) {
		_, err := runCLI(t, database, cfg, "purge", "--older-than=invalid")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("export outside exports dir returns error", func(t *testing.T) {
		_, err := runCLI(t, database, cfg, "export", "--path="+filepath.Join(cfg.BaseDir, "out.jsonl"))
		if err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("run without objective returns error", func(t *testing.T) {
		_, err := runCLI(t, database, cfg, "run")
		if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
			t.Errorf("expected INVALID_REQUEST, got %v", err)
		}
	})

	t.Run("insights without api key returns error", func(t *testing.T) {
		_, err := runCLI(t, database, cfg, "insights", "--objective=Learn Go")
		if err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestRunSessionValidation(t *testing.T) {
	database, _ := setupTestDB(t)

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "missing objective",
			mutate: func(c *config.Config) { c.Objective = "  " },
			want:   "learning objective is required",
		},
		{
			name:   "zero capture interval",
			mutate: func(c *config.Config) { c.CaptureIntervalSeconds = 0 },
			want:   "capture_interval_seconds",
		},
		{
			name:   "unknown source",
			mutate: func(c *config.Config) { c.CaptureSource = "webcam" },
			want:   "unknown capture_source",
		},
		{
			name:   "missing api key",
			mutate: func(c *config.Config) {},
			want:   "api key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.BaseDir = t.TempDir()
			cfg.Objective = "Learn Go"
			tt.mutate(cfg)

			err := runSession(context.Background(), database, cfg, nil, false)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Fatalf("expected INVALID_REQUEST, got %v", err)
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestBuildRuntime(t *testing.T) {
	database, cfg := setupTestDB(t)
	cfg.Objective = "Learn Go"
	cfg.VisitedSeed = "https://go.dev/doc"
	held := seedContext(t, database, "Tour of Go, page 3", time.Unix(1000, 0))
	if err := db.ReplaceVisited(database, []string{"https://go.dev/tour"}); err != nil {
		t.Fatalf("ReplaceVisited failed: %v", err)
	}
	if err := (session.SummaryFile{Path: cfg.SummaryPath()}).Save("Started the tour"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	gw := llmtest.New(llmtest.Text(`{"links": [{"url": "https://pkg.go.dev", "summary": "Package docs"}]}`))
	rt, err := buildRuntime(context.Background(), database, cfg, gw, nil)
	if err != nil {
		t.Fatalf("buildRuntime failed: %v", err)
	}

	if rt.Objective != "Learn Go" {
		t.Errorf("Objective = %q", rt.Objective)
	}
	if d, ok := rt.Store.Latest(); !ok || d.ID != held.ID {
		t.Errorf("store not restored from history: %+v, %v", d, ok)
	}
	if got := rt.Reconciler.Current(); got != "Started the tour" {
		t.Errorf("Reconciler.Current() = %q", got)
	}
	if rt.Ledger.Len() != 2 {
		t.Errorf("ledger = %v, want stored url plus seed", rt.Ledger.Snapshot())
	}
	if rt.Generator == nil || rt.Links == nil || rt.Board == nil {
		t.Fatal("runtime is missing collaborators")
	}

	if _, err := rt.Generator.GenerateLinks(context.Background(), cfg.Objective, "Tour of Go"); err != nil {
		t.Fatalf("GenerateLinks failed: %v", err)
	}
	rows, err := db.ListVisited(database)
	if err != nil {
		t.Fatalf("ListVisited failed: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected ledger changes persisted, got %d rows", len(rows))
	}

	// `mate flush` from another terminal
	if _, err := ops.Flush(context.Background(), database, cfg, nil, ops.FlushInput{}); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if got := rt.Reconciler.Current(); got != "" {
		t.Errorf("Reconciler.Current() after flush = %q, want empty", got)
	}
}

func TestBuildRuntime_HistoryDisabled(t *testing.T) {
	database, cfg := setupTestDB(t)
	cfg.DisableContextHistory = true
	seedContext(t, database, "stored", time.Unix(1000, 0))

	rt, err := buildRuntime(context.Background(), database, cfg, llmtest.New(), nil)
	if err != nil {
		t.Fatalf("buildRuntime failed: %v", err)
	}
	if _, ok := rt.Store.Latest(); ok {
		t.Error("store should start empty when history is disabled")
	}
}

// TestIsCLIMode tests the isCLIMode function.
func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"mate"}, expected: false},
		{name: "run command", args: []string{"mate", "run"}, expected: true},
		{name: "summary command", args: []string{"mate", "summary"}, expected: true},
		{name: "mcp command", args: []string{"mate", "mcp"}, expected: true},
		{name: "help flag", args: []string{"mate", "--help"}, expected: true},
		{name: "version flag", args: []string{"mate", "--version"}, expected: true},
		{name: "short help flag", args: []string{"mate", "-h"}, expected: true},
		{name: "short version flag", args: []string{"mate", "-v"}, expected: true},
		{name: "unknown arg defaults to MCP", args: []string{"mate", "--unknown"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save and restore os.Args
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			result := isCLIMode()

			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestIsHelpOrVersion tests the isHelpOrVersion function.
func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{name: "no args", args: []string{"mate"}, expected: false},
		{name: "help flag", args: []string{"mate", "--help"}, expected: true},
		{name: "short help flag", args: []string{"mate", "-h"}, expected: true},
		{name: "version flag", args: []string{"mate", "--version"}, expected: true},
		{name: "short version flag", args: []string{"mate", "-v"}, expected: true},
		{name: "help subcommand", args: []string{"mate", "help"}, expected: true},
		{name: "run command is not help", args: []string{"mate", "run"}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			result := isHelpOrVersion()

			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}
