package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/llm"
	"github.com/hpungsan/mate/internal/mcp"
	"github.com/hpungsan/mate/internal/ops"
	"github.com/hpungsan/mate/internal/web"
)

// stdout is where command output goes. Tests replace it.
var stdout io.Writer = os.Stdout

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.App {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &cli.App{
		Name:    "mate",
		Usage:   "Screen-aware study companion",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(db, cfg, logger),
			serveCmd(db, cfg, logger),
			insightsCmd(db, cfg, logger),
			summaryCmd(cfg),
			latestCmd(db),
			contextsCmd(db),
			contextCmd(db),
			visitedCmd(db),
			suggestionsCmd(db),
			flushCmd(db, cfg),
			exportCmd(db, cfg),
			purgeCmd(db),
			mcpCmd(db, cfg, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// runCmd creates the run command.
func runCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start a study session: capture, summarize and suggest links until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "objective", Aliases: []string{"o"}, Usage: "Learning objective (overrides LEARNING_OBJECTIVE)"},
			&cli.StringFlag{Name: "source", Usage: "Capture source: display|browser|file"},
			&cli.BoolFlag{Name: "no-web", Usage: "Do not start the dashboard"},
		},
		Action: func(c *cli.Context) error {
			if objective := strings.TrimSpace(c.String("objective")); objective != "" {
				cfg.Objective = objective
			}
			if source := c.String("source"); source != "" {
				cfg.CaptureSource = source
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := runSession(ctx, db, cfg, logger, !c.Bool("no-web")); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the dashboard over stored session state (no capture)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
		},
		Action: func(c *cli.Context) error {
			if bind := c.String("bind"); bind != "" {
				cfg.WebBind = bind
			}
			if c.IsSet("port") {
				cfg.WebPort = c.Int("port")
			}

			srv, err := web.NewServer(db, cfg, nil, Version, logger)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := web.Run(ctx, srv, logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// insightsCmd creates the insights command.
func insightsCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "insights",
		Usage: "Generate a summary, links and suggestions for the latest stored context",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "objective", Aliases: []string{"o"}, Usage: "Learning objective (overrides LEARNING_OBJECTIVE)"},
		},
		Action: func(c *cli.Context) error {
			if objective := strings.TrimSpace(c.String("objective")); objective != "" {
				cfg.Objective = objective
			}
			if err := config.LoadAPIKey(cfg); err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			gw, err := llm.New(c.Context, cfg, logger)
			if err != nil {
				return outputError(err)
			}
			rt, err := buildRuntime(c.Context, db, cfg, gw, logger)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.GenerateInsights(c.Context, db, rt, rt.Generator, ops.InsightsInput{
				Objective: cfg.Objective,
				Summary:   rt.Reconciler.Current(),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Print the rolling session summary",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "Print the summary text instead of JSON"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Summary(cfg, nil)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("raw") {
				_, err := fmt.Fprintln(stdout, output.Summary)
				return err
			}
			return outputJSON(output)
		},
	}
}

// latestCmd creates the latest command.
func latestCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "Show the most recently extracted context document",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-text", Usage: "Exclude the document text from output"},
		},
		Action: func(c *cli.Context) error {
			input := ops.LatestInput{}
			if c.Bool("no-text") {
				includeText := false
				input.IncludeText = &includeText
			}

			output, err := ops.Latest(db, nil, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// contextsCmd creates the contexts command.
func contextsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "contexts",
		Usage: "List stored context documents, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
			&cli.BoolFlag{Name: "include-text", Usage: "Include document text"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.ListContexts(db, ops.ListContextsInput{
				Limit:       c.Int("limit"),
				Offset:      c.Int("offset"),
				IncludeText: c.Bool("include-text"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// contextCmd creates the context command.
func contextCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "context",
		Usage:     "Show one stored context document",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.GetContext(db, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// visitedCmd creates the visited command.
func visitedCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "visited",
		Usage: "Show the visited-URL ledger",
		Action: func(c *cli.Context) error {
			output, err := ops.Visited(db, nil)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// suggestionsCmd creates the suggestions command.
func suggestionsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "suggestions",
		Usage: "List suggested links, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
			&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Suggestions(db, ops.SuggestionsInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// flushCmd creates the flush command.
func flushCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "flush",
		Usage: "Reset the session: summary file, visited ledger, stored contexts and suggestions",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "keep-history", Usage: "Keep stored contexts and suggestions"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Flush(c.Context, db, cfg, nil, ops.FlushInput{
				KeepHistory: c.Bool("keep-history"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export stored context history to JSONL",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output file path (default: <base>/exports/contexts-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, nil, ops.ExportInput{
				Path: c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete stored context documents",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge documents captured more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(db *sql.DB, cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve session tools over MCP stdio",
		Action: func(c *cli.Context) error {
			if err := mcp.Run(db, cfg, Version, logger); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var mErr *errors.MateError
	if stderrors.As(err, &mErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", mErr.Code, mErr.Message), 1)
	}
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
