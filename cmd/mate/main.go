package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/db"
	"github.com/hpungsan/mate/internal/logging"
	"github.com/hpungsan/mate/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"run": true, "serve": true, "insights": true,
	"summary": true, "latest": true, "contexts": true, "context": true,
	"visited": true, "suggestions": true,
	"flush": true, "export": true, "purge": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   __  __    _  _____ _____
  |  \/  |  / \|_   _| ____|
  | |\/| | / _ \ | | |  _|
  | |  | |/ ___ \| | | |___
  |_|  |_/_/   \_\_| |_____|

  Screen-aware study companion

  Usage: mate <command> [options]
         mate run        start a study session
         mate --help

  MCP server mode requires piped input.`)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	baseDir, err := config.DefaultBaseDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	config.ApplyEnv(cfg, os.Getenv)

	logger, err := logging.New(cfg.LogLevel, cfg.Path(cfg.LogFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Init(baseDir)
	if err != nil {
		logger.Error("failed to initialize database", zap.String("base_dir", baseDir), zap.Error(err))
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	if isCLIMode() {
		app := newCLIApp(database, cfg, logger)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'mate --help' for usage.\n")
		os.Exit(1)
	}

	if err := mcp.Run(database, cfg, Version, logger); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		os.Exit(1)
	}
}
