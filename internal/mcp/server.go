// Package mcp exposes session state to MCP clients over stdio.
package mcp

import (
	"database/sql"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/logging"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"session_summary": {
		def:     summaryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSummary },
	},
	"session_latest": {
		def:     latestToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLatest },
	},
	"session_contexts": {
		def:     contextsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContexts },
	},
	"session_context": {
		def:     contextToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleContext },
	},
	"session_visited": {
		def:     visitedToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleVisited },
	},
	"session_suggestions": {
		def:     suggestionsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSuggestions },
	},
	"session_flush": {
		def:     flushToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFlush },
	},
	"session_export": {
		def:     exportToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExport },
	},
	"session_purge": {
		def:     purgeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePurge },
	},
}

// AllToolNames returns every valid tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the session tools registered.
// Tools listed in cfg.DisabledTools are excluded.
func NewServer(db *sql.DB, cfg *config.Config, version string, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"mate",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg, logger)

	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, version string, logger *zap.Logger) error {
	logger = logging.OrNop(logger)
	if unknown := ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	return server.ServeStdio(NewServer(db, cfg, version, logger))
}
