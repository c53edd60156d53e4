package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/mate/internal/config"
	"github.com/hpungsan/mate/internal/errors"
	"github.com/hpungsan/mate/internal/logging"
	"github.com/hpungsan/mate/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers. The MCP server runs in
// its own process, so every tool reads the database and summary file.
type Handlers struct {
	db     *sql.DB
	cfg    *config.Config
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Handlers {
	return &Handlers{db: db, cfg: cfg, logger: logging.OrNop(logger).Named("mcp")}
}

// LatestRequest represents the arguments for session_latest.
type LatestRequest struct {
	IncludeText *bool `json:"include_text,omitempty"`
}

// ContextsRequest represents the arguments for session_contexts.
type ContextsRequest struct {
	Limit       int  `json:"limit,omitempty"`
	Offset      int  `json:"offset,omitempty"`
	IncludeText bool `json:"include_text,omitempty"`
}

// ContextRequest represents the arguments for session_context.
type ContextRequest struct {
	ID string `json:"id"`
}

// SuggestionsRequest represents the arguments for session_suggestions.
type SuggestionsRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// FlushRequest represents the arguments for session_flush.
type FlushRequest struct {
	Confirm     bool `json:"confirm"`
	KeepHistory bool `json:"keep_history,omitempty"`
}

// ExportRequest represents the arguments for session_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// PurgeRequest represents the arguments for session_purge.
type PurgeRequest struct {
	OlderThanDays *int `json:"older_than_days,omitempty"`
}

// HandleSummary handles the session_summary tool call.
func (h *Handlers) HandleSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Summary(h.cfg, nil)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLatest handles the session_latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LatestRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Latest(h.db, nil, ops.LatestInput{IncludeText: input.IncludeText})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleContexts handles the session_contexts tool call.
func (h *Handlers) HandleContexts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContextsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ListContexts(h.db, ops.ListContextsInput{
		Limit:       input.Limit,
		Offset:      input.Offset,
		IncludeText: input.IncludeText,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleContext handles the session_context tool call.
func (h *Handlers) HandleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ContextRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.GetContext(h.db, input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleVisited handles the session_visited tool call.
func (h *Handlers) HandleVisited(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Visited(h.db, nil)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleSuggestions handles the session_suggestions tool call.
func (h *Handlers) HandleSuggestions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SuggestionsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Suggestions(h.db, ops.SuggestionsInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleFlush handles the session_flush tool call.
func (h *Handlers) HandleFlush(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FlushRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if !input.Confirm {
		return errorResult(errors.NewInvalidRequest("confirm must be true")), nil
	}

	result, err := ops.Flush(ctx, h.db, h.cfg, nil, ops.FlushInput{KeepHistory: input.KeepHistory})
	if err != nil {
		return errorResult(err), nil
	}
	h.logger.Info("session flushed", zap.Bool("keep_history", input.KeepHistory))
	return successResult(result)
}

// HandleExport handles the session_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, nil, ops.ExportInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePurge handles the session_purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Purge(ctx, h.db, ops.PurgeInput{OlderThanDays: input.OlderThanDays})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Internal error messages are not exposed: they may carry paths or SQL.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var mErr *errors.MateError
	if stderrors.As(err, &mErr) && mErr.Code != errors.ErrInternal {
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": err.Error(),
			"status":  mErr.Status,
		}
		if mErr == err {
			errorObj["message"] = mErr.Message
		}
		if mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
