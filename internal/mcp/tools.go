package mcp

import "github.com/mark3labs/mcp-go/mcp"

var summaryToolDef = mcp.NewTool("session_summary",
	mcp.WithDescription("Return the rolling summary of the current study session, verbatim. "+
		"The first line carries the session start marker."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var latestToolDef = mcp.NewTool("session_latest",
	mcp.WithDescription("Return the most recently extracted screen context document."),
	mcp.WithBoolean("include_text",
		mcp.Description("Include the document text (default true)."),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var contextsToolDef = mcp.NewTool("session_contexts",
	mcp.WithDescription("Page through stored screen context documents, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)."),
		mcp.Min(1),
		mcp.Max(100),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of documents to skip."),
		mcp.Min(0),
	),
	mcp.WithBoolean("include_text",
		mcp.Description("Include document text (default false)."),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var contextToolDef = mcp.NewTool("session_context",
	mcp.WithDescription("Fetch one stored screen context document by id."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Context document id (ULID)."),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var visitedToolDef = mcp.NewTool("session_visited",
	mcp.WithDescription("Return the visited-URL ledger: links already suggested this session."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var suggestionsToolDef = mcp.NewTool("session_suggestions",
	mcp.WithDescription("Page through every link suggested so far, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)."),
		mcp.Min(1),
		mcp.Max(100),
	),
	mcp.WithNumber("offset",
		mcp.Description("Number of suggestions to skip."),
		mcp.Min(0),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var flushToolDef = mcp.NewTool("session_flush",
	mcp.WithDescription("Reset the study session: delete the summary file and clear the visited-URL ledger. "+
		"Stored contexts and suggestions are dropped unless keep_history is true."),
	mcp.WithBoolean("confirm",
		mcp.Required(),
		mcp.Description("Must be true."),
	),
	mcp.WithBoolean("keep_history",
		mcp.Description("Keep stored contexts and suggestions."),
	),
	mcp.WithDestructiveHintAnnotation(true),
)

var exportToolDef = mcp.NewTool("session_export",
	mcp.WithDescription("Write the stored context history to a JSONL file under <base>/exports."),
	mcp.WithString("path",
		mcp.Description("Destination .jsonl file directly inside the exports directory. Default: exports/contexts-<timestamp>.jsonl."),
	),
)

var purgeToolDef = mcp.NewTool("session_purge",
	mcp.WithDescription("Permanently delete stored context documents."),
	mcp.WithNumber("older_than_days",
		mcp.Description("Only purge documents captured more than this many days ago."),
		mcp.Min(0),
	),
	mcp.WithDestructiveHintAnnotation(true),
)
