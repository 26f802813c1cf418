package mcp

import "github.com/mark3labs/mcp-go/mcp"

var checkToolDef = mcp.NewTool("readability_check",
	mcp.WithDescription("Compute Flesch Reading Ease and Flesch-Kincaid Grade for a Markdown document and judge it against a target reading-ease range (default 45 to 70). Provide either path or text."),
	mcp.WithString("path", mcp.Description("Path of a Markdown file to check, inside the server working directory or allowed_paths")),
	mcp.WithString("text", mcp.Description("Inline Markdown text to check")),
	mcp.WithString("source", mcp.Description("Label stored for inline text (default: inline)")),
	mcp.WithNumber("min", mcp.Description("Minimum acceptable reading ease")),
	mcp.WithNumber("max", mcp.Description("Maximum acceptable reading ease")),
	mcp.WithBoolean("no_min", mcp.Description("Drop the lower bound")),
	mcp.WithBoolean("no_max", mcp.Description("Drop the upper bound")),
	mcp.WithBoolean("skip_range", mcp.Description("Report metrics only; any document with words passes")),
	mcp.WithBoolean("record", mcp.Description("Store the result in history")),
	mcp.WithString("workspace", mcp.Description("History workspace (default: config workspace)")),
)

var checkManyToolDef = mcp.NewTool("readability_check_many",
	mcp.WithDescription("Check several documents at once. Each item takes the same fields as readability_check; results come back in order with per-item errors."),
	mcp.WithArray("items",
		mcp.Required(),
		mcp.Description("Documents to check (max 200)"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":   map[string]any{"type": "string"},
				"text":   map[string]any{"type": "string"},
				"source": map[string]any{"type": "string"},
			},
		}),
	),
	mcp.WithNumber("min", mcp.Description("Minimum acceptable reading ease for every item")),
	mcp.WithNumber("max", mcp.Description("Maximum acceptable reading ease for every item")),
	mcp.WithBoolean("skip_range", mcp.Description("Report metrics only")),
	mcp.WithBoolean("record", mcp.Description("Store every result in history")),
	mcp.WithString("workspace", mcp.Description("History workspace")),
)

var fetchToolDef = mcp.NewTool("readability_fetch",
	mcp.WithDescription("Fetch a recorded readability report by ID."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("id", mcp.Required(), mcp.Description("Report ID")),
	mcp.WithBoolean("include_deleted", mcp.Description("Also return soft-deleted reports")),
	mcp.WithBoolean("include_text", mcp.Description("Include the checked source text (default: true)")),
)

var listToolDef = mcp.NewTool("readability_list",
	mcp.WithDescription("List recorded readability reports, newest first."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("workspace", mcp.Description("Filter by workspace (omit for all)")),
	mcp.WithString("source", mcp.Description("Filter by exact source path or label")),
	mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("PASS", "FAIL")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Page offset")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted reports")),
)

var latestToolDef = mcp.NewTool("readability_latest",
	mcp.WithDescription("Return the most recent report in a workspace, optionally for one source."),
	mcp.WithReadOnlyHintAnnotation(true),
	mcp.WithString("workspace", mcp.Description("Workspace (default: config workspace)")),
	mcp.WithString("source", mcp.Description("Only consider reports for this source")),
	mcp.WithBoolean("include_text", mcp.Description("Include the checked source text (default: false)")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted reports")),
)

var deleteToolDef = mcp.NewTool("readability_delete",
	mcp.WithDescription("Soft-delete a report. It stays recoverable until purged."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Report ID")),
)

var purgeToolDef = mcp.NewTool("readability_purge",
	mcp.WithDescription("Permanently remove soft-deleted reports."),
	mcp.WithDestructiveHintAnnotation(true),
	mcp.WithString("workspace", mcp.Description("Only purge this workspace")),
	mcp.WithNumber("older_than_days", mcp.Description("Only purge reports deleted more than N days ago")),
)

var exportToolDef = mcp.NewTool("readability_export",
	mcp.WithDescription("Export reports to a JSONL file (default: ~/.legible/exports)."),
	mcp.WithString("path", mcp.Description("Destination .jsonl file")),
	mcp.WithString("workspace", mcp.Description("Only export this workspace")),
	mcp.WithBoolean("include_deleted", mcp.Description("Include soft-deleted reports")),
)

var importToolDef = mcp.NewTool("readability_import",
	mcp.WithDescription("Import reports from a JSONL export. Metrics are recomputed from each report's text."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source .jsonl file")),
	mcp.WithString("mode", mcp.Description("Collision handling (default: error)"), mcp.Enum("error", "replace", "skip")),
)
