package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/db"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/ops"
)

const (
	passDoc = "The committee reviewed the proposal on Monday. Several members raised concerns about the budget. The chair promised a revised version next week."
	easyDoc = "# Title\n\nThis is a **test** sentence. It has two sentences!"
)

// testSetup creates a temporary database and config for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	cleanup := func() {
		database.Close()
	}

	return database, cfg, cleanup
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// recordDoc checks and records text, returning the report ID.
func recordDoc(t *testing.T, h *Handlers, workspace, text string) string {
	t.Helper()
	result, err := h.HandleCheck(context.Background(), makeRequest(map[string]any{
		"text":      text,
		"record":    true,
		"workspace": workspace,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	id, ok := out["report_id"].(string)
	if !ok || id == "" {
		t.Fatalf("missing report_id in %v", out)
	}
	return id
}

func TestHandleCheck(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)
	ctx := context.Background()

	docPath := filepath.Join(t.TempDir(), "guide.md")
	if err := os.WriteFile(docPath, []byte(passDoc), 0600); err != nil {
		t.Fatalf("failed to write doc: %v", err)
	}

	tests := []struct {
		name       string
		args       map[string]any
		wantError  bool
		errorCode  string
		wantStatus string
	}{
		{
			name:       "file in range",
			args:       map[string]any{"path": docPath},
			wantStatus: "PASS",
		},
		{
			name:       "inline text above max",
			args:       map[string]any{"text": easyDoc},
			wantStatus: "FAIL",
		},
		{
			name:       "inline text with raised max",
			args:       map[string]any{"text": easyDoc, "max": 90},
			wantStatus: "PASS",
		},
		{
			name:       "skip range",
			args:       map[string]any{"text": easyDoc, "skip_range": true},
			wantStatus: "PASS",
		},
		{
			name:       "empty text",
			args:       map[string]any{"text": "```\ncode only\n```"},
			wantStatus: "FAIL",
		},
		{
			name:      "missing file",
			args:      map[string]any{"path": filepath.Join(t.TempDir(), "missing.md")},
			wantError: true,
			errorCode: "FILE_NOT_FOUND",
		},
		{
			name:      "neither path nor text",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown argument",
			args:      map[string]any{"text": passDoc, "minimum": 10},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleCheck(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Fatalf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			out := parseOutput(t, result)
			verdict := out["verdict"].(map[string]any)
			if verdict["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", verdict["status"], tt.wantStatus)
			}
			if _, ok := out["report_id"]; ok {
				t.Errorf("report_id should be omitted when not recording")
			}
		})
	}
}

func TestHandleCheck_PathConfinement(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()
	cfg.AllowUnsafePaths = false

	h := NewHandlers(database, cfg)
	ctx := context.Background()

	dir := t.TempDir()
	secret := filepath.Join(dir, "secret.md")
	if err := os.WriteFile(secret, []byte(passDoc), 0600); err != nil {
		t.Fatalf("failed to write doc: %v", err)
	}

	result, _ := h.HandleCheck(ctx, makeRequest(map[string]any{"path": secret, "record": true}))
	assertErrorCode(t, result, "PATH_NOT_ALLOWED")

	many, _ := h.HandleCheckMany(ctx, makeRequest(map[string]any{
		"items": []any{map[string]any{"path": secret}, map[string]any{"text": passDoc}},
	}))
	out := parseOutput(t, many)
	first := out["items"].([]any)[0].(map[string]any)["error"].(map[string]any)
	if first["code"] != "PATH_NOT_ALLOWED" {
		t.Errorf("items[0].error.code = %v, want PATH_NOT_ALLOWED", first["code"])
	}
	if out["passed"] != float64(1) {
		t.Errorf("passed = %v, want 1", out["passed"])
	}

	// Files under the working directory stay readable.
	local, _ := h.HandleCheck(ctx, makeRequest(map[string]any{"path": "server.go", "skip_range": true}))
	parseOutput(t, local)

	// An allowed_paths entry opens its directory tree.
	cfg.AllowedPaths = []string{dir}
	allowed, _ := h.HandleCheck(ctx, makeRequest(map[string]any{"path": secret}))
	parseOutput(t, allowed)

	listResult, _ := h.HandleList(ctx, makeRequest(map[string]any{}))
	if got := len(parseOutput(t, listResult)["items"].([]any)); got != 0 {
		t.Errorf("recorded reports = %d, want 0", got)
	}
}

func TestHandleCheck_Metrics(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)
	result, _ := h.HandleCheck(context.Background(), makeRequest(map[string]any{"text": passDoc}))
	out := parseOutput(t, result)

	if out["file"] != "inline" {
		t.Errorf("file = %v, want inline", out["file"])
	}
	metrics := out["metrics"].(map[string]any)
	if metrics["words"] != float64(22) || metrics["sentences"] != float64(3) || metrics["syllables"] != float64(40) {
		t.Errorf("unexpected counts: %v", metrics)
	}
	if out["label"] != "PASS (target 45.0 to 70.0)" {
		t.Errorf("label = %v", out["label"])
	}
	if out["passed"] != true {
		t.Errorf("passed = %v", out["passed"])
	}
}

func TestHandleCheckMany(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)
	ctx := context.Background()

	result, err := h.HandleCheckMany(ctx, makeRequest(map[string]any{
		"items": []any{
			map[string]any{"text": passDoc},
			map[string]any{"text": easyDoc, "source": "easy.md"},
			map[string]any{"path": filepath.Join(t.TempDir(), "missing.md")},
		},
		"record": true,
	}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)

	if out["passed"] != float64(1) || out["failed"] != float64(1) || out["errors"] != float64(1) {
		t.Errorf("unexpected tallies: passed=%v failed=%v errors=%v", out["passed"], out["failed"], out["errors"])
	}

	items := out["items"].([]any)
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	second := items[1].(map[string]any)["result"].(map[string]any)
	if second["file"] != "easy.md" {
		t.Errorf("items[1].file = %v, want easy.md", second["file"])
	}
	third := items[2].(map[string]any)["error"].(map[string]any)
	if third["code"] != "FILE_NOT_FOUND" {
		t.Errorf("items[2].error.code = %v", third["code"])
	}

	// Both successful items were recorded.
	listResult, _ := h.HandleList(ctx, makeRequest(map[string]any{}))
	list := parseOutput(t, listResult)
	if got := len(list["items"].([]any)); got != 2 {
		t.Errorf("recorded reports = %d, want 2", got)
	}

	empty, _ := h.HandleCheckMany(ctx, makeRequest(map[string]any{"items": []any{}}))
	assertErrorCode(t, empty, "INVALID_REQUEST")

	tooMany := make([]any, ops.MaxCheckItems+1)
	for i := range tooMany {
		tooMany[i] = map[string]any{"text": passDoc}
	}
	over, _ := h.HandleCheckMany(ctx, makeRequest(map[string]any{"items": tooMany}))
	assertErrorCode(t, over, "INVALID_REQUEST")
}

func TestHandleFetch(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)
	ctx := context.Background()
	id := recordDoc(t, h, "docs", passDoc)

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
		wantText  bool
	}{
		{
			name:     "by id",
			args:     map[string]any{"id": id},
			wantText: true,
		},
		{
			name: "without text",
			args: map[string]any{"id": id, "include_text": false},
		},
		{
			name:      "unknown id",
			args:      map[string]any{"id": "01NOPE"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "missing id",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleFetch(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				assertErrorCode(t, result, tt.errorCode)
				return
			}

			out := parseOutput(t, result)
			if out["id"] != id {
				t.Errorf("id = %v, want %s", out["id"], id)
			}
			_, hasText := out["source_text"]
			if hasText != tt.wantText {
				t.Errorf("source_text present = %v, want %v", hasText, tt.wantText)
			}
		})
	}
}

func TestHandleList(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)
	ctx := context.Background()
	recordDoc(t, h, "docs", passDoc)
	recordDoc(t, h, "docs", easyDoc)
	recordDoc(t, h, "blog", easyDoc)

	tests := []struct {
		name      string
		args      map[string]any
		wantCount int
		wantError bool
	}{
		{"all workspaces", map[string]any{}, 3, false},
		{"one workspace", map[string]any{"workspace": "DOCS"}, 2, false},
		{"failing only", map[string]any{"status": "fail"}, 2, false},
		{"paged", map[string]any{"limit": 1}, 1, false},
		{"bad status", map[string]any{"status": "maybe"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleList(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.wantError {
				assertErrorCode(t, result, "INVALID_REQUEST")
				return
			}
			out := parseOutput(t, result)
			if got := len(out["items"].([]any)); got != tt.wantCount {
				t.Errorf("items = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestHandleLatest(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)
	ctx := context.Background()

	result, _ := h.HandleLatest(ctx, makeRequest(map[string]any{"workspace": "docs"}))
	out := parseOutput(t, result)
	if out["item"] != nil {
		t.Errorf("expected null item for empty workspace, got %v", out["item"])
	}

	recordDoc(t, h, "docs", passDoc)
	newest := recordDoc(t, h, "docs", easyDoc)

	result, _ = h.HandleLatest(ctx, makeRequest(map[string]any{"workspace": "docs"}))
	out = parseOutput(t, result)
	item := out["item"].(map[string]any)
	if item["id"] != newest {
		t.Errorf("latest id = %v, want %s", item["id"], newest)
	}
	if _, ok := item["source_text"]; ok {
		t.Error("latest should omit source_text by default")
	}
}

func TestHandleDelete(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)
	ctx := context.Background()
	id := recordDoc(t, h, "docs", passDoc)

	result, _ := h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	out := parseOutput(t, result)
	if out["deleted"] != true {
		t.Errorf("deleted = %v", out["deleted"])
	}

	// Deleting again is NOT_FOUND
	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, _ = h.HandleFetch(ctx, makeRequest(map[string]any{"id": id, "include_deleted": true}))
	out = parseOutput(t, result)
	if out["deleted_at"] == nil {
		t.Error("expected deleted_at to be set")
	}
}

func TestHandlePurge(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)
	ctx := context.Background()
	id := recordDoc(t, h, "docs", passDoc)
	recordDoc(t, h, "docs", easyDoc)

	if result, _ := h.HandleDelete(ctx, makeRequest(map[string]any{"id": id})); result.IsError {
		t.Fatalf("delete failed: %s", extractErrorMessage(result))
	}

	result, _ := h.HandlePurge(ctx, makeRequest(map[string]any{"workspace": "docs"}))
	out := parseOutput(t, result)
	if out["purged"] != float64(1) {
		t.Errorf("purged = %v, want 1", out["purged"])
	}

	result, _ = h.HandlePurge(ctx, makeRequest(map[string]any{"older_than_days": -1}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleExportImport(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := NewHandlers(database, cfg)
	ctx := context.Background()
	recordDoc(t, h, "docs", passDoc)
	recordDoc(t, h, "docs", easyDoc)

	exportPath := filepath.Join(t.TempDir(), "reports.jsonl")
	result, _ := h.HandleExport(ctx, makeRequest(map[string]any{"path": exportPath}))
	out := parseOutput(t, result)
	if out["count"] != float64(2) {
		t.Errorf("export count = %v, want 2", out["count"])
	}

	// Same IDs already exist: mode error reports the collision.
	result, _ = h.HandleImport(ctx, makeRequest(map[string]any{"path": exportPath}))
	out = parseOutput(t, result)
	if out["imported"] != float64(0) {
		t.Errorf("imported = %v, want 0", out["imported"])
	}
	errs := out["errors"].([]any)
	if len(errs) != 1 || errs[0].(map[string]any)["code"] != "ID_ALREADY_EXISTS" {
		t.Errorf("unexpected import errors: %v", errs)
	}

	result, _ = h.HandleImport(ctx, makeRequest(map[string]any{"path": exportPath, "mode": "skip"}))
	out = parseOutput(t, result)
	if out["skipped"] != float64(2) {
		t.Errorf("skipped = %v, want 2", out["skipped"])
	}

	result, _ = h.HandleImport(ctx, makeRequest(map[string]any{"path": exportPath, "mode": "rename"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	s := NewServer(database, cfg, "test")
	tools := s.ListTools()

	expectedTools := []string{
		"readability_check",
		"readability_check_many",
		"readability_fetch",
		"readability_list",
		"readability_latest",
		"readability_delete",
		"readability_purge",
		"readability_export",
		"readability_import",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}
	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = []string{"readability_purge", "readability_delete", "readability_purge"}
	s := NewServer(database, cfg, "test")
	tools := s.ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"readability_purge", "readability_delete"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	if _, ok := tools["readability_check"]; !ok {
		t.Error("readability_check should be registered")
	}
}

func TestServerRegistration_DisabledType(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTypes = []string{"readability"}
	s := NewServer(database, cfg, "test")

	if tools := s.ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0", len(tools))
	}
}

func TestValidateDisabled(t *testing.T) {
	if unknown := ValidateDisabledTools([]string{"readability_purge", "capsule_store"}); len(unknown) != 1 || unknown[0] != "capsule_store" {
		t.Errorf("ValidateDisabledTools unknown = %v", unknown)
	}
	if unknown := ValidateDisabledTools(AllToolNames()); len(unknown) != 0 {
		t.Errorf("AllToolNames returned invalid names: %v", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"readability", "capsule"}); len(unknown) != 1 || unknown[0] != "capsule" {
		t.Errorf("ValidateDisabledTypes unknown = %v", unknown)
	}
}

func TestGetTypeForTool(t *testing.T) {
	tests := map[string]string{
		"readability_check":      "readability",
		"readability_check_many": "readability",
		"check":                  "",
		"_check":                 "",
	}
	for name, want := range tests {
		if got := GetTypeForTool(name); got != want {
			t.Errorf("GetTypeForTool(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorPayload(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrapped := fmt.Errorf("items[2]: %w", errors.NewFileNotFound("gone.md"))

	errObj := errorPayload(t, errorResult(wrapped))
	if errObj["code"] != string(errors.ErrFileNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrFileNotFound)
	}
	if msg := errObj["message"].(string); msg != "items[2]: File not found: gone.md" {
		t.Errorf("message = %q", msg)
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorPayload(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != "INTERNAL" || errObj["message"] != "an internal error occurred" {
		t.Errorf("unexpected payload: %v", errObj)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorPayload(t, errorResult(errors.NewNotFound("abc")))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorPayload(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %v", payload)
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error result, got success: %s", extractErrorMessage(result))
		return
	}
	if code, _ := errorPayload(t, result)["code"].(string); code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return strings.TrimSpace(text.Text)
}
