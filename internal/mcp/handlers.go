package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db  *sql.DB
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config) *Handlers {
	return &Handlers{db: db, cfg: cfg}
}

// CheckRequest represents the arguments for check.
type CheckRequest struct {
	Path      string   `json:"path,omitempty"`
	Text      *string  `json:"text,omitempty"`
	Source    string   `json:"source,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	NoMin     bool     `json:"no_min,omitempty"`
	NoMax     bool     `json:"no_max,omitempty"`
	SkipRange *bool    `json:"skip_range,omitempty"`
	Record    *bool    `json:"record,omitempty"`
	Workspace string   `json:"workspace,omitempty"`
}

// CheckManyRequest represents the arguments for check_many.
type CheckManyRequest struct {
	Items     []CheckManyDoc `json:"items"`
	Min       *float64       `json:"min,omitempty"`
	Max       *float64       `json:"max,omitempty"`
	SkipRange *bool          `json:"skip_range,omitempty"`
	Record    *bool          `json:"record,omitempty"`
	Workspace string         `json:"workspace,omitempty"`
}

// CheckManyDoc identifies one document in check_many.
type CheckManyDoc struct {
	Path   string  `json:"path,omitempty"`
	Text   *string `json:"text,omitempty"`
	Source string  `json:"source,omitempty"`
}

// CheckManyResult is one entry of the check_many response.
type CheckManyResult struct {
	Index  int              `json:"index"`
	Result *ops.CheckOutput `json:"result,omitempty"`
	Error  map[string]any   `json:"error,omitempty"`
}

// CheckManyResponse is the check_many response.
type CheckManyResponse struct {
	Items  []CheckManyResult `json:"items"`
	Passed int               `json:"passed"`
	Failed int               `json:"failed"`
	Errors int               `json:"errors"`
}

// FetchRequest represents the arguments for fetch.
type FetchRequest struct {
	ID             string `json:"id"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
	IncludeText    *bool  `json:"include_text,omitempty"`
}

// ListRequest represents the arguments for list.
type ListRequest struct {
	Workspace      *string `json:"workspace,omitempty"`
	Source         string  `json:"source,omitempty"`
	Status         string  `json:"status,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	Offset         int     `json:"offset,omitempty"`
	IncludeDeleted bool    `json:"include_deleted,omitempty"`
}

// LatestRequest represents the arguments for latest.
type LatestRequest struct {
	Workspace      string `json:"workspace,omitempty"`
	Source         string `json:"source,omitempty"`
	IncludeText    *bool  `json:"include_text,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// DeleteRequest represents the arguments for delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// PurgeRequest represents the arguments for purge.
type PurgeRequest struct {
	Workspace     *string `json:"workspace,omitempty"`
	OlderThanDays *int    `json:"older_than_days,omitempty"`
}

// ExportRequest represents the arguments for export.
type ExportRequest struct {
	Path           string  `json:"path,omitempty"`
	Workspace      *string `json:"workspace,omitempty"`
	IncludeDeleted bool    `json:"include_deleted,omitempty"`
}

// ImportRequest represents the arguments for import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// HandleCheck handles the check tool call.
func (h *Handlers) HandleCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Check(ctx, h.db, h.cfg, ops.CheckInput{
		Path:      input.Path,
		Text:      input.Text,
		Source:    input.Source,
		MinScore:  input.Min,
		MaxScore:  input.Max,
		NoMin:     input.NoMin,
		NoMax:     input.NoMax,
		SkipRange: input.SkipRange,
		Record:    input.Record,
		Workspace: input.Workspace,
		Confined:  true,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCheckMany handles the check_many tool call.
func (h *Handlers) HandleCheckMany(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CheckManyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if len(input.Items) == 0 {
		return errorResult(errors.NewInvalidRequest("items must not be empty")), nil
	}
	if len(input.Items) > ops.MaxCheckItems {
		return errorResult(errors.NewInvalidRequest(fmt.Sprintf("too many documents: %d (max %d)", len(input.Items), ops.MaxCheckItems))), nil
	}

	inputs := make([]ops.CheckInput, len(input.Items))
	for i, doc := range input.Items {
		inputs[i] = ops.CheckInput{
			Path:      doc.Path,
			Text:      doc.Text,
			Source:    doc.Source,
			MinScore:  input.Min,
			MaxScore:  input.Max,
			SkipRange: input.SkipRange,
			Record:    input.Record,
			Workspace: input.Workspace,
			Confined:  true,
		}
	}

	items, err := ops.CheckMany(ctx, h.db, h.cfg, inputs, 0)
	if err != nil {
		return errorResult(err), nil
	}

	resp := CheckManyResponse{Items: make([]CheckManyResult, len(items))}
	for i, item := range items {
		resp.Items[i].Index = i
		switch {
		case item.Err != nil:
			resp.Items[i].Error = errorObject(item.Err)
			resp.Errors++
		case item.Output.Passed:
			resp.Items[i].Result = item.Output
			resp.Passed++
		default:
			resp.Items[i].Result = item.Output
			resp.Failed++
		}
	}

	return successResult(resp)
}

// HandleFetch handles the fetch tool call.
func (h *Handlers) HandleFetch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FetchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Fetch(ctx, h.db, ops.FetchInput{
		ID:             input.ID,
		IncludeDeleted: input.IncludeDeleted,
		IncludeText:    input.IncludeText,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, ops.ListInput{
		Workspace:      input.Workspace,
		Source:         input.Source,
		Status:         input.Status,
		Limit:          input.Limit,
		Offset:         input.Offset,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLatest handles the latest tool call.
func (h *Handlers) HandleLatest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LatestRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Latest(ctx, h.db, h.cfg, ops.LatestInput{
		Workspace:      input.Workspace,
		Source:         input.Source,
		IncludeText:    input.IncludeText,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(ctx, h.db, ops.DeleteInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePurge handles the purge tool call.
func (h *Handlers) HandlePurge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PurgeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Purge(ctx, h.db, ops.PurgeInput{
		Workspace:     input.Workspace,
		OlderThanDays: input.OlderThanDays,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{
		Path:           input.Path,
		Workspace:      input.Workspace,
		IncludeDeleted: input.IncludeDeleted,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(ctx, h.db, h.cfg, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// errorObject renders err as the {code, message, status, details} payload.
// INTERNAL errors never carry details, which may hold paths or SQL text.
// Context added by wrapping ("items[2]: ...") is kept in the message.
func errorObject(err error) map[string]any {
	var lErr *errors.LegibleError
	if !stderrors.As(err, &lErr) {
		return map[string]any{
			"code":    string(errors.ErrInternal),
			"message": "an internal error occurred",
			"status":  500,
		}
	}

	msg := lErr.Message
	if prefix := strings.TrimSuffix(err.Error(), lErr.Error()); prefix != err.Error() {
		msg = prefix + msg
	}

	obj := map[string]any{
		"code":    string(lErr.Code),
		"message": msg,
		"status":  lErr.Status,
	}
	if lErr.Code != errors.ErrInternal && lErr.Details != nil {
		obj["details"] = lErr.Details
	}
	return obj
}

// errorResult creates an MCP error result with IsError set.
func errorResult(err error) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]any{"error": errorObject(err)})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
