package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/legible/internal/db"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/readability"
	"github.com/hpungsan/legible/internal/report"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Workspace      *string // optional; nil lists every workspace
	Source         string  // optional exact source match
	Status         string  // optional: PASS or FAIL
	Limit          int     // default: 20, max: 100
	Offset         int     // default: 0
	IncludeDeleted bool
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Items      []report.Summary `json:"items"`
	Pagination Pagination       `json:"pagination"`
	Sort       string           `json:"sort"`
}

// List retrieves report summaries, newest first, with pagination.
func List(ctx context.Context, database *sql.DB, input ListInput) (*ListOutput, error) {
	status, err := parseStatus(input.Status)
	if err != nil {
		return nil, err
	}

	limit, offset := clampPage(input.Limit, input.Offset)

	filter := db.ListFilter{
		WorkspaceNorm:  normalizeWorkspaceFilter(input.Workspace),
		Source:         strings.TrimSpace(input.Source),
		Status:         status,
		IncludeDeleted: input.IncludeDeleted,
	}
	items, total, err := db.List(ctx, database, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if items == nil {
		items = []report.Summary{}
	}

	return &ListOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// parseStatus accepts "", "pass" or "fail" in any case.
func parseStatus(s string) (readability.Status, error) {
	switch readability.Status(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case readability.StatusPass:
		return readability.StatusPass, nil
	case readability.StatusFail:
		return readability.StatusFail, nil
	}
	return "", errors.NewInvalidRequest(fmt.Sprintf("status must be PASS or FAIL, got %q", s))
}
