package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/legible/internal/db"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/report"
)

// FetchInput contains parameters for the Fetch operation.
type FetchInput struct {
	ID             string
	IncludeDeleted bool
	IncludeText    *bool // default: true (nil means default)
}

// FetchOutput contains the result of the Fetch operation.
type FetchOutput struct {
	report.Summary
	SourceText string `json:"source_text,omitempty"`
}

// Fetch retrieves a report by ID.
func Fetch(ctx context.Context, database *sql.DB, input FetchInput) (*FetchOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	r, err := db.GetByID(ctx, database, id, input.IncludeDeleted)
	if err != nil {
		return nil, err
	}

	out := &FetchOutput{Summary: r.ToSummary()}
	if boolOr(input.IncludeText, true) {
		out.SourceText = r.SourceText
	}
	return out, nil
}
