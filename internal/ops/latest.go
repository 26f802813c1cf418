package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/db"
)

// LatestInput contains parameters for the Latest operation.
type LatestInput struct {
	Workspace      string // defaults to the configured workspace
	Source         string // optional: latest report for this source only
	IncludeText    *bool  // default: false (summary only)
	IncludeDeleted bool
}

// LatestOutput contains the result of the Latest operation.
type LatestOutput struct {
	Item *FetchOutput `json:"item"` // nil if the workspace has no reports
}

// Latest retrieves the most recent report in a workspace.
func Latest(ctx context.Context, database *sql.DB, cfg *config.Config, input LatestInput) (*LatestOutput, error) {
	_, workspace := resolveWorkspace(input.Workspace, cfg)

	r, err := db.GetLatest(ctx, database, workspace, strings.TrimSpace(input.Source), input.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return &LatestOutput{Item: nil}, nil
	}

	item := &FetchOutput{Summary: r.ToSummary()}
	if boolOr(input.IncludeText, false) {
		item.SourceText = r.SourceText
	}
	return &LatestOutput{Item: item}, nil
}

