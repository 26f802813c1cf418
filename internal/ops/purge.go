package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/legible/internal/db"
	"github.com/hpungsan/legible/internal/errors"
)

// PurgeInput contains parameters for the Purge operation.
type PurgeInput struct {
	Workspace     *string // optional filter by workspace
	OlderThanDays *int    // optional, only purge if deleted_at < (now - N days)
}

// PurgeOutput contains the result of the Purge operation.
type PurgeOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// Purge permanently deletes soft-deleted reports.
func Purge(ctx context.Context, database *sql.DB, input PurgeInput) (*PurgeOutput, error) {
	days := 0
	if input.OlderThanDays != nil {
		if *input.OlderThanDays < 0 {
			return nil, errors.NewInvalidRequest("older_than_days must not be negative")
		}
		days = *input.OlderThanDays
	}

	count, err := db.PurgeDeleted(ctx, database, normalizeWorkspaceFilter(input.Workspace), days)
	if err != nil {
		return nil, err
	}

	return &PurgeOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.Workspace, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, workspace *string, olderThanDays *int) string {
	if count == 0 {
		return "No deleted reports to purge"
	}

	noun := "report"
	if count > 1 {
		noun = "reports"
	}
	msg := fmt.Sprintf("Permanently deleted %d %s", count, noun)

	if workspace != nil {
		msg += fmt.Sprintf(" from workspace %q", *workspace)
	}
	if olderThanDays != nil {
		msg += fmt.Sprintf(" (deleted more than %d days ago)", *olderThanDays)
	}

	return msg
}
