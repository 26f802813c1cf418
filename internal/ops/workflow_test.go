package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/readability"
)

// TestFullWorkflow exercises the report lifecycle:
// check → fetch → latest → list → delete → purge → fetch (not found)
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := allowDirConfig(dir)

	ws := "workflow-test"
	docPath := writeDoc(t, dir, "guide.md", passDoc)

	// 1. Check and record
	checkOut, err := Check(ctx, database, cfg, CheckInput{
		Path:      docPath,
		Record:    boolPtr(true),
		Workspace: ws,
	})
	require.NoError(t, err)
	require.True(t, checkOut.Passed)
	require.NotEmpty(t, checkOut.ReportID)
	id := checkOut.ReportID

	// 2. Fetch by ID
	fetchOut, err := Fetch(ctx, database, FetchInput{ID: id})
	require.NoError(t, err)
	require.Equal(t, docPath, fetchOut.Source)
	require.Equal(t, passDoc, fetchOut.SourceText)
	require.Equal(t, readability.StatusPass, fetchOut.Status)

	// 3. Latest for that file
	latestOut, err := Latest(ctx, database, cfg, LatestInput{Workspace: ws, Source: docPath})
	require.NoError(t, err)
	require.NotNil(t, latestOut.Item)
	require.Equal(t, id, latestOut.Item.ID)

	// 4. List
	listOut, err := List(ctx, database, ListInput{Workspace: stringPtr(ws)})
	require.NoError(t, err)
	require.Len(t, listOut.Items, 1)
	require.Equal(t, id, listOut.Items[0].ID)

	// 5. Delete (soft)
	deleteOut, err := Delete(ctx, database, DeleteInput{ID: id})
	require.NoError(t, err)
	require.Equal(t, id, deleteOut.ID)

	listOut, err = List(ctx, database, ListInput{Workspace: stringPtr(ws)})
	require.NoError(t, err)
	require.Empty(t, listOut.Items)

	listOut, err = List(ctx, database, ListInput{Workspace: stringPtr(ws), IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, listOut.Items, 1)

	// 6. Purge
	purgeOut, err := Purge(ctx, database, PurgeInput{Workspace: &ws})
	require.NoError(t, err)
	require.Equal(t, 1, purgeOut.Purged)

	// 7. Gone for good
	_, err = Fetch(ctx, database, FetchInput{ID: id, IncludeDeleted: true})
	require.Error(t, err)
	var lErr *errors.LegibleError
	require.ErrorAs(t, err, &lErr)
	require.Equal(t, errors.ErrNotFound, lErr.Code)
}
