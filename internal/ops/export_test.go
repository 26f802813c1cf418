package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/report"
)

// allowDirConfig returns a config that allows export/import directly in dir.
func allowDirConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowedPaths = []string{dir}
	return cfg
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestExport_HappyPath(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	ids := seedReports(t, database, "default", passDoc, easyDoc)

	exportPath := filepath.Join(dir, "export.jsonl")
	out, err := Export(ctx, database, allowDirConfig(dir), ExportInput{Path: exportPath})
	require.NoError(t, err)

	assert.Equal(t, exportPath, out.Path)
	assert.Equal(t, 2, out.Count)
	assert.NotZero(t, out.ExportedAt)

	lines := readLines(t, exportPath)
	require.Len(t, lines, 3, "header + 2 reports")

	var header ExportHeader
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	assert.True(t, header.LegibleExport)
	assert.Equal(t, "1.0", header.SchemaVersion)
	assert.Equal(t, out.ExportedAt, header.ExportedAt)

	var rec report.ExportRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, ids[0], rec.ID)
	assert.Equal(t, passDoc, rec.SourceText)
	assert.Equal(t, 22, rec.Words)

	info, err := os.Stat(exportPath)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	// No temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExport_WorkspaceFilterAndDeleted(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()
	cfg := allowDirConfig(dir)

	ids := seedReports(t, database, "docs", passDoc, easyDoc)
	seedReports(t, database, "other", hardDoc)
	_, err := Delete(ctx, database, DeleteInput{ID: ids[1]})
	require.NoError(t, err)

	out, err := Export(ctx, database, cfg, ExportInput{Path: filepath.Join(dir, "a.jsonl"), Workspace: stringPtr("Docs")})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)

	out, err = Export(ctx, database, cfg, ExportInput{Path: filepath.Join(dir, "b.jsonl"), Workspace: stringPtr("docs"), IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)

	out, err = Export(ctx, database, cfg, ExportInput{Path: filepath.Join(dir, "c.jsonl"), IncludeDeleted: true})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Count)
}

func TestExport_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	database := openTestDB(t)
	seedReports(t, database, "My Docs", passDoc)

	out, err := Export(context.Background(), database, config.DefaultConfig(), ExportInput{})
	require.NoError(t, err)
	expectedDir := filepath.Join(home, ".legible", "exports")
	assert.Equal(t, expectedDir, filepath.Dir(out.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(out.Path), "all-"), out.Path)

	out, err = Export(context.Background(), database, config.DefaultConfig(), ExportInput{Workspace: stringPtr("My Docs")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(out.Path), "my docs-"), out.Path)
	assert.Equal(t, 1, out.Count)
}

func TestExport_PathRejected(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	dir := t.TempDir()

	_, err := Export(ctx, database, allowDirConfig(dir), ExportInput{Path: filepath.Join(dir, "..", "x.jsonl")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "traversal: %v", err)

	_, err = Export(ctx, database, allowDirConfig(dir), ExportInput{Path: filepath.Join(dir, "x.json")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "extension: %v", err)

	_, err = Export(ctx, database, config.DefaultConfig(), ExportInput{Path: filepath.Join(dir, "x.jsonl")})
	assert.True(t, errors.Is(err, errors.ErrPathNotAllowed), "outside allowlist: %v", err)
}

func TestExport_Cancelled(t *testing.T) {
	database := openTestDB(t)
	dir := t.TempDir()
	seedReports(t, database, "default", passDoc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exportPath := filepath.Join(dir, "x.jsonl")
	_, err := Export(ctx, database, allowDirConfig(dir), ExportInput{Path: exportPath})
	require.Error(t, err)

	_, statErr := os.Stat(exportPath)
	assert.True(t, os.IsNotExist(statErr), "cancelled export must not leave a file")
}
