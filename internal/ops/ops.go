package ops

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/report"
)

// BaseDirName is the per-user data directory under $HOME.
const BaseDirName = ".legible"

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	MaxCheckItems    = 200
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// DefaultBaseDir returns ~/.legible.
func DefaultBaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, BaseDirName), nil
}

// resolveWorkspace returns the raw and normalized workspace label,
// falling back to the configured workspace and then "default".
func resolveWorkspace(raw string, cfg *config.Config) (string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" && cfg != nil {
		raw = strings.TrimSpace(cfg.Workspace)
	}
	if raw == "" {
		raw = config.DefaultWorkspace
	}
	return raw, report.NormalizeLabel(raw)
}

// normalizeWorkspaceFilter normalizes an optional workspace filter.
// An empty result means "all workspaces".
func normalizeWorkspaceFilter(ws *string) string {
	if ws == nil {
		return ""
	}
	return report.NormalizeLabel(*ws)
}

// clampPage applies limit defaults and bounds.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// ulidEntropy is shared so IDs minted in the same millisecond still sort
// in creation order. ulid.Monotonic is not safe for concurrent use.
var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(rand.Reader, 0)
)

// newULID generates a new ULID.
func newULID() string {
	ulidMu.Lock()
	defer ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String()
}
