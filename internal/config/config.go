package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/legible/internal/readability"
)

// Config holds application configuration.
type Config struct {
	// MinScore is the inclusive lower bound for Flesch Reading Ease.
	// nil means "not set"; the default band applies.
	MinScore *float64 `json:"min_score,omitempty"`

	// MaxScore is the inclusive upper bound for Flesch Reading Ease.
	MaxScore *float64 `json:"max_score,omitempty"`

	// UnboundedMin drops the lower bound entirely.
	UnboundedMin bool `json:"unbounded_min,omitempty"`

	// UnboundedMax drops the upper bound entirely.
	UnboundedMax bool `json:"unbounded_max,omitempty"`

	// SkipRangeCheck makes every document with at least one word PASS.
	SkipRangeCheck bool `json:"skip_range_check,omitempty"`

	// RecordHistory stores every CLI check as a report in the database.
	RecordHistory bool `json:"record_history,omitempty"`

	// Workspace is the label recorded reports are filed under.
	Workspace string `json:"workspace,omitempty"`

	// MaxFileBytes caps the size of an input document.
	MaxFileBytes int64 `json:"max_file_bytes,omitempty"`

	// CheckConcurrency is the number of workers for multi-file checks.
	CheckConcurrency int `json:"check_concurrency,omitempty"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.legible/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// When true, any directory is allowed (but symlink and extension checks still apply).
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized (reduces "database is locked" errors).
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool types to disable entirely.
	// Known types: "readability".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// Defaults for scalar settings.
const (
	DefaultWorkspace        = "default"
	DefaultMaxFileBytes     = 10 * 1024 * 1024
	DefaultCheckConcurrency = 4
	DefaultLogLevel         = "warn"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	lo, hi := readability.DefaultMinScore, readability.DefaultMaxScore
	return &Config{
		MinScore:         &lo,
		MaxScore:         &hi,
		Workspace:        DefaultWorkspace,
		MaxFileBytes:     DefaultMaxFileBytes,
		CheckConcurrency: DefaultCheckConcurrency,
		LogLevel:         DefaultLogLevel,
	}
}

// Range returns the effective score band. Unset bounds fall back to the defaults;
// UnboundedMin/UnboundedMax remove a bound.
func (c *Config) Range() readability.Range {
	r := readability.DefaultRange()
	if c.MinScore != nil {
		v := *c.MinScore
		r.Min = &v
	}
	if c.MaxScore != nil {
		v := *c.MaxScore
		r.Max = &v
	}
	if c.UnboundedMin {
		r.Min = nil
	}
	if c.UnboundedMax {
		r.Max = nil
	}
	return r
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.legible.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.legible) and repo (.legible) directories.
// Repo config is found by walking upward from startDir to find the nearest .legible/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .legible/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".legible", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the path is empty or the file doesn't exist.
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Pointers: overlay wins if set
	result.MinScore = firstFloat(overlay.MinScore, base.MinScore)
	result.MaxScore = firstFloat(overlay.MaxScore, base.MaxScore)

	// Scalars: overlay wins if non-zero, else base
	result.Workspace = firstString(overlay.Workspace, base.Workspace)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)

	result.MaxFileBytes = overlay.MaxFileBytes
	if result.MaxFileBytes == 0 {
		result.MaxFileBytes = base.MaxFileBytes
	}

	result.CheckConcurrency = overlay.CheckConcurrency
	if result.CheckConcurrency == 0 {
		result.CheckConcurrency = base.CheckConcurrency
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Booleans: overlay wins if true, else base
	result.UnboundedMin = base.UnboundedMin || overlay.UnboundedMin
	result.UnboundedMax = base.UnboundedMax || overlay.UnboundedMax
	result.SkipRangeCheck = base.SkipRangeCheck || overlay.SkipRangeCheck
	result.RecordHistory = base.RecordHistory || overlay.RecordHistory
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			c := *v
			return &c
		}
	}
	return nil
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
