// Package db stores readability reports in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/legible/internal/config"
	_ "modernc.org/sqlite"
)

// File and directory names under the base directory.
const (
	FileName   = "legible.db"
	ExportsDir = "exports"
)

// migrations[i] upgrades the schema from version i to i+1.
var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS reports (
	  id             TEXT PRIMARY KEY,
	  workspace_raw  TEXT NOT NULL,
	  workspace_norm TEXT NOT NULL,
	  source         TEXT NOT NULL,
	  source_text    TEXT NOT NULL,
	  source_chars   INTEGER NOT NULL,
	  words          INTEGER NOT NULL,
	  sentences      INTEGER NOT NULL,
	  syllables      INTEGER NOT NULL,
	  reading_ease   REAL NOT NULL,
	  grade_level    REAL NOT NULL,
	  min_score      REAL,
	  max_score      REAL,
	  skip_range     INTEGER NOT NULL DEFAULT 0,
	  status         TEXT NOT NULL,
	  reason         TEXT NOT NULL,
	  created_at     INTEGER NOT NULL,
	  deleted_at     INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_reports_workspace_created
	ON reports(workspace_norm, created_at DESC)
	WHERE deleted_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_reports_workspace_source
	ON reports(workspace_norm, source, created_at DESC)
	WHERE deleted_at IS NULL;

	CREATE INDEX IF NOT EXISTS idx_reports_status
	ON reports(status)
	WHERE deleted_at IS NULL;
	`,
}

// CurrentSchemaVersion is the version a freshly initialized database ends up at.
var CurrentSchemaVersion = len(migrations)

// Init opens (creating if needed) baseDir/legible.db and brings its schema
// up to date. baseDir and baseDir/exports are created with mode 0700.
func Init(baseDir string) (*sql.DB, error) {
	if err := ensurePrivateDir(baseDir); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if err := ensurePrivateDir(filepath.Join(baseDir, ExportsDir)); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	dbPath := filepath.Join(baseDir, FileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)
	return db, nil
}

// ensurePrivateDir creates dir (and parents) and tightens its mode.
// The chmod is best-effort; it is a no-op on some platforms.
func ensurePrivateDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	_ = os.Chmod(dir, 0700)
	return nil
}

// ConfigurePool applies connection pool settings from config.
// Zero values leave the sql.DB defaults alone.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate runs every migration above the stored user_version, each in its
// own transaction together with the version bump.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this binary supports (%d)", version, len(migrations))
	}

	for v := version; v < len(migrations); v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if _, err := tx.Exec(migrations[v]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version=%d", v+1)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
	}
	return nil
}

func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the stored schema version.
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion overwrites the stored schema version.
func SetUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
