package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/db"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/report"
)

// maxImportLineBytes bounds a single JSONL line. A report line carries the
// whole source document, so this tracks the default max_file_bytes plus room
// for the JSON envelope and escaping.
const maxImportLineBytes = 4 * config.DefaultMaxFileBytes

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite on collision
	ImportModeSkip    ImportMode = "skip"    // keep existing on collision
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parsedRecord is an export record with its line number.
type parsedRecord struct {
	line   int
	record report.ExportRecord
}

// Import loads reports from a JSONL export file. Metrics, verdicts and
// normalized workspaces are recomputed from each record's source text.
//
// Modes:
//   - error: all-or-nothing; any parse error or ID collision imports nothing
//   - replace: colliding IDs are overwritten
//   - skip: colliding IDs are left alone
func Import(ctx context.Context, database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	switch input.Mode {
	case ImportModeError, ImportModeReplace, ImportModeSkip:
	default:
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, skip")
	}

	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.LegibleError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExportFile(file)

	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	out := &ImportOutput{Errors: parseErrors, Skipped: len(parseErrors)}

	for _, pr := range records {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled("import")
		}

		exists, err := db.Exists(ctx, tx, pr.record.ID)
		if err != nil {
			return nil, err
		}

		r := pr.record.ToReport()

		switch {
		case !exists:
			err = db.InsertTx(ctx, tx, r)
		case input.Mode == ImportModeReplace:
			err = db.ReplaceTx(ctx, tx, r)
		case input.Mode == ImportModeSkip:
			out.Skipped++
			continue
		default:
			// Abort on first collision for mode:error; the deferred rollback undoes earlier inserts.
			return &ImportOutput{Errors: []ImportError{{
				Line:    pr.line,
				ID:      pr.record.ID,
				Code:    string(errors.ErrIDAlreadyExists),
				Message: errors.NewIDAlreadyExists(pr.record.ID).Message,
			}}}, nil
		}
		if err != nil {
			return nil, err
		}
		out.Imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	log.Info().Str("path", input.Path).Str("mode", string(input.Mode)).
		Int("imported", out.Imported).Int("skipped", out.Skipped).Msg("import finished")

	return out, nil
}

// parseExportFile parses a JSONL export file into records, skipping the header.
func parseExportFile(r io.Reader) ([]parsedRecord, []ImportError) {
	var (
		records     []parsedRecord
		parseErrors []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLineBytes)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record report.ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if record.LegibleExport {
			continue
		}

		if record.ID == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing id field",
			})
			continue
		}

		records = append(records, parsedRecord{line: lineNum, record: record})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}
