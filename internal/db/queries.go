package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/readability"
	"github.com/hpungsan/legible/internal/report"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.LegibleError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const fullColumns = `id, workspace_raw, workspace_norm, source, source_text, source_chars,
	words, sentences, syllables, reading_ease, grade_level,
	min_score, max_score, skip_range, status, reason, created_at, deleted_at`

const summaryColumns = `id, workspace_raw, workspace_norm, source, source_chars,
	words, sentences, syllables, reading_ease, grade_level,
	min_score, max_score, skip_range, status, reason, created_at, deleted_at`

// Insert stores a new report in the database.
func Insert(ctx context.Context, db *sql.DB, r *report.Report) error {
	return insertReport(ctx, db, r, false)
}

// InsertTx stores a new report within a transaction.
func InsertTx(ctx context.Context, tx *sql.Tx, r *report.Report) error {
	return insertReport(ctx, tx, r, false)
}

// ReplaceTx stores a report within a transaction, overwriting any row with the same ID.
func ReplaceTx(ctx context.Context, tx *sql.Tx, r *report.Report) error {
	return insertReport(ctx, tx, r, true)
}

func insertReport(ctx context.Context, ex execer, r *report.Report, replace bool) error {
	verb := "INSERT"
	if replace {
		verb = "INSERT OR REPLACE"
	}
	query := verb + ` INTO reports (` + fullColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := ex.ExecContext(ctx, query,
		r.ID, r.WorkspaceRaw, r.WorkspaceNorm, r.Source, r.SourceText, r.SourceChars,
		r.Words, r.Sentences, r.Syllables, r.ReadingEase, r.GradeLevel,
		toNullFloat(r.MinScore), toNullFloat(r.MaxScore), r.SkipRange,
		string(r.Status), string(r.Reason), r.CreatedAt, toNullInt(r.DeletedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Exists reports whether a report with the given ID exists, deleted or not.
func Exists(ctx context.Context, q queryRower, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM reports WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// GetByID retrieves a report by its ULID.
// If includeDeleted is false, soft-deleted reports are excluded.
func GetByID(ctx context.Context, db *sql.DB, id string, includeDeleted bool) (*report.Report, error) {
	query := `SELECT ` + fullColumns + ` FROM reports WHERE id = ?`
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}

	r, err := scanReport(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return r, nil
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	WorkspaceNorm  string
	Source         string
	Status         readability.Status
	IncludeDeleted bool
}

func (f ListFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.WorkspaceNorm != "" {
		clauses = append(clauses, "workspace_norm = ?")
		args = append(args, f.WorkspaceNorm)
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, f.Source)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.IncludeDeleted {
		clauses = append(clauses, "deleted_at IS NULL")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns report summaries matching the filter, newest first, and the
// total number of matches ignoring pagination.
func List(ctx context.Context, db *sql.DB, filter ListFilter, limit, offset int) ([]report.Summary, int, error) {
	where, args := filter.where()

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `SELECT ` + summaryColumns + ` FROM reports` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var items []report.Summary
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		items = append(items, r.ToSummary())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return items, total, nil
}

// GetLatest returns the most recent report in a workspace, optionally for a
// single source. Returns nil, nil when there is none.
func GetLatest(ctx context.Context, db *sql.DB, workspaceNorm, source string, includeDeleted bool) (*report.Report, error) {
	where, args := ListFilter{
		WorkspaceNorm:  workspaceNorm,
		Source:         source,
		IncludeDeleted: includeDeleted,
	}.where()

	query := `SELECT ` + fullColumns + ` FROM reports` + where + ` ORDER BY created_at DESC, id DESC LIMIT 1`
	r, err := scanReport(db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// SoftDelete marks a report as deleted by setting deleted_at.
func SoftDelete(ctx context.Context, db *sql.DB, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE reports SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().Unix(), id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(id)
	}

	return nil
}

// PurgeDeleted permanently removes soft-deleted reports.
// workspaceNorm narrows the purge when non-empty; olderThanDays > 0 keeps
// reports deleted more recently than that.
func PurgeDeleted(ctx context.Context, db *sql.DB, workspaceNorm string, olderThanDays int) (int, error) {
	query := `DELETE FROM reports WHERE deleted_at IS NOT NULL`
	var args []any
	if workspaceNorm != "" {
		query += " AND workspace_norm = ?"
		args = append(args, workspaceNorm)
	}
	if olderThanDays > 0 {
		cutoff := time.Now().Add(-time.Duration(olderThanDays) * 24 * time.Hour).Unix()
		query += " AND deleted_at < ?"
		args = append(args, cutoff)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// StreamForExport returns rows of full reports in creation order.
// The caller must close the rows.
func StreamForExport(ctx context.Context, db *sql.DB, workspaceNorm string, includeDeleted bool) (*sql.Rows, error) {
	where, args := ListFilter{WorkspaceNorm: workspaceNorm, IncludeDeleted: includeDeleted}.where()
	rows, err := db.QueryContext(ctx, `SELECT `+fullColumns+` FROM reports`+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanReportFromRows scans the current row of StreamForExport into a Report.
func ScanReportFromRows(rows *sql.Rows) (*report.Report, error) {
	return scanReport(rows)
}

// scanReport scans fullColumns into a Report.
func scanReport(row scanner) (*report.Report, error) {
	var r report.Report
	n := nulls{}
	err := row.Scan(
		&r.ID, &r.WorkspaceRaw, &r.WorkspaceNorm, &r.Source, &r.SourceText, &r.SourceChars,
		&r.Words, &r.Sentences, &r.Syllables, &r.ReadingEase, &r.GradeLevel,
		&n.minScore, &n.maxScore, &r.SkipRange, &n.status, &n.reason, &r.CreatedAt, &n.deletedAt,
	)
	if err != nil {
		return nil, err
	}
	n.apply(&r)
	return &r, nil
}

// scanSummary scans summaryColumns into a Report without source text.
func scanSummary(row scanner) (*report.Report, error) {
	var r report.Report
	n := nulls{}
	err := row.Scan(
		&r.ID, &r.WorkspaceRaw, &r.WorkspaceNorm, &r.Source, &r.SourceChars,
		&r.Words, &r.Sentences, &r.Syllables, &r.ReadingEase, &r.GradeLevel,
		&n.minScore, &n.maxScore, &r.SkipRange, &n.status, &n.reason, &r.CreatedAt, &n.deletedAt,
	)
	if err != nil {
		return nil, err
	}
	n.apply(&r)
	return &r, nil
}

// nulls holds the nullable and typed-string columns during a scan.
type nulls struct {
	minScore  sql.NullFloat64
	maxScore  sql.NullFloat64
	status    string
	reason    string
	deletedAt sql.NullInt64
}

func (n nulls) apply(r *report.Report) {
	r.MinScore = fromNullFloat(n.minScore)
	r.MaxScore = fromNullFloat(n.maxScore)
	r.Status = readability.Status(n.status)
	r.Reason = readability.Reason(n.reason)
	if n.deletedAt.Valid {
		v := n.deletedAt.Int64
		r.DeletedAt = &v
	}
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func toNullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
