package ops

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/legible/internal/config"
	"github.com/hpungsan/legible/internal/db"
	"github.com/hpungsan/legible/internal/errors"
	"github.com/hpungsan/legible/internal/readability"
	"github.com/hpungsan/legible/internal/report"
)

// CheckInput contains parameters for the Check operation.
// Exactly one of Path or Text must be set.
type CheckInput struct {
	Path   string  // file to read
	Text   *string // inline document
	Source string  // label for inline text, default "inline"

	// Range overrides. nil keeps the configured bound.
	MinScore *float64
	MaxScore *float64
	NoMin    bool
	NoMax    bool

	// Confined restricts Path to ValidateSourcePath roots. Set for tool callers.
	Confined bool

	SkipRange *bool // default: cfg.SkipRangeCheck
	Record    *bool // default: cfg.RecordHistory
	Workspace string
}

// CheckOutput contains the result of the Check operation.
type CheckOutput struct {
	report.Result
	Label    string `json:"label"`
	Passed   bool   `json:"passed"`
	ReportID string `json:"report_id,omitempty"`
}

// Check computes readability metrics for one document and judges them
// against the effective range. When recording is on, the result is stored
// as a report and its ID returned.
func Check(ctx context.Context, database *sql.DB, cfg *config.Config, input CheckInput) (*CheckOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("check")
	}

	if input.Confined && input.Path != "" {
		if err := ValidateSourcePath(input.Path, cfg); err != nil {
			return nil, err
		}
	}

	source, text, err := loadDocument(input, cfg.MaxFileBytes)
	if err != nil {
		return nil, err
	}

	rng := ResolveRange(cfg, input.MinScore, input.MaxScore, input.NoMin, input.NoMax)
	if err := ValidateRange(rng); err != nil {
		return nil, err
	}
	skip := boolOr(input.SkipRange, cfg.SkipRangeCheck)

	m := readability.Analyze(text)
	v := readability.Evaluate(m, rng, skip)

	log.Debug().
		Str("source", source).
		Int("words", m.Words).
		Int("sentences", m.Sentences).
		Int("syllables", m.Syllables).
		Float64("flesch_reading_ease", m.ReadingEase).
		Str("status", string(v.Status)).
		Msg("readability computed")

	out := &CheckOutput{
		Result: report.Result{Source: source, Metrics: m, Verdict: v},
		Label:  v.Label(),
		Passed: v.Passed(),
	}

	if boolOr(input.Record, cfg.RecordHistory) {
		if database == nil {
			return nil, errors.NewInvalidRequest("recording a check requires a database")
		}
		ws, _ := resolveWorkspace(input.Workspace, cfg)
		r := report.New(newULID(), ws, out.Result, text, skip, time.Now())
		if err := db.Insert(ctx, database, r); err != nil {
			return nil, err
		}
		out.ReportID = r.ID
		log.Debug().Str("id", r.ID).Str("workspace", r.WorkspaceNorm).Msg("report recorded")
	}

	return out, nil
}

// ResolveRange builds the effective range: configured bounds, then explicit
// overrides, then the no-min / no-max switches.
func ResolveRange(cfg *config.Config, minScore, maxScore *float64, noMin, noMax bool) readability.Range {
	rng := cfg.Range()
	if minScore != nil {
		v := *minScore
		rng.Min = &v
	}
	if maxScore != nil {
		v := *maxScore
		rng.Max = &v
	}
	if noMin {
		rng.Min = nil
	}
	if noMax {
		rng.Max = nil
	}
	return rng
}

// ValidateRange refuses NaN and infinite bounds. An open bound is
// expressed with NoMin / NoMax instead.
func ValidateRange(r readability.Range) error {
	for _, b := range []struct {
		name string
		v    *float64
	}{{"min", r.Min}, {"max", r.Max}} {
		if b.v != nil && (math.IsNaN(*b.v) || math.IsInf(*b.v, 0)) {
			return errors.NewInvalidRequest(fmt.Sprintf("%s score must be a finite number, got %v", b.name, *b.v))
		}
	}
	return nil
}

// loadDocument returns the source label and raw text for a check.
func loadDocument(input CheckInput, maxBytes int64) (string, string, error) {
	hasPath := input.Path != ""
	hasText := input.Text != nil
	switch {
	case hasPath && hasText:
		return "", "", errors.NewInvalidRequest("specify either path or text, not both")
	case !hasPath && !hasText:
		return "", "", errors.NewInvalidRequest("path or text is required")
	}

	if hasText {
		source := input.Source
		if source == "" {
			source = report.SourceInline
		}
		if maxBytes > 0 && int64(len(*input.Text)) > maxBytes {
			return "", "", errors.NewFileTooLarge(source, maxBytes, int64(len(*input.Text)))
		}
		return source, *input.Text, nil
	}

	text, err := ReadDocument(input.Path, maxBytes)
	if err != nil {
		return "", "", err
	}
	return input.Path, text, nil
}

// ReadDocument reads a document from disk, refusing directories and files
// larger than maxBytes (0 means no limit).
func ReadDocument(path string, maxBytes int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFound(path)
		}
		return "", errors.NewInternal(fmt.Errorf("stat %s: %w", path, err))
	}
	if info.IsDir() {
		return "", errors.NewInvalidRequest(fmt.Sprintf("path is a directory: %s", path))
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return "", errors.NewFileTooLarge(path, maxBytes, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	// The file may grow between stat and read.
	r := io.Reader(f)
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("read %s: %w", path, err))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", errors.NewFileTooLarge(path, maxBytes, int64(len(data)))
	}
	return string(data), nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
