package report

import (
	"time"

	"github.com/hpungsan/legible/internal/readability"
)

// Source labels for text that did not come from a file.
const (
	SourceStdin  = "stdin"
	SourceInline = "inline"
)

// Report is a recorded readability check.
type Report struct {
	// ID is a ULID that uniquely identifies this report
	ID string

	// WorkspaceRaw is the workspace label as provided by the user
	WorkspaceRaw string

	// WorkspaceNorm is the normalized workspace (lowercased, trimmed, collapsed spaces)
	WorkspaceNorm string

	// Source is the checked file path, or "stdin" / "inline"
	Source string

	// SourceText is the raw document that was checked
	SourceText string

	// SourceChars is the character count of SourceText (runes, not bytes)
	SourceChars int

	Words       int
	Sentences   int
	Syllables   int
	ReadingEase float64
	GradeLevel  float64

	// MinScore and MaxScore are the band the report was judged against (nullable)
	MinScore *float64
	MaxScore *float64

	// SkipRange records that the range check was bypassed
	SkipRange bool

	Status readability.Status
	Reason readability.Reason

	// CreatedAt is the Unix timestamp when the check ran
	CreatedAt int64

	// DeletedAt is the Unix timestamp for soft delete (nullable)
	DeletedAt *int64
}

// Result is the outcome of one check, recorded or not.
type Result struct {
	Source  string              `json:"file"`
	Metrics readability.Metrics `json:"metrics"`
	Verdict readability.Verdict `json:"verdict"`
}

// New builds a report from a finished check.
func New(id, workspace string, res Result, text string, skipRange bool, now time.Time) *Report {
	r := &Report{
		ID:            id,
		WorkspaceRaw:  workspace,
		WorkspaceNorm: NormalizeLabel(workspace),
		Source:        res.Source,
		SourceText:    text,
		SourceChars:   CountChars(text),
		SkipRange:     skipRange,
		Status:        res.Verdict.Status,
		Reason:        res.Verdict.Reason,
		CreatedAt:     now.Unix(),
	}
	r.setMetrics(res.Metrics)
	r.MinScore = copyFloat(res.Verdict.Range.Min)
	r.MaxScore = copyFloat(res.Verdict.Range.Max)
	return r
}

// Metrics returns the stored readability metrics.
func (r *Report) Metrics() readability.Metrics {
	return readability.Metrics{
		Words:       r.Words,
		Sentences:   r.Sentences,
		Syllables:   r.Syllables,
		ReadingEase: r.ReadingEase,
		GradeLevel:  r.GradeLevel,
	}
}

// Range returns the band the report was judged against.
func (r *Report) Range() readability.Range {
	return readability.Range{Min: copyFloat(r.MinScore), Max: copyFloat(r.MaxScore)}
}

// Verdict returns the stored verdict.
func (r *Report) Verdict() readability.Verdict {
	return readability.Verdict{Status: r.Status, Reason: r.Reason, Range: r.Range()}
}

// Result returns the report as a check result.
func (r *Report) Result() Result {
	return Result{Source: r.Source, Metrics: r.Metrics(), Verdict: r.Verdict()}
}

func (r *Report) setMetrics(m readability.Metrics) {
	r.Words = m.Words
	r.Sentences = m.Sentences
	r.Syllables = m.Syllables
	r.ReadingEase = m.ReadingEase
	r.GradeLevel = m.GradeLevel
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
