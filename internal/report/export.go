package report

import "github.com/hpungsan/legible/internal/readability"

// ExportRecord represents a report record in JSONL export format.
// It is used for parsing export files during import.
type ExportRecord struct {
	// Header detection field - true only for header line
	LegibleExport bool `json:"_legible_export,omitempty"`

	// Header fields (only present in header line)
	SchemaVersion string `json:"schema_version,omitempty"`
	ExportedAt    int64  `json:"exported_at,omitempty"`

	// Report fields
	ID            string             `json:"id"`
	WorkspaceRaw  string             `json:"workspace_raw"`
	WorkspaceNorm string             `json:"workspace_norm"` // IGNORED on import, recomputed
	Source        string             `json:"source"`
	SourceText    string             `json:"source_text"`
	SourceChars   int                `json:"source_chars"`         // IGNORED on import, recomputed
	Words         int                `json:"words"`                // IGNORED on import, recomputed
	Sentences     int                `json:"sentences"`            // IGNORED on import, recomputed
	Syllables     int                `json:"syllables"`            // IGNORED on import, recomputed
	ReadingEase   float64            `json:"flesch_reading_ease"`  // IGNORED on import, recomputed
	GradeLevel    float64            `json:"flesch_kincaid_grade"` // IGNORED on import, recomputed
	MinScore      *float64           `json:"min_score"`
	MaxScore      *float64           `json:"max_score"`
	SkipRange     bool               `json:"skip_range"`
	Status        readability.Status `json:"status"` // IGNORED on import, recomputed
	Reason        readability.Reason `json:"reason"` // IGNORED on import, recomputed
	CreatedAt     int64              `json:"created_at"`
	DeletedAt     *int64             `json:"deleted_at"`
}

// ToReport converts an ExportRecord to a Report. Metrics and verdict are
// recomputed from the source text and the stored range, so a hand-edited
// export cannot smuggle in scores that disagree with its text.
func (e *ExportRecord) ToReport() *Report {
	m := readability.Analyze(e.SourceText)
	rng := readability.Range{Min: copyFloat(e.MinScore), Max: copyFloat(e.MaxScore)}
	v := readability.Evaluate(m, rng, e.SkipRange)

	r := &Report{
		ID:            e.ID,
		WorkspaceRaw:  e.WorkspaceRaw,
		WorkspaceNorm: NormalizeLabel(e.WorkspaceRaw),
		Source:        e.Source,
		SourceText:    e.SourceText,
		SourceChars:   CountChars(e.SourceText),
		MinScore:      rng.Min,
		MaxScore:      rng.Max,
		SkipRange:     e.SkipRange,
		Status:        v.Status,
		Reason:        v.Reason,
		CreatedAt:     e.CreatedAt,
		DeletedAt:     e.DeletedAt,
	}
	r.setMetrics(m)
	return r
}

// ToExportRecord converts a Report to an ExportRecord for export.
func (r *Report) ToExportRecord() *ExportRecord {
	return &ExportRecord{
		ID:            r.ID,
		WorkspaceRaw:  r.WorkspaceRaw,
		WorkspaceNorm: r.WorkspaceNorm,
		Source:        r.Source,
		SourceText:    r.SourceText,
		SourceChars:   r.SourceChars,
		Words:         r.Words,
		Sentences:     r.Sentences,
		Syllables:     r.Syllables,
		ReadingEase:   r.ReadingEase,
		GradeLevel:    r.GradeLevel,
		MinScore:      r.MinScore,
		MaxScore:      r.MaxScore,
		SkipRange:     r.SkipRange,
		Status:        r.Status,
		Reason:        r.Reason,
		CreatedAt:     r.CreatedAt,
		DeletedAt:     r.DeletedAt,
	}
}
