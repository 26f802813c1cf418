package report

import "github.com/hpungsan/legible/internal/readability"

// Summary is a report without its source text.
// Used for browse operations (list, latest) to reduce data transfer.
type Summary struct {
	ID            string             `json:"id"`
	Workspace     string             `json:"workspace"`
	WorkspaceNorm string             `json:"workspace_norm"`
	Source        string             `json:"source"`
	SourceChars   int                `json:"source_chars"`
	Words         int                `json:"words"`
	Sentences     int                `json:"sentences"`
	Syllables     int                `json:"syllables"`
	ReadingEase   float64            `json:"flesch_reading_ease"`
	GradeLevel    float64            `json:"flesch_kincaid_grade"`
	MinScore      *float64           `json:"min_score,omitempty"`
	MaxScore      *float64           `json:"max_score,omitempty"`
	SkipRange     bool               `json:"skip_range,omitempty"`
	Status        readability.Status `json:"status"`
	Reason        readability.Reason `json:"reason"`
	Label         string             `json:"label"`
	CreatedAt     int64              `json:"created_at"`
	DeletedAt     *int64             `json:"deleted_at,omitempty"`
}

// ToSummary converts a Report to a Summary by stripping the source text.
func (r *Report) ToSummary() Summary {
	return Summary{
		ID:            r.ID,
		Workspace:     r.WorkspaceRaw,
		WorkspaceNorm: r.WorkspaceNorm,
		Source:        r.Source,
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
		Label:         r.Verdict().Label(),
		CreatedAt:     r.CreatedAt,
		DeletedAt:     r.DeletedAt,
	}
}

// Result rebuilds the check result a summary was recorded from.
func (s Summary) Result() Result {
	return Result{
		Source: s.Source,
		Metrics: readability.Metrics{
			Words:       s.Words,
			Sentences:   s.Sentences,
			Syllables:   s.Syllables,
			ReadingEase: s.ReadingEase,
			GradeLevel:  s.GradeLevel,
		},
		Verdict: readability.Verdict{
			Status: s.Status,
			Reason: s.Reason,
			Range:  readability.Range{Min: copyFloat(s.MinScore), Max: copyFloat(s.MaxScore)},
		},
	}
}
