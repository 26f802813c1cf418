package readability

import (
	"math"
	"strconv"
	"strings"
)

// Default acceptable Flesch Reading Ease band.
const (
	DefaultMinScore = 45.0
	DefaultMaxScore = 70.0
)

// Status is the outcome of a readability check.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// Reason explains a Status.
type Reason string

const (
	ReasonNoReadableText Reason = "no_readable_text"
	ReasonRangeSkipped   Reason = "range_skipped"
	ReasonUnbounded      Reason = "range_unbounded"
	ReasonInRange        Reason = "in_range"
	ReasonBelowMin       Reason = "below_min"
	ReasonAboveMax       Reason = "above_max"
)

// Range is an inclusive band for the reading-ease score. A nil bound is unbounded.
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// DefaultRange returns the default 45..70 band.
func DefaultRange() Range {
	lo, hi := DefaultMinScore, DefaultMaxScore
	return Range{Min: &lo, Max: &hi}
}

// Bounded reports whether at least one bound is set.
func (r Range) Bounded() bool {
	return r.Min != nil || r.Max != nil
}

// Contains reports whether score lies inside the band.
func (r Range) Contains(score float64) bool {
	return r.lower() <= score && score <= r.upper()
}

func (r Range) lower() float64 {
	if r.Min == nil {
		return math.Inf(-1)
	}
	return *r.Min
}

func (r Range) upper() float64 {
	if r.Max == nil {
		return math.Inf(1)
	}
	return *r.Max
}

// Verdict is the PASS/FAIL judgement of a document's metrics.
type Verdict struct {
	Status Status `json:"status"`
	Reason Reason `json:"reason"`
	Range  Range  `json:"range"`
}

// Passed reports whether the verdict is PASS.
func (v Verdict) Passed() bool {
	return v.Status == StatusPass
}

// Label returns the human-readable status, e.g. "PASS (target 45.0 to 70.0)".
func (v Verdict) Label() string {
	switch v.Reason {
	case ReasonNoReadableText:
		return string(StatusFail) + " (no readable text)"
	case ReasonRangeSkipped, ReasonUnbounded:
		return string(v.Status)
	}
	return string(v.Status) + " (target " + formatBound(v.Range.lower()) + " to " + formatBound(v.Range.upper()) + ")"
}

// Evaluate judges metrics against a range.
// Rules, in order:
// - no words: FAIL
// - skipRange: PASS
// - no bounds at all: PASS
// - otherwise PASS iff min <= reading ease <= max (a NaN bound never holds)
func Evaluate(m Metrics, r Range, skipRange bool) Verdict {
	v := Verdict{Range: r}

	switch {
	case m.Words == 0:
		v.Status, v.Reason = StatusFail, ReasonNoReadableText
	case skipRange:
		v.Status, v.Reason = StatusPass, ReasonRangeSkipped
	case !r.Bounded():
		v.Status, v.Reason = StatusPass, ReasonUnbounded
	case !(m.ReadingEase >= r.lower()):
		v.Status, v.Reason = StatusFail, ReasonBelowMin
	case !(m.ReadingEase <= r.upper()):
		v.Status, v.Reason = StatusFail, ReasonAboveMax
	default:
		v.Status, v.Reason = StatusPass, ReasonInRange
	}

	return v
}

// formatBound prints a bound the way reports have always shown it:
// "45.0", "62.5", "-inf", "inf", "nan".
func formatBound(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsInf(f, 1):
		return "inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
