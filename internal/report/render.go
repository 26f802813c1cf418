package report

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// RenderOptions controls text rendering.
type RenderOptions struct {
	// Plain disables terminal styling even when w is a color terminal.
	Plain bool
}

// statusStyles colors the status label. The renderer decides per writer
// whether escape codes are emitted at all.
type statusStyles struct {
	pass lipgloss.Style
	fail lipgloss.Style
}

func newStatusStyles(w io.Writer) statusStyles {
	r := lipgloss.NewRenderer(w)
	return statusStyles{
		pass: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		fail: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

// Render writes the human-readable check report:
//
//	Readability check
//	- File: docs/guide.md
//	- Words: 10
//	...
//	- Status: PASS (target 45.0 to 70.0)
func Render(w io.Writer, res Result, opts RenderOptions) error {
	label := res.Verdict.Label()
	if !opts.Plain {
		styles := newStatusStyles(w)
		if res.Verdict.Passed() {
			label = styles.pass.Render(label)
		} else {
			label = styles.fail.Render(label)
		}
	}

	m := res.Metrics
	_, err := fmt.Fprintf(w,
		"Readability check\n"+
			"- File: %s\n"+
			"- Words: %d\n"+
			"- Sentences: %d\n"+
			"- Syllables: %d\n"+
			"- Flesch Reading Ease: %.2f\n"+
			"- Flesch-Kincaid Grade: %.2f\n"+
			"- Status: %s\n",
		res.Source, m.Words, m.Sentences, m.Syllables, m.ReadingEase, m.GradeLevel, label)
	return err
}

// RenderHistory writes one line per report, newest first as given:
//
//	01HX...  PASS  62.10  docs/guide.md  3 minutes ago
func RenderHistory(w io.Writer, items []Summary, now time.Time) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No reports.")
		return err
	}
	for _, s := range items {
		when := humanize.RelTime(time.Unix(s.CreatedAt, 0), now, "ago", "from now")
		if _, err := fmt.Fprintf(w, "%s  %-4s  %6.2f  %s  %s\n", s.ID, s.Status, s.ReadingEase, s.Source, when); err != nil {
			return err
		}
	}
	return nil
}
