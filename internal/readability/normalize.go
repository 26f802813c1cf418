package readability

import (
	"regexp"
	"strings"
)

// spaceClass is the character class body for whitespace. It covers the Unicode
// space separators as well as the ASCII control separators, so prose copied from
// rich editors (NBSP, em space, line separator) collapses like a plain space.
const spaceClass = `\s\v\x{1c}-\x{1f}\x{85}\p{Z}`

var (
	// fencedCodeRegex matches ```...``` spans across lines (shortest match).
	fencedCodeRegex = regexp.MustCompile("```[\\s\\S]*?```")

	// inlineCodeRegex matches `...` spans with no backtick inside.
	inlineCodeRegex = regexp.MustCompile("`[^`]*`")

	// imageRegex matches ![alt](target). Group 1 is the alt text.
	imageRegex = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)

	// linkRegex matches [label](target). Group 1 is the label.
	linkRegex = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)

	// htmlTagRegex matches <...> with at least one character inside.
	htmlTagRegex = regexp.MustCompile(`<[^>]+>`)

	// blockMarkerRegex matches headers, blockquotes and bullets at line start.
	// The run includes newlines, so it also swallows blank lines that follow.
	blockMarkerRegex = regexp.MustCompile(`(?m)^[#>\-*+` + spaceClass + `]+`)

	// orderedListRegex matches "1. " style markers at line start.
	orderedListRegex = regexp.MustCompile(`(?m)^\p{Nd}+\.[` + spaceClass + `]+`)

	// spaceRunRegex matches one or more whitespace characters.
	spaceRunRegex = regexp.MustCompile(`[` + spaceClass + `]+`)
)

// Step is a single named text transformation in the normalization pipeline.
type Step struct {
	Name  string
	Apply func(string) string
}

// Steps is the ordered normalization pipeline. Order matters: code spans go
// first so that markup inside them is never read as links or images, and the
// line-anchored rules run before whitespace collapse removes line breaks.
var Steps = []Step{
	{Name: "fenced-code", Apply: replaceWith(fencedCodeRegex, " ")},
	{Name: "inline-code", Apply: replaceWith(inlineCodeRegex, " ")},
	{Name: "images", Apply: replaceWith(imageRegex, "${1}")},
	{Name: "links", Apply: replaceWith(linkRegex, "${1}")},
	{Name: "html-tags", Apply: replaceWith(htmlTagRegex, " ")},
	{Name: "block-markers", Apply: replaceWith(blockMarkerRegex, " ")},
	{Name: "ordered-list", Apply: replaceWith(orderedListRegex, " ")},
	{Name: "collapse-whitespace", Apply: collapseWhitespace},
}

// Normalize strips Markdown/HTML structure from raw text and returns
// approximate plain prose:
// 1. Drop fenced and inline code
// 2. Keep image alt text and link labels, drop their targets
// 3. Drop HTML tags
// 4. Drop block markers and ordered-list numbers at line starts
// 5. Collapse whitespace to single spaces and trim
func Normalize(raw string) string {
	s := raw
	for _, step := range Steps {
		s = step.Apply(s)
	}
	return s
}

// StepByName returns the pipeline step with the given name.
func StepByName(name string) (Step, bool) {
	for _, step := range Steps {
		if step.Name == name {
			return step, true
		}
	}
	return Step{}, false
}

func replaceWith(re *regexp.Regexp, repl string) func(string) string {
	return func(s string) string {
		return re.ReplaceAllString(s, repl)
	}
}

// collapseWhitespace collapses internal whitespace to single spaces and trims.
func collapseWhitespace(s string) string {
	return strings.Trim(spaceRunRegex.ReplaceAllString(s, " "), " ")
}
