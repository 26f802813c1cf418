package readability

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only whitespace",
			input: "  \n\t \n",
			want:  "",
		},
		{
			name:  "plain prose untouched",
			input: "The cat sat on the mat.",
			want:  "The cat sat on the mat.",
		},
		{
			name:  "fenced code block removed",
			input: "Intro\n```\n[link](http://example.com)\n```\nOutro",
			want:  "Intro Outro",
		},
		{
			name:  "multiple fenced blocks handled independently",
			input: "a ```x``` b ```y``` c",
			want:  "a b c",
		},
		{
			name:  "inline code removed before links",
			input: "Use `[a](b)` here",
			want:  "Use here",
		},
		{
			name:  "unterminated inline code stays literal",
			input: "text `code",
			want:  "text `code",
		},
		{
			name:  "image replaced by alt text",
			input: "See ![a cat](cat.png) now",
			want:  "See a cat now",
		},
		{
			name:  "image with empty alt",
			input: "x ![](y.png) z",
			want:  "x z",
		},
		{
			name:  "link replaced by label",
			input: "Read [the docs](http://docs.example.com) today",
			want:  "Read the docs today",
		},
		{
			name:  "link with empty label is not a link",
			input: "a [](x) b",
			want:  "a [](x) b",
		},
		{
			name:  "html tags removed",
			input: "a<br/>b <span class=\"x\">c</span>",
			want:  "a b c",
		},
		{
			name:  "empty angle brackets kept",
			input: "a <> b",
			want:  "a <> b",
		},
		{
			name:  "headers stripped",
			input: "# Title\n## Sub\ntext",
			want:  "Title Sub text",
		},
		{
			name:  "blockquote and bullets stripped",
			input: "> quoted\n- item one\n* item two\n+ item three",
			want:  "quoted item one item two item three",
		},
		{
			name:  "ordered list markers stripped",
			input: "1. first\n2. second\n10. tenth",
			want:  "first second tenth",
		},
		{
			name:  "indented ordered marker survives",
			input: "  3. third",
			want:  "3. third",
		},
		{
			name:  "dash at line start stripped",
			input: "text\n-- aside",
			want:  "text aside",
		},
		{
			name:  "inline emphasis kept",
			input: "some **bold** and _it_",
			want:  "some **bold** and _it_",
		},
		{
			name:  "hash inside a line kept",
			input: "C# rocks",
			want:  "C# rocks",
		},
		{
			name:  "no-break spaces collapsed",
			input: "a\u00a0\u2003b",
			want:  "a b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_StableOnTypicalDocuments(t *testing.T) {
	docs := []string{
		"",
		"# Guide\n\nThis is **important**. Read [docs](http://x).\n\n```go\nfmt.Println(\"hi\")\n```\n\n- one\n- two\n\n1. first\n2. second\n",
		"> Quote with `code` and <em>html</em>\n\n![logo](logo.png) Caption.",
		"Plain   text\n\n\nwith   gaps.",
	}

	for _, doc := range docs {
		once := Normalize(doc)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize changed on a second pass for %q: once=%q twice=%q", doc, once, twice)
		}
	}
}

func TestNormalize_CollapseIdempotent(t *testing.T) {
	collapse, ok := StepByName("collapse-whitespace")
	if !ok {
		t.Fatal("collapse-whitespace step missing")
	}
	for _, in := range []string{"", "  a \t b\n\n c  ", "a\u00a0\u2003b", "x"} {
		once := collapse.Apply(in)
		if twice := collapse.Apply(once); twice != once {
			t.Errorf("collapse(%q): once=%q twice=%q", in, once, twice)
		}
	}
}

// A list marker hidden behind an ordered-list number only surfaces after the
// first pass, so Normalize is not idempotent for it.
func TestNormalize_StackedListMarkers(t *testing.T) {
	once := Normalize("1. - x")
	if once != "- x" {
		t.Fatalf("first pass = %q, want %q", once, "- x")
	}
	if twice := Normalize(once); twice != "x" {
		t.Errorf("second pass = %q, want %q", twice, "x")
	}
}

func TestNormalize_NoMarkupRemains(t *testing.T) {
	doc := "# Heading\n\n> quote\n\n```\ncode\n```\n\nText with `span` and <b>bold</b>.\n\n- bullet\n1. numbered"
	got := Normalize(doc)

	for _, forbidden := range []string{"```", "`", "<b>", "</b>", "# ", "> "} {
		if strings.Contains(got, forbidden) {
			t.Errorf("Normalize(%q) = %q, still contains %q", doc, got, forbidden)
		}
	}
}

func TestSteps_Order(t *testing.T) {
	want := []string{
		"fenced-code",
		"inline-code",
		"images",
		"links",
		"html-tags",
		"block-markers",
		"ordered-list",
		"collapse-whitespace",
	}

	if len(Steps) != len(want) {
		t.Fatalf("len(Steps) = %d, want %d", len(Steps), len(want))
	}
	for i, name := range want {
		if Steps[i].Name != name {
			t.Errorf("Steps[%d].Name = %q, want %q", i, Steps[i].Name, name)
		}
	}
}

func TestStepByName(t *testing.T) {
	step, ok := StepByName("links")
	if !ok {
		t.Fatal("StepByName(links) not found")
	}
	if got := step.Apply("[a](b) and [c](d)"); got != "a and c" {
		t.Errorf("links step = %q, want %q", got, "a and c")
	}

	if _, ok := StepByName("nope"); ok {
		t.Error("StepByName(nope) found, want not found")
	}
}

func TestStep_ImagesBeforeLinks(t *testing.T) {
	// Applied alone, the link rule leaves the image bang behind.
	links, _ := StepByName("links")
	if got := links.Apply("![alt](a.png)"); got != "!alt" {
		t.Errorf("links step on image = %q, want %q", got, "!alt")
	}

	if got := Normalize("![alt](a.png)"); got != "alt" {
		t.Errorf("Normalize(image) = %q, want %q", got, "alt")
	}
}
