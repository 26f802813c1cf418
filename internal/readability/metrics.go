package readability

import "regexp"

var (
	// wordRegex matches a word: a run of ASCII letters, digits or apostrophes.
	wordRegex = regexp.MustCompile(`[A-Za-z0-9']+`)

	// terminatorRegex matches a run of sentence terminators ("...", "?!").
	terminatorRegex = regexp.MustCompile(`[.!?]+`)
)

// Flesch formula coefficients.
const (
	readingEaseBase       = 206.835
	readingEaseWordWeight = 1.015
	readingEaseSylWeight  = 84.6
	gradeLevelWordWeight  = 0.39
	gradeLevelSylWeight   = 11.8
	gradeLevelBaseOffset  = 15.59
)

// Metrics holds the readability statistics of a plain-text document.
type Metrics struct {
	Words       int     `json:"words"`
	Sentences   int     `json:"sentences"`
	Syllables   int     `json:"syllables"`
	ReadingEase float64 `json:"flesch_reading_ease"`
	GradeLevel  float64 `json:"flesch_kincaid_grade"`
}

// Words returns the word tokens of plain text.
func Words(plain string) []string {
	return wordRegex.FindAllString(plain, -1)
}

// SentenceTerminators returns the number of terminator runs in plain text.
func SentenceTerminators(plain string) int {
	return len(terminatorRegex.FindAllStringIndex(plain, -1))
}

// Compute derives readability metrics from normalized plain text.
// Text without words yields zero Metrics.
func Compute(plain string) Metrics {
	words := Words(plain)
	if len(words) == 0 {
		return Metrics{}
	}

	sentences := max(1, SentenceTerminators(plain))

	syllables := 0
	for _, w := range words {
		syllables += CountSyllables(w)
	}

	m := Metrics{
		Words:     len(words),
		Sentences: sentences,
		Syllables: syllables,
	}

	wordsPerSentence := float64(m.Words) / float64(m.Sentences)
	syllablesPerWord := float64(m.Syllables) / float64(m.Words)

	// Explicit float64 conversions keep the products from being fused into FMA
	// instructions, so scores are bit-identical across architectures.
	m.ReadingEase = readingEaseBase - float64(readingEaseWordWeight*wordsPerSentence) - float64(readingEaseSylWeight*syllablesPerWord)
	m.GradeLevel = float64(gradeLevelWordWeight*wordsPerSentence) + float64(gradeLevelSylWeight*syllablesPerWord) - gradeLevelBaseOffset

	return m
}

// Analyze normalizes raw formatted text and computes its metrics.
func Analyze(raw string) Metrics {
	return Compute(Normalize(raw))
}
