package readability

import "strings"

// vowels is the vowel set used by the syllable heuristic.
const vowels = "aeiouy"

// CountSyllables estimates the syllable count of a single word.
// Rules, applied to the lower-cased word with non-letters removed:
// - empty word: 0
// - one syllable per run of vowels
// - trailing "e" is silent (-1)
// - consonant + "le" ending is voiced again (+1), as in "table" or "candle"
// - any non-empty word has at least one syllable
func CountSyllables(word string) int {
	w := lettersOnly(strings.ToLower(word))
	if w == "" {
		return 0
	}

	count := 0
	inRun := false
	for i := 0; i < len(w); i++ {
		if isVowel(w[i]) {
			if !inRun {
				count++
			}
			inRun = true
		} else {
			inRun = false
		}
	}

	if strings.HasSuffix(w, "e") {
		count--
	}
	if strings.HasSuffix(w, "le") && len(w) > 2 && !isVowel(w[len(w)-3]) {
		count++
	}

	if count <= 0 {
		count = 1
	}
	return count
}

// lettersOnly keeps the ASCII letters a-z and drops everything else.
func lettersOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'a' && c <= 'z' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isVowel(c byte) bool {
	return strings.IndexByte(vowels, c) >= 0
}
