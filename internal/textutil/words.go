package textutil

import (
	"strings"
	"unicode"
)

// minMeaningfulWords is the number of real words a chapter needs before its
// OCR output counts as narratable text.
const minMeaningfulWords = 3

// Tokenize splits text into lowercase word tokens. Letters and digits of any
// script are kept, so accented Portuguese and CJK text tokenize correctly.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return fields
}

// WordCount returns the number of whitespace separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// HasMeaningfulContent reports whether OCR text contains enough real words to
// narrate. Single characters and stray punctuation from speech bubbles do not count.
func HasMeaningfulContent(text string) bool {
	words := 0
	for _, token := range Tokenize(text) {
		letters := 0
		for _, r := range token {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters >= 2 {
			words++
			if words >= minMeaningfulWords {
				return true
			}
		}
	}
	return false
}

// CollapseWhitespace joins the fields of text with single spaces.
func CollapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Truncate shortens text to at most limit runes, appending an ellipsis when cut.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit == 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
