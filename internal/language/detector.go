package language

import (
	"strings"
	"unicode"
)

// Supported language codes (ISO 639-1).
const (
	Spanish = "es"
	English = "en"
)

var spanishWords = map[string]struct{}{
	"de": {}, "la": {}, "el": {}, "en": {}, "y": {}, "que": {},
	"por": {}, "con": {}, "para": {}, "es": {}, "son": {},
	"cual": {}, "cuál": {}, "qué": {}, "los": {}, "las": {},
	"una": {}, "del": {}, "está": {}, "tiene": {}, "sobre": {},
}

var englishWords = map[string]struct{}{
	"the": {}, "and": {}, "is": {}, "are": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"what": {}, "which": {}, "how": {}, "does": {}, "about": {},
}

// Spanish-only characters are a strong signal on their own.
const spanishChars = "áéíóúñü¿¡"

// Detect guesses whether text is Spanish or English by counting
// characteristic stop words and Spanish-only characters. It returns the
// detected language code and false when the scores tie, meaning the
// caller should fall back to a default.
func Detect(text string) (string, bool) {
	lower := strings.ToLower(text)

	spanishScore := 0
	englishScore := 0

	for _, r := range lower {
		if strings.ContainsRune(spanishChars, r) {
			spanishScore += 2
		}
	}

	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if _, ok := spanishWords[w]; ok {
			spanishScore++
		}
		if _, ok := englishWords[w]; ok {
			englishScore++
		}
	}

	switch {
	case spanishScore > englishScore:
		return Spanish, true
	case englishScore > spanishScore:
		return English, true
	default:
		return "", false
	}
}

// Name returns the display name of a supported language code, used to
// phrase instructions for the answer model.
func Name(code string) string {
	switch code {
	case Spanish:
		return "Spanish"
	default:
		return "English"
	}
}
