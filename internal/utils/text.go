package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minQuestionLength = 5

var invalidChars = regexp.MustCompile(`[^\w\s\p{L}\p{N}\p{P}]`)

var stopWords = map[string]bool{
	"и": true, "в": true, "на": true, "с": true, "по": true, "для": true,
	"как": true, "что": true, "это": true, "или": true, "где": true, "когда": true,
	"the": true, "and": true, "for": true, "with": true, "what": true, "how": true,
}

// IsInvalidQuestion flags questions too short to answer or containing
// characters outside letters, digits, punctuation and whitespace.
func IsInvalidQuestion(question string) bool {
	trimmed := strings.TrimSpace(question)
	if utf8.RuneCountInString(trimmed) < minQuestionLength {
		return true
	}
	return invalidChars.MatchString(trimmed)
}

// FindKeywords returns the distinct lower-cased words of text longer than
// three runes, with surrounding punctuation and stop words removed, in order
// of first appearance.
func FindKeywords(text string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, word := range strings.Fields(text) {
		cleaned := strings.Trim(strings.ToLower(word), ".,!?;:()«»\"'")
		if utf8.RuneCountInString(cleaned) <= 3 || stopWords[cleaned] {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		keywords = append(keywords, cleaned)
	}
	return keywords
}
