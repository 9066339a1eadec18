package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeAnswer trims surrounding whitespace and case-folds s.
func NormalizeAnswer(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// AnswerMatches compares a submission with the answer key after normalization.
// No fuzzy matching.
func AnswerMatches(submitted, correct string) bool {
	return NormalizeAnswer(submitted) == NormalizeAnswer(correct)
}
