package llm

import (
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/trezcool/sciencegpt/core"
)

const (
	MinQuestionLength = 3
	MaxQuestionLength = 2000
)

// SanitizeQuestion strips control characters and collapses whitespace.
func SanitizeQuestion(q string) string {
	return core.CleanText(q)
}

// ValidateQuestion checks the length of a sanitized question.
func ValidateQuestion(q string) error {
	n := utf8.RuneCountInString(q)
	switch {
	case n < MinQuestionLength:
		return errors.Wrapf(ErrInvalidInput, "question must contain at least %d characters", MinQuestionLength)
	case n > MaxQuestionLength:
		return errors.Wrapf(ErrInvalidInput, "question must contain at most %d characters", MaxQuestionLength)
	}
	return nil
}
