package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyQuiz is returned when an attempt is started on a quiz without questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrDuplicateAttempt is returned when the identity already has a result for the quiz.
	ErrDuplicateAttempt = errors.New("attempt already recorded for this student")
	// ErrAlreadySubmitted is returned for any operation on a submitted attempt.
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	// ErrTimeExpired is returned when an answer arrives after the time limit.
	ErrTimeExpired = errors.New("attempt time limit expired")
	// ErrNotFound is the parent of all lookup failures.
	ErrNotFound = errors.New("not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = fmt.Errorf("quiz %w", ErrNotFound)
	// ErrAttemptNotFound indicates an unknown attempt id.
	ErrAttemptNotFound = fmt.Errorf("attempt %w", ErrNotFound)
	// ErrResultNotFound indicates no ledger entry exists for an attempt.
	ErrResultNotFound = fmt.Errorf("result %w", ErrNotFound)
)

// Invalidf builds an error that matches ErrValidation.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
