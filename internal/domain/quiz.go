package domain

import (
	"strings"
	"time"
)

// DefaultScoring is applied to quizzes that do not configure a policy.
var DefaultScoring = ScoringPolicy{Mode: ScoringStandard, FreeText: FreeTextExact}

// NewQuiz allocates an empty quiz definition.
func NewQuiz(id, name string, timeLimitMinutes int, createdAt time.Time) (Quiz, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Quiz{}, Invalidf("quiz name is required")
	}
	if timeLimitMinutes <= 0 {
		return Quiz{}, Invalidf("time limit must be positive, got %d", timeLimitMinutes)
	}
	return Quiz{
		ID:               id,
		Name:             name,
		TimeLimitMinutes: timeLimitMinutes,
		Questions:        []Question{},
		Scoring:          DefaultScoring,
		CreatedAt:        createdAt,
	}, nil
}

// WithScoring returns a copy of quiz using policy. Blank fields fall back to defaults.
func WithScoring(quiz Quiz, policy ScoringPolicy) (Quiz, error) {
	if policy.Mode == "" {
		policy.Mode = ScoringStandard
	}
	if policy.FreeText == "" {
		policy.FreeText = FreeTextExact
	}
	switch policy.Mode {
	case ScoringStandard, ScoringStreak:
	default:
		return Quiz{}, Invalidf("unknown scoring mode %q", policy.Mode)
	}
	switch policy.FreeText {
	case FreeTextExact, FreeTextNonEmpty:
	default:
		return Quiz{}, Invalidf("unknown free text policy %q", policy.FreeText)
	}
	if policy.NegativeMarkPerWrong < 0 {
		return Quiz{}, Invalidf("negative mark must not be negative")
	}
	quiz.Scoring = policy
	return quiz, nil
}

// AddQuestion normalizes question and returns a copy of quiz with it appended.
// The question id becomes its ordinal position.
func AddQuestion(quiz Quiz, question Question) (Quiz, error) {
	normalized, err := Normalize(question)
	if err != nil {
		return Quiz{}, err
	}
	normalized.ID = len(quiz.Questions)

	questions := make([]Question, len(quiz.Questions), len(quiz.Questions)+1)
	copy(questions, quiz.Questions)
	quiz.Questions = append(questions, normalized)
	return quiz, nil
}
