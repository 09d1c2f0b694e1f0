package app

import (
	"context"

	"quiz-attempt-service/internal/domain"
)

// QuizStore is the durable home of quiz definitions (memory, Postgres, SQLite).
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.Quiz, error)
	DeleteQuiz(ctx context.Context, quizID string) error
}

// QuizRepository serves quiz content for attempts (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	Invalidate(ctx context.Context, quizID string)
}

// AttemptStore persists in-flight attempt values between calls, keyed by attempt id.
type AttemptStore interface {
	SaveAttempt(ctx context.Context, attempt domain.Attempt) error
	LoadAttempt(ctx context.Context, attemptID string) (domain.Attempt, error)
}

// Ledger is the append-only record of submitted attempts. Record must check
// for an existing (quiz, identity) entry and append in one atomic step.
type Ledger interface {
	Record(ctx context.Context, result domain.Result) error
	Exists(ctx context.Context, quizID string, identity domain.Identity) (bool, error)
	Find(ctx context.Context, attemptID string) (domain.Result, error)
	QueryByQuiz(ctx context.Context, quizID string) ([]domain.Result, error)
	QueryByIdentity(ctx context.Context, identity domain.Identity) ([]domain.Result, error)
	All(ctx context.Context) ([]domain.Result, error)
}

// Generator turns free text into candidate questions.
type Generator interface {
	Generate(ctx context.Context, text string, count int, difficulty string) ([]domain.GeneratedQuestion, error)
}
