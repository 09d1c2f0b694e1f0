package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNewQuizValidation(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := NewQuiz("q1", "", 5, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := NewQuiz("q1", "Capitals", 0, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero time limit, got %v", err)
	}
	quiz, err := NewQuiz("q1", " Capitals ", 5, now)
	if err != nil {
		t.Fatalf("new quiz: %v", err)
	}
	if quiz.Name != "Capitals" || len(quiz.Questions) != 0 || quiz.Scoring != DefaultScoring {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
}

func TestAddQuestionAssignsOrdinalsWithoutAliasing(t *testing.T) {
	quiz, _ := NewQuiz("q1", "Capitals", 5, time.Now())
	first, err := AddQuestion(quiz, Question{Prompt: "A?", Options: []string{"a", "b"}, CanonicalAnswer: "a"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := AddQuestion(first, Question{Type: ShortAnswer, Prompt: "B?", CanonicalAnswer: "b"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(first.Questions) != 1 || len(second.Questions) != 2 {
		t.Fatalf("expected 1 and 2 questions, got %d and %d", len(first.Questions), len(second.Questions))
	}
	if second.Questions[0].ID != 0 || second.Questions[1].ID != 1 {
		t.Fatalf("unexpected ids %d, %d", second.Questions[0].ID, second.Questions[1].ID)
	}

	if _, err := AddQuestion(second, Question{Prompt: "", CanonicalAnswer: "x"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(second.Questions) != 2 {
		t.Fatalf("failed add mutated quiz")
	}
}

func TestWithScoring(t *testing.T) {
	quiz, _ := NewQuiz("q1", "Capitals", 5, time.Now())
	got, err := WithScoring(quiz, ScoringPolicy{Mode: ScoringStreak, NegativeMarkPerWrong: 2})
	if err != nil {
		t.Fatalf("with scoring: %v", err)
	}
	if got.Scoring.FreeText != FreeTextExact || got.Scoring.Mode != ScoringStreak {
		t.Fatalf("unexpected policy %+v", got.Scoring)
	}
	if _, err := WithScoring(quiz, ScoringPolicy{NegativeMarkPerWrong: -1}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := WithScoring(quiz, ScoringPolicy{Mode: "bonus"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIdentityKey(t *testing.T) {
	a := Identity{Name: "Alice", RegistrationID: "R100"}
	b := Identity{Name: " alice ", RegistrationID: "r100"}
	if a.Key() != b.Key() {
		t.Fatalf("expected equal keys, got %q and %q", a.Key(), b.Key())
	}
	if !(Identity{Name: "Alice"}).Blank() {
		t.Fatalf("expected blank identity")
	}
}
