package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestQuizStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewQuizStore()

	quiz := sampleQuiz()
	if err := store.SaveQuiz(ctx, quiz); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.LoadQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got.Questions[0].Options[0] = "mutated"
	again, _ := store.LoadQuiz(ctx, quiz.ID)
	if again.Questions[0].Options[0] != "3" {
		t.Fatalf("store leaked internal state")
	}

	list, _ := store.ListQuizzes(ctx)
	if len(list) != 1 {
		t.Fatalf("expected 1 quiz, got %d", len(list))
	}
	if err := store.DeleteQuiz(ctx, quiz.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.DeleteQuiz(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestAttemptStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewAttemptStore()
	if _, err := store.LoadAttempt(ctx, "missing"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected attempt not found, got %v", err)
	}

	attempt := domain.Attempt{ID: "a1", QuizID: "quiz-1", State: domain.InProgress, Answers: map[int]string{0: "4"}}
	if err := store.SaveAttempt(ctx, attempt); err != nil {
		t.Fatalf("save: %v", err)
	}
	attempt.Answers[0] = "5"

	got, err := store.LoadAttempt(ctx, "a1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Answers[0] != "4" {
		t.Fatalf("stored attempt aliased caller map: %q", got.Answers[0])
	}
}

func TestLedgerRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()
	alice := domain.Identity{Name: "Alice", RegistrationID: "R1"}

	if err := ledger.Record(ctx, result("a1", "quiz-1", alice, 3)); err != nil {
		t.Fatalf("record: %v", err)
	}
	dup := result("a2", "quiz-1", domain.Identity{Name: "ALICE ", RegistrationID: "r1"}, 4)
	if err := ledger.Record(ctx, dup); !errors.Is(err, domain.ErrDuplicateAttempt) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := ledger.Record(ctx, result("a3", "quiz-2", alice, 1)); err != nil {
		t.Fatalf("other quiz should be allowed: %v", err)
	}

	exists, _ := ledger.Exists(ctx, "quiz-1", alice)
	if !exists {
		t.Fatalf("expected existing entry")
	}
	byQuiz, _ := ledger.QueryByQuiz(ctx, "quiz-1")
	if len(byQuiz) != 1 || byQuiz[0].Score != 3 {
		t.Fatalf("unexpected quiz results %+v", byQuiz)
	}
	mine, _ := ledger.QueryByIdentity(ctx, alice)
	if len(mine) != 2 {
		t.Fatalf("expected 2 results for alice, got %d", len(mine))
	}
	found, err := ledger.Find(ctx, "a3")
	if err != nil || found.QuizID != "quiz-2" {
		t.Fatalf("find: %+v %v", found, err)
	}
	if _, err := ledger.Find(ctx, "a2"); !errors.Is(err, domain.ErrResultNotFound) {
		t.Fatalf("expected result not found, got %v", err)
	}
}

func TestLedgerConcurrentRecordSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger()
	bob := domain.Identity{Name: "Bob", RegistrationID: "R2"}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		dups int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := ledger.Record(ctx, result(fmt.Sprintf("a%d", i), "quiz-1", bob, float64(i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				oks++
			case errors.Is(err, domain.ErrDuplicateAttempt):
				dups++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}(i)
	}
	wg.Wait()
	if oks != 1 || dups != 31 {
		t.Fatalf("expected exactly one success, got %d ok and %d duplicates", oks, dups)
	}
	all, _ := ledger.All(ctx)
	if len(all) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(all))
	}
}

func result(attemptID, quizID string, identity domain.Identity, score float64) domain.Result {
	return domain.Result{
		AttemptID:         attemptID,
		QuizID:            quizID,
		Identity:          identity,
		Score:             score,
		TotalQuestions:    4,
		SubmittedAt:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		RawAnswers:        map[int]string{0: "x"},
		CorrectByQuestion: map[int]bool{0: true},
	}
}
