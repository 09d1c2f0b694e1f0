package memory

import (
	"context"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// Ledger is an append-only, mutex-guarded result log. The duplicate check and
// the append happen under the same lock.
type Ledger struct {
	mu        sync.RWMutex
	results   []domain.Result
	byAttempt map[string]int
	byKey     map[string]int
}

func NewLedger() *Ledger {
	return &Ledger{
		byAttempt: make(map[string]int),
		byKey:     make(map[string]int),
	}
}

func (l *Ledger) Record(_ context.Context, result domain.Result) error {
	key := ledgerKey(result.QuizID, result.Identity)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byKey[key]; ok {
		return domain.ErrDuplicateAttempt
	}
	if _, ok := l.byAttempt[result.AttemptID]; ok {
		return domain.ErrDuplicateAttempt
	}
	l.results = append(l.results, cloneResult(result))
	idx := len(l.results) - 1
	l.byKey[key] = idx
	l.byAttempt[result.AttemptID] = idx
	return nil
}

func (l *Ledger) Exists(_ context.Context, quizID string, identity domain.Identity) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byKey[ledgerKey(quizID, identity)]
	return ok, nil
}

func (l *Ledger) Find(_ context.Context, attemptID string) (domain.Result, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byAttempt[attemptID]
	if !ok {
		return domain.Result{}, domain.ErrResultNotFound
	}
	return cloneResult(l.results[idx]), nil
}

func (l *Ledger) QueryByQuiz(_ context.Context, quizID string) ([]domain.Result, error) {
	return l.filter(func(r domain.Result) bool { return r.QuizID == quizID }), nil
}

func (l *Ledger) QueryByIdentity(_ context.Context, identity domain.Identity) ([]domain.Result, error) {
	key := identity.Key()
	return l.filter(func(r domain.Result) bool { return r.Identity.Key() == key }), nil
}

func (l *Ledger) All(_ context.Context) ([]domain.Result, error) {
	return l.filter(func(domain.Result) bool { return true }), nil
}

func (l *Ledger) filter(keep func(domain.Result) bool) []domain.Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []domain.Result{}
	for _, r := range l.results {
		if keep(r) {
			out = append(out, cloneResult(r))
		}
	}
	return out
}

func ledgerKey(quizID string, identity domain.Identity) string {
	return quizID + "\x00" + identity.Key()
}

func cloneResult(r domain.Result) domain.Result {
	raw := make(map[int]string, len(r.RawAnswers))
	for k, v := range r.RawAnswers {
		raw[k] = v
	}
	r.RawAnswers = raw
	byQuestion := make(map[int]bool, len(r.CorrectByQuestion))
	for k, v := range r.CorrectByQuestion {
		byQuestion[k] = v
	}
	r.CorrectByQuestion = byQuestion
	return r
}
