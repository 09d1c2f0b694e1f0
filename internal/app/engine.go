package app

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-attempt-service/internal/domain"
)

// Engine drives the attempt state machine. It holds no attempt state of its
// own: every operation takes an attempt value and returns an updated copy,
// leaving the input untouched on failure.
type Engine struct {
	ledger Ledger
	now    func() time.Time
	newID  func() string

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock injects the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator injects the attempt id generator.
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) { e.newID = newID }
}

// WithRand injects the source used for shuffling snapshots.
func WithRand(rnd *rand.Rand) EngineOption {
	return func(e *Engine) { e.rnd = rnd }
}

func NewEngine(ledger Ledger, opts ...EngineOption) *Engine {
	e := &Engine{
		ledger: ledger,
		now:    time.Now,
		newID:  uuid.NewString,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start opens a new attempt for identity on quiz. The ledger check here is an
// early rejection; Ledger.Record on submit is the authoritative guard.
func (e *Engine) Start(ctx context.Context, quiz domain.Quiz, identity domain.Identity, shuffle bool) (domain.Attempt, error) {
	if len(quiz.Questions) == 0 {
		return domain.Attempt{}, domain.ErrEmptyQuiz
	}
	if identity.Blank() {
		return domain.Attempt{}, domain.Invalidf("student name and registration id are required")
	}
	if quiz.TimeLimitMinutes <= 0 {
		return domain.Attempt{}, domain.Invalidf("quiz %s has no time limit", quiz.ID)
	}
	identity = domain.Identity{
		Name:           strings.TrimSpace(identity.Name),
		RegistrationID: strings.TrimSpace(identity.RegistrationID),
	}

	exists, err := e.ledger.Exists(ctx, quiz.ID, identity)
	if err != nil {
		return domain.Attempt{}, err
	}
	if exists {
		return domain.Attempt{}, domain.ErrDuplicateAttempt
	}

	e.rndMu.Lock()
	questions := Snapshot(quiz, shuffle, e.rnd)
	e.rndMu.Unlock()

	scoring := quiz.Scoring
	if scoring.Mode == "" {
		scoring = domain.DefaultScoring
	}

	return domain.Attempt{
		ID:               e.newID(),
		QuizID:           quiz.ID,
		QuizName:         quiz.Name,
		Identity:         identity,
		Questions:        questions,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		Scoring:          scoring,
		StartedAt:        e.now(),
		Answers:          map[int]string{},
		Cursor:           0,
		State:            domain.InProgress,
	}, nil
}

// RemainingSeconds reports the time left on the attempt at the engine clock.
func (e *Engine) RemainingSeconds(a domain.Attempt) int {
	return RemainingAt(a, e.now())
}

// RemainingAt is time_limit*60 minus the elapsed seconds, clamped at zero.
// Partial seconds round up so a fresh attempt never reports zero.
func RemainingAt(a domain.Attempt, now time.Time) int {
	limit := time.Duration(a.TimeLimitMinutes) * time.Minute
	if a.State == domain.NotStarted || a.StartedAt.IsZero() {
		return int(limit.Seconds())
	}
	left := limit - now.Sub(a.StartedAt)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// Expired reports whether the attempt has no time left.
func (e *Engine) Expired(a domain.Attempt) bool {
	return e.RemainingSeconds(a) == 0
}

// RecordAnswer stores response for the question at index, replacing any
// earlier response. Responses are not checked against the options.
func (e *Engine) RecordAnswer(a domain.Attempt, index int, response string) (domain.Attempt, error) {
	if err := requireInProgress(a); err != nil {
		return a, err
	}
	if index < 0 || index >= len(a.Questions) {
		return a, domain.Invalidf("question index %d out of range [0,%d)", index, len(a.Questions))
	}
	if e.Expired(a) {
		return a, domain.ErrTimeExpired
	}

	answers := make(map[int]string, len(a.Answers)+1)
	for k, v := range a.Answers {
		answers[k] = v
	}
	answers[index] = response
	a.Answers = answers
	return a, nil
}

// Move shifts the cursor by delta, clamped to the question range.
func (e *Engine) Move(a domain.Attempt, delta int) (domain.Attempt, error) {
	if err := requireInProgress(a); err != nil {
		return a, err
	}
	cursor := a.Cursor + delta
	if cursor < 0 {
		cursor = 0
	}
	if last := len(a.Questions) - 1; cursor > last {
		cursor = last
	}
	a.Cursor = cursor
	return a, nil
}

// Submit scores the attempt, appends the result to the ledger and returns the
// attempt in its terminal state. It may be called at any cursor position and
// after expiry; in the latter case the result is marked as forced.
func (e *Engine) Submit(ctx context.Context, a domain.Attempt) (domain.Attempt, domain.Result, error) {
	if err := requireInProgress(a); err != nil {
		return a, domain.Result{}, err
	}

	now := e.now()
	card := Score(a.Questions, a.Answers, a.Scoring)

	raw := make(map[int]string, len(a.Answers))
	for k, v := range a.Answers {
		raw[k] = v
	}
	byQuestion := make(map[int]bool, len(card.Outcomes))
	for _, o := range card.Outcomes {
		byQuestion[o.QuestionID] = o.Correct
	}

	result := domain.Result{
		AttemptID:         a.ID,
		QuizID:            a.QuizID,
		QuizName:          a.QuizName,
		Identity:          a.Identity,
		Score:             card.Score,
		Correct:           card.Correct,
		TotalQuestions:    card.TotalQuestions,
		SubmittedAt:       now,
		Forced:            RemainingAt(a, now) == 0,
		RawAnswers:        raw,
		CorrectByQuestion: byQuestion,
	}
	if err := e.ledger.Record(ctx, result); err != nil {
		return a, domain.Result{}, err
	}

	a.Answers = raw
	a.State = domain.Submitted
	a.SubmittedAt = &now
	return a, result, nil
}

func requireInProgress(a domain.Attempt) error {
	switch a.State {
	case domain.InProgress:
		return nil
	case domain.Submitted:
		return domain.ErrAlreadySubmitted
	default:
		return domain.Invalidf("attempt %s has not been started", a.ID)
	}
}
