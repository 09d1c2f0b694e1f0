package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/domain"
)

// ErrGeneratorUnavailable is returned when question generation is requested
// but no generator is configured.
var ErrGeneratorUnavailable = errors.New("question generator not configured")

// QuizService contains the core quiz use cases: quiz administration for the
// admin and the attempt lifecycle for students.
type QuizService struct {
	quizzes   QuizStore
	cache     QuizRepository
	attempts  AttemptStore
	ledger    Ledger
	engine    *Engine
	generator Generator
	log       zerolog.Logger
	shuffle   bool
	locks     *keyedMutex
	boards    *boardHub
}

type serviceConfig struct {
	generator  Generator
	logger     zerolog.Logger
	shuffle    bool
	engineOpts []EngineOption
}

// Option customizes a QuizService.
type Option func(*serviceConfig)

// WithGenerator enables GenerateQuestions.
func WithGenerator(g Generator) Option {
	return func(c *serviceConfig) { c.generator = g }
}

// WithLogger sets the service logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *serviceConfig) { c.logger = l }
}

// WithShuffle controls whether attempts get shuffled snapshots.
func WithShuffle(on bool) Option {
	return func(c *serviceConfig) { c.shuffle = on }
}

// WithEngineOptions forwards options to the attempt engine (clock, ids, rand).
func WithEngineOptions(opts ...EngineOption) Option {
	return func(c *serviceConfig) { c.engineOpts = append(c.engineOpts, opts...) }
}

// NewQuizService wires the use cases. A nil cache reads quizzes straight from the store.
func NewQuizService(quizzes QuizStore, cache QuizRepository, attempts AttemptStore, ledger Ledger, opts ...Option) *QuizService {
	cfg := serviceConfig{logger: zerolog.Nop(), shuffle: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cache == nil {
		cache = storeRepository{store: quizzes}
	}
	return &QuizService{
		quizzes:   quizzes,
		cache:     cache,
		attempts:  attempts,
		ledger:    ledger,
		engine:    NewEngine(ledger, cfg.engineOpts...),
		generator: cfg.generator,
		log:       cfg.logger.With().Str("component", "quiz_service").Logger(),
		shuffle:   cfg.shuffle,
		locks:     newKeyedMutex(),
		boards:    newBoardHub(),
	}
}

// Engine exposes the attempt engine, e.g. for remaining-time checks.
func (s *QuizService) Engine() *Engine {
	return s.engine
}

// CreateQuiz allocates and stores an empty quiz.
func (s *QuizService) CreateQuiz(ctx context.Context, name string, timeLimitMinutes int, policy domain.ScoringPolicy) (domain.Quiz, error) {
	quiz, err := domain.NewQuiz(s.engine.newID(), name, timeLimitMinutes, s.engine.now())
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz, err = domain.WithScoring(quiz, policy); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	s.log.Info().Str("quiz_id", quiz.ID).Str("name", quiz.Name).Msg("quiz created")
	return quiz, nil
}

// GetQuiz returns the current definition of a quiz.
func (s *QuizService) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return s.cache.GetQuiz(ctx, quizID)
}

// ListQuizzes returns quizzes whose name contains search (case-insensitive),
// ordered by creation time.
func (s *QuizService) ListQuizzes(ctx context.Context, search string) ([]domain.Quiz, error) {
	all, err := s.quizzes.ListQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	search = strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Quiz, 0, len(all))
	for _, q := range all {
		if search == "" || strings.Contains(strings.ToLower(q.Name), search) {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteQuiz removes a quiz definition. Attempts already started keep their snapshot.
func (s *QuizService) DeleteQuiz(ctx context.Context, quizID string) error {
	unlock := s.locks.Lock("quiz:" + quizID)
	defer unlock()
	if err := s.quizzes.DeleteQuiz(ctx, quizID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, quizID)
	s.log.Info().Str("quiz_id", quizID).Msg("quiz deleted")
	return nil
}

// AddQuestion normalizes question and appends it to the quiz.
func (s *QuizService) AddQuestion(ctx context.Context, quizID string, question domain.Question) (domain.Quiz, error) {
	unlock := s.locks.Lock("quiz:" + quizID)
	defer unlock()

	quiz, err := s.quizzes.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz, err = domain.AddQuestion(quiz, question); err != nil {
		return domain.Quiz{}, err
	}
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("save quiz: %w", err)
	}
	s.cache.Invalidate(ctx, quizID)
	return quiz, nil
}

// GenerateQuestions asks the generator for questions about text and appends
// every item that survives normalization. It returns the updated quiz and the
// number of questions added.
func (s *QuizService) GenerateQuestions(ctx context.Context, quizID, text string, count int, difficulty string) (domain.Quiz, int, error) {
	if s.generator == nil {
		return domain.Quiz{}, 0, ErrGeneratorUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return domain.Quiz{}, 0, domain.Invalidf("source text is required")
	}
	if count <= 0 {
		return domain.Quiz{}, 0, domain.Invalidf("question count must be positive, got %d", count)
	}
	if _, err := s.quizzes.LoadQuiz(ctx, quizID); err != nil {
		return domain.Quiz{}, 0, err
	}

	items, err := s.generator.Generate(ctx, text, count, difficulty)
	if err != nil {
		return domain.Quiz{}, 0, fmt.Errorf("generate questions: %w", err)
	}

	unlock := s.locks.Lock("quiz:" + quizID)
	defer unlock()

	quiz, err := s.quizzes.LoadQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, 0, err
	}
	added := 0
	for i, item := range items {
		qt, err := domain.ParseQuestionType(item.Type)
		if err == nil {
			var next domain.Quiz
			next, err = domain.AddQuestion(quiz, domain.Question{
				Type:            qt,
				Prompt:          item.Prompt,
				Options:         item.Options,
				CanonicalAnswer: item.Answer,
				Explanation:     item.Explanation,
			})
			if err == nil {
				quiz = next
				added++
				continue
			}
		}
		s.log.Warn().Err(err).Int("item", i).Str("quiz_id", quizID).Msg("skipping generated question")
	}
	if added == 0 {
		return quiz, 0, nil
	}
	if err := s.quizzes.SaveQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, 0, fmt.Errorf("save quiz: %w", err)
	}
	s.cache.Invalidate(ctx, quizID)
	s.log.Info().Str("quiz_id", quizID).Int("added", added).Int("generated", len(items)).Msg("generated questions added")
	return quiz, added, nil
}

// QuestionBank lists every question of every quiz.
func (s *QuizService) QuestionBank(ctx context.Context) ([]domain.BankEntry, error) {
	quizzes, err := s.ListQuizzes(ctx, "")
	if err != nil {
		return nil, err
	}
	var bank []domain.BankEntry
	for _, quiz := range quizzes {
		for _, q := range quiz.Questions {
			bank = append(bank, domain.BankEntry{
				QuizID:   quiz.ID,
				QuizName: quiz.Name,
				Type:     q.Type,
				Prompt:   q.Prompt,
				Answer:   q.CanonicalAnswer,
			})
		}
	}
	return bank, nil
}

// StartAttempt opens an attempt for identity and persists it.
func (s *QuizService) StartAttempt(ctx context.Context, quizID string, identity domain.Identity) (domain.Attempt, error) {
	quiz, err := s.cache.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt, err := s.engine.Start(ctx, quiz, identity, s.shuffle)
	if err != nil {
		return domain.Attempt{}, err
	}
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	s.log.Info().
		Str("attempt_id", attempt.ID).
		Str("quiz_id", quizID).
		Str("registration_id", attempt.Identity.RegistrationID).
		Msg("attempt started")
	return attempt, nil
}

// GetAttempt loads a persisted attempt.
func (s *QuizService) GetAttempt(ctx context.Context, attemptID string) (domain.Attempt, error) {
	return s.attempts.LoadAttempt(ctx, attemptID)
}

// Remaining reports the seconds left on an attempt.
func (s *QuizService) Remaining(ctx context.Context, attemptID string) (int, error) {
	attempt, err := s.attempts.LoadAttempt(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	return s.engine.RemainingSeconds(attempt), nil
}

// Answer records a response for the question at index.
func (s *QuizService) Answer(ctx context.Context, attemptID string, index int, response string) (domain.Attempt, error) {
	return s.mutate(ctx, attemptID, func(a domain.Attempt) (domain.Attempt, error) {
		return s.engine.RecordAnswer(a, index, response)
	})
}

// Move shifts the attempt cursor by delta.
func (s *QuizService) Move(ctx context.Context, attemptID string, delta int) (domain.Attempt, error) {
	return s.mutate(ctx, attemptID, func(a domain.Attempt) (domain.Attempt, error) {
		return s.engine.Move(a, delta)
	})
}

func (s *QuizService) mutate(ctx context.Context, attemptID string, fn func(domain.Attempt) (domain.Attempt, error)) (domain.Attempt, error) {
	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.attempts.LoadAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, err
	}
	updated, err := fn(attempt)
	if err != nil {
		return attempt, err
	}
	if err := s.attempts.SaveAttempt(ctx, updated); err != nil {
		return attempt, fmt.Errorf("save attempt: %w", err)
	}
	return updated, nil
}

// Submit scores the attempt and records the result. A repeated submit returns
// ErrAlreadySubmitted together with the recorded result.
func (s *QuizService) Submit(ctx context.Context, attemptID string) (domain.Attempt, domain.Result, error) {
	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.attempts.LoadAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, domain.Result{}, err
	}
	return s.submitLocked(ctx, attempt)
}

// SubmitIfExpired forces the submission of an in-progress attempt whose time
// is up. It reports whether a submission happened.
func (s *QuizService) SubmitIfExpired(ctx context.Context, attemptID string) (domain.Attempt, *domain.Result, error) {
	unlock := s.locks.Lock(attemptID)
	defer unlock()

	attempt, err := s.attempts.LoadAttempt(ctx, attemptID)
	if err != nil {
		return domain.Attempt{}, nil, err
	}
	if attempt.State != domain.InProgress || !s.engine.Expired(attempt) {
		return attempt, nil, nil
	}
	submitted, result, err := s.submitLocked(ctx, attempt)
	if err != nil {
		return submitted, nil, err
	}
	return submitted, &result, nil
}

func (s *QuizService) submitLocked(ctx context.Context, attempt domain.Attempt) (domain.Attempt, domain.Result, error) {
	if attempt.State == domain.Submitted {
		prior, err := s.ledger.Find(ctx, attempt.ID)
		if err != nil {
			return attempt, domain.Result{}, domain.ErrAlreadySubmitted
		}
		return attempt, prior, domain.ErrAlreadySubmitted
	}

	submitted, result, err := s.engine.Submit(ctx, attempt)
	if errors.Is(err, domain.ErrDuplicateAttempt) {
		// The ledger may already hold this very attempt when a previous
		// submit recorded the result but failed to persist the attempt.
		if prior, ferr := s.ledger.Find(ctx, attempt.ID); ferr == nil {
			terminal := attempt
			terminal.State = domain.Submitted
			terminal.SubmittedAt = &prior.SubmittedAt
			if serr := s.attempts.SaveAttempt(ctx, terminal); serr != nil {
				s.log.Error().Err(serr).Str("attempt_id", attempt.ID).Msg("persist submitted attempt")
			}
			return terminal, prior, domain.ErrAlreadySubmitted
		}
		s.log.Warn().
			Str("attempt_id", attempt.ID).
			Str("quiz_id", attempt.QuizID).
			Str("registration_id", attempt.Identity.RegistrationID).
			Msg("duplicate attempt rejected by ledger")
		return attempt, domain.Result{}, err
	}
	if err != nil {
		return attempt, domain.Result{}, err
	}

	if err := s.attempts.SaveAttempt(ctx, submitted); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("persist submitted attempt")
	}
	s.log.Info().
		Str("attempt_id", result.AttemptID).
		Str("quiz_id", result.QuizID).
		Float64("score", result.Score).
		Int("total", result.TotalQuestions).
		Bool("forced", result.Forced).
		Msg("attempt submitted")
	s.publishLeaderboard(ctx, result.QuizID)
	return submitted, result, nil
}

// Result returns the ledger entry of a submitted attempt.
func (s *QuizService) Result(ctx context.Context, attemptID string) (domain.Result, error) {
	return s.ledger.Find(ctx, attemptID)
}

// ResultsFor returns every result recorded for identity.
func (s *QuizService) ResultsFor(ctx context.Context, identity domain.Identity) ([]domain.Result, error) {
	if identity.Blank() {
		return nil, domain.Invalidf("student name and registration id are required")
	}
	return s.ledger.QueryByIdentity(ctx, identity)
}

// Results returns the results of one quiz, or all results when quizID is empty.
func (s *QuizService) Results(ctx context.Context, quizID string) ([]domain.Result, error) {
	if quizID == "" {
		return s.ledger.All(ctx)
	}
	return s.ledger.QueryByQuiz(ctx, quizID)
}

// storeRepository serves quizzes straight from the store without caching.
type storeRepository struct {
	store QuizStore
}

func (r storeRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return r.store.LoadQuiz(ctx, quizID)
}

func (r storeRepository) Invalidate(context.Context, string) {}
