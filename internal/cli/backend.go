package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/llm"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
	redisinfra "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/infra/sqlite"
)

// backend holds the storage adapters chosen from config and the functions
// that release them.
type backend struct {
	quizzes  app.QuizStore
	cache    app.QuizRepository
	attempts app.AttemptStore
	ledger   app.Ledger
	closers  []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackend picks storage in order of durability: Postgres, then SQLite,
// then memory. Redis, when configured, fronts quiz reads, keeps in-flight
// attempts, and holds the ledger if no database is set.
func openBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (*backend, error) {
	b := &backend{}

	var quizzes interface {
		app.QuizStore
		memory.QuizLoader
	}
	var attempts app.AttemptStore

	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrations(ctx, cfg, log); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		quizzes = postgres.NewQuizStore(pool)
		b.ledger = postgres.NewLedger(pool)
		log.Info().Msg("using postgres storage")
	case cfg.SQLite.Path != "":
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		quizzes = store
		attempts = store
		b.ledger = store
		log.Info().Str("path", cfg.SQLite.Path).Msg("using sqlite storage")
	default:
		quizzes = memory.NewQuizStore()
		log.Warn().Msg("no database configured, quizzes live in memory")
	}
	b.quizzes = quizzes

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			b.Close()
			_ = client.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })

		attemptTTL := config.TTLDuration(cfg.Attempt.TTL, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
		b.cache = redisinfra.NewQuizRepository(client, quizzes, quizTTL)
		attempts = redisinfra.NewAttemptStore(client, attemptTTL)
		if b.ledger == nil {
			b.ledger = redisinfra.NewLedger(client)
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis for quiz cache and attempts")
	} else {
		b.cache = memory.NewQuizRepository(quizzes, quizTTL)
	}

	if attempts == nil {
		attempts = memory.NewAttemptStore()
	}
	b.attempts = attempts
	if b.ledger == nil {
		b.ledger = memory.NewLedger()
	}
	return b, nil
}

// newService builds the quiz service over b, attaching the question
// generator when an LLM endpoint or key is configured.
func newService(cfg config.Config, b *backend, log zerolog.Logger) *app.QuizService {
	opts := []app.Option{
		app.WithLogger(log),
		app.WithShuffle(cfg.ShuffleEnabled()),
	}
	if cfg.LLM.APIKey != "" || cfg.LLM.BaseURL != "" {
		model := cfg.LLM.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		opts = append(opts, app.WithGenerator(llm.New(cfg.LLM.BaseURL, cfg.LLM.APIKey, model, log)))
	}
	return app.NewQuizService(b.quizzes, b.cache, b.attempts, b.ledger, opts...)
}
