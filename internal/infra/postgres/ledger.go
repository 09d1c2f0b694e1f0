package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-attempt-service/internal/domain"
)

// Ledger appends results to the results table. The UNIQUE (quiz_id,
// identity_key) constraint makes the duplicate check and the insert atomic.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Record(ctx context.Context, result domain.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO results
			(attempt_id, quiz_id, identity_key, student_name, registration_id, score, total_questions, submitted_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING`,
		result.AttemptID, result.QuizID, result.Identity.Key(),
		result.Identity.Name, result.Identity.RegistrationID,
		result.Score, result.TotalQuestions, result.SubmittedAt, raw)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateAttempt
	}
	return nil
}

func (l *Ledger) Exists(ctx context.Context, quizID string, identity domain.Identity) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM results WHERE quiz_id=$1 AND identity_key=$2)`,
		quizID, identity.Key()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return exists, nil
}

func (l *Ledger) Find(ctx context.Context, attemptID string) (domain.Result, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM results WHERE attempt_id=$1`, attemptID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}
	var result domain.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return domain.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return result, nil
}

func (l *Ledger) QueryByQuiz(ctx context.Context, quizID string) ([]domain.Result, error) {
	return l.query(ctx, `SELECT data FROM results WHERE quiz_id=$1 ORDER BY submitted_at, attempt_id`, quizID)
}

func (l *Ledger) QueryByIdentity(ctx context.Context, identity domain.Identity) ([]domain.Result, error) {
	return l.query(ctx, `SELECT data FROM results WHERE identity_key=$1 ORDER BY submitted_at, attempt_id`, identity.Key())
}

func (l *Ledger) All(ctx context.Context) ([]domain.Result, error) {
	return l.query(ctx, `SELECT data FROM results ORDER BY submitted_at, attempt_id`)
}

func (l *Ledger) query(ctx context.Context, sql string, args ...interface{}) ([]domain.Result, error) {
	rows, err := l.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []domain.Result{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var r domain.Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
