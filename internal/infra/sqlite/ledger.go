package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"quiz-attempt-service/internal/domain"
)

// Record appends a result. The UNIQUE (quiz_id, identity_key) constraint
// turns a concurrent duplicate into a no-op insert.
func (s *Store) Record(ctx context.Context, result domain.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO results (attempt_id, quiz_id, identity_key, score, submitted_at, data)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`,
		result.AttemptID, result.QuizID, result.Identity.Key(), result.Score,
		result.SubmittedAt.UnixNano(), string(raw),
	)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	if n == 0 {
		return domain.ErrDuplicateAttempt
	}
	return nil
}

// Exists reports whether identity already has a result for quizID.
func (s *Store) Exists(ctx context.Context, quizID string, identity domain.Identity) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM results WHERE quiz_id = ? AND identity_key = ?`,
		quizID, identity.Key()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return n > 0, nil
}

// Find returns the result recorded for attemptID.
func (s *Store) Find(ctx context.Context, attemptID string) (domain.Result, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM results WHERE attempt_id = ?`, attemptID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}
	var r domain.Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return domain.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return r, nil
}

func (s *Store) QueryByQuiz(ctx context.Context, quizID string) ([]domain.Result, error) {
	return s.results(ctx, `SELECT data FROM results WHERE quiz_id = ? ORDER BY submitted_at, attempt_id`, quizID)
}

func (s *Store) QueryByIdentity(ctx context.Context, identity domain.Identity) ([]domain.Result, error) {
	return s.results(ctx, `SELECT data FROM results WHERE identity_key = ? ORDER BY submitted_at, attempt_id`, identity.Key())
}

func (s *Store) All(ctx context.Context) ([]domain.Result, error) {
	return s.results(ctx, `SELECT data FROM results ORDER BY submitted_at, attempt_id`)
}

func (s *Store) results(ctx context.Context, query string, args ...any) ([]domain.Result, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []domain.Result{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var r domain.Result
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
