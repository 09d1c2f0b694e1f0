package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-attempt-service/internal/domain"
)

// recordScript claims the (quiz, identity) slot and appends the result in a
// single server-side step.
//
// KEYS: identity claim, result payload, quiz index, identity index, global index
// ARGV: attempt id, result json
var recordScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
redis.call('RPUSH', KEYS[3], ARGV[1])
redis.call('RPUSH', KEYS[4], ARGV[1])
redis.call('RPUSH', KEYS[5], ARGV[1])
return 1
`)

// Ledger stores submitted results in Redis. Entries never expire.
type Ledger struct {
	client *redis.Client
}

func NewLedger(client *redis.Client) *Ledger {
	return &Ledger{client: client}
}

func (l *Ledger) Record(ctx context.Context, result domain.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	keys := []string{
		l.claimKey(result.QuizID, result.Identity),
		l.resultKey(result.AttemptID),
		l.quizIndex(result.QuizID),
		l.identityIndex(result.Identity),
		l.allIndex(),
	}
	ok, err := recordScript.Run(ctx, l.client, keys, result.AttemptID, payload).Int()
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	if ok == 0 {
		return domain.ErrDuplicateAttempt
	}
	return nil
}

func (l *Ledger) Exists(ctx context.Context, quizID string, identity domain.Identity) (bool, error) {
	n, err := l.client.Exists(ctx, l.claimKey(quizID, identity)).Result()
	if err != nil {
		return false, fmt.Errorf("check ledger: %w", err)
	}
	return n > 0, nil
}

func (l *Ledger) Find(ctx context.Context, attemptID string) (domain.Result, error) {
	payload, err := l.client.Get(ctx, l.resultKey(attemptID)).Bytes()
	if isMiss(err) {
		return domain.Result{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Result{}, fmt.Errorf("load result: %w", err)
	}
	var result domain.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}

func (l *Ledger) QueryByQuiz(ctx context.Context, quizID string) ([]domain.Result, error) {
	return l.list(ctx, l.quizIndex(quizID))
}

func (l *Ledger) QueryByIdentity(ctx context.Context, identity domain.Identity) ([]domain.Result, error) {
	return l.list(ctx, l.identityIndex(identity))
}

func (l *Ledger) All(ctx context.Context) ([]domain.Result, error) {
	return l.list(ctx, l.allIndex())
}

func (l *Ledger) list(ctx context.Context, index string) ([]domain.Result, error) {
	ids, err := l.client.LRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read ledger index: %w", err)
	}
	results := make([]domain.Result, 0, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = l.resultKey(id)
	}
	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read ledger entries: %w", err)
	}
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var r domain.Result
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (l *Ledger) claimKey(quizID string, identity domain.Identity) string {
	return "ledger:identity:" + quizID + ":" + identity.Key()
}

func (l *Ledger) resultKey(attemptID string) string {
	return "ledger:result:" + attemptID
}

func (l *Ledger) quizIndex(quizID string) string {
	return "ledger:quiz:" + quizID
}

func (l *Ledger) identityIndex(identity domain.Identity) string {
	return "ledger:who:" + identity.Key()
}

func (l *Ledger) allIndex() string {
	return "ledger:all"
}
