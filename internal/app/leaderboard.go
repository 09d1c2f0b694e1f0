package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-attempt-service/internal/domain"
)

// RankResults orders results by score desc, then earliest submission, then
// name, and numbers the ranks from 1.
func RankResults(quizID string, results []domain.Result, now time.Time) domain.Leaderboard {
	sorted := append([]domain.Result(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if !sorted[i].SubmittedAt.Equal(sorted[j].SubmittedAt) {
			return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt)
		}
		return sorted[i].Identity.Name < sorted[j].Identity.Name
	})

	entries := make([]domain.LeaderboardEntry, 0, len(sorted))
	for i, r := range sorted {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:           i + 1,
			Name:           r.Identity.Name,
			RegistrationID: r.Identity.RegistrationID,
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			SubmittedAt:    r.SubmittedAt,
		})
	}
	return domain.Leaderboard{QuizID: quizID, Entries: entries, UpdatedAt: now}
}

// ComputeStats aggregates scores and per-question correctness. The correct
// rate is indexed by question id; ids a result does not cover are skipped.
func ComputeStats(quizID string, results []domain.Result) domain.QuizStats {
	stats := domain.QuizStats{QuizID: quizID, Attempts: len(results), QuestionCorrectRate: []float64{}}
	if len(results) == 0 {
		return stats
	}

	width := 0
	for _, r := range results {
		if r.TotalQuestions > width {
			width = r.TotalQuestions
		}
	}
	correct := make([]int, width)
	seen := make([]int, width)

	var sum float64
	stats.MaxScore = results[0].Score
	stats.MinScore = results[0].Score
	for _, r := range results {
		sum += r.Score
		if r.Score > stats.MaxScore {
			stats.MaxScore = r.Score
		}
		if r.Score < stats.MinScore {
			stats.MinScore = r.Score
		}
		for id, ok := range r.CorrectByQuestion {
			if id < 0 || id >= width {
				continue
			}
			seen[id]++
			if ok {
				correct[id]++
			}
		}
	}
	stats.MeanScore = sum / float64(len(results))

	stats.QuestionCorrectRate = make([]float64, width)
	for i := range stats.QuestionCorrectRate {
		if seen[i] > 0 {
			stats.QuestionCorrectRate[i] = float64(correct[i]) / float64(seen[i])
		}
	}
	return stats
}

// Leaderboard ranks every result recorded for quizID.
func (s *QuizService) Leaderboard(ctx context.Context, quizID string) (domain.Leaderboard, error) {
	results, err := s.ledger.QueryByQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return RankResults(quizID, results, s.engine.now()), nil
}

// Stats summarizes the results recorded for quizID.
func (s *QuizService) Stats(ctx context.Context, quizID string) (domain.QuizStats, error) {
	results, err := s.ledger.QueryByQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizStats{}, err
	}
	return ComputeStats(quizID, results), nil
}

// SubscribeLeaderboard returns a channel that receives the current leaderboard
// and then every update caused by a submission. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *QuizService) SubscribeLeaderboard(ctx context.Context, quizID string) (<-chan domain.Leaderboard, func(), error) {
	lb, err := s.Leaderboard(ctx, quizID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.boards.subscribe(quizID, lb)
	return ch, cancel, nil
}

func (s *QuizService) publishLeaderboard(ctx context.Context, quizID string) {
	if !s.boards.watched(quizID) {
		return
	}
	lb, err := s.Leaderboard(ctx, quizID)
	if err != nil {
		s.log.Warn().Err(err).Str("quiz_id", quizID).Msg("leaderboard refresh failed")
		return
	}
	s.boards.broadcast(quizID, lb)
}

// boardHub fans leaderboard snapshots out to subscribers per quiz.
type boardHub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Leaderboard]struct{}
}

func newBoardHub() *boardHub {
	return &boardHub{subs: make(map[string]map[chan domain.Leaderboard]struct{})}
}

func (h *boardHub) subscribe(quizID string, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	if h.subs[quizID] == nil {
		h.subs[quizID] = make(map[chan domain.Leaderboard]struct{})
	}
	h.subs[quizID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		set := h.subs[quizID]
		if _, ok := set[ch]; !ok {
			return
		}
		delete(set, ch)
		close(ch)
		if len(set) == 0 {
			delete(h.subs, quizID)
		}
	}
	return ch, cancel
}

func (h *boardHub) watched(quizID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[quizID]) > 0
}

func (h *boardHub) broadcast(quizID string, lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[quizID] {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: replace its oldest pending snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
