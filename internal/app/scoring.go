package app

import "quiz-attempt-service/internal/domain"

// Score grades answers against the snapshot questions. A missing answer counts
// as an empty, incorrect response. The total is not floored at zero.
func Score(questions []domain.Question, answers map[int]string, policy domain.ScoringPolicy) domain.ScoreCard {
	card := domain.ScoreCard{
		TotalQuestions: len(questions),
		Outcomes:       make([]domain.QuestionOutcome, 0, len(questions)),
	}

	streak := 0
	for i, q := range questions {
		response := answers[i]
		correct := domain.IsCorrectWith(q, response, policy.FreeText)

		var points float64
		if correct {
			points = awardFor(policy.Mode, streak)
			streak++
			card.Correct++
		} else {
			points = -policy.NegativeMarkPerWrong
			streak = 0
		}
		card.Score += points
		card.Outcomes = append(card.Outcomes, domain.QuestionOutcome{
			Index:      i,
			QuestionID: q.ID,
			Response:   response,
			Correct:    correct,
			Points:     points,
		})
	}
	return card
}

func awardFor(mode domain.ScoringMode, streak int) float64 {
	if mode == domain.ScoringStreak {
		return float64(10 + 2*streak)
	}
	return 1
}
