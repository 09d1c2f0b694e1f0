package app

import (
	"math/rand"

	"quiz-attempt-service/internal/domain"
)

// Snapshot copies the quiz questions for one attempt. With shuffle set, the
// question order and the option order of every multiple_choice question are
// permuted using rnd. The returned slice shares nothing with quiz.
func Snapshot(quiz domain.Quiz, shuffle bool, rnd *rand.Rand) []domain.Question {
	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.Options = append([]string(nil), q.Options...)
		questions[i] = q
	}
	if !shuffle || rnd == nil {
		return questions
	}

	rnd.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	for i := range questions {
		if questions[i].Type != domain.MultipleChoice {
			continue
		}
		opts := questions[i].Options
		rnd.Shuffle(len(opts), func(a, b int) {
			opts[a], opts[b] = opts[b], opts[a]
		})
	}
	return questions
}
