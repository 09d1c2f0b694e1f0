package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// questionView is what a student sees: the canonical answer stays server-side.
type questionView struct {
	Index   int                 `json:"index"`
	Type    domain.QuestionType `json:"type"`
	Prompt  string              `json:"prompt"`
	Options []string            `json:"options,omitempty"`
}

type attemptView struct {
	AttemptID        string              `json:"attempt_id"`
	QuizID           string              `json:"quiz_id"`
	QuizName         string              `json:"quiz_name"`
	Identity         domain.Identity     `json:"identity"`
	State            domain.AttemptState `json:"state"`
	Cursor           int                 `json:"cursor"`
	TimeLimitMinutes int                 `json:"time_limit"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	StartedAt        time.Time           `json:"started_at"`
	SubmittedAt      *time.Time          `json:"submitted_at,omitempty"`
	Questions        []questionView      `json:"questions"`
	Answers          map[int]string      `json:"answers"`
}

func newAttemptView(a domain.Attempt, remaining int) attemptView {
	questions := make([]questionView, len(a.Questions))
	for i, q := range a.Questions {
		questions[i] = questionView{Index: i, Type: q.Type, Prompt: q.Prompt, Options: q.Options}
	}
	answers := a.Answers
	if answers == nil {
		answers = map[int]string{}
	}
	return attemptView{
		AttemptID:        a.ID,
		QuizID:           a.QuizID,
		QuizName:         a.QuizName,
		Identity:         a.Identity,
		State:            a.State,
		Cursor:           a.Cursor,
		TimeLimitMinutes: a.TimeLimitMinutes,
		RemainingSeconds: remaining,
		StartedAt:        a.StartedAt,
		SubmittedAt:      a.SubmittedAt,
		Questions:        questions,
		Answers:          answers,
	}
}

type quizSummary struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	TimeLimitMinutes int       `json:"time_limit"`
	QuestionCount    int       `json:"question_count"`
	CreatedAt        time.Time `json:"created_at"`
}

func newQuizSummary(q domain.Quiz) quizSummary {
	return quizSummary{
		ID:               q.ID,
		Name:             q.Name,
		TimeLimitMinutes: q.TimeLimitMinutes,
		QuestionCount:    len(q.Questions),
		CreatedAt:        q.CreatedAt,
	}
}

type createQuizRequest struct {
	Name             string  `json:"name" validate:"required,min=1,max=200"`
	TimeLimitMinutes int     `json:"time_limit" validate:"required,min=1,max=1440"`
	ScoringMode      string  `json:"scoring_mode" validate:"omitempty,oneof=standard streak"`
	NegativeMark     float64 `json:"negative_mark" validate:"min=0"`
	FreeText         string  `json:"free_text" validate:"omitempty,oneof=exact non_empty"`
}

type addQuestionRequest struct {
	Type        string   `json:"type"`
	Prompt      string   `json:"prompt" validate:"required"`
	Options     []string `json:"options" validate:"max=20"`
	Answer      string   `json:"answer" validate:"required"`
	Explanation string   `json:"explanation"`
}

type generateRequest struct {
	Text       string `json:"text" validate:"required"`
	Count      int    `json:"count" validate:"required,min=1,max=50"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=Easy Medium Hard easy medium hard"`
}

type generateResponse struct {
	Added int         `json:"added"`
	Quiz  domain.Quiz `json:"quiz"`
}

type startAttemptRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	RegistrationID string `json:"registration_id" validate:"required,max=100"`
}

type answerRequest struct {
	Response string `json:"response"`
}

type moveRequest struct {
	Delta int `json:"delta" validate:"min=-1000,max=1000"`
}

type submitResponse struct {
	Attempt attemptView   `json:"attempt"`
	Result  domain.Result `json:"result"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps an error to an HTTP status and a stable code for clients.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrDuplicateAttempt):
		return http.StatusConflict, "duplicate_attempt"
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return http.StatusConflict, "already_submitted"
	case errors.Is(err, domain.ErrTimeExpired):
		return http.StatusGone, "time_expired"
	case errors.Is(err, domain.ErrEmptyQuiz):
		return http.StatusUnprocessableEntity, "empty_quiz"
	case errors.Is(err, app.ErrGeneratorUnavailable):
		return http.StatusServiceUnavailable, "generator_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
