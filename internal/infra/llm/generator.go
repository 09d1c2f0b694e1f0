package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"quiz-attempt-service/internal/domain"
)

// ErrEmptyResponse is returned when the model answers without usable content.
var ErrEmptyResponse = errors.New("llm returned no questions")

// Generator drafts quiz questions from free text through an OpenAI-compatible API.
type Generator struct {
	api   *openai.Client
	model string
	log   zerolog.Logger
}

// New creates a generator. An empty baseURL targets the OpenAI API.
func New(baseURL, apiKey, modelName string, log zerolog.Logger) *Generator {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Generator{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
		log:   log.With().Str("component", "llm").Logger(),
	}
}

// Generate asks the model for up to count questions about text. The returned
// records are unvalidated; callers normalize them before use.
func (g *Generator) Generate(ctx context.Context, text string, count int, difficulty string) ([]domain.GeneratedQuestion, error) {
	resp, err := g.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(count, difficulty)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	raw := resp.Choices[0].Message.Content
	g.log.Debug().Str("raw", raw).Msg("LLM response")

	questions, err := parseQuestions(raw)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrEmptyResponse
	}
	if count > 0 && len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

func buildSystemPrompt(count int, difficulty string) string {
	if difficulty == "" {
		difficulty = "Medium"
	}
	var sb strings.Builder
	sb.WriteString("You write quiz questions from the text the user provides.\n\n")
	sb.WriteString(fmt.Sprintf("Write %d questions mixing multiple-choice (MCQ), True/False (TF), ", count))
	sb.WriteString("Short Answer (Short) and Fill-in-the-Blank (Fill) questions.\n")
	sb.WriteString(fmt.Sprintf("Every question must have difficulty: %s.\n", difficulty))
	sb.WriteString("MCQ questions have exactly four options and the answer must be one of them.\n")
	sb.WriteString("TF answers are True or False.\n\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"questions": [{"type": "MCQ|TF|Short|Fill", "question": "...", "options": ["A", "B", "C", "D"], "answer": "...", "description": "..."}]}`)
	sb.WriteString("\n")
	return sb.String()
}

// parseQuestions accepts {"questions": [...]} or a bare array, optionally
// wrapped in a markdown code fence.
func parseQuestions(raw string) ([]domain.GeneratedQuestion, error) {
	body := stripFence(raw)

	var wrapped struct {
		Questions []domain.GeneratedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(body), &wrapped); err == nil {
		return wrapped.Questions, nil
	}

	var list []domain.GeneratedQuestion
	if err := json.Unmarshal([]byte(body), &list); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return list, nil
}

func stripFence(raw string) string {
	body := strings.TrimSpace(raw)
	if !strings.HasPrefix(body, "```") {
		return body
	}
	body = strings.TrimPrefix(body, "```")
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
