package domain

import (
	"strings"
	"time"
)

// QuestionType identifies how a question is presented and graded.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	FillBlank      QuestionType = "fill_blank"
)

// HasOptions reports whether the type is answered by picking an option.
func (t QuestionType) HasOptions() bool {
	return t == MultipleChoice || t == TrueFalse
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, ShortAnswer, FillBlank:
		return true
	}
	return false
}

// Question is a single quiz item. ID is its ordinal position in the quiz.
type Question struct {
	ID              int          `json:"id"`
	Type            QuestionType `json:"type"`
	Prompt          string       `json:"prompt"`
	Options         []string     `json:"options,omitempty"`
	CanonicalAnswer string       `json:"canonical_answer"`
	Explanation     string       `json:"explanation,omitempty"`
}

// ScoringMode selects how correct answers are rewarded.
type ScoringMode string

const (
	// ScoringStandard awards one point per correct answer.
	ScoringStandard ScoringMode = "standard"
	// ScoringStreak awards 10 + 2*streak per correct answer, where streak is
	// the number of consecutive correct answers immediately before it.
	ScoringStreak ScoringMode = "streak"
)

// FreeTextPolicy selects how short_answer and fill_blank responses are graded.
type FreeTextPolicy string

const (
	// FreeTextExact compares against the canonical answer.
	FreeTextExact FreeTextPolicy = "exact"
	// FreeTextNonEmpty accepts any non-blank response.
	FreeTextNonEmpty FreeTextPolicy = "non_empty"
)

// ScoringPolicy is frozen into every attempt at start time.
type ScoringPolicy struct {
	Mode                 ScoringMode    `json:"mode"`
	NegativeMarkPerWrong float64        `json:"negative_mark_per_wrong"`
	FreeText             FreeTextPolicy `json:"free_text"`
}

// Quiz is an admin-authored quiz definition.
type Quiz struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	TimeLimitMinutes int           `json:"time_limit"`
	Questions        []Question    `json:"questions"`
	Scoring          ScoringPolicy `json:"scoring"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Identity is a pre-authenticated student.
type Identity struct {
	Name           string `json:"name"`
	RegistrationID string `json:"registration_id"`
}

// Key is the canonical form used for duplicate-attempt detection.
func (i Identity) Key() string {
	return strings.ToLower(strings.TrimSpace(i.RegistrationID)) + "|" + strings.ToLower(strings.TrimSpace(i.Name))
}

// Blank reports whether either identity field is missing.
func (i Identity) Blank() bool {
	return strings.TrimSpace(i.Name) == "" || strings.TrimSpace(i.RegistrationID) == ""
}

// AttemptState is the lifecycle state of an attempt.
type AttemptState string

const (
	NotStarted AttemptState = "NOT_STARTED"
	InProgress AttemptState = "IN_PROGRESS"
	Submitted  AttemptState = "SUBMITTED"
)

// Attempt is one student's timed run through a quiz snapshot. It is a value:
// engine operations return an updated copy and never modify their input.
type Attempt struct {
	ID               string         `json:"attempt_id"`
	QuizID           string         `json:"quiz_id"`
	QuizName         string         `json:"quiz_name"`
	Identity         Identity       `json:"identity"`
	Questions        []Question     `json:"questions"`
	TimeLimitMinutes int            `json:"time_limit"`
	Scoring          ScoringPolicy  `json:"scoring"`
	StartedAt        time.Time      `json:"started_at"`
	Answers          map[int]string `json:"answers"`
	Cursor           int            `json:"cursor"`
	State            AttemptState   `json:"state"`
	SubmittedAt      *time.Time     `json:"submitted_at,omitempty"`
}

// QuestionOrder returns the ids of the presented questions in display order.
func (a Attempt) QuestionOrder() []int {
	order := make([]int, len(a.Questions))
	for i, q := range a.Questions {
		order[i] = q.ID
	}
	return order
}

// QuestionOutcome is the per-question part of a score.
type QuestionOutcome struct {
	Index      int     `json:"index"`
	QuestionID int     `json:"question_id"`
	Response   string  `json:"response"`
	Correct    bool    `json:"correct"`
	Points     float64 `json:"points"`
}

// ScoreCard is the output of the scoring engine.
type ScoreCard struct {
	Score          float64           `json:"score"`
	Correct        int               `json:"correct"`
	TotalQuestions int               `json:"total_questions"`
	Outcomes       []QuestionOutcome `json:"outcomes"`
}

// Result is a ledger entry, written once when an attempt is submitted.
type Result struct {
	AttemptID         string         `json:"attempt_id"`
	QuizID            string         `json:"quiz_id"`
	QuizName          string         `json:"quiz_name"`
	Identity          Identity       `json:"identity"`
	Score             float64        `json:"score"`
	Correct           int            `json:"correct"`
	TotalQuestions    int            `json:"total_questions"`
	SubmittedAt       time.Time      `json:"submitted_at"`
	Forced            bool           `json:"forced"`
	RawAnswers        map[int]string `json:"raw_answers"`
	CorrectByQuestion map[int]bool   `json:"correct_by_question"`
}

// LeaderboardEntry is a snapshot-friendly view of a result.
type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	Name           string    `json:"name"`
	RegistrationID string    `json:"registration_id"`
	Score          float64   `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// Leaderboard captures the ordered scoreboard for a quiz.
type Leaderboard struct {
	QuizID    string             `json:"quiz_id"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// QuizStats summarizes the ledger for one quiz.
type QuizStats struct {
	QuizID              string    `json:"quiz_id"`
	Attempts            int       `json:"attempts"`
	MeanScore           float64   `json:"mean_score"`
	MaxScore            float64   `json:"max_score"`
	MinScore            float64   `json:"min_score"`
	QuestionCorrectRate []float64 `json:"question_correct_rate"`
}

// BankEntry is one row of the cross-quiz question bank.
type BankEntry struct {
	QuizID   string       `json:"quiz_id"`
	QuizName string       `json:"quiz_name"`
	Type     QuestionType `json:"type"`
	Prompt   string       `json:"prompt"`
	Answer   string       `json:"answer"`
}

// GeneratedQuestion is the loosely-typed record produced by a question
// generator. It is admitted into a quiz only after normalization.
type GeneratedQuestion struct {
	Type        string   `json:"type"`
	Prompt      string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"description"`
}
