package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizePadsWithPlaceholders(t *testing.T) {
	q, err := Normalize(Question{
		Type:            MultipleChoice,
		Prompt:          "Capital of France?",
		Options:         []string{"Paris"},
		CanonicalAnswer: "Paris",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(q.Options) != 4 {
		t.Fatalf("expected 4 options, got %v", q.Options)
	}
	seen := map[string]bool{}
	for _, opt := range q.Options {
		if seen[opt] {
			t.Fatalf("duplicate option %q in %v", opt, q.Options)
		}
		seen[opt] = true
	}
	if !seen["Paris"] {
		t.Fatalf("expected Paris in options, got %v", q.Options)
	}
	for _, opt := range q.Options[1:] {
		if opt == "Paris" {
			t.Fatalf("placeholder equals answer: %v", q.Options)
		}
	}
}

func TestNormalizeAppendsMissingAnswer(t *testing.T) {
	q, err := Normalize(Question{
		Prompt:          "2+2=?",
		Options:         []string{"3", "5"},
		CanonicalAnswer: "4",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if q.Type != MultipleChoice {
		t.Fatalf("expected default type multiple_choice, got %s", q.Type)
	}
	want := []string{"3", "5", "4", "Option 4"}
	if !reflect.DeepEqual(q.Options, want) {
		t.Fatalf("expected %v, got %v", want, q.Options)
	}
}

func TestNormalizeTruncatesWithoutDroppingAnswer(t *testing.T) {
	q, err := Normalize(Question{
		Type:            MultipleChoice,
		Prompt:          "Pick the prime",
		Options:         []string{"4", "6", "8", "9", "10"},
		CanonicalAnswer: "7",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []string{"4", "6", "8", "7"}
	if !reflect.DeepEqual(q.Options, want) {
		t.Fatalf("expected %v, got %v", want, q.Options)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	first, err := Normalize(Question{
		Type:            MultipleChoice,
		Prompt:          " Capital of Pakistan? ",
		Options:         []string{"Islamabad", "Karachi", "Lahore", "Peshawar"},
		CanonicalAnswer: "islamabad",
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	second, err := Normalize(first)
	if err != nil {
		t.Fatalf("normalize again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalize not idempotent: %+v vs %+v", first, second)
	}
	if first.CanonicalAnswer != "Islamabad" {
		t.Fatalf("expected answer to adopt option spelling, got %q", first.CanonicalAnswer)
	}
}

func TestNormalizeValidation(t *testing.T) {
	tests := []struct {
		name string
		q    Question
	}{
		{"blank prompt", Question{Prompt: "  ", CanonicalAnswer: "x"}},
		{"blank answer", Question{Prompt: "p", CanonicalAnswer: ""}},
		{"unknown type", Question{Type: "essay", Prompt: "p", CanonicalAnswer: "x"}},
		{"bad true false", Question{Type: TrueFalse, Prompt: "p", CanonicalAnswer: "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Normalize(tt.q); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestNormalizeTrueFalseAndFreeText(t *testing.T) {
	tf, err := Normalize(Question{Type: TrueFalse, Prompt: "Go has generics", CanonicalAnswer: "true"})
	if err != nil {
		t.Fatalf("normalize tf: %v", err)
	}
	if tf.CanonicalAnswer != "True" || !reflect.DeepEqual(tf.Options, []string{"True", "False"}) {
		t.Fatalf("unexpected tf question %+v", tf)
	}

	short, err := Normalize(Question{Type: ShortAnswer, Prompt: "Name a gopher", Options: []string{"a"}, CanonicalAnswer: "Gordon"})
	if err != nil {
		t.Fatalf("normalize short: %v", err)
	}
	if len(short.Options) != 0 {
		t.Fatalf("expected free text options dropped, got %v", short.Options)
	}
}

func TestIsCorrect(t *testing.T) {
	mcq := Question{Type: MultipleChoice, CanonicalAnswer: "Islamabad"}
	short := Question{Type: ShortAnswer, CanonicalAnswer: "Gordon"}

	tests := []struct {
		name     string
		q        Question
		response string
		policy   FreeTextPolicy
		want     bool
	}{
		{"exact", mcq, "Islamabad", FreeTextExact, true},
		{"case and space", mcq, "  islamABAD ", FreeTextExact, true},
		{"wrong", mcq, "Karachi", FreeTextExact, false},
		{"empty", mcq, "", FreeTextExact, false},
		{"non empty ignored for choice", mcq, "Karachi", FreeTextNonEmpty, false},
		{"free text exact", short, "gordon", FreeTextExact, true},
		{"free text non empty", short, "anything", FreeTextNonEmpty, true},
		{"free text blank", short, "   ", FreeTextNonEmpty, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCorrectWith(tt.q, tt.response, tt.policy); got != tt.want {
				t.Fatalf("IsCorrectWith(%q) = %v, want %v", tt.response, got, tt.want)
			}
		})
	}
}

func TestParseQuestionType(t *testing.T) {
	cases := map[string]QuestionType{
		"MCQ":        MultipleChoice,
		"TF":         TrueFalse,
		"Short":      ShortAnswer,
		"Fill":       FillBlank,
		"fill_blank": FillBlank,
		"":           MultipleChoice,
	}
	for raw, want := range cases {
		got, err := ParseQuestionType(raw)
		if err != nil || got != want {
			t.Fatalf("ParseQuestionType(%q) = %s, %v; want %s", raw, got, err, want)
		}
	}
	if _, err := ParseQuestionType("essay"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
