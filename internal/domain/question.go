package domain

import (
	"fmt"
	"strings"
)

// OptionBounds limits the option count of multiple_choice questions.
type OptionBounds struct {
	Min int
	Max int
}

// DefaultOptionBounds pads and truncates choice questions to exactly four options.
var DefaultOptionBounds = OptionBounds{Min: 4, Max: 4}

var trueFalseOptions = []string{"True", "False"}

// ParseQuestionType accepts canonical type names as well as the short labels
// produced by question generators (MCQ, TF, Short, Fill). Empty input means
// multiple_choice.
func ParseQuestionType(raw string) (QuestionType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "mcq", "multiple_choice", "multiple-choice", "choice":
		return MultipleChoice, nil
	case "tf", "true_false", "true/false", "truefalse", "boolean":
		return TrueFalse, nil
	case "short", "short_answer", "short-answer", "text":
		return ShortAnswer, nil
	case "fill", "fill_blank", "fill-in-the-blank", "fill_in_the_blank", "blank":
		return FillBlank, nil
	}
	return "", Invalidf("unknown question type %q", raw)
}

// Normalize returns a well-formed copy of q using DefaultOptionBounds.
func Normalize(q Question) (Question, error) {
	return NormalizeWithBounds(q, DefaultOptionBounds)
}

// NormalizeWithBounds returns a well-formed copy of q. For multiple_choice the
// canonical answer is always one of the options: it is appended when missing,
// placeholders pad the set up to b.Min and extra options are dropped down to
// b.Max without ever dropping the answer.
func NormalizeWithBounds(q Question, b OptionBounds) (Question, error) {
	if b.Min < 2 || b.Max < b.Min {
		return Question{}, Invalidf("option bounds %d..%d", b.Min, b.Max)
	}
	if q.Type == "" {
		q.Type = MultipleChoice
	}
	if !q.Type.Valid() {
		return Question{}, Invalidf("unknown question type %q", q.Type)
	}

	out := Question{
		ID:              q.ID,
		Type:            q.Type,
		Prompt:          strings.TrimSpace(q.Prompt),
		CanonicalAnswer: strings.TrimSpace(q.CanonicalAnswer),
		Explanation:     strings.TrimSpace(q.Explanation),
	}
	if out.Prompt == "" {
		return Question{}, Invalidf("prompt is required")
	}
	if out.CanonicalAnswer == "" {
		return Question{}, Invalidf("canonical answer is required")
	}

	switch out.Type {
	case MultipleChoice:
		out.Options, out.CanonicalAnswer = normalizeChoices(q.Options, out.CanonicalAnswer, b)
	case TrueFalse:
		answer, ok := matchOption(trueFalseOptions, out.CanonicalAnswer)
		if !ok {
			return Question{}, Invalidf("true_false answer must be True or False, got %q", out.CanonicalAnswer)
		}
		out.Options = append([]string(nil), trueFalseOptions...)
		out.CanonicalAnswer = answer
	default:
		out.Options = nil
	}
	return out, nil
}

func normalizeChoices(raw []string, answer string, b OptionBounds) ([]string, string) {
	options := make([]string, 0, len(raw)+1)
	for _, opt := range raw {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		if _, dup := matchOption(options, opt); dup {
			continue
		}
		options = append(options, opt)
	}

	if existing, ok := matchOption(options, answer); ok {
		answer = existing
	} else {
		options = append(options, answer)
	}

	for n := len(options) + 1; len(options) < b.Min; n++ {
		placeholder := fmt.Sprintf("Option %d", n)
		if _, taken := matchOption(options, placeholder); taken {
			continue
		}
		options = append(options, placeholder)
	}

	if len(options) > b.Max {
		kept := make([]string, 0, b.Max)
		others := b.Max - 1
		for _, opt := range options {
			if opt == answer {
				kept = append(kept, opt)
				continue
			}
			if others > 0 {
				kept = append(kept, opt)
				others--
			}
		}
		options = kept
	}
	return options, answer
}

func matchOption(options []string, candidate string) (string, bool) {
	for _, opt := range options {
		if strings.EqualFold(opt, candidate) {
			return opt, true
		}
	}
	return "", false
}

// IsCorrect compares response with the canonical answer, ignoring case and
// surrounding whitespace.
func IsCorrect(q Question, response string) bool {
	return IsCorrectWith(q, response, FreeTextExact)
}

// IsCorrectWith grades response under the given free-text policy. Choice
// questions always use exact comparison.
func IsCorrectWith(q Question, response string, policy FreeTextPolicy) bool {
	response = strings.TrimSpace(response)
	if response == "" {
		return false
	}
	if !q.Type.HasOptions() && policy == FreeTextNonEmpty {
		return true
	}
	return strings.EqualFold(response, strings.TrimSpace(q.CanonicalAnswer))
}
