package question

import (
	"fmt"
	"strings"

	"studybuddy-engine/internal/domain"
)

// Validator checks one property of a candidate question.
type Validator interface {
	Name() string
	Validate(q domain.Question) error
}

// DefaultValidators is the chain every drawn question passes through.
func DefaultValidators() []Validator {
	return []Validator{
		textValidator{},
		answersValidator{},
		correctAnswerValidator{},
		explanationValidator{},
	}
}

// Check runs validators in order and reports the first failure as an AuthoringError.
func Check(q domain.Question, validators []Validator) error {
	for _, v := range validators {
		if err := v.Validate(q); err != nil {
			return &domain.AuthoringError{Reason: v.Name(), Err: err}
		}
	}
	return nil
}

type textValidator struct{}

func (textValidator) Name() string { return "text" }

func (textValidator) Validate(q domain.Question) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question text is empty")
	}
	return nil
}

type answersValidator struct{}

func (answersValidator) Name() string { return "answers" }

func (answersValidator) Validate(q domain.Question) error {
	if len(q.Answers) != 4 {
		return fmt.Errorf("expected 4 answers, got %d", len(q.Answers))
	}
	seen := make(map[string]struct{}, len(q.Answers))
	for _, a := range q.Answers {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("answer option is empty")
		}
		if _, dup := seen[a]; dup {
			return fmt.Errorf("answer %q appears more than once", a)
		}
		seen[a] = struct{}{}
	}
	return nil
}

type correctAnswerValidator struct{}

func (correctAnswerValidator) Name() string { return "correct_answer" }

func (correctAnswerValidator) Validate(q domain.Question) error {
	for _, a := range q.Answers {
		if a == q.CorrectAnswer {
			return nil
		}
	}
	return fmt.Errorf("correct answer %q is not one of the options", q.CorrectAnswer)
}

type explanationValidator struct{}

func (explanationValidator) Name() string { return "explanation" }

func (explanationValidator) Validate(q domain.Question) error {
	if strings.TrimSpace(q.Explanation) == "" {
		return fmt.Errorf("explanation is missing")
	}
	return nil
}
