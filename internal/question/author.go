package question

import (
	"context"
	"fmt"
	"strings"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/llm"
)

// Brief is everything an author is told about the question it should write.
type Brief struct {
	Subject    string
	Topic      string
	YearGroup  string
	Difficulty domain.Difficulty
	// Avoid lists question texts the learner has already seen.
	Avoid []string
}

// Author writes a question and returns the raw output, which may be free
// text around a JSON object.
type Author interface {
	Compose(ctx context.Context, brief Brief) (string, error)
}

// maxAvoid caps how much history is echoed back into the prompt.
const maxAvoid = 30

const systemPrompt = `You write multiple-choice questions for school learners.
Every question has exactly four distinct answer options and exactly one of them is correct.
Respond with a single JSON object with the keys "question", "answers", "correct_answer" and "explanation".
The "correct_answer" value must be copied exactly from "answers". The explanation is one or two sentences.`

// LLMAuthor composes questions with a text-generation provider.
type LLMAuthor struct {
	provider    llm.Provider
	structured  bool
	maxTokens   int
	temperature float64
}

// AuthorOption customises an LLMAuthor.
type AuthorOption func(*LLMAuthor)

// WithStructuredOutput asks the provider for schema-constrained JSON.
func WithStructuredOutput(on bool) AuthorOption {
	return func(a *LLMAuthor) { a.structured = on }
}

// WithSampling overrides token budget and temperature.
func WithSampling(maxTokens int, temperature float64) AuthorOption {
	return func(a *LLMAuthor) {
		if maxTokens > 0 {
			a.maxTokens = maxTokens
		}
		a.temperature = temperature
	}
}

func NewLLMAuthor(provider llm.Provider, opts ...AuthorOption) *LLMAuthor {
	a := &LLMAuthor{provider: provider, maxTokens: 1024, temperature: 0.9}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *LLMAuthor) Compose(ctx context.Context, brief Brief) (string, error) {
	req := llm.UserPrompt(systemPrompt, buildPrompt(brief))
	req.MaxTokens = a.maxTokens
	req.Temperature = a.temperature
	if a.structured {
		req.Schema = outputSchema
	}

	resp, err := a.provider.Generate(llm.WithPurpose(ctx, "question-author"), req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func buildPrompt(b Brief) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a brand new %s question", b.Difficulty)
	if b.Subject != "" {
		fmt.Fprintf(&sb, " in %s", b.Subject)
	}
	fmt.Fprintf(&sb, " about %s", b.Topic)
	if b.YearGroup != "" {
		fmt.Fprintf(&sb, " pitched at %s learners", b.YearGroup)
	}
	sb.WriteString(".\n")

	avoid := b.Avoid
	if len(avoid) > maxAvoid {
		avoid = avoid[len(avoid)-maxAvoid:]
	}
	if len(avoid) > 0 {
		sb.WriteString("Do not repeat any of these previous questions:\n")
		for i, text := range avoid {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, text)
		}
	}
	return sb.String()
}
