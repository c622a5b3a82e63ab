package question_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/llm"
	"studybuddy-engine/internal/question"
)

const capitalJSON = `{"question":"What is the capital of Australia?","answers":["Sydney","Melbourne","Canberra","Perth"],"correct_answer":"Canberra","explanation":"Canberra was purpose-built as the capital."}`

const loopJSON = `{"question":"Which keyword starts a loop in Go?","answers":["for","while","loop","repeat"],"correct_answer":"for","explanation":"Go has a single looping keyword."}`

type stubBank struct {
	q       *domain.Question
	err     error
	calls   int
	exclude []string
}

func (b *stubBank) Lookup(_ context.Context, _, _ string, _ domain.Difficulty, exclude []string) (*domain.Question, error) {
	b.calls++
	b.exclude = exclude
	return b.q, b.err
}

type recordingHistory struct {
	entries []domain.HistoryEntry
}

func (h *recordingHistory) AppendQuizHistory(_ context.Context, _ string, e domain.HistoryEntry) error {
	h.entries = append(h.entries, e)
	return nil
}

func newSource(provider llm.Provider, opts ...question.Option) *question.Source {
	return question.NewSource(question.NewLLMAuthor(provider), opts...)
}

func baseRequest() question.DrawRequest {
	return question.DrawRequest{
		UserID:     "u1",
		Subject:    "Geography",
		Topic:      "Capitals",
		Difficulty: domain.DifficultyMedium,
	}
}

func TestDrawPrefersBank(t *testing.T) {
	bank := &stubBank{q: &domain.Question{
		ID:            "bank-1",
		Text:          "2 + 2 = ?",
		Answers:       []string{"3", "4", "5", "6"},
		CorrectAnswer: "4",
		Explanation:   "Two plus two is four.",
		Difficulty:    domain.DifficultyEasy,
	}}
	mock := llm.NewMockProvider()
	src := newSource(mock, question.WithBank(bank))

	q, err := src.Draw(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "2 + 2 = ?", q.Text)
	assert.NotEqual(t, "bank-1", q.ID, "bank questions get a fresh id")
	assert.Equal(t, domain.DifficultyEasy, q.Difficulty)
	assert.Equal(t, 0, mock.CallCount())
}

func TestDrawFallsBackToAuthorWithFencedOutput(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "Sure! Here you go:\n```json\n" + capitalJSON + "\n```\nGood luck."})
	src := newSource(mock, question.WithBank(&stubBank{}))

	q, err := src.Draw(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "What is the capital of Australia?", q.Text)
	assert.Len(t, q.Answers, 4)
	assert.Equal(t, "Canberra", q.CorrectAnswer)
	assert.Equal(t, domain.DifficultyMedium, q.Difficulty)
	assert.Equal(t, "Capitals", q.Topic)
	assert.NotEmpty(t, q.ID)
}

func TestDrawSkipsBankQuestionAlreadySeen(t *testing.T) {
	bank := &stubBank{q: &domain.Question{
		Text: "What is the capital of Australia?", Answers: []string{"Sydney", "Melbourne", "Canberra", "Perth"},
		CorrectAnswer: "Canberra", Explanation: "x",
	}}
	mock := llm.NewMockProvider(llm.MockResponse{Text: loopJSON})
	src := newSource(mock, question.WithBank(bank))

	req := baseRequest()
	req.History = []string{"What is the capital of Australia?"}
	q, err := src.Draw(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Which keyword starts a loop in Go?", q.Text)
	assert.Equal(t, req.History, bank.exclude)
}

func TestDrawExhaustsOnDuplicates(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetFallback(llm.MockResponse{Text: capitalJSON})
	src := newSource(mock)

	req := baseRequest()
	req.History = []string{"What is the capital of Australia?"}
	_, err := src.Draw(context.Background(), req)
	assert.True(t, errors.Is(err, domain.ErrDuplicateExhausted), "got %v", err)
	assert.Equal(t, question.DefaultMaxAttempts, mock.CallCount())
}

func TestDrawRetriesMalformedOutput(t *testing.T) {
	mock := llm.NewMockProvider(
		llm.MockResponse{Text: "I cannot think of a question right now."},
		llm.MockResponse{Text: `{"question":"Q?","answers":["a","b","c"],"correct_answer":"a","explanation":"e"}`},
		llm.MockResponse{Text: `{"question":"Q?","answers":["a","b","c","d"],"correct_answer":"z","explanation":"e"}`},
		llm.MockResponse{Text: capitalJSON},
	)
	src := newSource(mock)

	q, err := src.Draw(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "Canberra", q.CorrectAnswer)
	assert.Equal(t, 4, mock.CallCount())
}

func TestDrawNeverReturnsInvalidShape(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.SetFallback(llm.MockResponse{Text: `{"question":"Q?","answers":["a","a","b","c"],"correct_answer":"a","explanation":"e"}`})
	src := newSource(mock)

	_, err := src.Draw(context.Background(), baseRequest())
	var authErr *domain.AuthoringError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, errors.Is(err, domain.ErrAuthoring))
}

func TestDrawProviderFailureIsTerminal(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}})
	src := newSource(mock)

	_, err := src.Draw(context.Background(), baseRequest())
	assert.True(t, errors.Is(err, domain.ErrAuthoring))
	assert.Equal(t, 1, mock.CallCount())
}

func TestDrawPersistingModeAppendsHistory(t *testing.T) {
	history := &recordingHistory{}
	mock := llm.NewMockProvider(llm.MockResponse{Text: capitalJSON}, llm.MockResponse{Text: capitalJSON})
	src := newSource(mock, question.WithHistory(history))

	req := baseRequest()
	_, err := src.Draw(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, history.entries, "non-persisting draws leave history alone")

	req.Persist = true
	q, err := src.Draw(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, history.entries, 1)
	assert.Equal(t, q.ID, history.entries[0].QuestionID)
	assert.Equal(t, q.Text, history.entries[0].Text)
}

func TestPromptCarriesHistory(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: loopJSON})
	src := newSource(mock)

	req := baseRequest()
	req.History = []string{"What is the capital of France?"}
	_, err := src.Draw(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, mock.Calls, 1)
	prompt := mock.Calls[0].Messages[0].Content
	assert.True(t, strings.Contains(prompt, "What is the capital of France?"))
	assert.True(t, strings.Contains(prompt, "medium"))
}
