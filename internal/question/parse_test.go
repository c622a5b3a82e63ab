package question

import (
	"errors"
	"testing"
	"time"

	"studybuddy-engine/internal/domain"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"fenced", "text\n```json\n{\"a\":1}\n```\nmore", `{"a":1}`, true},
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"prose around braces", `Here: {"a":{"b":2}} done`, `{"a":{"b":2}}`, true},
		{"no object", "nothing here", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractJSON(tc.in)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("extractJSON(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	_, err := Parse(`{"question":"Q?","answers":["a","b","c","d"],"correct_answer":"a"}`)
	if !errors.Is(err, domain.ErrAuthoring) {
		t.Fatalf("expected authoring error for missing explanation, got %v", err)
	}
}

func TestParseIgnoresExtraKeys(t *testing.T) {
	raw := "Sure!\n```json\n" +
		`{"question":"What is 1/2 of 8?","answers":["2","4","6","8"],"correct_answer":"4","explanation":"Half of eight is four.","difficulty":"easy","topic":"Fractions"}` +
		"\n```"
	q, err := Parse(raw)
	if err != nil {
		t.Fatalf("expected extra keys to be ignored, got %v", err)
	}
	if q.Text != "What is 1/2 of 8?" || q.CorrectAnswer != "4" || len(q.Answers) != 4 {
		t.Fatalf("unexpected question %+v", q)
	}
}

func TestValidatorsAcceptWellFormedQuestion(t *testing.T) {
	q := domain.Question{
		Text:          "Q?",
		Answers:       []string{"a", "b", "c", "d"},
		CorrectAnswer: "c",
		Explanation:   "because",
	}
	if err := Check(q, DefaultValidators()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q.Answers = []string{"a", "b", "c", "d", "e"}
	if err := Check(q, DefaultValidators()); err == nil {
		t.Fatal("expected five answers to be rejected")
	}
}

func TestResolveTopic(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	profile := domain.LearnerProfile{
		StudyGoal: "algebra",
		Memories: []domain.Memory{
			{Type: domain.MemoryTypeTopic, Value: "fractions", CreatedAt: t0},
			{Type: "preference", Value: "likes dogs", CreatedAt: t0.Add(2 * time.Hour)},
			{Type: domain.MemoryTypeTopic, Value: "photosynthesis", CreatedAt: t0.Add(time.Hour)},
		},
	}
	if got := ResolveTopic("", profile); got != "photosynthesis" {
		t.Fatalf("expected most recent topic memory, got %q", got)
	}
	if got := ResolveTopic("volcanoes", profile); got != "volcanoes" {
		t.Fatalf("expected explicit topic, got %q", got)
	}
	if got := ResolveTopic("", domain.LearnerProfile{StudyGoal: "algebra"}); got != "algebra" {
		t.Fatalf("expected study goal, got %q", got)
	}
	if got := ResolveTopic("", domain.LearnerProfile{}); got != FallbackTopic {
		t.Fatalf("expected fallback topic, got %q", got)
	}
}
