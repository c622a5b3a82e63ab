package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studybuddy-engine/internal/domain"
)

func TestLoadBankFile(t *testing.T) {
	path := writeFile(t, `questions:
  - subject: Maths
    topic: Fractions
    difficulty: Easy
    question: "What is 1/2 + 1/2?"
    answers: ["1", "2", "1/4", "0"]
    correct_answer: "1"
    explanation: Two halves make a whole.
  - subject: Maths
    topic: Fractions
    difficulty: easy
    question: "What is 1/2 + 1/4?"
    answers: ["3/4", "2/6", "1/6", "2/4"]
    correct_answer: "3/4"
    explanation: 1/2 is 2/4.
`)

	questions, err := loadBankFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	if questions[0].Difficulty != domain.DifficultyEasy {
		t.Fatalf("expected difficulty normalised, got %q", questions[0].Difficulty)
	}
	if keys := bucketKeys(questions); len(keys) != 1 {
		t.Fatalf("expected one bucket, got %d", len(keys))
	}
}

func TestLoadBankFileReportsEveryBadEntry(t *testing.T) {
	path := writeFile(t, `questions:
  - subject: Maths
    topic: Fractions
    difficulty: impossible
    question: "Q1?"
    answers: ["a", "b", "c", "d"]
    correct_answer: "a"
  - subject: Maths
    topic: Fractions
    difficulty: easy
    question: "Q2?"
    answers: ["a", "b", "c"]
    correct_answer: "a"
`)

	_, err := loadBankFile(path)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "#1") || !strings.Contains(err.Error(), "#2") {
		t.Fatalf("expected both entries reported, got %v", err)
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bank.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}
