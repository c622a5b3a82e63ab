package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/infra/memory"
)

// QuestionLoader loads curated question buckets from the question_bank table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, key memory.BankKey) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, subject, topic, difficulty, question, answers, correct_answer, explanation, year_group
		FROM question_bank
		WHERE lower(subject) = lower($1) AND lower(topic) = lower($2) AND difficulty = $3
		ORDER BY created_at`,
		key.Subject, key.Topic, string(key.Difficulty))
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q          domain.Question
			difficulty string
			answers    []byte
		)
		if err := rows.Scan(&q.ID, &q.Subject, &q.Topic, &difficulty, &q.Text, &answers, &q.CorrectAnswer, &q.Explanation, &q.YearGroup); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(answers, &q.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers for %s: %w", q.ID, err)
		}
		q.Difficulty = domain.Difficulty(difficulty)
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
