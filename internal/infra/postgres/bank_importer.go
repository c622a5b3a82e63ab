package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"studybuddy-engine/internal/domain"
)

type bankRow struct {
	bun.BaseModel `bun:"table:question_bank"`

	ID            string    `bun:"id,pk"`
	Subject       string    `bun:"subject,notnull"`
	Topic         string    `bun:"topic,notnull"`
	Difficulty    string    `bun:"difficulty,notnull"`
	Question      string    `bun:"question,notnull"`
	Answers       []string  `bun:"answers,type:jsonb,notnull"`
	CorrectAnswer string    `bun:"correct_answer,notnull"`
	Explanation   string    `bun:"explanation"`
	YearGroup     string    `bun:"year_group"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// BankImporter upserts curated questions into question_bank.
type BankImporter struct {
	db *bun.DB
}

func NewBankImporter(db *bun.DB) *BankImporter {
	return &BankImporter{db: db}
}

// Import writes questions keyed by (subject, topic, difficulty, question text),
// replacing the answer key of rows that already exist. Callers validate first.
func (i *BankImporter) Import(ctx context.Context, questions []domain.Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	rows := make([]bankRow, 0, len(questions))
	seen := make(map[string]int, len(questions))
	for _, q := range questions {
		id := q.ID
		if id == "" {
			id = uuid.NewString()
		}
		row := bankRow{
			ID:            id,
			Subject:       strings.TrimSpace(q.Subject),
			Topic:         strings.TrimSpace(q.Topic),
			Difficulty:    string(q.Difficulty),
			Question:      strings.TrimSpace(q.Text),
			Answers:       q.Answers,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
			YearGroup:     q.YearGroup,
		}
		// one statement cannot upsert the same key twice, so the last copy wins
		key := strings.Join([]string{row.Subject, row.Topic, row.Difficulty, row.Question}, "\x00")
		if idx, dup := seen[key]; dup {
			rows[idx] = row
			continue
		}
		seen[key] = len(rows)
		rows = append(rows, row)
	}

	_, err := i.db.NewInsert().
		Model(&rows).
		On("CONFLICT (subject, topic, difficulty, question) DO UPDATE").
		Set("answers = EXCLUDED.answers").
		Set("correct_answer = EXCLUDED.correct_answer").
		Set("explanation = EXCLUDED.explanation").
		Set("year_group = EXCLUDED.year_group").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("import question bank: %w", err)
	}
	return len(rows), nil
}
