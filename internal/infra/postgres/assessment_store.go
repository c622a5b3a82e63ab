package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"studybuddy-engine/internal/domain"
)

// AssessmentStore keeps each assessment session as one JSONB document.
type AssessmentStore struct {
	pool *pgxpool.Pool
}

func NewAssessmentStore(pool *pgxpool.Pool) *AssessmentStore {
	return &AssessmentStore{pool: pool}
}

func (s *AssessmentStore) Save(ctx context.Context, a *domain.Assessment) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO assessments (id, user_id, kind, status, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, now())
		ON CONFLICT (id) DO UPDATE
		SET status=EXCLUDED.status, data=EXCLUDED.data, updated_at=now()`,
		a.ID, a.UserID, string(a.Kind), string(a.Status), string(raw), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save assessment: %w", err)
	}
	return nil
}

func (s *AssessmentStore) Get(ctx context.Context, id string) (*domain.Assessment, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM assessments WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load assessment: %w", err)
	}
	var a domain.Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("unmarshal assessment: %w", err)
	}
	return &a, nil
}
