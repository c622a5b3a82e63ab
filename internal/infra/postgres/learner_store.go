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

// LearnerStore persists mastery, learning history, quiz history and learner
// profiles. It satisfies app.MasteryStore, app.ProfileStore and app.QuizHistoryStore.
type LearnerStore struct {
	pool *pgxpool.Pool
}

func NewLearnerStore(pool *pgxpool.Pool) *LearnerStore {
	return &LearnerStore{pool: pool}
}

func (s *LearnerStore) Mastery(ctx context.Context, userID, subject, topic string) (domain.TopicMastery, error) {
	tm := domain.TopicMastery{Subject: subject, Topic: topic}
	err := s.pool.QueryRow(ctx, `
		SELECT proficiency, next_review, updated_at FROM topic_mastery
		WHERE user_id=$1 AND subject=$2 AND topic=$3`,
		userID, subject, topic).Scan(&tm.Proficiency, &tm.NextReview, &tm.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TopicMastery{Subject: subject, Topic: topic}, nil
	}
	if err != nil {
		return domain.TopicMastery{}, fmt.Errorf("load mastery: %w", err)
	}
	return tm, nil
}

func (s *LearnerStore) SetMastery(ctx context.Context, userID string, m domain.TopicMastery) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO topic_mastery (user_id, subject, topic, proficiency, next_review, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, subject, topic) DO UPDATE
		SET proficiency=EXCLUDED.proficiency, next_review=EXCLUDED.next_review, updated_at=EXCLUDED.updated_at`,
		userID, m.Subject, m.Topic, m.Proficiency, m.NextReview, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save mastery: %w", err)
	}
	return nil
}

func (s *LearnerStore) Profile(ctx context.Context, userID string) ([]domain.TopicMastery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT subject, topic, proficiency, next_review, updated_at FROM topic_mastery
		WHERE user_id=$1 ORDER BY subject, topic`, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	defer rows.Close()

	out := []domain.TopicMastery{}
	for rows.Next() {
		var tm domain.TopicMastery
		if err := rows.Scan(&tm.Subject, &tm.Topic, &tm.Proficiency, &tm.NextReview, &tm.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan mastery: %w", err)
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}

func (s *LearnerStore) AppendLearningHistory(ctx context.Context, userID string, e domain.LearningHistoryEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO learning_history
			(user_id, assessment_id, kind, subject, topic, score, passed, proficiency_before, proficiency_after, next_review, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		userID, e.AssessmentID, string(e.Kind), e.Subject, e.Topic, e.Score, e.Passed,
		e.ProficiencyBefore, e.ProficiencyAfter, e.NextReview, e.CompletedAt)
	if err != nil {
		return fmt.Errorf("append learning history: %w", err)
	}
	return nil
}

func (s *LearnerStore) LearningHistory(ctx context.Context, userID string) ([]domain.LearningHistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT assessment_id, kind, subject, topic, score, passed, proficiency_before, proficiency_after, next_review, completed_at
		FROM learning_history WHERE user_id=$1 ORDER BY completed_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load learning history: %w", err)
	}
	defer rows.Close()

	var out []domain.LearningHistoryEntry
	for rows.Next() {
		var (
			e    domain.LearningHistoryEntry
			kind string
		)
		if err := rows.Scan(&e.AssessmentID, &kind, &e.Subject, &e.Topic, &e.Score, &e.Passed,
			&e.ProficiencyBefore, &e.ProficiencyAfter, &e.NextReview, &e.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan learning history: %w", err)
		}
		e.Kind = domain.AssessmentKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *LearnerStore) AppendQuizHistory(ctx context.Context, userID string, e domain.HistoryEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_history (user_id, question_id, question, subject, topic, difficulty, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		userID, e.QuestionID, e.Text, e.Subject, e.Topic, string(e.Difficulty), e.IssuedAt)
	if err != nil {
		return fmt.Errorf("append quiz history: %w", err)
	}
	return nil
}

func (s *LearnerStore) QuizHistory(ctx context.Context, userID string) ([]domain.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id, question, subject, topic, difficulty, issued_at FROM quiz_history
		WHERE user_id=$1 ORDER BY issued_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load quiz history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var (
			e          domain.HistoryEntry
			difficulty string
		)
		if err := rows.Scan(&e.QuestionID, &e.Text, &e.Subject, &e.Topic, &difficulty, &e.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan quiz history: %w", err)
		}
		e.Difficulty = domain.Difficulty(difficulty)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *LearnerStore) LearnerProfile(ctx context.Context, userID string) (domain.LearnerProfile, error) {
	p := domain.LearnerProfile{UserID: userID}
	var memories []byte
	err := s.pool.QueryRow(ctx, `
		SELECT year_group, study_goal, memories FROM learner_profiles WHERE user_id=$1`,
		userID).Scan(&p.YearGroup, &p.StudyGoal, &memories)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LearnerProfile{UserID: userID}, nil
	}
	if err != nil {
		return domain.LearnerProfile{}, fmt.Errorf("load learner profile: %w", err)
	}
	if err := json.Unmarshal(memories, &p.Memories); err != nil {
		return domain.LearnerProfile{}, fmt.Errorf("unmarshal memories: %w", err)
	}
	return p, nil
}

// PutProfile upserts a learner profile.
func (s *LearnerStore) PutProfile(ctx context.Context, p domain.LearnerProfile) error {
	memories := p.Memories
	if memories == nil {
		memories = []domain.Memory{}
	}
	raw, err := json.Marshal(memories)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO learner_profiles (user_id, year_group, study_goal, memories, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, now())
		ON CONFLICT (user_id) DO UPDATE
		SET year_group=EXCLUDED.year_group, study_goal=EXCLUDED.study_goal, memories=EXCLUDED.memories, updated_at=now()`,
		p.UserID, p.YearGroup, p.StudyGoal, string(raw))
	if err != nil {
		return fmt.Errorf("save learner profile: %w", err)
	}
	return nil
}
