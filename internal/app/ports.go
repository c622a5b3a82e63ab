package app

import (
	"context"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/question"
)

// GameRepository is the live-game registry (in-memory, Redis-marked, etc).
type GameRepository interface {
	// Add registers g under its code and reports false if the code is taken.
	Add(g *Game) bool
	Get(code string) (*Game, bool)
	DeleteIfEmpty(code string)
	// Remove drops g if it is still the game registered under its code.
	Remove(g *Game)
}

// AssessmentRepository persists single-player sessions.
type AssessmentRepository interface {
	Save(ctx context.Context, a *domain.Assessment) error
	// Get returns domain.ErrSessionNotFound for unknown ids.
	Get(ctx context.Context, id string) (*domain.Assessment, error)
}

// MasteryReader looks up one learner's proficiency in a topic.
type MasteryReader interface {
	// Mastery returns the zero value (proficiency 0) for a topic never assessed.
	Mastery(ctx context.Context, userID, subject, topic string) (domain.TopicMastery, error)
}

// MasteryStore holds per-topic proficiency and the learning history.
type MasteryStore interface {
	MasteryReader
	SetMastery(ctx context.Context, userID string, m domain.TopicMastery) error
	Profile(ctx context.Context, userID string) ([]domain.TopicMastery, error)
	AppendLearningHistory(ctx context.Context, userID string, entry domain.LearningHistoryEntry) error
}

// ProfileStore returns learner context; unknown learners get an empty profile.
type ProfileStore interface {
	LearnerProfile(ctx context.Context, userID string) (domain.LearnerProfile, error)
}

// QuizHistoryStore lists and records questions already shown to a learner.
type QuizHistoryStore interface {
	question.HistoryRecorder
	QuizHistory(ctx context.Context, userID string) ([]domain.HistoryEntry, error)
}

// QuestionSource draws a single question.
type QuestionSource interface {
	Draw(ctx context.Context, req question.DrawRequest) (domain.Question, error)
}

// Broadcaster fans game events out to a room. Delivery is best effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, event domain.Event)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(context.Context, domain.Event) {}
