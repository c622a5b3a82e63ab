package memory

import (
	"context"
	"sync"

	"studybuddy-engine/internal/domain"
)

// AssessmentStore is an in-memory implementation of app.AssessmentRepository.
// It stores and hands out deep copies so callers never share session state.
type AssessmentStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Assessment
}

func NewAssessmentStore() *AssessmentStore {
	return &AssessmentStore{sessions: make(map[string]*domain.Assessment)}
}

func (s *AssessmentStore) Save(_ context.Context, a *domain.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[a.ID] = a.Clone()
	return nil
}

func (s *AssessmentStore) Get(_ context.Context, id string) (*domain.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return a.Clone(), nil
}
