package memory

import (
	"context"
	"sort"
	"sync"

	"studybuddy-engine/internal/domain"
)

// LearnerStore keeps mastery, learning history, quiz history and profiles in memory.
// It satisfies app.MasteryStore, app.ProfileStore and app.QuizHistoryStore.
type LearnerStore struct {
	mu       sync.RWMutex
	mastery  map[string]map[string]domain.TopicMastery
	learning map[string][]domain.LearningHistoryEntry
	quizzes  map[string][]domain.HistoryEntry
	profiles map[string]domain.LearnerProfile
}

func NewLearnerStore() *LearnerStore {
	return &LearnerStore{
		mastery:  make(map[string]map[string]domain.TopicMastery),
		learning: make(map[string][]domain.LearningHistoryEntry),
		quizzes:  make(map[string][]domain.HistoryEntry),
		profiles: make(map[string]domain.LearnerProfile),
	}
}

func masteryKey(subject, topic string) string {
	return subject + "|" + topic
}

func (s *LearnerStore) Mastery(_ context.Context, userID, subject, topic string) (domain.TopicMastery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tm, ok := s.mastery[userID][masteryKey(subject, topic)]; ok {
		return tm, nil
	}
	return domain.TopicMastery{Subject: subject, Topic: topic}, nil
}

func (s *LearnerStore) SetMastery(_ context.Context, userID string, m domain.TopicMastery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics, ok := s.mastery[userID]
	if !ok {
		topics = make(map[string]domain.TopicMastery)
		s.mastery[userID] = topics
	}
	topics[masteryKey(m.Subject, m.Topic)] = m
	return nil
}

// Profile lists every assessed topic ordered by subject then topic.
func (s *LearnerStore) Profile(_ context.Context, userID string) ([]domain.TopicMastery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TopicMastery, 0, len(s.mastery[userID]))
	for _, tm := range s.mastery[userID] {
		out = append(out, tm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		return out[i].Topic < out[j].Topic
	})
	return out, nil
}

func (s *LearnerStore) AppendLearningHistory(_ context.Context, userID string, entry domain.LearningHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.learning[userID] = append(s.learning[userID], entry)
	return nil
}

// LearningHistory returns a copy of the learner's finished assessments, oldest first.
func (s *LearnerStore) LearningHistory(_ context.Context, userID string) ([]domain.LearningHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.LearningHistoryEntry(nil), s.learning[userID]...), nil
}

func (s *LearnerStore) AppendQuizHistory(_ context.Context, userID string, entry domain.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[userID] = append(s.quizzes[userID], entry)
	return nil
}

func (s *LearnerStore) QuizHistory(_ context.Context, userID string) ([]domain.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.HistoryEntry(nil), s.quizzes[userID]...), nil
}

func (s *LearnerStore) LearnerProfile(_ context.Context, userID string) (domain.LearnerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.LearnerProfile{UserID: userID}, nil
	}
	p.Memories = append([]domain.Memory(nil), p.Memories...)
	return p, nil
}

// PutProfile replaces a learner profile.
func (s *LearnerStore) PutProfile(_ context.Context, p domain.LearnerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Memories = append([]domain.Memory(nil), p.Memories...)
	s.profiles[p.UserID] = p
	return nil
}
