package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/question"
)

var errDrawFailed = errors.New("draw failed")

// scriptedSource returns numbered questions whose correct answer is "B".
// Draws listed in fail (1-based) return errDrawFailed instead.
type scriptedSource struct {
	mu       sync.Mutex
	draws    int
	fail     map[int]bool
	failAll  bool
	requests []question.DrawRequest
}

func (s *scriptedSource) Draw(_ context.Context, req question.DrawRequest) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws++
	s.requests = append(s.requests, req)
	if s.failAll || s.fail[s.draws] {
		return domain.Question{}, errDrawFailed
	}
	return domain.Question{
		ID:            fmt.Sprintf("q%d", s.draws),
		Text:          fmt.Sprintf("Question %d?", s.draws),
		Answers:       []string{"A", "B", "C", "D"},
		CorrectAnswer: "B",
		Explanation:   fmt.Sprintf("B answers question %d.", s.draws),
		Difficulty:    req.Difficulty,
		Subject:       req.Subject,
		Topic:         req.Topic,
	}, nil
}

func (s *scriptedSource) setFailAll(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = on
}

func (s *scriptedSource) lastRequest() question.DrawRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

// recorder collects broadcast events.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) Broadcast(_ context.Context, e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, t := range r.types() {
		if t == kind {
			n++
		}
	}
	return n
}
