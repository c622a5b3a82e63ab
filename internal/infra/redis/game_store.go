package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"studybuddy-engine/internal/app"
)

// GameStore is a Redis-aware implementation of app.GameRepository.
// Games live in a local map because each room is driven by the instance
// that created it. Redis holds a liveness marker per code so codes stay
// unique across instances.
type GameStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	games  map[string]*app.Game
}

func NewGameStore(client *redis.Client, ttl time.Duration) *GameStore {
	return &GameStore{
		client: client,
		ttl:    ttl,
		games:  make(map[string]*app.Game),
	}
}

// Add claims the code with SETNX. A Redis outage degrades to local-only uniqueness.
func (s *GameStore) Add(g *app.Game) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.games[g.Code()]; taken {
		return false
	}
	claimed, err := s.client.SetNX(context.Background(), s.key(g.Code()), "1", s.ttl).Result()
	if err == nil && !claimed {
		return false
	}
	s.games[g.Code()] = g
	return true
}

func (s *GameStore) Get(code string) (*app.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[code]
	if ok && s.ttl > 0 {
		_ = s.client.Expire(context.Background(), s.key(code), s.ttl).Err()
	}
	return g, ok
}

func (s *GameStore) DeleteIfEmpty(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[code]
	if !ok {
		return
	}
	if g.IsEmpty() {
		delete(s.games, code)
		_ = s.client.Del(context.Background(), s.key(code)).Err()
	}
}

// Remove evicts g and releases its code across instances.
func (s *GameStore) Remove(g *app.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.games[g.Code()]; ok && cur == g {
		delete(s.games, g.Code())
		_ = s.client.Del(context.Background(), s.key(g.Code())).Err()
	}
}

func (s *GameStore) key(code string) string {
	return "studybuddy:game:" + code
}
