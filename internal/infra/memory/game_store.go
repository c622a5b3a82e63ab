package memory

import (
	"sync"

	"studybuddy-engine/internal/app"
)

// GameStore is an in-memory implementation of app.GameRepository.
type GameStore struct {
	mu    sync.RWMutex
	games map[string]*app.Game
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[string]*app.Game),
	}
}

func (s *GameStore) Add(g *app.Game) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.games[g.Code()]; taken {
		return false
	}
	s.games[g.Code()] = g
	return true
}

func (s *GameStore) Get(code string) (*app.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[code]
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
	}
}

func (s *GameStore) Remove(g *app.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.games[g.Code()]; ok && cur == g {
		delete(s.games, g.Code())
	}
}

// Len reports the number of live games.
func (s *GameStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}
