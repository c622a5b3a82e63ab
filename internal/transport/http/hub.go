package http

import (
	"context"
	"sync"

	"studybuddy-engine/internal/domain"
)

const subscriberBuffer = 16

// Hub fans game events out to the websocket connections of this instance.
// It implements app.Broadcaster directly, or sits behind a Redis forwarder
// when several instances share the channel.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*subscriber]struct{}
}

type subscriber struct {
	mu sync.Mutex
	ch chan domain.Event
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*subscriber]struct{})}
}

// Subscribe registers a listener for a game room. The returned cancel func
// must be called to release it.
func (h *Hub) Subscribe(code string) (<-chan domain.Event, func()) {
	sub := &subscriber{ch: make(chan domain.Event, subscriberBuffer)}

	h.mu.Lock()
	room, ok := h.rooms[code]
	if !ok {
		room = make(map[*subscriber]struct{})
		h.rooms[code] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if room, ok := h.rooms[code]; ok {
				delete(room, sub)
				if len(room) == 0 {
					delete(h.rooms, code)
				}
			}
			h.mu.Unlock()

			sub.mu.Lock()
			close(sub.ch)
			sub.ch = nil
			sub.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Broadcast implements app.Broadcaster.
func (h *Hub) Broadcast(_ context.Context, event domain.Event) {
	h.Deliver(event)
}

// Deliver pushes event to every subscriber of its room. A slow subscriber
// loses its oldest buffered event rather than blocking the game.
func (h *Hub) Deliver(event domain.Event) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.rooms[event.GameCode]))
	for sub := range h.rooms[event.GameCode] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.push(event)
	}
}

func (s *subscriber) push(event domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		return
	}
	select {
	case s.ch <- event:
		return
	default:
	}
	// drop oldest
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- event:
	default:
	}
}

// Subscribers reports how many listeners a room has.
func (h *Hub) Subscribers(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}
