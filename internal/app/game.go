package app

import (
	"math"
	"sort"
	"sync"
	"time"

	"studybuddy-engine/internal/domain"
)

const (
	baseRoundScore   = 100
	maxSpeedBonus    = 50
	speedWindowInSec = 15.0
)

// RoundScore awards 100 points plus up to 50 for speed to a correct answer.
func RoundScore(correct bool, latency float64) int {
	if !correct {
		return 0
	}
	latency = math.Max(0, math.Min(latency, speedWindowInSec))
	return baseRoundScore + int(math.Floor((1-latency/speedWindowInSec)*maxSpeedBonus))
}

// Game is one multiplayer room. Every state transition happens under mu, so
// operations on different games never contend.
type Game struct {
	code      string
	subject   string
	topic     string
	yearGroup string
	maxRounds int
	countdown int
	createdAt time.Time
	now       func() time.Time

	mu           sync.Mutex
	state        domain.GameState
	hostID       string
	players      map[string]*domain.Player
	order        []string
	current      *domain.Question
	round        int
	roundOpen    bool
	roundStarted time.Time
	ledger       map[string]domain.RoundEntry
	asked        []string
	final        *domain.Leaderboard
	destroyed    bool
	timer        *time.Timer
}

// GameSettings are fixed at creation.
type GameSettings struct {
	Code      string
	Subject   string
	Topic     string
	YearGroup string
	MaxRounds int
	Countdown int
}

// NewGame is exported for infrastructure layers that need to seed games.
func NewGame(settings GameSettings) *Game {
	return NewGameWithClock(settings, time.Now)
}

// NewGameWithClock is test-only for deterministic timestamps.
func NewGameWithClock(settings GameSettings, now func() time.Time) *Game {
	return &Game{
		code:      settings.Code,
		subject:   settings.Subject,
		topic:     settings.Topic,
		yearGroup: settings.YearGroup,
		maxRounds: settings.MaxRounds,
		countdown: settings.Countdown,
		createdAt: now(),
		now:       now,
		state:     domain.GameLobby,
		players:   make(map[string]*domain.Player),
		ledger:    make(map[string]domain.RoundEntry),
	}
}

// Code returns the join code.
func (g *Game) Code() string { return g.code }

// IsEmpty reports whether the game has no players.
func (g *Game) IsEmpty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.players) == 0
}

// Snapshot returns the current read model.
func (g *Game) Snapshot() (domain.GameSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		return domain.GameSnapshot{}, domain.ErrGameNotFound
	}
	return g.snapshotLocked(), nil
}

func (g *Game) addPlayer(userID, displayName string, host bool) (domain.GameSnapshot, []domain.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.destroyed:
		return domain.GameSnapshot{}, nil, domain.ErrGameNotFound
	case g.state == domain.GameEnded:
		return domain.GameSnapshot{}, nil, domain.ErrGameEnded
	}
	if _, ok := g.players[userID]; ok {
		return domain.GameSnapshot{}, nil, domain.ErrAlreadyJoined
	}

	now := g.now()
	g.players[userID] = &domain.Player{
		UserID:      userID,
		DisplayName: displayName,
		JoinedAt:    now,
		LastUpdated: now,
	}
	g.order = append(g.order, userID)
	if host {
		g.hostID = userID
	}

	snap := g.snapshotLocked()
	return snap, []domain.Event{g.eventLocked(domain.EventPlayerJoined, map[string]any{
		"userId":      userID,
		"displayName": displayName,
		"players":     snap.Leaderboard.Entries,
	})}, nil
}

// beginStart moves lobby → starting for the host.
func (g *Game) beginStart(userID string) (domain.GameSnapshot, []domain.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.destroyed {
		return domain.GameSnapshot{}, nil, domain.ErrGameNotFound
	}
	if _, ok := g.players[userID]; !ok {
		return domain.GameSnapshot{}, nil, domain.ErrPlayerNotFound
	}
	if userID != g.hostID {
		return domain.GameSnapshot{}, nil, domain.ErrNotHost
	}
	if g.state != domain.GameLobby {
		return domain.GameSnapshot{}, nil, domain.ErrInvalidState
	}

	g.state = domain.GameStarting
	return g.snapshotLocked(), []domain.Event{g.eventLocked(domain.EventGameStarting, map[string]any{
		"countdown": g.countdown,
		"topic":     g.topic,
		"maxRounds": g.maxRounds,
	})}, nil
}

// abortStart returns a starting game to the lobby when the first draw fails.
func (g *Game) abortStart(reason string) []domain.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed || g.state != domain.GameStarting {
		return nil
	}
	g.state = domain.GameLobby
	return []domain.Event{g.eventLocked(domain.EventGameStartAborted, map[string]any{
		"state":  domain.GameLobby,
		"reason": reason,
	})}
}

// installQuestion opens the next round. It is a no-op unless the game is
// starting or playing with the previous round closed.
func (g *Game) installQuestion(q domain.Question) (int, []domain.Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.destroyed || len(g.players) == 0 {
		return 0, nil, false
	}
	switch {
	case g.state == domain.GameStarting:
	case g.state == domain.GamePlaying && !g.roundOpen:
	default:
		return 0, nil, false
	}

	g.state = domain.GamePlaying
	g.current = &q
	g.round++
	g.roundOpen = true
	g.roundStarted = g.now()
	g.ledger = make(map[string]domain.RoundEntry)
	g.asked = append(g.asked, q.Text)

	return g.round, []domain.Event{g.eventLocked(domain.EventNewQuestion, map[string]any{
		"round":     g.round,
		"maxRounds": g.maxRounds,
		"question":  q.Public(),
	})}, true
}

// submit records an answer. closed reports that the round is complete and,
// unless the game ended, a new question must be drawn.
func (g *Game) submit(userID string, sub domain.AnswerSubmission) (domain.AnswerResult, []domain.Event, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case g.destroyed:
		return domain.AnswerResult{}, nil, false, domain.ErrGameNotFound
	case g.state == domain.GameEnded:
		return domain.AnswerResult{}, nil, false, domain.ErrGameEnded
	case g.state != domain.GamePlaying:
		return domain.AnswerResult{}, nil, false, domain.ErrInvalidState
	}
	player, ok := g.players[userID]
	if !ok {
		return domain.AnswerResult{}, nil, false, domain.ErrPlayerNotFound
	}
	if !g.roundOpen || g.current == nil || sub.QuestionID != g.current.ID {
		return domain.AnswerResult{}, nil, false, domain.ErrStaleSubmission
	}
	if _, answered := g.ledger[userID]; answered {
		return domain.AnswerResult{}, nil, false, domain.ErrAlreadyAnswered
	}

	correct := sub.Answer == g.current.CorrectAnswer
	points := RoundScore(correct, sub.Latency)
	g.ledger[userID] = domain.RoundEntry{
		Answer:     sub.Answer,
		Correct:    correct,
		RoundScore: points,
		Latency:    math.Max(0, sub.Latency),
	}
	player.Score += points
	player.LastUpdated = g.now()

	result := domain.AnswerResult{
		QuestionID:    g.current.ID,
		Correct:       correct,
		CorrectAnswer: g.current.CorrectAnswer,
		RoundScore:    points,
		TotalScore:    player.Score,
	}
	events := []domain.Event{g.eventLocked(domain.EventAnswerSubmitted, map[string]any{
		"userId":      userID,
		"displayName": player.DisplayName,
		"round":       g.round,
		"answered":    len(g.ledger),
		"players":     len(g.players),
		"leaderboard": g.leaderboardLocked().Entries,
	})}

	var needDraw bool
	if len(g.ledger) >= len(g.players) {
		var closeEvents []domain.Event
		closeEvents, needDraw = g.closeRoundLocked()
		events = append(events, closeEvents...)
		result.RoundClosed = true
	}
	result.Snapshot = g.snapshotLocked()
	return result, events, needDraw, nil
}

// expireRound closes round if it is still open, scoring missing players as incorrect.
func (g *Game) expireRound(round int, timeout time.Duration) ([]domain.Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.destroyed || g.state != domain.GamePlaying || !g.roundOpen || g.round != round {
		return nil, false
	}
	for userID := range g.players {
		if _, answered := g.ledger[userID]; !answered {
			g.ledger[userID] = domain.RoundEntry{Latency: timeout.Seconds()}
		}
	}
	return g.closeRoundLocked()
}

// removePlayer drops a player. empty reports that the game was destroyed.
func (g *Game) removePlayer(userID string) (events []domain.Event, needDraw, empty bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.destroyed {
		return nil, false, false, domain.ErrGameNotFound
	}
	player, ok := g.players[userID]
	if !ok {
		return nil, false, false, domain.ErrPlayerNotFound
	}

	delete(g.players, userID)
	delete(g.ledger, userID)
	for i, id := range g.order {
		if id == userID {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}

	if len(g.players) == 0 {
		g.destroyed = true
		g.stopTimerLocked()
		return []domain.Event{g.eventLocked(domain.EventGameClosed, map[string]any{"reason": "empty"})}, false, true, nil
	}

	events = append(events, g.eventLocked(domain.EventPlayerLeft, map[string]any{
		"userId":      userID,
		"displayName": player.DisplayName,
		"players":     g.leaderboardLocked().Entries,
	}))
	if g.hostID == userID {
		g.hostID = g.order[0]
		events = append(events, g.eventLocked(domain.EventHostChanged, map[string]any{
			"hostId":      g.hostID,
			"displayName": g.players[g.hostID].DisplayName,
		}))
	}
	if g.state == domain.GamePlaying && g.roundOpen && len(g.ledger) >= len(g.players) {
		var closeEvents []domain.Event
		closeEvents, needDraw = g.closeRoundLocked()
		events = append(events, closeEvents...)
	}
	return events, needDraw, false, nil
}

// end stops the game, freezing the leaderboard.
func (g *Game) end(reason string) []domain.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed || g.state == domain.GameEnded {
		return nil
	}
	return g.endLocked(reason)
}

// expire destroys an ended game. It returns nothing if the game is still
// running or already gone.
func (g *Game) expire() []domain.Event {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed || g.state != domain.GameEnded {
		return nil
	}
	g.destroyed = true
	g.stopTimerLocked()
	return []domain.Event{g.eventLocked(domain.EventGameClosed, map[string]any{"reason": "expired"})}
}

func (g *Game) setTimer(round int, t *time.Timer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.round != round || !g.roundOpen || g.destroyed {
		t.Stop()
		return
	}
	g.stopTimerLocked()
	g.timer = t
}

func (g *Game) askedQuestions() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.asked...)
}

func (g *Game) closeRoundLocked() ([]domain.Event, bool) {
	g.roundOpen = false
	g.stopTimerLocked()

	results := make(map[string]domain.RoundEntry, len(g.ledger))
	for id, entry := range g.ledger {
		results[id] = entry
	}
	events := []domain.Event{g.eventLocked(domain.EventRoundClosed, map[string]any{
		"round":         g.round,
		"correctAnswer": g.current.CorrectAnswer,
		"explanation":   g.current.Explanation,
		"results":       results,
		"leaderboard":   g.leaderboardLocked().Entries,
	})}

	if g.round >= g.maxRounds {
		return append(events, g.endLocked("completed")...), false
	}
	return events, true
}

func (g *Game) endLocked(reason string) []domain.Event {
	g.state = domain.GameEnded
	g.roundOpen = false
	g.stopTimerLocked()
	lb := g.leaderboardLocked()
	g.final = &lb
	return []domain.Event{g.eventLocked(domain.EventGameEnded, map[string]any{
		"reason":      reason,
		"rounds":      g.round,
		"leaderboard": lb.Entries,
	})}
}

func (g *Game) stopTimerLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}

func (g *Game) eventLocked(kind string, payload any) domain.Event {
	return domain.Event{Type: kind, GameCode: g.code, Payload: payload}
}

func (g *Game) snapshotLocked() domain.GameSnapshot {
	snap := domain.GameSnapshot{
		Code:      g.code,
		HostID:    g.hostID,
		Subject:   g.subject,
		Topic:     g.topic,
		YearGroup: g.yearGroup,
		State:     g.state,
		Round:     g.round,
		MaxRounds: g.maxRounds,
		Answered:  len(g.ledger),
	}
	switch g.state {
	case domain.GameStarting:
		snap.Countdown = g.countdown
	case domain.GamePlaying:
		if g.current != nil && g.roundOpen {
			pq := g.current.Public()
			snap.CurrentQuestion = &pq
		}
	}
	if g.final != nil {
		snap.Leaderboard = *g.final
	} else {
		snap.Leaderboard = g.leaderboardLocked()
	}
	return snap
}

// leaderboardLocked orders by score, then who reached it first, then name.
func (g *Game) leaderboardLocked() domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(g.players))
	for _, p := range g.players {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		pi := g.players[entries[i].UserID]
		pj := g.players[entries[j].UserID]
		if !pi.LastUpdated.Equal(pj.LastUpdated) {
			return pi.LastUpdated.Before(pj.LastUpdated)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	return domain.Leaderboard{
		GameCode:  g.code,
		Entries:   entries,
		UpdatedAt: g.now(),
	}
}
