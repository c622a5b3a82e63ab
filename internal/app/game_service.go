package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/logger"
	"studybuddy-engine/internal/mastery"
	"studybuddy-engine/internal/question"
)

const (
	codeLength       = 6
	maxCodeAttempts  = 10
	defaultGameTopic = "General"
)

// GameConfig carries multiplayer policy.
type GameConfig struct {
	DefaultRounds int
	MaxRounds     int
	Countdown     int
	// RoundTimeout closes a round that not every player answered. Zero disables it.
	RoundTimeout time.Duration
	// DrawTimeout bounds question draws started by the round timer.
	DrawTimeout time.Duration
	// EndedGameTTL is how long an ended game stays queryable before it is
	// evicted from the registry. Zero keeps it until every player leaves.
	EndedGameTTL time.Duration
}

// DefaultGameConfig mirrors the sample configuration.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		DefaultRounds: 10,
		MaxRounds:     20,
		Countdown:     5,
		RoundTimeout:  60 * time.Second,
		DrawTimeout:   30 * time.Second,
		EndedGameTTL:  5 * time.Minute,
	}
}

// CreateGameRequest describes a new multiplayer game.
type CreateGameRequest struct {
	HostID      string
	DisplayName string
	Subject     string
	Topic       string
	YearGroup   string
	MaxRounds   int
}

// GameService contains the multiplayer use cases.
type GameService struct {
	games       GameRepository
	source      QuestionSource
	mastery     MasteryReader
	broadcaster Broadcaster
	cfg         GameConfig
	now         func() time.Time
	newCode     func() string
	log         *logger.Logger
}

// NewGameService wires the multiplayer use cases. mastery may be nil, in which
// case every host is treated as a new learner.
func NewGameService(games GameRepository, source QuestionSource, mastery MasteryReader, broadcaster Broadcaster, cfg GameConfig, log *logger.Logger) *GameService {
	if broadcaster == nil {
		broadcaster = nopBroadcaster{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GameService{
		games:       games,
		source:      source,
		mastery:     mastery,
		broadcaster: broadcaster,
		cfg:         cfg,
		now:         time.Now,
		newCode:     newGameCode,
		log:         log.With("component", "game_service"),
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *GameService) WithClock(now func() time.Time) *GameService {
	s.now = now
	return s
}

// WithCodeGenerator is test-only for predictable game codes.
func (s *GameService) WithCodeGenerator(gen func() string) *GameService {
	s.newCode = gen
	return s
}

func newGameCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:codeLength])
}

// Create opens a lobby with the creator as host.
func (s *GameService) Create(ctx context.Context, req CreateGameRequest) (domain.GameSnapshot, error) {
	if strings.TrimSpace(req.HostID) == "" {
		return domain.GameSnapshot{}, fmt.Errorf("%w: host id is required", domain.ErrValidation)
	}
	rounds := req.MaxRounds
	if rounds == 0 {
		rounds = s.cfg.DefaultRounds
	}
	if rounds < 1 || rounds > s.cfg.MaxRounds {
		return domain.GameSnapshot{}, fmt.Errorf("%w: max rounds must be between 1 and %d", domain.ErrValidation, s.cfg.MaxRounds)
	}

	settings := GameSettings{
		Subject:   orDefault(req.Subject, defaultGameTopic),
		Topic:     orDefault(req.Topic, defaultGameTopic),
		YearGroup: orDefault(req.YearGroup, defaultGameTopic),
		MaxRounds: rounds,
		Countdown: s.cfg.Countdown,
	}

	var game *Game
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		settings.Code = s.newCode()
		candidate := NewGameWithClock(settings, s.now)
		if s.games.Add(candidate) {
			game = candidate
			break
		}
	}
	if game == nil {
		return domain.GameSnapshot{}, fmt.Errorf("could not allocate a unique game code")
	}

	snap, events, err := game.addPlayer(req.HostID, displayName(req.HostID, req.DisplayName), true)
	if err != nil {
		s.games.DeleteIfEmpty(game.Code())
		return domain.GameSnapshot{}, err
	}
	s.publish(ctx, game, events)
	s.log.Info("game created", "code", game.Code(), "host_id", req.HostID, "topic", settings.Topic, "max_rounds", rounds)
	return snap, nil
}

// Join adds a player to a game that has not ended.
func (s *GameService) Join(ctx context.Context, code, userID, name string) (domain.GameSnapshot, error) {
	game, err := s.game(code)
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	snap, events, err := game.addPlayer(userID, displayName(userID, name), false)
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	s.publish(ctx, game, events)
	return snap, nil
}

// Start moves the game through starting to playing with its first question.
// If the first draw fails the game returns to the lobby.
func (s *GameService) Start(ctx context.Context, code, userID string) (domain.GameSnapshot, error) {
	game, err := s.game(code)
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	_, events, err := game.beginStart(userID)
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	s.publish(ctx, game, events)

	q, err := s.draw(ctx, game)
	if err != nil {
		s.log.Warn("first question draw failed", "code", code, "error", err)
		s.publish(ctx, game, game.abortStart("question_unavailable"))
		return domain.GameSnapshot{}, err
	}
	s.install(ctx, game, q)
	return game.Snapshot()
}

// SubmitAnswer scores an answer for the current question. The last answer of
// a round closes it and either ends the game or draws the next question.
func (s *GameService) SubmitAnswer(ctx context.Context, code, userID string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	game, err := s.game(code)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	result, events, needDraw, err := game.submit(userID, sub)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	s.publish(ctx, game, events)
	if needDraw {
		s.nextRound(ctx, game)
		if snap, err := game.Snapshot(); err == nil {
			result.Snapshot = snap
		}
	}
	return result, nil
}

// Leave removes a player, transferring host or destroying the game as needed.
func (s *GameService) Leave(ctx context.Context, code, userID string) error {
	game, err := s.game(code)
	if err != nil {
		return err
	}
	events, needDraw, empty, err := game.removePlayer(userID)
	if err != nil {
		return err
	}
	s.publish(ctx, game, events)
	if empty {
		s.games.DeleteIfEmpty(code)
		s.log.Info("game closed", "code", code)
		return nil
	}
	if needDraw {
		s.nextRound(ctx, game)
	}
	return nil
}

// State returns the current snapshot of a game.
func (s *GameService) State(_ context.Context, code string) (domain.GameSnapshot, error) {
	game, err := s.game(code)
	if err != nil {
		return domain.GameSnapshot{}, err
	}
	return game.Snapshot()
}

func (s *GameService) game(code string) (*Game, error) {
	game, ok := s.games.Get(strings.ToUpper(strings.TrimSpace(code)))
	if !ok {
		return nil, domain.ErrGameNotFound
	}
	return game, nil
}

// nextRound draws and installs the next question, ending the game if no question can be drawn.
func (s *GameService) nextRound(ctx context.Context, game *Game) {
	q, err := s.draw(ctx, game)
	if err != nil {
		s.log.Warn("next question draw failed, ending game", "code", game.Code(), "error", err)
		s.publish(ctx, game, game.end("question_unavailable"))
		return
	}
	s.install(ctx, game, q)
}

func (s *GameService) install(ctx context.Context, game *Game, q domain.Question) {
	round, events, ok := game.installQuestion(q)
	if !ok {
		return
	}
	s.publish(ctx, game, events)
	s.armTimer(game, round)
}

func (s *GameService) armTimer(game *Game, round int) {
	if s.cfg.RoundTimeout <= 0 {
		return
	}
	timeout := s.cfg.RoundTimeout
	t := time.AfterFunc(timeout, func() {
		events, needDraw := game.expireRound(round, timeout)
		if len(events) == 0 {
			return
		}
		ctx := context.Background()
		if s.cfg.DrawTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.DrawTimeout)
			defer cancel()
		}
		s.log.Info("round timed out", "code", game.Code(), "round", round)
		s.publish(ctx, game, events)
		if needDraw {
			s.nextRound(ctx, game)
		}
	})
	game.setTimer(round, t)
}

// draw asks the source for a question pitched at the host's mastery of the topic.
func (s *GameService) draw(ctx context.Context, game *Game) (domain.Question, error) {
	snap, err := game.Snapshot()
	if err != nil {
		return domain.Question{}, err
	}
	return s.source.Draw(ctx, question.DrawRequest{
		UserID:     snap.HostID,
		Subject:    snap.Subject,
		Topic:      snap.Topic,
		YearGroup:  snap.YearGroup,
		Difficulty: mastery.SelectDifficulty(s.hostProficiency(ctx, snap)),
		History:    game.askedQuestions(),
	})
}

func (s *GameService) hostProficiency(ctx context.Context, snap domain.GameSnapshot) float64 {
	if s.mastery == nil {
		return 0
	}
	tm, err := s.mastery.Mastery(ctx, snap.HostID, snap.Subject, snap.Topic)
	if err != nil {
		s.log.Warn("host mastery lookup failed", "code", snap.Code, "host_id", snap.HostID, "error", err)
		return 0
	}
	return tm.Proficiency
}

func (s *GameService) publish(ctx context.Context, game *Game, events []domain.Event) {
	for _, e := range events {
		s.broadcaster.Broadcast(ctx, e)
		if e.Type == domain.EventGameEnded {
			s.scheduleEviction(game)
		}
	}
}

// scheduleEviction drops an ended game from the registry once EndedGameTTL
// has passed, so players who never leave do not keep it alive.
func (s *GameService) scheduleEviction(game *Game) {
	if s.cfg.EndedGameTTL <= 0 {
		return
	}
	time.AfterFunc(s.cfg.EndedGameTTL, func() {
		events := game.expire()
		if len(events) == 0 {
			return
		}
		s.games.Remove(game)
		s.log.Info("ended game evicted", "code", game.Code())
		for _, e := range events {
			s.broadcaster.Broadcast(context.Background(), e)
		}
	})
}

func displayName(userID, name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	prefix := userID
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return "Player_" + prefix
}

func orDefault(v, fallback string) string {
	if t := strings.TrimSpace(v); t != "" {
		return t
	}
	return fallback
}
