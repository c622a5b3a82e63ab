package domain

import "time"

// GameState is the multiplayer lifecycle position.
type GameState string

const (
	GameLobby    GameState = "lobby"
	GameStarting GameState = "starting"
	GamePlaying  GameState = "playing"
	GameEnded    GameState = "ended"
)

// Player is a participant and their accumulated score.
type Player struct {
	UserID      string
	DisplayName string
	Score       int
	JoinedAt    time.Time
	LastUpdated time.Time
}

// RoundEntry is one player's answer in the current round.
type RoundEntry struct {
	Answer     string  `json:"answer"`
	Correct    bool    `json:"correct"`
	RoundScore int     `json:"roundScore"`
	Latency    float64 `json:"latency"`
}

// LeaderboardEntry is a snapshot-friendly view of a player.
type LeaderboardEntry struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
}

// Leaderboard captures the ordered scoreboard for a game.
type Leaderboard struct {
	GameCode  string             `json:"gameCode"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// GameSnapshot is the read model returned by every game operation.
type GameSnapshot struct {
	Code            string          `json:"code"`
	HostID          string          `json:"hostId"`
	Subject         string          `json:"subject"`
	Topic           string          `json:"topic"`
	YearGroup       string          `json:"yearGroup"`
	State           GameState       `json:"state"`
	Round           int             `json:"round"`
	MaxRounds       int             `json:"maxRounds"`
	Countdown       int             `json:"countdown,omitempty"`
	CurrentQuestion *PublicQuestion `json:"currentQuestion,omitempty"`
	Answered        int             `json:"answered"`
	Leaderboard     Leaderboard     `json:"leaderboard"`
}

// AnswerSubmission models a player answer for the current question.
type AnswerSubmission struct {
	QuestionID string
	Answer     string
	Latency    float64
}

// AnswerResult summarizes the outcome of a submission for a single player.
type AnswerResult struct {
	QuestionID    string       `json:"questionId"`
	Correct       bool         `json:"correct"`
	CorrectAnswer string       `json:"correctAnswer"`
	RoundScore    int          `json:"roundScore"`
	TotalScore    int          `json:"totalScore"`
	RoundClosed   bool         `json:"roundClosed"`
	Snapshot      GameSnapshot `json:"snapshot"`
}

// Event types pushed to game participants.
const (
	EventPlayerJoined     = "player_joined"
	EventPlayerLeft       = "player_left"
	EventHostChanged      = "host_changed"
	EventGameStarting     = "game_starting"
	EventGameStartAborted = "game_start_aborted"
	EventNewQuestion      = "new_question"
	EventAnswerSubmitted  = "answer_submitted"
	EventRoundClosed      = "round_closed"
	EventGameEnded        = "game_ended"
	EventGameClosed       = "game_closed"
)

// Event is one broadcast message addressed to a game room.
type Event struct {
	Type     string `json:"type"`
	GameCode string `json:"gameCode"`
	Payload  any    `json:"payload"`
}
