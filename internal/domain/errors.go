package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error surfaced by the services wraps exactly one of these,
// so callers branch with errors.Is instead of matching strings.
var (
	// ErrValidation marks malformed input or an operation that is not legal in the current state.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced session, game, player or question that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAuthoring marks generation output that could not be parsed or failed shape checks.
	ErrAuthoring = errors.New("unusable authored question")
	// ErrDuplicateExhausted is returned once every authoring attempt produced a question already in the history.
	ErrDuplicateExhausted = errors.New("unable to generate a unique question")
	// ErrStaleSubmission rejects an answer for a question that is no longer current.
	ErrStaleSubmission = errors.New("stale submission")
)

var (
	// ErrSessionNotFound is returned when an assessment session id is unknown.
	ErrSessionNotFound = fmt.Errorf("assessment session %w", ErrNotFound)
	// ErrGameNotFound is returned for unknown or already destroyed game codes.
	ErrGameNotFound = fmt.Errorf("game %w", ErrNotFound)
	// ErrPlayerNotFound is returned when a user acts on a game they have not joined.
	ErrPlayerNotFound = fmt.Errorf("player %w", ErrNotFound)
	// ErrQuestionNotFound indicates a response references a question outside the session.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)

	ErrResponseCount   = fmt.Errorf("%w: responses must cover every question exactly once", ErrValidation)
	ErrInvalidState    = fmt.Errorf("%w: operation not allowed in current state", ErrValidation)
	ErrNotHost         = fmt.Errorf("%w: only the host can start the game", ErrValidation)
	ErrAlreadyJoined   = fmt.Errorf("%w: player already in game", ErrValidation)
	ErrAlreadyAnswered = fmt.Errorf("%w: answer already recorded for this round", ErrValidation)
	ErrGameEnded       = fmt.Errorf("%w: game has ended", ErrValidation)
)

// AuthoringError describes why a single generation attempt was rejected.
type AuthoringError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *AuthoringError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrAuthoring, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrAuthoring, e.Reason)
}

func (e *AuthoringError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrAuthoring) match any AuthoringError.
func (e *AuthoringError) Is(target error) bool { return target == ErrAuthoring }
