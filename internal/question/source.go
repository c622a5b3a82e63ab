// Package question draws validated, de-duplicated questions from a curated
// bank or, failing that, from a question author.
package question

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/llm"
	"studybuddy-engine/internal/logger"
)

// DefaultMaxAttempts bounds authoring attempts per draw.
const DefaultMaxAttempts = 5

var tracer = otel.Tracer("studybuddy-engine/question")

// Bank returns a curated question for the key whose text is not in exclude,
// or nil when it has none left.
type Bank interface {
	Lookup(ctx context.Context, subject, topic string, difficulty domain.Difficulty, exclude []string) (*domain.Question, error)
}

// HistoryRecorder persists questions shown to a learner.
type HistoryRecorder interface {
	AppendQuizHistory(ctx context.Context, userID string, entry domain.HistoryEntry) error
}

// DrawRequest describes one question draw.
type DrawRequest struct {
	UserID     string
	Subject    string
	Topic      string
	YearGroup  string
	Difficulty domain.Difficulty
	// History holds question texts the learner has already seen; drawn questions never match one exactly.
	History []string
	// Persist appends the drawn question to the learner's quiz history.
	Persist bool
}

// Source is the question draw pipeline: bank lookup, then bounded authoring attempts.
type Source struct {
	bank        Bank
	author      Author
	history     HistoryRecorder
	validators  []Validator
	maxAttempts int
	now         func() time.Time
	log         *logger.Logger
}

// Option customises a Source.
type Option func(*Source)

func WithBank(b Bank) Option { return func(s *Source) { s.bank = b } }

func WithHistory(h HistoryRecorder) Option { return func(s *Source) { s.history = h } }

func WithMaxAttempts(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock is test-only for deterministic history timestamps.
func WithClock(now func() time.Time) Option { return func(s *Source) { s.now = now } }

func NewSource(author Author, opts ...Option) *Source {
	s := &Source{
		author:      author,
		validators:  DefaultValidators(),
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "question_source")
	return s
}

// Draw returns a question for the request. Authoring errors are retried up to
// the attempt bound; when every attempt was a duplicate the result is
// domain.ErrDuplicateExhausted, otherwise the last *domain.AuthoringError.
func (s *Source) Draw(ctx context.Context, req DrawRequest) (domain.Question, error) {
	ctx, span := tracer.Start(ctx, "question.draw")
	defer span.End()
	span.SetAttributes(
		attribute.String("question.subject", req.Subject),
		attribute.String("question.topic", req.Topic),
		attribute.String("question.difficulty", string(req.Difficulty)),
		attribute.Bool("question.persist", req.Persist),
	)

	seen := make(map[string]struct{}, len(req.History))
	for _, text := range req.History {
		seen[text] = struct{}{}
	}

	q, err := s.draw(ctx, req, seen)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Question{}, err
	}

	q.ID = uuid.NewString()
	q.Subject, q.Topic, q.YearGroup = req.Subject, req.Topic, req.YearGroup
	if !q.Difficulty.Valid() {
		q.Difficulty = req.Difficulty
	}

	if req.Persist && s.history != nil && req.UserID != "" {
		entry := domain.HistoryEntry{
			QuestionID: q.ID,
			Text:       q.Text,
			Subject:    q.Subject,
			Topic:      q.Topic,
			Difficulty: q.Difficulty,
			IssuedAt:   s.now(),
		}
		if err := s.history.AppendQuizHistory(ctx, req.UserID, entry); err != nil {
			s.log.Warn("quiz history append failed", "user_id", req.UserID, "question_id", q.ID, "error", err)
		}
	}
	return q, nil
}

func (s *Source) draw(ctx context.Context, req DrawRequest, seen map[string]struct{}) (domain.Question, error) {
	if q, ok := s.fromBank(ctx, req, seen); ok {
		return q, nil
	}

	brief := Brief{
		Subject:    req.Subject,
		Topic:      req.Topic,
		YearGroup:  req.YearGroup,
		Difficulty: req.Difficulty,
		Avoid:      req.History,
	}

	var lastErr error
	duplicates := 0
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		raw, err := s.author.Compose(ctx, brief)
		if err != nil {
			var invalid *llm.ErrInvalidResponse
			if !errors.As(err, &invalid) {
				// Transport failures were already retried by the provider.
				return domain.Question{}, &domain.AuthoringError{Reason: "author unavailable", Err: err}
			}
			lastErr = &domain.AuthoringError{Reason: "author returned invalid output", Raw: invalid.Content, Err: err}
			s.log.Debug("authored output rejected", "attempt", attempt, "error", err)
			continue
		}

		q, err := Parse(raw)
		if err == nil {
			err = Check(q, s.validators)
		}
		if err != nil {
			lastErr = err
			s.log.Debug("authored question rejected", "attempt", attempt, "error", err)
			continue
		}

		if _, dup := seen[q.Text]; dup {
			duplicates++
			lastErr = domain.ErrDuplicateExhausted
			s.log.Debug("authored question is a duplicate", "attempt", attempt, "question", q.Text)
			continue
		}
		q.Difficulty = req.Difficulty
		return q, nil
	}

	if duplicates == s.maxAttempts {
		return domain.Question{}, domain.ErrDuplicateExhausted
	}
	return domain.Question{}, lastErr
}

func (s *Source) fromBank(ctx context.Context, req DrawRequest, seen map[string]struct{}) (domain.Question, bool) {
	if s.bank == nil {
		return domain.Question{}, false
	}
	q, err := s.bank.Lookup(ctx, req.Subject, req.Topic, req.Difficulty, req.History)
	if err != nil {
		s.log.Warn("question bank lookup failed", "subject", req.Subject, "topic", req.Topic, "error", err)
		return domain.Question{}, false
	}
	if q == nil {
		return domain.Question{}, false
	}
	out := *q
	out.Answers = append([]string(nil), q.Answers...)
	out.Text = strings.TrimSpace(out.Text)
	if _, dup := seen[out.Text]; dup {
		return domain.Question{}, false
	}
	if err := Check(out, s.validators); err != nil {
		s.log.Warn("discarding malformed bank question", "question_id", q.ID, "error", err)
		return domain.Question{}, false
	}
	return out, true
}
