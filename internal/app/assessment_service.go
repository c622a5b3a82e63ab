package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/logger"
	"studybuddy-engine/internal/mastery"
	"studybuddy-engine/internal/question"
)

const (
	// ExamEligibleProficiency is the proficiency a passing quiz must reach to unlock an exam.
	ExamEligibleProficiency = 0.8
	defaultSubject          = "General"
)

// AssessmentConfig carries the scoring policy.
type AssessmentConfig struct {
	QuizPassThreshold float64
	ExamPassThreshold float64
	DefaultQuestions  int
	MaxQuestions      int
}

// DefaultAssessmentConfig mirrors the sample configuration.
func DefaultAssessmentConfig() AssessmentConfig {
	return AssessmentConfig{
		QuizPassThreshold: 0.7,
		ExamPassThreshold: 0.8,
		DefaultQuestions:  5,
		MaxQuestions:      20,
	}
}

// AssessmentDeps are the collaborators of AssessmentService.
type AssessmentDeps struct {
	Sessions AssessmentRepository
	Source   QuestionSource
	Mastery  MasteryStore
	Profiles ProfileStore
	History  QuizHistoryStore
	Logger   *logger.Logger
}

// CreateRequest describes a new quiz or exam.
type CreateRequest struct {
	UserID    string
	Subject   string
	Topic     string
	YearGroup string
	Count     int
	// FromAssessmentID reuses the questions of a passed quiz (exams only).
	FromAssessmentID string
}

// AssessmentService runs single-player quizzes and exams.
type AssessmentService struct {
	sessions AssessmentRepository
	source   QuestionSource
	mastery  MasteryStore
	profiles ProfileStore
	history  QuizHistoryStore
	cfg      AssessmentConfig
	now      func() time.Time
	log      *logger.Logger
}

func NewAssessmentService(deps AssessmentDeps, cfg AssessmentConfig) *AssessmentService {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &AssessmentService{
		sessions: deps.Sessions,
		source:   deps.Source,
		mastery:  deps.Mastery,
		profiles: deps.Profiles,
		history:  deps.History,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With("component", "assessment_service"),
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *AssessmentService) WithClock(now func() time.Time) *AssessmentService {
	s.now = now
	return s
}

// CreateQuiz draws a practice quiz. Draw failures shorten the quiz instead of aborting it.
func (s *AssessmentService) CreateQuiz(ctx context.Context, req CreateRequest) (*domain.Assessment, error) {
	return s.create(ctx, domain.KindQuiz, req)
}

// CreateExam draws an exam, or copies the questions of a passed quiz when FromAssessmentID is set.
func (s *AssessmentService) CreateExam(ctx context.Context, req CreateRequest) (*domain.Assessment, error) {
	if req.FromAssessmentID != "" {
		return s.examFromQuiz(ctx, req)
	}
	return s.create(ctx, domain.KindExam, req)
}

// Get returns a session by id.
func (s *AssessmentService) Get(ctx context.Context, id string) (*domain.Assessment, error) {
	return s.sessions.Get(ctx, id)
}

// Proficiency lists the learner's per-topic mastery.
func (s *AssessmentService) Proficiency(ctx context.Context, userID string) ([]domain.TopicMastery, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	return s.mastery.Profile(ctx, userID)
}

// Submit records responses. Quizzes are scored immediately; exams move to
// submitted and are scored by Evaluate.
func (s *AssessmentService) Submit(ctx context.Context, id string, responses []domain.Response) (*domain.Assessment, error) {
	a, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != domain.StatusInProgress {
		return nil, fmt.Errorf("%w: session is %s", domain.ErrInvalidState, a.Status)
	}
	ordered, err := alignResponses(a.Questions, responses)
	if err != nil {
		return nil, err
	}

	a.Responses = ordered
	a.SubmittedAt = s.now()
	if a.Kind == domain.KindExam {
		a.Status = domain.StatusSubmitted
	} else if err := s.score(ctx, a); err != nil {
		return nil, err
	}

	if err := s.sessions.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Evaluate scores a submitted exam. Evaluating a completed exam returns the stored result.
func (s *AssessmentService) Evaluate(ctx context.Context, id string) (*domain.Assessment, error) {
	a, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Kind != domain.KindExam {
		return nil, fmt.Errorf("%w: only exams are evaluated", domain.ErrInvalidState)
	}
	switch a.Status {
	case domain.StatusCompleted:
		return a, nil
	case domain.StatusSubmitted:
	default:
		return nil, fmt.Errorf("%w: exam has not been submitted", domain.ErrInvalidState)
	}

	if err := s.score(ctx, a); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AssessmentService) create(ctx context.Context, kind domain.AssessmentKind, req CreateRequest) (*domain.Assessment, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	count := req.Count
	if count == 0 {
		count = s.cfg.DefaultQuestions
	}
	if count < 1 || count > s.cfg.MaxQuestions {
		return nil, fmt.Errorf("%w: question count must be between 1 and %d", domain.ErrValidation, s.cfg.MaxQuestions)
	}

	profile, err := s.profiles.LearnerProfile(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load learner profile: %w", err)
	}
	subject, topic, err := s.resolveSubjectTopic(ctx, req, profile)
	if err != nil {
		return nil, err
	}
	yearGroup := req.YearGroup
	if yearGroup == "" {
		yearGroup = profile.YearGroup
	}

	tm, err := s.mastery.Mastery(ctx, req.UserID, subject, topic)
	if err != nil {
		return nil, fmt.Errorf("load mastery: %w", err)
	}
	difficulty := mastery.SelectDifficulty(tm.Proficiency)

	past, err := s.history.QuizHistory(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load quiz history: %w", err)
	}
	seen := make([]string, 0, len(past)+count)
	for _, h := range past {
		seen = append(seen, h.Text)
	}

	questions := make([]domain.Question, 0, count)
	var lastErr error
	for i := 0; i < count; i++ {
		q, err := s.source.Draw(ctx, question.DrawRequest{
			UserID:     req.UserID,
			Subject:    subject,
			Topic:      topic,
			YearGroup:  yearGroup,
			Difficulty: difficulty,
			History:    seen,
			Persist:    true,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			s.log.Warn("question draw failed, shortening session",
				"user_id", req.UserID, "kind", kind, "index", i, "error", err)
			continue
		}
		seen = append(seen, q.Text)
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("no questions could be drawn: %w", lastErr)
	}

	a := &domain.Assessment{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		Kind:          kind,
		Subject:       subject,
		Topic:         topic,
		YearGroup:     yearGroup,
		Questions:     questions,
		Status:        domain.StatusInProgress,
		PassThreshold: s.passThreshold(kind),
		CreatedAt:     s.now(),
	}
	if err := s.sessions.Save(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("assessment created",
		"id", a.ID, "user_id", a.UserID, "kind", kind, "topic", topic,
		"difficulty", difficulty, "questions", len(questions), "requested", count)
	return a, nil
}

func (s *AssessmentService) examFromQuiz(ctx context.Context, req CreateRequest) (*domain.Assessment, error) {
	quiz, err := s.sessions.Get(ctx, req.FromAssessmentID)
	if err != nil {
		return nil, err
	}
	switch {
	case quiz.UserID != req.UserID:
		return nil, fmt.Errorf("%w: quiz belongs to another learner", domain.ErrValidation)
	case quiz.Kind != domain.KindQuiz:
		return nil, fmt.Errorf("%w: exams can only be built from quizzes", domain.ErrValidation)
	case quiz.Status != domain.StatusCompleted || quiz.Result == nil || !quiz.Result.Passed:
		return nil, fmt.Errorf("%w: quiz must be passed before taking the exam", domain.ErrInvalidState)
	}

	questions := make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.ID = uuid.NewString()
		q.Answers = append([]string(nil), q.Answers...)
		questions[i] = q
	}
	exam := &domain.Assessment{
		ID:            uuid.NewString(),
		UserID:        quiz.UserID,
		Kind:          domain.KindExam,
		Subject:       quiz.Subject,
		Topic:         quiz.Topic,
		YearGroup:     quiz.YearGroup,
		Questions:     questions,
		Status:        domain.StatusInProgress,
		PassThreshold: s.passThreshold(domain.KindExam),
		CreatedAt:     s.now(),
	}
	if err := s.sessions.Save(ctx, exam); err != nil {
		return nil, err
	}
	return exam, nil
}

// resolveSubjectTopic prefers the learner's weakest under-mastered topic when
// none was requested, and otherwise falls back to profile-based resolution.
func (s *AssessmentService) resolveSubjectTopic(ctx context.Context, req CreateRequest, profile domain.LearnerProfile) (string, string, error) {
	subject := strings.TrimSpace(req.Subject)
	if topic := strings.TrimSpace(req.Topic); topic != "" {
		if subject == "" {
			subject = defaultSubject
		}
		return subject, topic, nil
	}

	topics, err := s.mastery.Profile(ctx, req.UserID)
	if err != nil {
		return "", "", fmt.Errorf("load mastery profile: %w", err)
	}
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Proficiency < topics[j].Proficiency })
	for _, tm := range topics {
		if tm.Proficiency >= ExamEligibleProficiency {
			break
		}
		if subject == "" || strings.EqualFold(subject, tm.Subject) {
			return tm.Subject, tm.Topic, nil
		}
	}

	if subject == "" {
		subject = defaultSubject
	}
	return subject, question.ResolveTopic("", profile), nil
}

func (s *AssessmentService) passThreshold(kind domain.AssessmentKind) float64 {
	if kind == domain.KindExam {
		return s.cfg.ExamPassThreshold
	}
	return s.cfg.QuizPassThreshold
}

// score computes results, moves mastery and completes the session.
func (s *AssessmentService) score(ctx context.Context, a *domain.Assessment) error {
	results := make([]domain.QuestionResult, len(a.Questions))
	correct := 0
	for i, q := range a.Questions {
		answer := a.Responses[i].Answer
		ok := answer == q.CorrectAnswer
		if ok {
			correct++
		}
		results[i] = domain.QuestionResult{
			QuestionID:    q.ID,
			Question:      q.Text,
			UserAnswer:    answer,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     ok,
			Explanation:   q.Explanation,
		}
	}

	tm, err := s.mastery.Mastery(ctx, a.UserID, a.Subject, a.Topic)
	if err != nil {
		return fmt.Errorf("load mastery: %w", err)
	}
	now := s.now()
	upd := mastery.Apply(tm.Proficiency, a.Questions, correct, a.PassThreshold, now)

	if err := s.mastery.SetMastery(ctx, a.UserID, domain.TopicMastery{
		Subject:     a.Subject,
		Topic:       a.Topic,
		Proficiency: upd.After,
		NextReview:  upd.NextReview,
		UpdatedAt:   now,
	}); err != nil {
		return fmt.Errorf("store mastery: %w", err)
	}
	if err := s.mastery.AppendLearningHistory(ctx, a.UserID, domain.LearningHistoryEntry{
		AssessmentID:      a.ID,
		Kind:              a.Kind,
		Subject:           a.Subject,
		Topic:             a.Topic,
		Score:             upd.Score,
		Passed:            upd.Passed,
		ProficiencyBefore: upd.Before,
		ProficiencyAfter:  upd.After,
		NextReview:        upd.NextReview,
		CompletedAt:       now,
	}); err != nil {
		return fmt.Errorf("append learning history: %w", err)
	}

	result := &domain.ScoreResult{
		Score:             upd.Score,
		Correct:           correct,
		Total:             len(a.Questions),
		Passed:            upd.Passed,
		ProficiencyBefore: upd.Before,
		ProficiencyAfter:  upd.After,
		NextReview:        upd.NextReview,
		NextStep:          nextStep(a.Kind, upd.Passed, upd.After),
		Results:           results,
	}
	if result.NextStep == domain.NextStepFlashcards {
		result.Flashcards = flashcards(a, results)
	}

	a.Result = result
	a.Status = domain.StatusCompleted
	a.CompletedAt = now
	s.log.Info("assessment scored",
		"id", a.ID, "user_id", a.UserID, "kind", a.Kind, "score", upd.Score,
		"passed", upd.Passed, "proficiency", upd.After, "next_step", result.NextStep)
	return nil
}

func nextStep(kind domain.AssessmentKind, passed bool, proficiency float64) domain.NextStep {
	switch {
	case !passed:
		return domain.NextStepFlashcards
	case kind == domain.KindExam:
		return domain.NextStepComplete
	case proficiency >= ExamEligibleProficiency:
		return domain.NextStepExamEligible
	default:
		return domain.NextStepPractice
	}
}

func flashcards(a *domain.Assessment, results []domain.QuestionResult) []domain.Flashcard {
	var cards []domain.Flashcard
	for _, r := range results {
		if r.IsCorrect {
			continue
		}
		cards = append(cards, domain.Flashcard{
			Front:       r.Question,
			Back:        r.CorrectAnswer,
			Explanation: r.Explanation,
			Topic:       a.Topic,
			Source:      a.Kind,
		})
	}
	return cards
}

// alignResponses orders responses like the questions and rejects gaps,
// repeats and unknown question ids.
func alignResponses(questions []domain.Question, responses []domain.Response) ([]domain.Response, error) {
	if len(responses) != len(questions) {
		return nil, fmt.Errorf("%w: got %d responses for %d questions", domain.ErrResponseCount, len(responses), len(questions))
	}
	index := make(map[string]int, len(questions))
	for i, q := range questions {
		index[q.ID] = i
	}
	ordered := make([]domain.Response, len(questions))
	filled := make([]bool, len(questions))
	for _, r := range responses {
		i, ok := index[r.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, r.QuestionID)
		}
		if filled[i] {
			return nil, fmt.Errorf("%w: question %s answered twice", domain.ErrResponseCount, r.QuestionID)
		}
		filled[i] = true
		ordered[i] = r
	}
	return ordered, nil
}
