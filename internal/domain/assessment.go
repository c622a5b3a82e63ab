package domain

import "time"

// AssessmentKind distinguishes practice quizzes from exams.
type AssessmentKind string

const (
	KindQuiz AssessmentKind = "quiz"
	KindExam AssessmentKind = "exam"
)

// AssessmentStatus is the lifecycle position of a single-player session.
type AssessmentStatus string

const (
	StatusInProgress AssessmentStatus = "in_progress"
	StatusSubmitted  AssessmentStatus = "submitted"
	StatusCompleted  AssessmentStatus = "completed"
)

// NextStep is the follow-up recommended after scoring.
type NextStep string

const (
	NextStepFlashcards   NextStep = "flashcards"
	NextStepExamEligible NextStep = "exam_eligible"
	NextStepPractice     NextStep = "practice"
	NextStepComplete     NextStep = "complete"
)

// Response is one learner answer.
type Response struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// QuestionResult is the per-question breakdown returned after scoring.
type QuestionResult struct {
	QuestionID    string `json:"questionId"`
	Question      string `json:"question"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Explanation   string `json:"explanation"`
}

// Flashcard is a review card built from a missed question.
type Flashcard struct {
	Front       string         `json:"front"`
	Back        string         `json:"back"`
	Explanation string         `json:"explanation"`
	Topic       string         `json:"topic"`
	Source      AssessmentKind `json:"source"`
}

// Assessment is a single-player quiz or exam session.
type Assessment struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	Kind          AssessmentKind   `json:"kind"`
	Subject       string           `json:"subject"`
	Topic         string           `json:"topic"`
	YearGroup     string           `json:"yearGroup"`
	Questions     []Question       `json:"questions"`
	Status        AssessmentStatus `json:"status"`
	Responses     []Response       `json:"responses,omitempty"`
	PassThreshold float64          `json:"passThreshold"`
	Result        *ScoreResult     `json:"result,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	SubmittedAt   time.Time        `json:"submittedAt,omitempty"`
	CompletedAt   time.Time        `json:"completedAt,omitempty"`
}

// ScoreResult is the outcome of scoring an assessment.
type ScoreResult struct {
	Score             float64          `json:"score"`
	Correct           int              `json:"correct"`
	Total             int              `json:"total"`
	Passed            bool             `json:"passed"`
	ProficiencyBefore float64          `json:"proficiencyBefore"`
	ProficiencyAfter  float64          `json:"proficiencyAfter"`
	NextReview        time.Time        `json:"nextReview"`
	NextStep          NextStep         `json:"nextStep"`
	Results           []QuestionResult `json:"results"`
	Flashcards        []Flashcard      `json:"flashcards,omitempty"`
}

// Clone returns a deep copy safe to hand across goroutines or store boundaries.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	out := *a
	out.Questions = make([]Question, len(a.Questions))
	for i, q := range a.Questions {
		q.Answers = append([]string(nil), q.Answers...)
		out.Questions[i] = q
	}
	out.Responses = append([]Response(nil), a.Responses...)
	if a.Result != nil {
		r := *a.Result
		r.Results = append([]QuestionResult(nil), a.Result.Results...)
		r.Flashcards = append([]Flashcard(nil), a.Result.Flashcards...)
		out.Result = &r
	}
	return &out
}
