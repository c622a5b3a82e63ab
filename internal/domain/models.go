package domain

import "time"

// Difficulty buckets a question for both selection and mastery weighting.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the three known buckets.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Question is a four-option multiple-choice question.
type Question struct {
	ID            string     `json:"id"`
	Text          string     `json:"question"`
	Answers       []string   `json:"answers"`
	CorrectAnswer string     `json:"correctAnswer"`
	Explanation   string     `json:"explanation"`
	Difficulty    Difficulty `json:"difficulty"`
	Subject       string     `json:"subject,omitempty"`
	Topic         string     `json:"topic,omitempty"`
	YearGroup     string     `json:"yearGroup,omitempty"`
}

// PublicQuestion is what players see while a round is open.
type PublicQuestion struct {
	ID         string     `json:"id"`
	Text       string     `json:"question"`
	Answers    []string   `json:"answers"`
	Difficulty Difficulty `json:"difficulty"`
}

// Public strips the answer key.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Text:       q.Text,
		Answers:    append([]string(nil), q.Answers...),
		Difficulty: q.Difficulty,
	}
}

// HistoryEntry records a question already shown to a learner.
type HistoryEntry struct {
	QuestionID string    `json:"questionId"`
	Text       string    `json:"question"`
	Subject    string    `json:"subject"`
	Topic      string    `json:"topic"`
	Difficulty Difficulty `json:"difficulty"`
	IssuedAt   time.Time `json:"issuedAt"`
}

// MemoryTypeTopic tags learner memories that name a topic of interest.
const MemoryTypeTopic = "topic"

// Memory is a remembered fact about the learner.
type Memory struct {
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// LearnerProfile is the learner context used to pick topics.
type LearnerProfile struct {
	UserID    string   `json:"userId"`
	YearGroup string   `json:"yearGroup"`
	StudyGoal string   `json:"studyGoal"`
	Memories  []Memory `json:"memories"`
}

// TopicMastery is the stored proficiency for one (subject, topic).
type TopicMastery struct {
	Subject     string    `json:"subject"`
	Topic       string    `json:"topic"`
	Proficiency float64   `json:"proficiency"`
	NextReview  time.Time `json:"nextReview"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LearningHistoryEntry records one finished assessment.
type LearningHistoryEntry struct {
	AssessmentID      string         `json:"assessmentId"`
	Kind              AssessmentKind `json:"kind"`
	Subject           string         `json:"subject"`
	Topic             string         `json:"topic"`
	Score             float64        `json:"score"`
	Passed            bool           `json:"passed"`
	ProficiencyBefore float64        `json:"proficiencyBefore"`
	ProficiencyAfter  float64        `json:"proficiencyAfter"`
	NextReview        time.Time      `json:"nextReview"`
	CompletedAt       time.Time      `json:"completedAt"`
}
