package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studybuddy-engine/internal/app"
	"studybuddy-engine/internal/domain"
)

// AssessmentAPI is the single-player surface consumed by the REST handlers.
type AssessmentAPI interface {
	CreateQuiz(ctx context.Context, req app.CreateRequest) (*domain.Assessment, error)
	CreateExam(ctx context.Context, req app.CreateRequest) (*domain.Assessment, error)
	Get(ctx context.Context, id string) (*domain.Assessment, error)
	Submit(ctx context.Context, id string, responses []domain.Response) (*domain.Assessment, error)
	Evaluate(ctx context.Context, id string) (*domain.Assessment, error)
	Proficiency(ctx context.Context, userID string) ([]domain.TopicMastery, error)
}

// GameAPI is the multiplayer surface shared by REST and websocket handlers.
type GameAPI interface {
	Create(ctx context.Context, req app.CreateGameRequest) (domain.GameSnapshot, error)
	Join(ctx context.Context, code, userID, name string) (domain.GameSnapshot, error)
	Start(ctx context.Context, code, userID string) (domain.GameSnapshot, error)
	SubmitAnswer(ctx context.Context, code, userID string, sub domain.AnswerSubmission) (domain.AnswerResult, error)
	Leave(ctx context.Context, code, userID string) error
	State(ctx context.Context, code string) (domain.GameSnapshot, error)
}

type AssessmentHandler struct {
	service AssessmentAPI
}

func NewAssessmentHandler(service AssessmentAPI) *AssessmentHandler {
	return &AssessmentHandler{service: service}
}

type createAssessmentRequest struct {
	UserID           string `json:"userId" binding:"required"`
	Subject          string `json:"subject"`
	Topic            string `json:"topic"`
	YearGroup        string `json:"yearGroup"`
	Count            int    `json:"count"`
	FromAssessmentID string `json:"fromAssessmentId"`
}

func (r createAssessmentRequest) toApp() app.CreateRequest {
	return app.CreateRequest{
		UserID:           r.UserID,
		Subject:          r.Subject,
		Topic:            r.Topic,
		YearGroup:        r.YearGroup,
		Count:            r.Count,
		FromAssessmentID: r.FromAssessmentID,
	}
}

type submitRequest struct {
	Responses []domain.Response `json:"responses" binding:"required"`
}

// assessmentView withholds the answer key until the session is completed.
type assessmentView struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"userId"`
	Kind          domain.AssessmentKind   `json:"kind"`
	Subject       string                  `json:"subject"`
	Topic         string                  `json:"topic"`
	YearGroup     string                  `json:"yearGroup"`
	Status        domain.AssessmentStatus `json:"status"`
	PassThreshold float64                 `json:"passThreshold"`
	Questions     any                     `json:"questions"`
	Result        *domain.ScoreResult     `json:"result,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
}

func newAssessmentView(a *domain.Assessment) assessmentView {
	v := assessmentView{
		ID:            a.ID,
		UserID:        a.UserID,
		Kind:          a.Kind,
		Subject:       a.Subject,
		Topic:         a.Topic,
		YearGroup:     a.YearGroup,
		Status:        a.Status,
		PassThreshold: a.PassThreshold,
		CreatedAt:     a.CreatedAt,
	}
	if a.Status == domain.StatusCompleted {
		v.Questions = a.Questions
		v.Result = a.Result
		return v
	}
	public := make([]domain.PublicQuestion, len(a.Questions))
	for i, q := range a.Questions {
		public[i] = q.Public()
	}
	v.Questions = public
	return v
}

// POST /api/quizzes
func (h *AssessmentHandler) CreateQuiz(c *gin.Context) {
	var req createAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	a, err := h.service.CreateQuiz(c.Request.Context(), req.toApp())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assessment": newAssessmentView(a)})
}

// POST /api/exams
func (h *AssessmentHandler) CreateExam(c *gin.Context) {
	var req createAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	a, err := h.service.CreateExam(c.Request.Context(), req.toApp())
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"assessment": newAssessmentView(a)})
}

// GET /api/assessments/:id
func (h *AssessmentHandler) Get(c *gin.Context) {
	a, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"assessment": newAssessmentView(a)})
}

// POST /api/assessments/:id/submit
func (h *AssessmentHandler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	a, err := h.service.Submit(c.Request.Context(), c.Param("id"), req.Responses)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"assessment": newAssessmentView(a)})
}

// POST /api/assessments/:id/evaluate
func (h *AssessmentHandler) Evaluate(c *gin.Context) {
	a, err := h.service.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"assessment": newAssessmentView(a)})
}

// GET /api/learners/:userId/mastery
func (h *AssessmentHandler) Mastery(c *gin.Context) {
	topics, err := h.service.Proficiency(c.Request.Context(), c.Param("userId"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"topics": topics})
}

type GameHandler struct {
	service GameAPI
}

func NewGameHandler(service GameAPI) *GameHandler {
	return &GameHandler{service: service}
}

type createGameRequest struct {
	HostID      string `json:"hostId" binding:"required"`
	DisplayName string `json:"displayName"`
	Subject     string `json:"subject"`
	Topic       string `json:"topic"`
	YearGroup   string `json:"yearGroup"`
	MaxRounds   int    `json:"maxRounds"`
}

type playerRequest struct {
	UserID      string `json:"userId" binding:"required"`
	DisplayName string `json:"displayName"`
}

type answerRequest struct {
	UserID     string  `json:"userId" binding:"required"`
	QuestionID string  `json:"questionId" binding:"required"`
	Answer     string  `json:"answer"`
	Latency    float64 `json:"latency"`
}

// POST /api/games
func (h *GameHandler) Create(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	snap, err := h.service.Create(c.Request.Context(), app.CreateGameRequest{
		HostID:      req.HostID,
		DisplayName: req.DisplayName,
		Subject:     req.Subject,
		Topic:       req.Topic,
		YearGroup:   req.YearGroup,
		MaxRounds:   req.MaxRounds,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"game": snap})
}

// GET /api/games/:code
func (h *GameHandler) State(c *gin.Context) {
	snap, err := h.service.State(c.Request.Context(), c.Param("code"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"game": snap})
}

// POST /api/games/:code/join
func (h *GameHandler) Join(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	snap, err := h.service.Join(c.Request.Context(), c.Param("code"), req.UserID, req.DisplayName)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"game": snap})
}

// POST /api/games/:code/start
func (h *GameHandler) Start(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	snap, err := h.service.Start(c.Request.Context(), c.Param("code"), req.UserID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"game": snap})
}

// POST /api/games/:code/answers
func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	result, err := h.service.SubmitAnswer(c.Request.Context(), c.Param("code"), req.UserID, domain.AnswerSubmission{
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		Latency:    req.Latency,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}

// POST /api/games/:code/leave
func (h *GameHandler) Leave(c *gin.Context) {
	var req playerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.service.Leave(c.Request.Context(), c.Param("code"), req.UserID); err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
