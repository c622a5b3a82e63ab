package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy-engine/internal/logger"
)

type RouterConfig struct {
	Assessments AssessmentAPI
	Games       GameAPI
	Hub         *Hub
	Logger      *logger.Logger
}

// NewRouter wires the REST surface and the websocket game channel.
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	ws := NewWSHandler(cfg.Games, cfg.Hub, log)
	r.GET("/ws", ws.ServeWS)

	api := r.Group("/api")
	{
		h := NewAssessmentHandler(cfg.Assessments)
		api.POST("/quizzes", h.CreateQuiz)
		api.POST("/exams", h.CreateExam)
		api.GET("/assessments/:id", h.Get)
		api.POST("/assessments/:id/submit", h.Submit)
		api.POST("/assessments/:id/evaluate", h.Evaluate)
		api.GET("/learners/:userId/mastery", h.Mastery)
	}
	{
		h := NewGameHandler(cfg.Games)
		api.POST("/games", h.Create)
		api.GET("/games/:code", h.State)
		api.POST("/games/:code/join", h.Join)
		api.POST("/games/:code/start", h.Start)
		api.POST("/games/:code/answers", h.SubmitAnswer)
		api.POST("/games/:code/leave", h.Leave)
	}
	return r
}
