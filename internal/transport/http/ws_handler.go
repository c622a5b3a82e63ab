package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/logger"
)

type WSHandler struct {
	service  GameAPI
	hub      *Hub
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service GameAPI, hub *Hub, log *logger.Logger) *WSHandler {
	if hub == nil {
		hub = NewHub()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		service: service,
		hub:     hub,
		log:     log.With("component", "ws_handler"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string  `json:"questionId"`
	Answer     string  `json:"answer"`
	Latency    float64 `json:"latency"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func errorMessage(err error) outboundMessage {
	_, code := StatusFor(err)
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error(), Code: code}}
}

// ServeWS upgrades a request to a websocket bound to one player in one game.
// The connection joins the game (or reattaches if the player already joined
// over REST), relays room events, and leaves the game when it closes.
func (h *WSHandler) ServeWS(c *gin.Context) {
	r := c.Request
	code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("gameCode")))
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	displayName := r.URL.Query().Get("name")
	if code == "" || userID == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing gameCode or userId"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, cancel := h.hub.Subscribe(code)
	defer cancel()

	joined, err := h.service.Join(ctx, code, userID, displayName)
	if errors.Is(err, domain.ErrAlreadyJoined) {
		joined, err = h.service.State(ctx, code)
	}
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	left := false
	defer func() {
		if !left {
			if err := h.service.Leave(ctx, code, userID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				h.log.Warn("leave on disconnect failed", "game_code", code, "user_id", userID, "error", err)
			}
		}
	}()

	send := make(chan outboundMessage, subscriberBuffer)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections support one concurrent writer
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "game_code", code, "user_id", userID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: event.Type, Payload: event.Payload}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	emit := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	emit(outboundMessage{Type: "joined", Payload: joined})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			snap, err := h.service.Start(ctx, code, userID)
			if err != nil {
				emit(errorMessage(err))
				continue
			}
			emit(outboundMessage{Type: "state", Payload: snap})
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Code: "invalid_request"}})
				continue
			}
			result, err := h.service.SubmitAnswer(ctx, code, userID, domain.AnswerSubmission{
				QuestionID: payload.QuestionID,
				Answer:     payload.Answer,
				Latency:    payload.Latency,
			})
			if err != nil {
				emit(errorMessage(err))
				continue
			}
			emit(outboundMessage{Type: "answer_result", Payload: result})
		case "state":
			snap, err := h.service.State(ctx, code)
			if err != nil {
				emit(errorMessage(err))
				continue
			}
			emit(outboundMessage{Type: "state", Payload: snap})
		case "leave":
			if err := h.service.Leave(ctx, code, userID); err != nil {
				emit(errorMessage(err))
				continue
			}
			left = true
		default:
			emit(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type", Code: "invalid_request"}})
		}
		if left {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
