package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"studybuddy-engine/internal/app"
	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/infra/memory"
	"studybuddy-engine/internal/question"
)

func TestWebSocketGameFlow(t *testing.T) {
	server, games := newTestServer(t)

	snap, err := games.Create(context.Background(), app.CreateGameRequest{HostID: "u1", DisplayName: "Alice", Topic: "Fractions", MaxRounds: 1})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	host := dial(t, server, snap.Code, "u1", "Alice")
	readUntil(t, host, "joined")

	guest := dial(t, server, snap.Code, "u2", "Bob")
	readUntil(t, guest, "joined")
	readUntil(t, host, domain.EventPlayerJoined)

	if err := host.WriteJSON(map[string]any{"type": "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	payload := readUntil(t, host, domain.EventNewQuestion)
	q, _ := payload["question"].(map[string]any)
	questionID, _ := q["id"].(string)
	if questionID == "" {
		t.Fatalf("expected question id in %v", payload)
	}
	if _, leaked := q["correctAnswer"]; leaked {
		t.Fatalf("correct answer must not be broadcast with the question")
	}
	readUntil(t, guest, domain.EventNewQuestion)

	for _, conn := range []*websocket.Conn{host, guest} {
		answer := map[string]any{
			"type":    "answer",
			"payload": map[string]any{"questionId": questionID, "answer": "B", "latency": 3},
		}
		if err := conn.WriteJSON(answer); err != nil {
			t.Fatalf("write answer: %v", err)
		}
	}

	ended := readUntil(t, guest, domain.EventGameEnded)
	if ended["reason"] != "completed" {
		t.Fatalf("expected completed game, got %v", ended)
	}
	entries, _ := ended["leaderboard"].([]any)
	if len(entries) != 2 {
		t.Fatalf("expected two leaderboard entries, got %v", ended["leaderboard"])
	}
}

func TestWebSocketRejectsUnknownGame(t *testing.T) {
	server, _ := newTestServer(t)

	conn := dial(t, server, "NOPE00", "u1", "Alice")
	payload := readUntil(t, conn, "error")
	if payload["code"] != "not_found" {
		t.Fatalf("expected not_found, got %v", payload)
	}
}

func TestAssessmentQuizFlow(t *testing.T) {
	server, _ := newTestServer(t)

	var created struct {
		Assessment struct {
			ID        string           `json:"id"`
			Status    string           `json:"status"`
			Questions []map[string]any `json:"questions"`
		} `json:"assessment"`
	}
	status := doJSON(t, server, http.MethodPost, "/api/quizzes", map[string]any{
		"userId": "u1", "subject": "Maths", "topic": "Fractions", "count": 2,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if len(created.Assessment.Questions) != 2 {
		t.Fatalf("expected two questions, got %d", len(created.Assessment.Questions))
	}
	for _, q := range created.Assessment.Questions {
		if _, leaked := q["correctAnswer"]; leaked {
			t.Fatalf("answer key exposed before completion: %v", q)
		}
	}

	responses := make([]map[string]string, 0, 2)
	for _, q := range created.Assessment.Questions {
		responses = append(responses, map[string]string{"questionId": q["id"].(string), "answer": "B"})
	}
	var submitted struct {
		Assessment struct {
			Status string `json:"status"`
			Result struct {
				Score    float64 `json:"score"`
				Passed   bool    `json:"passed"`
				NextStep string  `json:"nextStep"`
			} `json:"result"`
		} `json:"assessment"`
	}
	status = doJSON(t, server, http.MethodPost, "/api/assessments/"+created.Assessment.ID+"/submit",
		map[string]any{"responses": responses}, &submitted)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if submitted.Assessment.Status != string(domain.StatusCompleted) || submitted.Assessment.Result.Score != 1 || !submitted.Assessment.Result.Passed {
		t.Fatalf("unexpected result %+v", submitted.Assessment)
	}
}

func TestSubmitWithWrongCountIsBadRequest(t *testing.T) {
	server, _ := newTestServer(t)

	var created struct {
		Assessment struct {
			ID string `json:"id"`
		} `json:"assessment"`
	}
	doJSON(t, server, http.MethodPost, "/api/quizzes", map[string]any{"userId": "u1", "topic": "Fractions", "count": 2}, &created)

	var envelope ErrorEnvelope
	status := doJSON(t, server, http.MethodPost, "/api/assessments/"+created.Assessment.ID+"/submit",
		map[string]any{"responses": []map[string]string{{"questionId": "x", "answer": "B"}}}, &envelope)
	if status != http.StatusBadRequest || envelope.Error.Code != "validation_failed" {
		t.Fatalf("expected 400 validation_failed, got %d %+v", status, envelope)
	}
}

func TestUnknownGameIsNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	var envelope ErrorEnvelope
	status := doJSON(t, server, http.MethodGet, "/api/games/ZZZZZZ", nil, &envelope)
	if status != http.StatusNotFound || envelope.Error.Code != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %+v", status, envelope)
	}
}

func TestStatusForKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrResponseCount, http.StatusBadRequest},
		{domain.ErrGameNotFound, http.StatusNotFound},
		{domain.ErrStaleSubmission, http.StatusConflict},
		{domain.ErrDuplicateExhausted, http.StatusServiceUnavailable},
		{&domain.AuthoringError{Reason: "bad json"}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := StatusFor(fmt.Errorf("wrapped: %w", tc.err)); got != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, got)
		}
	}
}

func TestHubDropsOldestForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	updates, cancel := hub.Subscribe("ROOM01")
	defer cancel()

	for i := 0; i < subscriberBuffer+3; i++ {
		hub.Deliver(domain.Event{Type: "tick", GameCode: "ROOM01", Payload: i})
	}

	first := <-updates
	if first.Payload != 3 {
		t.Fatalf("expected oldest events dropped, first payload %v", first.Payload)
	}

	cancel()
	if hub.Subscribers("ROOM01") != 0 {
		t.Fatalf("expected room released")
	}
	hub.Deliver(domain.Event{Type: "tick", GameCode: "ROOM01"})
}

// seqSource hands out distinct questions whose correct answer is always "B".
type seqSource struct {
	mu sync.Mutex
	n  int
}

func (s *seqSource) Draw(_ context.Context, req question.DrawRequest) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return domain.Question{
		ID:            fmt.Sprintf("q%d", s.n),
		Text:          fmt.Sprintf("Question %d?", s.n),
		Answers:       []string{"A", "B", "C", "D"},
		CorrectAnswer: "B",
		Explanation:   "B is right.",
		Difficulty:    req.Difficulty,
		Subject:       req.Subject,
		Topic:         req.Topic,
	}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *app.GameService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	source := &seqSource{}
	learners := memory.NewLearnerStore()
	assessments := app.NewAssessmentService(app.AssessmentDeps{
		Sessions: memory.NewAssessmentStore(),
		Source:   source,
		Mastery:  learners,
		Profiles: learners,
		History:  learners,
	}, app.DefaultAssessmentConfig())
	cfg := app.DefaultGameConfig()
	cfg.RoundTimeout = 0
	games := app.NewGameService(memory.NewGameStore(), source, learners, hub, cfg, nil)

	server := httptest.NewServer(NewRouter(RouterConfig{
		Assessments: assessments,
		Games:       games,
		Hub:         hub,
	}))
	t.Cleanup(server.Close)
	return server, games
}

func dial(t *testing.T, server *httptest.Server, code, userID, name string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?gameCode=" + code + "&userId=" + userID + "&name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	for i := 0; i < 20; i++ {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", want, err)
		}
		if msg.Type == want {
			return msg.Payload
		}
	}
	t.Fatalf("no %s message within 20 reads", want)
	return nil
}

func doJSON(t *testing.T, server *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}
