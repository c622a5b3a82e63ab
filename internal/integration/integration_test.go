package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"studybuddy-engine/internal/app"
	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/infra/postgres"
	infraredis "studybuddy-engine/internal/infra/redis"
	"studybuddy-engine/internal/llm"
	"studybuddy-engine/internal/question"
)

func TestQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedBank(t, ctx, pgURL, sampleBank())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	bank := infraredis.NewQuestionBank(redisClient, postgres.NewQuestionLoader(pool), 5*time.Minute, nil)
	learners := postgres.NewLearnerStore(pool)

	// The bank holds one easy question; the author covers the second draw.
	provider := llm.NewMockProvider(llm.MockResponse{
		Text: `{"question":"What is 3 x 3?","answers":["6","9","12","33"],"correct_answer":"9","explanation":"Three threes are nine."}`,
	})
	source := question.NewSource(question.NewLLMAuthor(provider),
		question.WithBank(bank),
		question.WithHistory(learners),
	)
	service := app.NewAssessmentService(app.AssessmentDeps{
		Sessions: postgres.NewAssessmentStore(pool),
		Source:   source,
		Mastery:  learners,
		Profiles: learners,
		History:  learners,
	}, app.DefaultAssessmentConfig())

	quiz, err := service.CreateQuiz(ctx, app.CreateRequest{UserID: "u1", Subject: "Maths", Topic: "Arithmetic", Count: 2})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(quiz.Questions))
	}

	responses := make([]domain.Response, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		responses = append(responses, domain.Response{QuestionID: q.ID, Answer: q.CorrectAnswer})
	}
	done, err := service.Submit(ctx, quiz.ID, responses)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if done.Status != domain.StatusCompleted || !done.Result.Passed || done.Result.Score != 1 {
		t.Fatalf("expected passing completed quiz, got %+v", done.Result)
	}

	tm, err := learners.Mastery(ctx, "u1", "Maths", "Arithmetic")
	if err != nil {
		t.Fatalf("mastery: %v", err)
	}
	if tm.Proficiency <= 0 {
		t.Fatalf("expected proficiency to rise, got %v", tm.Proficiency)
	}
	history, err := learners.QuizHistory(ctx, "u1")
	if err != nil {
		t.Fatalf("quiz history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected both questions recorded, got %d", len(history))
	}

	learning, err := learners.LearningHistory(ctx, "u1")
	if err != nil {
		t.Fatalf("learning history: %v", err)
	}
	if len(learning) != 1 || learning[0].AssessmentID != quiz.ID || learning[0].Kind != domain.KindQuiz {
		t.Fatalf("unexpected learning history %+v", learning)
	}
	topics, err := service.Proficiency(ctx, "u1")
	if err != nil {
		t.Fatalf("proficiency: %v", err)
	}
	if len(topics) != 1 || topics[0].Topic != "Arithmetic" {
		t.Fatalf("unexpected proficiency listing %+v", topics)
	}

	stored, err := service.Get(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Result == nil || stored.Result.NextStep == "" {
		t.Fatalf("expected stored result, got %+v", stored)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "study", "POSTGRES_PASSWORD": "studypass", "POSTGRES_DB": "studydb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://study:studypass@%s:%s/studydb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

// seedBank runs the real migrations, then imports questions with the bank importer.
func seedBank(t *testing.T, ctx context.Context, dsn string, questions []domain.Question) {
	t.Helper()
	db := postgres.OpenBun(dsn)
	defer db.Close()

	if _, err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := postgres.NewBankImporter(db).Import(ctx, questions); err != nil {
		t.Fatalf("import bank: %v", err)
	}
}

func sampleBank() []domain.Question {
	return []domain.Question{
		{
			Text:          "What is 2 + 2?",
			Answers:       []string{"3", "4", "5", "6"},
			CorrectAnswer: "4",
			Explanation:   "Two plus two makes four.",
			Difficulty:    domain.DifficultyEasy,
			Subject:       "Maths",
			Topic:         "Arithmetic",
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
