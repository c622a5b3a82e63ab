package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"studybuddy-engine/internal/app"
	"studybuddy-engine/internal/config"
	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/infra/memory"
	pgstore "studybuddy-engine/internal/infra/postgres"
	redisstore "studybuddy-engine/internal/infra/redis"
	"studybuddy-engine/internal/llm"
	"studybuddy-engine/internal/logger"
	"studybuddy-engine/internal/observability"
	"studybuddy-engine/internal/question"
	transport "studybuddy-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type learnerStore interface {
	app.MasteryStore
	app.ProfileStore
	app.QuizHistoryStore
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// Question bank: postgres or demo questions, cached in redis or in process.
	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleQuestions())
	if pool != nil {
		loader = pgstore.NewQuestionLoader(pool)
	}
	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var bank question.Bank
	if redisClient != nil {
		bank = redisstore.NewQuestionBank(redisClient, loader, bankTTL, log)
	} else {
		bank = memory.NewQuestionBank(loader, bankTTL)
	}

	var learners learnerStore
	var sessions app.AssessmentRepository
	if pool != nil {
		learners = pgstore.NewLearnerStore(pool)
		sessions = pgstore.NewAssessmentStore(pool)
	} else {
		learners = memory.NewLearnerStore()
		sessions = memory.NewAssessmentStore()
	}

	provider, err := llm.NewProvider(ctx, llmConfig(cfg.LLM), log)
	if err != nil {
		return err
	}
	author := question.NewLLMAuthor(provider,
		question.WithStructuredOutput(cfg.LLM.StructuredOutput()),
		question.WithSampling(cfg.LLM.MaxTokens, cfg.LLM.SamplingTemperature()),
	)
	source := question.NewSource(author,
		question.WithBank(bank),
		question.WithHistory(learners),
		question.WithMaxAttempts(cfg.Assessment.MaxRetries),
		question.WithLogger(log),
	)

	hub := transport.NewHub()
	var broadcaster app.Broadcaster = hub
	if redisClient != nil {
		bus, err := redisstore.NewEventBus(redisClient, cfg.Redis.Channel, log)
		if err != nil {
			return err
		}
		if err := bus.StartForwarder(ctx, hub.Deliver); err != nil {
			return err
		}
		broadcaster = bus
	}

	var games app.GameRepository
	if redisClient != nil {
		games = redisstore.NewGameStore(redisClient, config.TTLDuration(cfg.Multiplayer.TTL, 2*time.Hour))
	} else {
		games = memory.NewGameStore()
	}

	assessments := app.NewAssessmentService(app.AssessmentDeps{
		Sessions: sessions,
		Source:   source,
		Mastery:  learners,
		Profiles: learners,
		History:  learners,
		Logger:   log,
	}, app.AssessmentConfig{
		QuizPassThreshold: cfg.Assessment.QuizPassThreshold,
		ExamPassThreshold: cfg.Assessment.ExamPassThreshold,
		DefaultQuestions:  cfg.Assessment.DefaultQuestions,
		MaxQuestions:      cfg.Assessment.MaxQuestions,
	})
	gameCfg := app.DefaultGameConfig()
	gameCfg.DefaultRounds = cfg.Multiplayer.DefaultRounds
	gameCfg.MaxRounds = cfg.Multiplayer.MaxRounds
	gameCfg.Countdown = cfg.Multiplayer.Countdown
	gameCfg.RoundTimeout = config.TTLDuration(cfg.Multiplayer.RoundTimeout, gameCfg.RoundTimeout)
	gameCfg.EndedGameTTL = config.TTLDuration(cfg.Multiplayer.EndedTTL, gameCfg.EndedGameTTL)
	gameService := app.NewGameService(games, source, learners, broadcaster, gameCfg, log)

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := transport.NewRouter(transport.RouterConfig{
		Assessments: assessments,
		Games:       gameService,
		Hub:         hub,
		Logger:      log,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// websocket connections are long lived, so no WriteTimeout
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting studybuddy engine", "port", finalPort, "llm_provider", cfg.LLM.Provider,
			"postgres", pool != nil, "redis", redisClient != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func llmConfig(c config.LLM) llm.Config {
	return llm.Config{
		Provider: c.Provider,
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
		Timeout:  config.TTLDuration(c.Timeout, 0),
		Retry: llm.RetryConfig{
			MaxAttempts: c.Retry.MaxAttempts,
			InitialWait: config.TTLDuration(c.Retry.InitialWait, time.Second),
			MaxWait:     config.TTLDuration(c.Retry.MaxWait, 10*time.Second),
			Multiplier:  c.Retry.Multiplier,
		},
	}
}

// sampleQuestions seeds the in-memory bank when no database is configured.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "demo-fractions-1",
			Text:          "What is 1/2 + 1/4?",
			Answers:       []string{"3/4", "2/6", "1/6", "2/4"},
			CorrectAnswer: "3/4",
			Explanation:   "Write 1/2 as 2/4, then 2/4 + 1/4 = 3/4.",
			Difficulty:    domain.DifficultyEasy,
			Subject:       "Maths",
			Topic:         "Fractions",
		},
		{
			ID:            "demo-fractions-2",
			Text:          "Which fraction is equivalent to 6/8?",
			Answers:       []string{"2/3", "3/4", "4/6", "5/8"},
			CorrectAnswer: "3/4",
			Explanation:   "Dividing top and bottom by 2 gives 3/4.",
			Difficulty:    domain.DifficultyMedium,
			Subject:       "Maths",
			Topic:         "Fractions",
		},
		{
			ID:            "demo-fractions-3",
			Text:          "What is 2/3 of 3/5?",
			Answers:       []string{"2/5", "5/8", "6/8", "1/3"},
			CorrectAnswer: "2/5",
			Explanation:   "Multiply numerators and denominators: 6/15, which simplifies to 2/5.",
			Difficulty:    domain.DifficultyHard,
			Subject:       "Maths",
			Topic:         "Fractions",
		},
	}
}
