package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"studybuddy-engine/internal/config"
	"studybuddy-engine/internal/domain"
	"studybuddy-engine/internal/infra/memory"
	"studybuddy-engine/internal/infra/postgres"
	infraredis "studybuddy-engine/internal/infra/redis"
	"studybuddy-engine/internal/logger"
	"studybuddy-engine/internal/question"
)

// NewBankCmd groups curated question bank maintenance.
func NewBankCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Manage the curated question bank",
	}
	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Validate and upsert questions from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runBankImport(cmd.Context(), cfg, file, log)
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "YAML file with a top-level questions list")
	_ = importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)
	return cmd
}

type bankFile struct {
	Questions []bankEntry `yaml:"questions"`
}

type bankEntry struct {
	Subject       string   `yaml:"subject"`
	Topic         string   `yaml:"topic"`
	YearGroup     string   `yaml:"year_group"`
	Difficulty    string   `yaml:"difficulty"`
	Question      string   `yaml:"question"`
	Answers       []string `yaml:"answers"`
	CorrectAnswer string   `yaml:"correct_answer"`
	Explanation   string   `yaml:"explanation"`
}

// loadBankFile parses and validates every entry, reporting all bad entries at once.
func loadBankFile(path string) ([]domain.Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f bankFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s has no questions", domain.ErrValidation, path)
	}

	validators := question.DefaultValidators()
	questions := make([]domain.Question, 0, len(f.Questions))
	var problems []string
	for i, e := range f.Questions {
		q := domain.Question{
			Text:          strings.TrimSpace(e.Question),
			Answers:       e.Answers,
			CorrectAnswer: e.CorrectAnswer,
			Explanation:   e.Explanation,
			Difficulty:    domain.Difficulty(strings.ToLower(strings.TrimSpace(e.Difficulty))),
			Subject:       strings.TrimSpace(e.Subject),
			Topic:         strings.TrimSpace(e.Topic),
			YearGroup:     strings.TrimSpace(e.YearGroup),
		}
		switch {
		case q.Subject == "" || q.Topic == "":
			problems = append(problems, fmt.Sprintf("#%d: subject and topic are required", i+1))
			continue
		case !q.Difficulty.Valid():
			problems = append(problems, fmt.Sprintf("#%d: unknown difficulty %q", i+1, e.Difficulty))
			continue
		}
		if err := question.Check(q, validators); err != nil {
			problems = append(problems, fmt.Sprintf("#%d: %v", i+1, err))
			continue
		}
		questions = append(questions, q)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(problems, "; "))
	}
	return questions, nil
}

func runBankImport(ctx context.Context, cfg config.Config, path string, log *logger.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	questions, err := loadBankFile(path)
	if err != nil {
		return err
	}

	db := postgres.OpenBun(cfg.Postgres.URL)
	defer db.Close()
	if _, err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	n, err := postgres.NewBankImporter(db).Import(ctx, questions)
	if err != nil {
		return err
	}

	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cache := infraredis.NewQuestionBank(client, nil, 0, log)
		for _, key := range bucketKeys(questions) {
			if err := cache.Invalidate(ctx, key); err != nil {
				log.Warn("bank cache invalidation failed", "bucket", key.String(), "error", err)
			}
		}
	}
	log.Info("question bank imported", "file", path, "questions", n)
	return nil
}

func bucketKeys(questions []domain.Question) []memory.BankKey {
	seen := make(map[string]struct{})
	var keys []memory.BankKey
	for _, q := range questions {
		key := memory.BankKey{Subject: q.Subject, Topic: q.Topic, Difficulty: q.Difficulty}
		if _, ok := seen[key.String()]; ok {
			continue
		}
		seen[key.String()] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
