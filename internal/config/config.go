package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Mode string `yaml:"mode"`
	} `yaml:"server"`
	Log struct {
		Mode string `yaml:"mode"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Bank struct {
		TTL string `yaml:"ttl"`
	} `yaml:"bank"`
	LLM         LLM         `yaml:"llm"`
	Assessment  Assessment  `yaml:"assessment"`
	Multiplayer Multiplayer `yaml:"multiplayer"`
	Tracing     Tracing     `yaml:"tracing"`
}

type LLM struct {
	Provider    string   `yaml:"provider"`
	Model       string   `yaml:"model"`
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	Timeout     string   `yaml:"timeout"`
	Structured  *bool    `yaml:"structured"`
	Retry       struct {
		MaxAttempts int     `yaml:"max_attempts"`
		InitialWait string  `yaml:"initial_wait"`
		MaxWait     string  `yaml:"max_wait"`
		Multiplier  float64 `yaml:"multiplier"`
	} `yaml:"retry"`
}

type Assessment struct {
	QuizPassThreshold float64 `yaml:"quiz_pass_threshold"`
	ExamPassThreshold float64 `yaml:"exam_pass_threshold"`
	DefaultQuestions  int     `yaml:"default_questions"`
	MaxQuestions      int     `yaml:"max_questions"`
	MaxRetries        int     `yaml:"max_retries"`
}

type Multiplayer struct {
	DefaultRounds int    `yaml:"default_rounds"`
	MaxRounds     int    `yaml:"max_rounds"`
	Countdown     int    `yaml:"countdown"`
	RoundTimeout  string `yaml:"round_timeout"`
	EndedTTL      string `yaml:"ended_ttl"`
	TTL           string `yaml:"ttl"`
}

type Tracing struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
	ServiceName string  `yaml:"service_name"`
}

// Load reads YAML config from path, then applies .env and environment overrides.
// A missing file is not an error; defaults plus environment are used instead.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, err
	}

	_ = godotenv.Load()
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Mode, "LOG_MODE")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.LLM.Provider, "LLM_PROVIDER")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		cfg.Tracing.Enabled, _ = strconv.ParseBool(v)
	}

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "gemini", "":
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
}

const defaultTemperature = 0.7

func applyDefaults(cfg *Config) {
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "dev"
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "studybuddy:game-events"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Retry.MaxAttempts == 0 {
		cfg.LLM.Retry.MaxAttempts = 3
	}
	if cfg.LLM.Retry.Multiplier == 0 {
		cfg.LLM.Retry.Multiplier = 2
	}
	if cfg.Assessment.QuizPassThreshold == 0 {
		cfg.Assessment.QuizPassThreshold = 0.7
	}
	if cfg.Assessment.ExamPassThreshold == 0 {
		cfg.Assessment.ExamPassThreshold = 0.8
	}
	if cfg.Assessment.DefaultQuestions == 0 {
		cfg.Assessment.DefaultQuestions = 5
	}
	if cfg.Assessment.MaxQuestions == 0 {
		cfg.Assessment.MaxQuestions = 20
	}
	if cfg.Assessment.MaxRetries == 0 {
		cfg.Assessment.MaxRetries = 5
	}
	if cfg.Multiplayer.DefaultRounds == 0 {
		cfg.Multiplayer.DefaultRounds = 10
	}
	if cfg.Multiplayer.MaxRounds == 0 {
		cfg.Multiplayer.MaxRounds = 20
	}
	if cfg.Multiplayer.Countdown == 0 {
		cfg.Multiplayer.Countdown = 5
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 0.1
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "studybuddy-engine"
	}
}

// StructuredOutput reports whether providers should be asked for schema-constrained output.
func (l LLM) StructuredOutput() bool {
	return l.Structured == nil || *l.Structured
}

// SamplingTemperature returns the configured temperature. An explicit 0 is kept.
func (l LLM) SamplingTemperature() float64 {
	if l.Temperature == nil {
		return defaultTemperature
	}
	return *l.Temperature
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
