package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte(`
server:
  port: "9090"
assessment:
  quiz_pass_threshold: 0.6
multiplayer:
  round_timeout: 45s
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port from file, got %q", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6380" {
		t.Fatalf("expected redis addr from env, got %q", cfg.Redis.Addr)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("expected openai key picked from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Assessment.QuizPassThreshold != 0.6 || cfg.Assessment.ExamPassThreshold != 0.8 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Assessment)
	}
	if cfg.Assessment.MaxRetries != 5 || cfg.Multiplayer.DefaultRounds != 10 || cfg.Multiplayer.Countdown != 5 {
		t.Fatalf("defaults not applied: %+v %+v", cfg.Assessment, cfg.Multiplayer)
	}
	if got := TTLDuration(cfg.Multiplayer.RoundTimeout, time.Minute); got != 45*time.Second {
		t.Fatalf("expected 45s round timeout, got %s", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Provider == "" || !cfg.LLM.StructuredOutput() {
		t.Fatalf("expected llm defaults, got %+v", cfg.LLM)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %s", got)
	}
	if got := TTLDuration("nonsense", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for invalid, got %s", got)
	}
}

func TestExplicitZeroTemperatureIsKept(t *testing.T) {
	dir := t.TempDir()
	zero := filepath.Join(dir, "zero.yaml")
	if err := os.WriteFile(zero, []byte("llm:\n  temperature: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(zero)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.LLM.SamplingTemperature(); got != 0 {
		t.Fatalf("expected temperature 0 to be kept, got %v", got)
	}

	cfg, err = Load(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.LLM.SamplingTemperature(); got != 0.7 {
		t.Fatalf("expected default temperature 0.7, got %v", got)
	}
}
