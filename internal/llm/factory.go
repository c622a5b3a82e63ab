package llm

import (
	"context"
	"fmt"
	"time"

	"studybuddy-engine/internal/logger"
)

// Config selects and configures one provider.
type Config struct {
	// Provider is one of "gemini", "openai", "anthropic" or "mock".
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Retry    RetryConfig
	// Timeout bounds a single Generate call including retries. Zero disables it.
	Timeout time.Duration
}

// Validate checks that the selected provider has what it needs.
func (c Config) Validate() error {
	switch c.Provider {
	case "gemini", "openai", "anthropic":
		if c.APIKey == "" {
			return fmt.Errorf("an API key is required for the %s provider", c.Provider)
		}
	case "mock":
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	return nil
}

// NewProvider builds the configured provider wrapped as caller → timeout → retry → logging → base.
func NewProvider(ctx context.Context, cfg Config, log *logger.Logger) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var base Provider
	var err error
	switch cfg.Provider {
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case "openai":
		base, err = NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.APIKey, cfg.Model)
	case "mock":
		return NewMockProvider(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	p := WithRetry(WithLogging(base, log), cfg.Retry)
	if cfg.Timeout > 0 {
		p = &timeoutProvider{inner: p, timeout: cfg.Timeout}
	}
	return p, nil
}

type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

func (t *timeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, req)
}

func (t *timeoutProvider) ModelID() string {
	return t.inner.ModelID()
}
