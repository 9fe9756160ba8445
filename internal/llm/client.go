// Package llm wraps the hosted text generation API behind a single-prompt
// Generator, with an outbound rate limit and a stub mode for development.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Providers
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderStub      = "stub"
)

const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	defaultRateLimit      = 5 // requests per second
	defaultBurst          = 10
	defaultTimeout        = 30 * time.Second
)

var (
	// ErrNotConfigured is returned on first use when a real provider has no API key
	ErrNotConfigured = errors.New("text generation is not configured")
	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("empty response from text generation")
)

// Generator produces text for a single prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and tunes the provider
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	// BaseURL points the openai provider at a compatible endpoint
	BaseURL   string
	MaxTokens int
}

// Client is the langchaingo-backed Generator. The underlying model is built
// lazily so a missing key only fails generation, not startup.
type Client struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter
	timeout time.Duration

	mu    sync.Mutex
	model llms.Model
}

// Option customises a Client
type Option func(*Client)

// WithModel injects a ready-made langchaingo model
func WithModel(m llms.Model) Option {
	return func(c *Client) { c.model = m }
}

// WithLimiter replaces the default outbound limiter
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New creates a client for cfg
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	c := &Client{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends prompt to the configured provider and returns trimmed text
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.Provider == ProviderStub && c.model == nil {
		return stubResponse(prompt), nil
	}

	model, err := c.getModel()
	if err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := llms.GenerateFromSinglePrompt(ctx, model, prompt, llms.WithMaxTokens(c.cfg.MaxTokens))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("llm_generated",
		zap.String("provider", c.cfg.Provider),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("response_chars", len(text)),
		zap.Duration("duration", time.Since(start)))
	return text, nil
}

func (c *Client) getModel() (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model != nil {
		return c.model, nil
	}
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: LLM_API_KEY is not set for provider %q", ErrNotConfigured, c.cfg.Provider)
	}

	var (
		model llms.Model
		err   error
	)
	switch c.cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(c.cfg.APIKey),
			openai.WithModel(orDefault(c.cfg.Model, defaultOpenAIModel)),
		}
		if c.cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(c.cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case ProviderAnthropic:
		model, err = anthropic.New(
			anthropic.WithToken(c.cfg.APIKey),
			anthropic.WithModel(orDefault(c.cfg.Model, defaultAnthropicModel)),
		)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, c.cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", c.cfg.Provider, err)
	}

	c.model = model
	return model, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// stubResponse returns canned text shaped like the real thing
func stubResponse(prompt string) string {
	if strings.Contains(prompt, `"keyTruth"`) {
		return `{"keyTruth":"Small steps every day compound into big change.","goals":["Sleep eight hours","Move every day","Read before bed","Call a friend weekly"],"aiVoice":"Warm, direct and a little playful."}`
	}
	if strings.Contains(prompt, "reflective question") {
		return "What is one thing you did yesterday that you want to repeat today?"
	}
	return "You showed up again today. That is how lasting change is built."
}
