package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/pavelanni/examgrader/internal/llm/prompts"
)

// DefaultTimeout bounds a single extraction or grading call.
const DefaultTimeout = 8 * time.Second

// Config holds connection and policy settings for the LLM endpoint.
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string  // model used for grading
	OCRModel      string  // vision model used for text extraction; defaults to Model
	PromptVariant string  // strict, standard or lenient
	Timeout       time.Duration
	RPS           float64 // 0 means unlimited
}

// Client wraps an OpenAI-compatible API client. It implements both the text
// extraction and the semantic grading adapters used by the scoring engine.
type Client struct {
	api      *openai.Client
	model    string
	ocrModel string
	variant  prompts.PromptVariant
	timeout  time.Duration
	limiter  *rate.Limiter
}

// ExtractionError is returned when the text extraction service fails.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return "text extraction: " + e.Err.Error() }
func (e *ExtractionError) Unwrap() error { return e.Err }

// GradingError is returned when the semantic grading service fails or replies
// with something that is not a score.
type GradingError struct {
	Err error
}

func (e *GradingError) Error() string { return "semantic grading: " + e.Err.Error() }
func (e *GradingError) Unwrap() error { return e.Err }

// New creates a new LLM client.
func New(cfg Config) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	variant := prompts.PromptVariant(cfg.PromptVariant)
	if !prompts.IsValidVariant(cfg.PromptVariant) {
		return nil, fmt.Errorf("invalid prompt variant %q", cfg.PromptVariant)
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}
	ocrModel := cfg.OCRModel
	if ocrModel == "" {
		ocrModel = cfg.Model
	}

	return &Client{
		api:      openai.NewClientWithConfig(config),
		model:    cfg.Model,
		ocrModel: ocrModel,
		variant:  variant,
		timeout:  timeout,
		limiter:  rate.NewLimiter(limit, 1),
	}, nil
}

// Ping checks that the endpoint is reachable and accepts the API key.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// complete runs one chat completion under the client's rate limit and timeout
// and returns the first choice's content.
func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
