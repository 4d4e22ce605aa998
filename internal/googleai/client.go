// Package googleai provides the embedding and generation collaborators
// backed by the Gemini API. Both are thin wrappers around
// google.golang.org/genai with rate limiting and retry; everything else
// in the system sees them only through small consumer-side interfaces.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ErrEmptyResponse indicates the model returned no usable content.
var ErrEmptyResponse = errors.New("empty model response")

// Config carries the model selection and generation parameters.
type Config struct {
	APIKey        string
	ModelName     string
	EmbedderModel string
	Temperature   float32
	MaxTokens     int

	// OutputDimensionality truncates embeddings to the index's vector
	// dimension (Matryoshka truncation).
	OutputDimensionality int32

	// Retry settings; zero value uses defaults.
	Retry RetryConfig

	// RateLimiter throttles outbound calls. nil disables throttling.
	RateLimiter *rate.Limiter
}

// StreamFunc receives one incremental text fragment. Returning an error
// aborts the stream. Declared as an alias so consumer-side interfaces
// elsewhere match structurally.
type StreamFunc = func(ctx context.Context, fragment string) error

// Client talks to the Gemini API for embeddings and generation.
type Client struct {
	gc     *genai.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{gc: gc, cfg: cfg, logger: logger}, nil
}

// Embed returns one vector per input text, order-preserving. The whole
// batch goes to the API in a single request.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	embedCfg := &genai.EmbedContentConfig{}
	if c.cfg.OutputDimensionality > 0 {
		dim := c.cfg.OutputDimensionality
		embedCfg.OutputDimensionality = &dim
	}

	resp, err := withRetry(ctx, c.cfg.Retry, c.cfg.RateLimiter, c.logger, func() (*genai.EmbedContentResponse, error) {
		return c.gc.Models.EmbedContent(ctx, c.cfg.EmbedderModel, contents, embedCfg)
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d texts", ErrEmptyResponse, len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("%w: embedding %d is empty", ErrEmptyResponse, i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// generateConfig builds the per-call generation config.
func (c *Client) generateConfig(system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.cfg.Temperature),
	}
	if c.cfg.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(c.cfg.MaxTokens)
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return cfg
}

// Generate produces a complete answer in one call.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := withRetry(ctx, c.cfg.Retry, c.cfg.RateLimiter, c.logger, func() (*genai.GenerateContentResponse, error) {
		return c.gc.Models.GenerateContent(ctx, c.cfg.ModelName, contents, c.generateConfig(system))
	})
	if err != nil {
		return "", fmt.Errorf("generating response: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// GenerateStream produces the answer incrementally, forwarding each
// fragment to cb as it arrives, and returns the concatenated text.
//
// Cancellation is cooperative: a cb error or context cancellation stops
// consumption, but in-flight backend work may run to completion on the
// provider side; cleanup there is the provider's responsibility.
func (c *Client) GenerateStream(ctx context.Context, system, prompt string, cb StreamFunc) (string, error) {
	if c.cfg.RateLimiter != nil {
		if err := c.cfg.RateLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	var full []byte
	for resp, err := range c.gc.Models.GenerateContentStream(ctx, c.cfg.ModelName, contents, c.generateConfig(system)) {
		if err != nil {
			return string(full), fmt.Errorf("streaming response: %w", err)
		}
		fragment := resp.Text()
		if fragment == "" {
			continue
		}
		full = append(full, fragment...)
		if cb != nil {
			if cbErr := cb(ctx, fragment); cbErr != nil {
				return string(full), fmt.Errorf("stream consumer: %w", cbErr)
			}
		}
	}

	if len(full) == 0 {
		return "", ErrEmptyResponse
	}
	return string(full), nil
}
