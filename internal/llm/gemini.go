package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned when no Gemini credential is configured.
var ErrMissingAPIKey = errors.New("gemini: missing API key")

// ContentGenerator is the part of the genai models API the gateway relies on.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config describes how to reach the Gemini API.
type Config struct {
	APIKey            string
	RequestsPerMinute int
}

// GeminiClient wraps the genai models service with outbound pacing.
type GeminiClient struct {
	next    ContentGenerator
	limiter *rate.Limiter
}

// NewGeminiClient constructs a client for the Gemini Developer API.
func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create genai client: %w", err)
	}

	return NewLimited(client.Models, NewLimiter(cfg.RequestsPerMinute)), nil
}

// NewLimited paces calls to next with limiter.
func NewLimited(next ContentGenerator, limiter *rate.Limiter) *GeminiClient {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	return &GeminiClient{next: next, limiter: limiter}
}

// NewLimiter allows perMinute calls per minute; zero or less means unlimited.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// GenerateContent waits for a slot and forwards the request.
func (c *GeminiClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("gemini: rate limit: %w", err)
	}
	return c.next.GenerateContent(ctx, NormalizeModel(model), contents, config)
}

// NormalizeModel strips the "models/" prefix the API accepts but does not require.
func NormalizeModel(model string) string {
	return strings.TrimPrefix(strings.TrimSpace(model), "models/")
}
