package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

type recordingGenerator struct {
	models []string
}

func (r *recordingGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	r.models = append(r.models, model)
	return &genai.GenerateContentResponse{}, nil
}

func TestNewGeminiClient_MissingKey(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), Config{APIKey: "  "})
	assert.Nil(t, client)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGenerateContent_NormalizesModel(t *testing.T) {
	next := &recordingGenerator{}
	client := NewLimited(next, nil)

	_, err := client.GenerateContent(context.Background(), " models/gemini-3-flash-preview ", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-3-flash-preview"}, next.models)
}

func TestGenerateContent_RateLimited(t *testing.T) {
	next := &recordingGenerator{}
	client := NewLimited(next, rate.NewLimiter(rate.Every(time.Hour), 1))

	_, err := client.GenerateContent(context.Background(), "m", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.GenerateContent(ctx, "m", nil, nil)
	require.Error(t, err)
	assert.Len(t, next.models, 1)
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, NewLimiter(0).Limit())
	assert.InDelta(t, 1.0, float64(NewLimiter(60).Limit()), 0.0001)
}
