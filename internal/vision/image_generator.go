package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"google.golang.org/genai"

	"physiqueAi/internal/encoder"
	"physiqueAi/internal/llm"
	"physiqueAi/internal/physique"
	"physiqueAi/internal/prompts"
)

// Visualizer renders a "future progress" edit of the uploaded photo.
type Visualizer interface {
	GenerateFuture(ctx context.Context, payload encoder.Payload, targetAreas []string) (string, error)
}

// PNGDataURIPrefix starts every generated visualization.
const PNGDataURIPrefix = "data:image/png;base64,"

const defaultImageModel = "gemini-2.5-flash-image"

// GeminiVisualizer edits photos via Gemini image outputs.
type GeminiVisualizer struct {
	client  llm.ContentGenerator
	model   string
	timeout time.Duration
}

// NewGeminiVisualizer constructs a visualizer able to request inline images.
func NewGeminiVisualizer(client llm.ContentGenerator, model string, timeout time.Duration) *GeminiVisualizer {
	model = llm.NormalizeModel(model)
	if model == "" {
		model = defaultImageModel
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &GeminiVisualizer{
		client:  client,
		model:   model,
		timeout: timeout,
	}
}

// GenerateFuture asks for an edit showing progress in targetAreas and returns
// the first inline image of the reply as a PNG data URI.
func (g *GeminiVisualizer) GenerateFuture(ctx context.Context, payload encoder.Payload, targetAreas []string) (string, error) {
	if g == nil || g.client == nil {
		return "", physique.Wrap(physique.ErrGeneration, "generate future", errors.New("visualizer unavailable"))
	}
	data, err := payload.Bytes()
	if err != nil {
		return "", physique.Wrap(physique.ErrGeneration, "generate future", err)
	}

	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	// No response schema: this model answers with image parts.
	resp, err := g.client.GenerateContent(childCtx, g.model, imageContents(data, payload.MIMEType, prompts.FutureProgress(targetAreas)), &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return "", physique.Wrap(physique.ErrGeneration, "generate content", err)
	}

	blob, ok := firstInlineImage(resp)
	if !ok {
		return "", physique.Wrap(physique.ErrGeneration, "extract image", errors.New("no inline image data in response"))
	}
	return PNGDataURI(blob.Data), nil
}

// firstInlineImage scans parts in order and returns the first one carrying
// binary data. Text parts around it are ignored.
func firstInlineImage(resp *genai.GenerateContentResponse) (*genai.Blob, bool) {
	if resp == nil {
		return nil, false
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return part.InlineData, true
		}
	}
	return nil, false
}

// PNGDataURI wraps raw image bytes as a PNG data URI.
func PNGDataURI(data []byte) string {
	return PNGDataURIPrefix + base64.StdEncoding.EncodeToString(data)
}
