package vision

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"physiqueAi/internal/encoder"
	"physiqueAi/internal/llm"
	"physiqueAi/internal/physique"
	"physiqueAi/internal/prompts"
)

// Analyzer produces structured physique feedback for one photo.
type Analyzer interface {
	Analyze(ctx context.Context, payload encoder.Payload) (physique.AnalysisResult, error)
}

// GeminiAnalyzer implements Analyzer with schema-constrained Gemini output.
type GeminiAnalyzer struct {
	client  llm.ContentGenerator
	model   string
	timeout time.Duration
}

const (
	defaultVisionModel = "gemini-3-flash-preview"
	defaultCallTimeout = 60 * time.Second
)

// NewGeminiAnalyzer constructs a Gemini-powered physique analyzer.
func NewGeminiAnalyzer(client llm.ContentGenerator, model string, timeout time.Duration) *GeminiAnalyzer {
	model = llm.NormalizeModel(model)
	if model == "" {
		model = defaultVisionModel
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &GeminiAnalyzer{
		client:  client,
		model:   model,
		timeout: timeout,
	}
}

// Analyze sends the photo with the fixed instruction and parses the reply.
// A photo without a person yields Detected=false, not an error.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, payload encoder.Payload) (physique.AnalysisResult, error) {
	if g == nil || g.client == nil {
		return physique.AnalysisResult{}, physique.Wrap(physique.ErrAnalysis, "analyze", errors.New("analyzer unavailable"))
	}
	data, err := payload.Bytes()
	if err != nil {
		return physique.AnalysisResult{}, physique.Wrap(physique.ErrAnalysis, "analyze", err)
	}

	childCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	temperature := float32(0.2)
	resp, err := g.client.GenerateContent(childCtx, g.model, imageContents(data, payload.MIMEType, prompts.Analysis()), &genai.GenerateContentConfig{
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   AnalysisSchema(),
	})
	if err != nil {
		return physique.AnalysisResult{}, physique.Wrap(physique.ErrAnalysis, "generate content", err)
	}

	text := responseText(resp)
	if text == "" {
		return physique.AnalysisResult{}, physique.Wrap(physique.ErrAnalysis, "read response", errors.New("no text content"))
	}

	result, err := physique.ParseAnalysis(text)
	if err != nil {
		return physique.AnalysisResult{}, physique.Wrap(physique.ErrAnalysis, "parse response", err)
	}
	return result, nil
}

// AnalysisSchema declares the output shape the model must emit.
func AnalysisSchema() *genai.Schema {
	stringList := func(description string) *genai.Schema {
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: description,
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"detected":         {Type: genai.TypeBoolean},
			"message":          {Type: genai.TypeString, Description: "Why no person could be analyzed."},
			"summary":          {Type: genai.TypeString, Description: "A 2-3 sentence overview of the analysis."},
			"targetAreas":      stringList("List of specific body parts to focus on."),
			"postureNotes":     stringList("Observations about posture."),
			"estimatedBodyFat": {Type: genai.TypeString},
			"routine": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":  {Type: genai.TypeString},
						"sets":  {Type: genai.TypeInteger},
						"reps":  {Type: genai.TypeString},
						"focus": {Type: genai.TypeString, Description: "Why this exercise was chosen."},
					},
					Required: []string{"name", "sets", "reps", "focus"},
				},
			},
		},
		Required: []string{"detected", "summary", "targetAreas", "postureNotes", "routine"},
	}
}

func imageContents(data []byte, mimeType, instruction string) []*genai.Content {
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		genai.NewPartFromText(instruction),
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var parts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if trimmed := strings.TrimSpace(part.Text); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n")
}
