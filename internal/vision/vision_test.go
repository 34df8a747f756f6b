package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
	"google.golang.org/protobuf/types/known/structpb"

	"physiqueAi/internal/encoder"
	"physiqueAi/internal/physique"
)

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	deadline bool
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	_, f.deadline = ctx.Deadline()
	return f.resp, f.err
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, &genai.Part{Text: text})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

var photo = []byte{0xff, 0xd8, 0xff, 0xe0, 'p', 'h', 'o', 't', 'o'}

func photoPayload() encoder.Payload {
	return encoder.Payload{Data: base64.StdEncoding.EncodeToString(photo), MIMEType: "image/jpeg"}
}

func TestAnalyze_Detected(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"detected":true,"summary":"Solid base.","targetAreas":["shoulders","core"],"postureNotes":["anterior pelvic tilt"],"estimatedBodyFat":"15-18%","routine":[{"name":"Plank","sets":3,"reps":"60s","focus":"core stability"}]}`)}
	analyzer := NewGeminiAnalyzer(gen, "", 0)

	result, err := analyzer.Analyze(context.Background(), photoPayload())
	require.NoError(t, err)

	assert.True(t, result.Detected)
	assert.Equal(t, []string{"shoulders", "core"}, result.TargetAreas)
	assert.Equal(t, "15-18%", result.EstimatedBodyFat)
	require.Len(t, result.Routine, 1)
	assert.Equal(t, 3, result.Routine[0].Sets)

	assert.Equal(t, defaultVisionModel, gen.model)
	assert.True(t, gen.deadline)
	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, photo, parts[0].InlineData.Data)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Contains(t, parts[1].Text, "fitness and physiotherapy")

	require.NotNil(t, gen.config)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	require.NotNil(t, gen.config.ResponseSchema)
	assert.ElementsMatch(t, []string{"detected", "summary", "targetAreas", "postureNotes", "routine"}, gen.config.ResponseSchema.Required)
}

func TestAnalyze_NoPersonIsNotAnError(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"detected":false,"message":"No person visible"}`)}

	result, err := NewGeminiAnalyzer(gen, "models/custom-vision", time.Second).Analyze(context.Background(), photoPayload())
	require.NoError(t, err)
	assert.False(t, result.Detected)
	assert.Equal(t, "No person visible", result.Message)
	assert.Equal(t, "custom-vision", gen.model)
}

func TestAnalyze_Failures(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"transport":       {err: errors.New("googleapi: Error 429: quota exceeded")},
		"no candidates":   {resp: &genai.GenerateContentResponse{}},
		"nil content":     {resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}},
		"blank text":      {resp: textResponse("  ")},
		"unparseable":     {resp: textResponse("I cannot help with that.")},
		"missing routine": {resp: textResponse(`{"detected":true,"summary":"x","targetAreas":[],"postureNotes":[]}`)},
	}

	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := NewGeminiAnalyzer(gen, "", time.Second).Analyze(context.Background(), photoPayload())
			require.Error(t, err)
			assert.ErrorIs(t, err, physique.ErrAnalysis)
			assert.Equal(t, "Failed to analyze image. Please try again.", physique.UserMessage(err))
			assert.Equal(t, physique.AnalysisResult{}, result)
		})
	}
}

func TestAnalyze_BadPayload(t *testing.T) {
	gen := &fakeGenerator{}
	_, err := NewGeminiAnalyzer(gen, "", time.Second).Analyze(context.Background(), encoder.Payload{Data: "%%%", MIMEType: "image/png"})
	assert.ErrorIs(t, err, physique.ErrAnalysis)
	assert.Nil(t, gen.contents)
}

func TestAnalysisSchema_Routine(t *testing.T) {
	schema := AnalysisSchema()
	routine := schema.Properties["routine"]
	require.NotNil(t, routine)
	assert.Equal(t, genai.TypeArray, routine.Type)
	require.NotNil(t, routine.Items)
	assert.Equal(t, genai.TypeInteger, routine.Items.Properties["sets"].Type)
	assert.ElementsMatch(t, []string{"name", "sets", "reps", "focus"}, routine.Items.Required)
	assert.NotContains(t, schema.Required, "message")
	assert.NotContains(t, schema.Required, "estimatedBodyFat")
}

func TestGenerateFuture_FirstImageWins(t *testing.T) {
	first := []byte("first-png")
	second := []byte("second-png")
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Here is the edited photo."},
				{Text: "It shows six months of training."},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: first}},
				{Text: "Trailing note."},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: second}},
			}}},
		},
	}}

	image, err := NewGeminiVisualizer(gen, "", time.Second).GenerateFuture(context.Background(), photoPayload(), []string{"shoulders", "core"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(image, "data:image/png;base64,"))
	assert.Equal(t, PNGDataURI(first), image)

	assert.Equal(t, defaultImageModel, gen.model)
	require.NotNil(t, gen.config)
	assert.Nil(t, gen.config.ResponseSchema)
	assert.Empty(t, gen.config.ResponseMIMEType)
	parts := gen.contents[0].Parts
	assert.Equal(t, photo, parts[0].InlineData.Data)
	assert.Contains(t, parts[1].Text, "shoulders, core")
}

func TestGenerateFuture_ImageInLaterCandidate(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: "only text"}}}},
			{Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{Data: []byte("img")}}}}},
		},
	}}

	image, err := NewGeminiVisualizer(gen, "", time.Second).GenerateFuture(context.Background(), photoPayload(), nil)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("img")), image)
}

func TestGenerateFuture_Failures(t *testing.T) {
	cases := map[string]*fakeGenerator{
		"transport":  {err: errors.New("connection reset by peer")},
		"text only":  {resp: textResponse("I can't edit photos of people.")},
		"empty blob": {resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: "image/png"}}}}}}}},
		"nil":        {},
	}

	for name, gen := range cases {
		t.Run(name, func(t *testing.T) {
			image, err := NewGeminiVisualizer(gen, "", time.Second).GenerateFuture(context.Background(), photoPayload(), []string{"legs"})
			require.Error(t, err)
			assert.Empty(t, image)
			assert.ErrorIs(t, err, physique.ErrGeneration)
			assert.Equal(t, "Failed to generate progress visualization.", physique.UserMessage(err))
		})
	}
}

func TestFirstPredictionImage(t *testing.T) {
	prediction := func(fields map[string]any) *structpb.Value {
		value, err := structpb.NewValue(fields)
		require.NoError(t, err)
		return value
	}

	data, ok := firstPredictionImage([]*structpb.Value{
		prediction(map[string]any{"raiFilteredReason": "blocked"}),
		prediction(map[string]any{"bytesBase64Encoded": "not base64!"}),
		prediction(map[string]any{"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("edit")), "mimeType": "image/png"}),
	})
	require.True(t, ok)
	assert.Equal(t, []byte("edit"), data)

	_, ok = firstPredictionImage(nil)
	assert.False(t, ok)
}

func TestVertexVisualizer_RequiresProject(t *testing.T) {
	_, err := NewVertexVisualizer(VertexConfig{Location: "us-central1"}).GenerateFuture(context.Background(), photoPayload(), nil)
	assert.ErrorIs(t, err, physique.ErrGeneration)
}

func TestImagenRequest(t *testing.T) {
	instance, params, err := imagenRequest(photoPayload(), []string{"back"})
	require.NoError(t, err)

	fields := instance.GetStructValue().GetFields()
	assert.Contains(t, fields["prompt"].GetStringValue(), "improve these areas: back.")
	assert.Equal(t, photoPayload().Data, fields["image"].GetStructValue().GetFields()["bytesBase64Encoded"].GetStringValue())
	assert.Equal(t, float64(1), params.GetStructValue().GetFields()["sampleCount"].GetNumberValue())

	_, _, err = imagenRequest(encoder.Payload{}, nil)
	assert.Error(t, err)
}
