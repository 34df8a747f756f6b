package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"physiqueAi/internal/encoder"
	"physiqueAi/internal/physique"
	"physiqueAi/internal/prompts"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// VertexConfig describes how to connect to Imagen on Vertex AI.
type VertexConfig struct {
	ProjectID          string
	Location           string
	Model              string
	APIKey             string
	ServiceAccount     string
	ServiceAccountJSON string
	Timeout            time.Duration
}

// VertexVisualizer implements Visualizer with an Imagen edit request.
type VertexVisualizer struct {
	projectID          string
	location           string
	model              string
	apiKey             string
	serviceAccount     string
	serviceAccountJSON string
	timeout            time.Duration
}

// NewVertexVisualizer wires a VertexVisualizer.
func NewVertexVisualizer(cfg VertexConfig) *VertexVisualizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &VertexVisualizer{
		projectID:          strings.TrimSpace(cfg.ProjectID),
		location:           strings.TrimSpace(cfg.Location),
		model:              strings.TrimSpace(cfg.Model),
		apiKey:             strings.TrimSpace(cfg.APIKey),
		serviceAccount:     strings.TrimSpace(cfg.ServiceAccount),
		serviceAccountJSON: strings.TrimSpace(cfg.ServiceAccountJSON),
		timeout:            timeout,
	}
}

// GenerateFuture runs one Imagen edit and returns the first predicted image.
func (v *VertexVisualizer) GenerateFuture(ctx context.Context, payload encoder.Payload, targetAreas []string) (string, error) {
	if v == nil {
		return "", physique.Wrap(physique.ErrGeneration, "imagen", errors.New("client not configured"))
	}
	if v.projectID == "" || v.location == "" || v.model == "" {
		return "", physique.Wrap(physique.ErrGeneration, "imagen", errors.New("missing project/location/model"))
	}

	instance, params, err := imagenRequest(payload, targetAreas)
	if err != nil {
		return "", physique.Wrap(physique.ErrGeneration, "imagen request", err)
	}

	childCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	options, err := v.clientOptions(childCtx)
	if err != nil {
		return "", physique.Wrap(physique.ErrGeneration, "imagen credentials", err)
	}
	client, err := aiplatform.NewPredictionClient(childCtx, options...)
	if err != nil {
		return "", physique.Wrap(physique.ErrGeneration, "imagen prediction client", err)
	}
	defer client.Close()

	resp, err := client.Predict(childCtx, &aiplatformpb.PredictRequest{
		Endpoint:   v.endpoint(),
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return "", physique.Wrap(physique.ErrGeneration, "imagen predict", err)
	}

	data, ok := firstPredictionImage(resp.GetPredictions())
	if !ok {
		return "", physique.Wrap(physique.ErrGeneration, "imagen extract", errors.New("no prediction carries image bytes"))
	}
	return PNGDataURI(data), nil
}

func (v *VertexVisualizer) endpoint() string {
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", v.projectID, v.location, v.model)
}

func (v *VertexVisualizer) clientOptions(ctx context.Context) ([]option.ClientOption, error) {
	options := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", v.location))}

	credentialsJSON := []byte(v.serviceAccountJSON)
	if len(credentialsJSON) == 0 && v.serviceAccount != "" {
		raw, err := os.ReadFile(v.serviceAccount)
		if err != nil {
			return nil, fmt.Errorf("read service account: %w", err)
		}
		credentialsJSON = raw
	}

	switch {
	case len(credentialsJSON) > 0:
		creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account: %w", err)
		}
		options = append(options, option.WithTokenSource(creds.TokenSource))
	case v.apiKey != "":
		options = append(options, option.WithAPIKey(v.apiKey))
	}
	return options, nil
}

func imagenRequest(payload encoder.Payload, targetAreas []string) (*structpb.Value, *structpb.Value, error) {
	if strings.TrimSpace(payload.Data) == "" {
		return nil, nil, errors.New("reference image is required")
	}
	instance, err := structpb.NewValue(map[string]any{
		"prompt": prompts.FutureProgress(targetAreas),
		"image": map[string]any{
			"bytesBase64Encoded": payload.Data,
			"mimeType":           payload.MIMEType,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	params, err := structpb.NewValue(map[string]any{
		"sampleCount": 1,
		"editMode":    "inpainting-free-form",
	})
	if err != nil {
		return nil, nil, err
	}
	return instance, params, nil
}

// firstPredictionImage applies the same first-match rule as the Gemini
// visualizer to Imagen predictions.
func firstPredictionImage(predictions []*structpb.Value) ([]byte, bool) {
	for _, prediction := range predictions {
		field := prediction.GetStructValue().GetFields()["bytesBase64Encoded"]
		if field == nil || field.GetStringValue() == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(field.GetStringValue())
		if err != nil || len(data) == 0 {
			continue
		}
		return data, true
	}
	return nil, false
}
