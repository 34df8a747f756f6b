package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Visualizer backends.
const (
	VisualizerGemini = "gemini"
	VisualizerImagen = "imagen"
)

// ErrMissingAPIKey is returned when no Gemini API key is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is required")

// Config holds runtime configuration values.
type Config struct {
	Port           string        `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	Session        SessionConfig `yaml:"session"`
	AI             AIConfig      `yaml:"ai"`
	Imagen         ImagenConfig  `yaml:"imagen"`
	Media          MediaConfig   `yaml:"media"`
}

// SessionConfig controls browser sessions.
type SessionConfig struct {
	Secret       string `yaml:"secret"`
	TTLMinutes   int    `yaml:"ttl_minutes"`
	SecureCookie bool   `yaml:"secure_cookie"`
}

// AIConfig selects models and bounds model calls.
type AIConfig struct {
	GeminiAPIKey           string `yaml:"gemini_api_key"`
	AnalysisModel          string `yaml:"analysis_model"`
	ImageModel             string `yaml:"image_model"`
	Visualizer             string `yaml:"visualizer"`
	RequestsPerMinute      int    `yaml:"requests_per_minute"`
	AnalyzeTimeoutSeconds  int    `yaml:"analyze_timeout_seconds"`
	GenerateTimeoutSeconds int    `yaml:"generate_timeout_seconds"`
}

// ImagenConfig configures the Vertex AI visualizer.
type ImagenConfig struct {
	ProjectID          string `yaml:"project_id"`
	Location           string `yaml:"location"`
	Model              string `yaml:"model"`
	APIKey             string `yaml:"api_key"`
	ServiceAccount     string `yaml:"service_account"`
	ServiceAccountJSON string `yaml:"service_account_json"`
}

// MediaConfig describes where previews are kept. An S3 bucket wins over the
// local directory.
type MediaConfig struct {
	Dir            string `yaml:"dir"`
	Bucket         string `yaml:"bucket"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	PublicURL      string `yaml:"public_url"`
	KeyPrefix      string `yaml:"key_prefix"`
	ForcePathStyle bool   `yaml:"force_path_style"`
}

// UsesS3 reports whether previews go to a bucket.
func (m MediaConfig) UsesS3() bool {
	return m.Bucket != "" && m.Region != ""
}

// AnalyzeTimeout bounds one analysis call.
func (a AIConfig) AnalyzeTimeout() time.Duration {
	return time.Duration(a.AnalyzeTimeoutSeconds) * time.Second
}

// GenerateTimeout bounds one visualization call.
func (a AIConfig) GenerateTimeout() time.Duration {
	return time.Duration(a.GenerateTimeoutSeconds) * time.Second
}

// SessionTTL is how long an idle session is kept.
func (s SessionConfig) SessionTTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// Load reads .env when present, then the optional YAML file at path, then
// applies environment variable overrides and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Infof("config file %s not found, using environment only", path)
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Port, "APP_PORT")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	setString(&cfg.Session.Secret, "SESSION_SECRET")
	setInt(&cfg.Session.TTLMinutes, "SESSION_TTL_MINUTES")
	setBool(&cfg.Session.SecureCookie, "SESSION_SECURE_COOKIE")

	setString(&cfg.AI.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&cfg.AI.AnalysisModel, "GEMINI_ANALYSIS_MODEL")
	setString(&cfg.AI.ImageModel, "GEMINI_IMAGE_MODEL")
	setString(&cfg.AI.Visualizer, "VISUALIZER")
	setInt(&cfg.AI.RequestsPerMinute, "GEMINI_REQUESTS_PER_MINUTE")
	setInt(&cfg.AI.AnalyzeTimeoutSeconds, "ANALYZE_TIMEOUT_SECONDS")
	setInt(&cfg.AI.GenerateTimeoutSeconds, "GENERATE_TIMEOUT_SECONDS")

	setString(&cfg.Imagen.ProjectID, "IMAGEN_PROJECT_ID")
	setString(&cfg.Imagen.Location, "IMAGEN_LOCATION")
	setString(&cfg.Imagen.Model, "IMAGEN_MODEL")
	setString(&cfg.Imagen.APIKey, "IMAGEN_API_KEY")
	setString(&cfg.Imagen.ServiceAccount, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.Imagen.ServiceAccountJSON, "IMAGEN_SERVICE_ACCOUNT_JSON")

	setString(&cfg.Media.Dir, "PREVIEW_DIR")
	setString(&cfg.Media.Bucket, "S3_BUCKET")
	setString(&cfg.Media.Region, "S3_REGION")
	setString(&cfg.Media.Endpoint, "S3_ENDPOINT")
	setString(&cfg.Media.PublicURL, "S3_PUBLIC_URL")
	setString(&cfg.Media.KeyPrefix, "S3_KEY_PREFIX")
	setBool(&cfg.Media.ForcePathStyle, "S3_FORCE_PATH_STYLE")
}

func applyDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Session.TTLMinutes <= 0 {
		cfg.Session.TTLMinutes = 30
	}
	if cfg.Session.Secret == "" {
		log.Warn("SESSION_SECRET not set, sessions will not survive a restart")
		cfg.Session.Secret = uuid.NewString() + uuid.NewString()
	}
	if cfg.AI.Visualizer == "" {
		cfg.AI.Visualizer = VisualizerGemini
	}
	cfg.AI.Visualizer = strings.ToLower(strings.TrimSpace(cfg.AI.Visualizer))
	if cfg.AI.AnalyzeTimeoutSeconds <= 0 {
		cfg.AI.AnalyzeTimeoutSeconds = 60
	}
	if cfg.AI.GenerateTimeoutSeconds <= 0 {
		cfg.AI.GenerateTimeoutSeconds = 90
	}
	if cfg.Imagen.Location == "" {
		cfg.Imagen.Location = "us-central1"
	}
	if cfg.Imagen.Model == "" {
		cfg.Imagen.Model = "imagen-3.0-capability-001"
	}
	cfg.Media.KeyPrefix = strings.Trim(cfg.Media.KeyPrefix, "/")
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.AI.GeminiAPIKey) == "" {
		return ErrMissingAPIKey
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("port %q is not a number", c.Port)
	}
	switch c.AI.Visualizer {
	case VisualizerGemini:
	case VisualizerImagen:
		if c.Imagen.ProjectID == "" {
			return fmt.Errorf("imagen.project_id is required for the imagen visualizer")
		}
	default:
		return fmt.Errorf("unknown visualizer %q", c.AI.Visualizer)
	}
	if c.AI.RequestsPerMinute < 0 {
		return fmt.Errorf("ai.requests_per_minute cannot be negative")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("ignoring %s=%q: not a number", key, v)
		return
	}
	*dst = parsed
}

func setBool(dst *bool, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		log.Warnf("ignoring %s=%q: not a boolean", key, v)
		return
	}
	*dst = parsed
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
