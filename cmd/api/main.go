package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"physiqueAi/internal/auth"
	"physiqueAi/internal/config"
	"physiqueAi/internal/events"
	"physiqueAi/internal/llm"
	"physiqueAi/internal/media"
	"physiqueAi/internal/render"
	"physiqueAi/internal/server"
	"physiqueAi/internal/session"
	"physiqueAi/internal/vision"
)

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gemini, err := llm.NewGeminiClient(ctx, llm.Config{
		APIKey:            cfg.AI.GeminiAPIKey,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
	})
	if err != nil {
		return fmt.Errorf("init gemini client: %w", err)
	}

	analyzer := vision.NewGeminiAnalyzer(gemini, cfg.AI.AnalysisModel, cfg.AI.AnalyzeTimeout())
	visualizer := newVisualizer(cfg, gemini)

	previews, opener, err := newPreviewStore(ctx, cfg.Media)
	if err != nil {
		return err
	}

	renderer, err := render.New()
	if err != nil {
		return err
	}

	broker := events.NewBroker()
	registry := session.NewRegistry(cfg.Session.SessionTTL(), previews)
	service := session.NewService(registry, analyzer, visualizer, previews, broker)

	pages := server.Handler{
		Sessions: service,
		Renderer: renderer,
		Events:   broker,
		Previews: opener,
	}
	visionHandler := vision.Handler{Analyzer: analyzer, Visualizer: visualizer}
	srv := server.New(server.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		Sessions: auth.SessionManager{
			Secret:       []byte(cfg.Session.Secret),
			Duration:     24 * time.Hour,
			SecureCookie: cfg.Session.SecureCookie,
		},
	}, pages, visionHandler)
	// Shutdown does not wait on hijacked or streaming connections; end the
	// event streams so their handlers return.
	srv.RegisterOnShutdown(broker.Close)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		service.Close()
		return err
	})

	return g.Wait()
}

func newVisualizer(cfg *config.Config, gemini llm.ContentGenerator) vision.Visualizer {
	if cfg.AI.Visualizer == config.VisualizerImagen {
		log.Infof("visualizer ready: Vertex Imagen (%s)", cfg.Imagen.ProjectID)
		return vision.NewVertexVisualizer(vision.VertexConfig{
			ProjectID:          cfg.Imagen.ProjectID,
			Location:           cfg.Imagen.Location,
			Model:              cfg.Imagen.Model,
			APIKey:             cfg.Imagen.APIKey,
			ServiceAccount:     cfg.Imagen.ServiceAccount,
			ServiceAccountJSON: cfg.Imagen.ServiceAccountJSON,
			Timeout:            cfg.AI.GenerateTimeout(),
		})
	}
	log.Info("visualizer ready: Gemini")
	return vision.NewGeminiVisualizer(gemini, cfg.AI.ImageModel, cfg.AI.GenerateTimeout())
}

// newPreviewStore returns the store and, for local previews, the opener the
// server streams them from.
func newPreviewStore(ctx context.Context, cfg config.MediaConfig) (media.Store, server.PreviewOpener, error) {
	if cfg.UsesS3() {
		store, err := media.NewS3Store(ctx, media.Config{
			Bucket:         cfg.Bucket,
			Region:         cfg.Region,
			Endpoint:       cfg.Endpoint,
			PublicURL:      cfg.PublicURL,
			KeyPrefix:      cfg.KeyPrefix,
			ForcePathStyle: cfg.ForcePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init s3 previews: %w", err)
		}
		log.Infof("previews: s3 bucket %s", cfg.Bucket)
		return store, nil, nil
	}

	local, err := media.NewLocalStore(cfg.Dir, "/previews/")
	if err != nil {
		return nil, nil, fmt.Errorf("init local previews: %w", err)
	}
	log.Infof("previews: local directory %s", local.BaseDir)
	return local, local, nil
}
