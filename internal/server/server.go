package server

import (
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"physiqueAi/internal/auth"
	"physiqueAi/internal/vision"
)

// Options configures the HTTP server.
type Options struct {
	Port           string
	AllowedOrigins []string
	Sessions       auth.SessionManager
}

// New constructs the HTTP server with routes and middleware.
func New(opts Options, pages Handler, visionHandler vision.Handler) *http.Server {
	srv := &http.Server{
		Addr:        ":" + opts.Port,
		Handler:     Routes(opts, pages, visionHandler),
		ReadTimeout: 30 * time.Second,
		// Event streams lift the write deadline per request.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Infof("server ready on %s", srv.Addr)
	return srv
}

// Routes returns the router serving the page and the API.
func Routes(opts Options, pages Handler, visionHandler vision.Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Group(func(r chi.Router) {
		r.Use(opts.Sessions.Middleware)
		r.Get("/", pages.Page)
		r.Post("/upload", pages.Upload)
		r.Post("/visualize", pages.Visualize)
		r.Post("/reset", pages.Reset)
		r.Post("/dismiss", pages.Dismiss)
		r.Get("/previews/{key}", pages.Preview)
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(corsMiddleware(opts.AllowedOrigins))
		r.Route("/session", func(r chi.Router) {
			r.Use(opts.Sessions.Middleware)
			r.Get("/", pages.Snapshot)
			r.Get("/events", pages.StreamEvents)
		})
		r.Route("/vision", func(r chi.Router) {
			r.Post("/analyze", visionHandler.Analyze)
			r.Post("/visualize", visionHandler.Visualize)
		})
	})

	return router
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler
}
