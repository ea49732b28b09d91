package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/richconv/internal/config"
	"github.com/dgallion1/richconv/internal/convert"
	"github.com/dgallion1/richconv/internal/pipeline"
	"github.com/dgallion1/richconv/internal/store"
)

// Server is the HTTP API server for richconv.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	conv         *convert.Converter
	store        store.Store
	metrics      *Metrics
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. The converter should
// report fallbacks to metrics (convert.WithObserver).
func NewServer(orch *pipeline.Orchestrator, conv *convert.Converter, st store.Store, metrics *Metrics, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		conv:         conv,
		store:        st,
		metrics:      metrics,
		log:          log,
		cfg:          cfg,
	}
	metrics.WatchQueue(orch.QueueDepth)
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(s.metrics.Middleware)

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/deserialize", s.handleDeserialize)
		r.Post("/api/serialize", s.handleSerialize)
		r.Post("/api/import", s.handleImport)

		r.Get("/api/documents", s.handleListDocuments)
		r.Put("/api/documents/{docID}", s.handlePutDocument)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)

		r.Post("/api/batch", s.handleBatch)
		r.Get("/api/batch/{jobID}/status", s.handleBatchStatus)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
