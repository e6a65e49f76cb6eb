// Package web exposes the import pipeline and its persistence layer over an
// HTTP API, with per-user rate limiting and Prometheus instrumentation.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"cratelink/internal/core"
	"cratelink/internal/db"
	"cratelink/internal/ratelimit"
)

// Enricher runs the fetch-and-enrich pipeline for a playlist reference.
type Enricher interface {
	Enrich(ctx context.Context, accessToken, ref string) (*core.PlaylistPayload, error)
}

// ImportStore persists and reads playlist imports scoped to a user.
type ImportStore interface {
	Create(ctx context.Context, principal core.Principal, playlist *core.PlaylistPayload) (string, error)
	List(ctx context.Context, userID string) ([]db.ImportSummary, error)
	Get(ctx context.Context, userID, importID string) (*db.ImportRecord, error)
}

// ActivityStore appends and reads the import activity log.
type ActivityStore interface {
	Log(ctx context.Context, importID, eventType string, message *string, metadata map[string]any) error
	SaveSelection(ctx context.Context, userID, importID string, selection *core.SelectionPayload) error
	LatestSelection(ctx context.Context, userID, importID string) (*db.Activity, error)
}

// PreferenceStore reads and writes account-level settings.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*db.Preferences, error)
	Update(ctx context.Context, userID string, emailNotifications, autoExport bool, preferredVendors []string) error
}

// VendorStore lists the known purchase destinations.
type VendorStore interface {
	List(ctx context.Context) ([]db.Vendor, error)
}

// Stores groups the persistence dependencies handed to the server.
type Stores struct {
	Imports     ImportStore
	Activities  ActivityStore
	Preferences PreferenceStore
	Vendors     VendorStore
}

type Server struct {
	config   *core.ServerConfig
	logger   *zap.Logger
	metrics  *Metrics
	limiter  *ratelimit.Limiter
	enricher Enricher
	stores   Stores
	router   chi.Router
	server   *http.Server
}

func NewServer(
	config *core.ServerConfig,
	logger *zap.Logger,
	metrics *Metrics,
	limiter *ratelimit.Limiter,
	enricher Enricher,
	stores Stores,
) *Server {
	s := &Server{
		config:   config,
		logger:   logger,
		metrics:  metrics,
		limiter:  limiter,
		enricher: enricher,
		stores:   stores,
		router:   chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.instrument)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "cratelink"})
	})
	s.router.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "service": "cratelink"})
	})
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.requireIdentity)

		r.With(s.rateLimited(ratelimit.SpotifyPlaylist)).
			Post("/spotify/playlist", s.handleEnrichPlaylist)

		r.Route("/imports", func(r chi.Router) {
			r.With(s.rateLimited(ratelimit.ImportList)).Get("/", s.handleListImports)
			r.With(s.rateLimited(ratelimit.ImportCreate)).Post("/", s.handleCreateImport)

			r.Route("/{importID}", func(r chi.Router) {
				r.Get("/", s.handleGetImport)
				r.Get("/selection", s.handleGetSelection)
				r.With(s.rateLimited(ratelimit.SelectionSave)).Post("/selection", s.handleSaveSelection)
				r.Get("/export", s.handleExportImport)
			})
		})

		r.Get("/vendors", s.handleListVendors)

		r.Route("/account/preferences", func(r chi.Router) {
			r.Get("/", s.handleGetPreferences)
			r.Put("/", s.handleUpdatePreferences)
		})
	})
}

// Handler exposes the router for in-process testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}
