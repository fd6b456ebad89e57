// Package server exposes the import pipeline over HTTP: browsers post a CSV
// to /submit and every other GET is served from a static directory.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eunmann/csvload/pkg/fileutil"
	"github.com/eunmann/csvload/pkg/humanfmt"
	"github.com/eunmann/csvload/pkg/importer"
	"github.com/eunmann/csvload/pkg/logging"
	"github.com/eunmann/csvload/pkg/recordstore"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/semaphore"
)

// UploadField is the multipart form field carrying the CSV file.
const UploadField = "csv_file_to_upload"

const shutdownTimeout = 10 * time.Second

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":3000".
	Addr string
	// UploadDir receives saved uploads. Created on demand.
	UploadDir string
	// PublicDir is served for GET requests.
	PublicDir string
	// MaxUploadBytes caps the request body. Zero means no cap.
	MaxUploadBytes int64
	// Store is the record store every upload is imported into.
	Store recordstore.Config
	// Import tunes each import.
	Import importer.Options
}

// DefaultConfig returns a config serving ./public and saving to ./uploads.
func DefaultConfig(addr string, store recordstore.Config) Config {
	return Config{
		Addr:           addr,
		UploadDir:      "uploads",
		PublicDir:      "public",
		MaxUploadBytes: 512 * humanfmt.MiB,
		Store:          store,
		Import:         importer.DefaultOptions(),
	}
}

// Server is the upload HTTP server.
type Server struct {
	cfg      Config
	router   *chi.Mux
	importer *importer.Importer
	// imports admits one import at a time; the store file is single-writer.
	imports *semaphore.Weighted
}

// New creates a server for cfg.
func New(cfg Config) *Server {
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		importer: importer.New(cfg.Store, cfg.Import),
		imports:  semaphore.NewWeighted(1),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Post("/submit", s.handleSubmit)
	s.router.Get("/*", http.FileServer(http.Dir(s.cfg.PublicDir)).ServeHTTP)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	log := logging.WithPhase("serve")
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if !fileutil.Exists(s.cfg.PublicDir) {
		log.Warn().Str("public_dir", s.cfg.PublicDir).Msg("public directory missing, static requests will 404")
	}
	// Leftovers from uploads interrupted by a previous shutdown.
	if _, err := fileutil.CleanupTmpFiles(s.cfg.UploadDir); err != nil {
		log.Warn().Err(err).Str("upload_dir", s.cfg.UploadDir).Msg("cleanup of partial uploads failed")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", s.cfg.Addr).
			Str("public_dir", s.cfg.PublicDir).
			Str("upload_dir", s.cfg.UploadDir).
			Str("db_path", s.cfg.Store.DBPath).
			Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
