// Package web serves a small read-only HTTP API over the follower listing.
package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/cors"

	"followback/pkg/config"
	"followback/pkg/github"
	"followback/pkg/logger"
)

// ListerAPI is the slice of the GitHub client the server needs
type ListerAPI interface {
	ListFollowers(ctx context.Context, page, perPage int) ([]github.Follower, error)
}

// Server exposes the materialized follower listing as JSON
type Server struct {
	httpServer *http.Server
	client     ListerAPI
	perPage    int
	logger     logger.Logger
}

// NewServer creates the listing server
func NewServer(cfg *config.ServerConfig, client ListerAPI, perPage int, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	if perPage <= 0 || perPage > github.MaxPerPage {
		perPage = github.MaxPerPage
	}

	s := &Server{
		client:  client,
		perPage: perPage,
		logger:  log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/followers", s.handleFollowers)
	mux.HandleFunc("/healthz", s.handleHealth)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      corsMiddleware.Handler(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Start runs the server until it is shut down or fails
func (s *Server) Start() error {
	logger.LogComponentStart(s.logger, "listing server", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.LogComponentStop(s.logger, "listing server", "shutdown requested")
	return s.httpServer.Shutdown(ctx)
}

// handleFollowers materializes the entire follower listing and returns it as
// a JSON array, newest first
func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	followers, err := s.materialize(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to materialize follower listing")
		s.writeError(w, http.StatusBadGateway, "upstream listing unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(followers); err != nil {
		s.logger.WithError(err).Error("Failed to encode follower listing")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// materialize walks every page of the listing
func (s *Server) materialize(ctx context.Context) ([]github.Follower, error) {
	followers := make([]github.Follower, 0)

	for page := 1; ; page++ {
		batch, err := s.client.ListFollowers(ctx, page, s.perPage)
		if err != nil {
			return nil, err
		}
		followers = append(followers, batch...)
		if len(batch) < s.perPage {
			return followers, nil
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
