// Package server exposes the ledger, caches and derived views over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bobmcallan/portfoliohub/internal/app"
	"github.com/bobmcallan/portfoliohub/internal/common"
)

// Server serves the REST API for one App.
type Server struct {
	app          *app.App
	server       *http.Server
	logger       *common.Logger
	shutdownChan chan struct{}
}

// NewServer builds the routes and middleware for a. Listening starts with Start.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:    a,
		logger: a.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	cfg := a.Config.Server
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      applyMiddleware(mux, a.Logger),
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// SetShutdownChannel sets the channel signalled by POST /api/shutdown.
func (s *Server) SetShutdownChannel(ch chan struct{}) {
	s.shutdownChan = ch
}

// Handler returns the routed and wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens until Shutdown. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Dur("write_timeout", s.server.WriteTimeout).
		Msg("Starting REST API server")
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
