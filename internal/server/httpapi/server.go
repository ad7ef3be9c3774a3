// Package httpapi exposes the session service over HTTP under /api/v1.
// Session tokens are delivered as HTTP-only cookies; protected endpoints
// resolve the caller through the auth middleware before running.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tbsky/session/internal/logging"
	"github.com/tbsky/session/internal/server/services"
)

const shutdownTimeout = 5 * time.Second

// Server serves the public HTTP API.
type Server struct {
	addr     string
	logger   logging.Logger
	security *services.SecurityService
}

// NewServer constructs the HTTP server for the given bind address.
func NewServer(addr string, logger logging.Logger, security *services.SecurityService) *Server {
	return &Server{addr: addr, logger: logger, security: security}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/security/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/security/login", s.handleLogin)
	mux.HandleFunc("POST /api/v1/security/access_token", s.requireUser(s.handleAccessToken))
	mux.HandleFunc("POST /api/v1/security/refresh_token", s.requireUser(s.handleRefreshToken))
	mux.HandleFunc("POST /api/v1/security/logout", s.requireUser(s.handleLogout))
	mux.HandleFunc("GET /api/v1/users/me", s.requireUser(s.handleMe))

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "http server listening", "addr", s.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
