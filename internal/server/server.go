// Package server exposes the service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"ragalert/internal/app"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 4 << 20

// Server is the HTTP API for queries, ingestion, alerts and reports.
type Server struct {
	svc    *app.Service
	logger *slog.Logger
}

func New(svc *app.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{svc: svc, logger: logger}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("POST /config/toggle-backend", s.handleToggle)
	mux.HandleFunc("GET /documents", s.handleDocuments)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /send-email", s.handleSendEmail)
	mux.HandleFunc("POST /report", s.handleReport)
	mux.HandleFunc("GET /incidents", s.handleIncidents)

	return requestID(corsMiddleware(s.loggingMiddleware(s.recoverMiddleware(mux))))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, readTimeout, writeTimeout)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	shutdownErr := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-shutdownErr
}
