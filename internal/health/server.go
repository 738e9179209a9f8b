// Package health serves the drain daemon's probe endpoints over a chi
// router: GET /health runs the registered probes and GET /queue reports the
// raw queue depth.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 5 * time.Second

// DepthReader reports how many items are waiting in the raw queue.
// *telemetry.Store satisfies it.
type DepthReader interface {
	QueueDepth(ctx context.Context) (int64, error)
}

// Server exposes the health endpoints.
type Server struct {
	Logger *slog.Logger
	Probes []Probe
	Queue  DepthReader

	router *chi.Mux
}

// NewServer builds the router. queue may be nil, in which case /queue is not
// mounted.
func NewServer(logger *slog.Logger, queue DepthReader, probes ...Probe) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Logger: logger,
		Probes: probes,
		Queue:  queue,
		router: chi.NewRouter(),
	}

	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(logger))

	s.router.Get("/health", s.HandleHealth)
	if queue != nil {
		s.router.Get("/queue", s.HandleQueueDepth)
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("health server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("health server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	s.Logger.Info("health server stopped")
	return nil
}

type queueDepthResponse struct {
	Depth int64 `json:"depth"`
}

// HandleQueueDepth writes the current raw queue depth.
func (s *Server) HandleQueueDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := s.Queue.QueueDepth(r.Context())
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "queue depth failed", "error", err)
		Error(w, r, err)
		return
	}
	JSON(w, r, http.StatusOK, queueDepthResponse{Depth: depth})
}
