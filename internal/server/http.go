package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jeongseonghan/ntn-linksim/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP server for the simulation API.
type Server struct {
	mux     *http.ServeMux
	handler *Handlers
	addr    string
	log     logging.Logger
}

// NewServer creates a new HTTP server.
func NewServer(addr string, handler *Handlers, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		mux:     http.NewServeMux(),
		handler: handler,
		addr:    addr,
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	s.mux.HandleFunc("/api/run", s.handler.HandleRun)
	s.mux.HandleFunc("/api/sweep", s.handler.HandleSweep)
	s.mux.HandleFunc("/api/status", s.handler.HandleStatus)
	s.mux.Handle("/metrics", s.handler.MetricsHandler())

	// WebSocket
	s.mux.HandleFunc("/ws", s.handler.HandleWebSocket)
}

// Handler returns the routed handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled, then shuts down gracefully and stops
// any running sweep.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "Starting server", logging.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info(context.Background(), "Shutting down server")
	s.handler.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
