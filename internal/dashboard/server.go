// Package dashboard serves a read-only JSON API over the attendance store.
// It never calls the decision engine; it only reads what the engine and
// loop have committed.
package dashboard

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/capture"
	"github.com/TEC7337/stes/internal/report"
	"github.com/TEC7337/stes/internal/storage"
)

// StatsProvider exposes the recognition loop's running counters.
type StatsProvider interface {
	Stats() capture.Stats
}

// Server is the dashboard HTTP server.
type Server struct {
	store      storage.Store
	reporter   *report.Reporter
	stats      StatsProvider
	logger     zerolog.Logger
	httpServer *http.Server
	listener   net.Listener
}

// NewServer creates a dashboard server. The stats provider may be nil when
// no recognition loop is running.
func NewServer(addr string, store storage.Store, reporter *report.Reporter, stats StatsProvider, logger zerolog.Logger) *Server {
	s := &Server{
		store:    store,
		reporter: reporter,
		stats:    stats,
		logger:   logger.With().Str("component", "dashboard").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/employees", s.handleEmployees)
		r.Get("/summary", s.handleSummary)
		r.Get("/transitions", s.handleTransitions)
		r.Get("/events", s.handleEvents)
		r.Get("/stats", s.handleStats)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// SetListener installs a pre-bound listener (socket activation).
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the HTTP server in the background.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Dashboard server starting")

	go func() {
		var err error
		if s.listener != nil {
			err = s.httpServer.Serve(s.listener)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Dashboard server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
