package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Recognition metrics
	FramesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stes_frames_processed_total",
			Help: "Total camera frames sampled by the recognition loop",
		},
	)

	RecognitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stes_recognitions_total",
			Help: "Total recognition candidates returned by the identity matcher",
		},
		[]string{"result"}, // matched, below_confidence, unknown
	)

	MatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stes_match_duration_seconds",
			Help:    "Identity matcher lookup duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// Engine metrics
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stes_transitions_total",
			Help: "Total attendance transitions emitted by the engine",
		},
		[]string{"kind"},
	)

	SuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stes_suppressed_total",
			Help: "Total observations suppressed by the engine",
		},
		[]string{"reason"},
	)

	DecideErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stes_decide_errors_total",
			Help: "Total decide calls rejected with an error",
		},
		[]string{"reason"}, // unknown_identity, invalid_timestamp, registry
	)

	TrackedIdentities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stes_tracked_identities",
			Help: "Number of identities with in-memory attendance state",
		},
	)

	// Persistence metrics
	AppendQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stes_append_queue_depth",
			Help: "Transitions waiting in the async writer queue",
		},
	)

	AppendErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stes_append_errors_total",
			Help: "Transition append failures after retries",
		},
	)
)

func init() {
	prometheus.MustRegister(
		FramesProcessed,
		RecognitionsTotal,
		MatchDuration,
		TransitionsTotal,
		SuppressedTotal,
		DecideErrors,
		TrackedIdentities,
		AppendQueueDepth,
		AppendErrors,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
