// Package matcher resolves face encodings to registered employees using an
// approximate nearest neighbor index over the active roster.
package matcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/rs/zerolog"

	"github.com/TEC7337/stes/internal/metrics"
	"github.com/TEC7337/stes/internal/storage"
)

const (
	// DefaultTolerance is the maximum encoding distance accepted as a match.
	DefaultTolerance = 0.6

	hnswMaxNeighbors = 16
)

// Candidate is a matched identity with its confidence score.
type Candidate struct {
	EmployeeID string
	Name       string
	Confidence float64
}

// Matcher maps face encodings to employee identities.
type Matcher struct {
	employees storage.EmployeeStore
	tolerance float32
	logger    zerolog.Logger

	mu        sync.RWMutex
	graph     *hnsw.Graph[string]
	names     map[string]string
	encodings map[string][]float32
}

// New creates a matcher over the employee store. Call Reload before matching.
func New(employees storage.EmployeeStore, tolerance float64, logger zerolog.Logger) *Matcher {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Matcher{
		employees: employees,
		tolerance: float32(tolerance),
		logger:    logger.With().Str("component", "matcher").Logger(),
		names:     make(map[string]string),
		encodings: make(map[string][]float32),
	}
}

// Reload rebuilds the index from the active roster. Safe to call while
// Match is running; searches see either the old or the new index.
func (m *Matcher) Reload(ctx context.Context) error {
	employees, err := m.employees.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("load active employees: %w", err)
	}

	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance

	names := make(map[string]string, len(employees))
	encodings := make(map[string][]float32, len(employees))

	indexed := 0
	for _, e := range employees {
		if len(e.Encoding) == 0 {
			m.logger.Warn().Str("employee_id", e.ID).Msg("Skipping employee without face encoding")
			continue
		}
		g.Add(hnsw.MakeNode(e.ID, e.Encoding))
		names[e.ID] = e.Name
		encodings[e.ID] = e.Encoding
		indexed++
	}

	m.mu.Lock()
	if indexed == 0 {
		m.graph = nil
	} else {
		m.graph = g
	}
	m.names = names
	m.encodings = encodings
	m.mu.Unlock()

	m.logger.Info().Int("indexed", indexed).Msg("Matcher index rebuilt")
	return nil
}

// Match returns the closest registered identity within tolerance, or false
// when the encoding matches nobody.
func (m *Matcher) Match(encoding []float32) (*Candidate, bool) {
	startTime := time.Now()
	defer func() {
		metrics.MatchDuration.Observe(time.Since(startTime).Seconds())
	}()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.graph == nil {
		return nil, false
	}

	neighbors := m.graph.Search(encoding, 1)
	if len(neighbors) == 0 {
		return nil, false
	}

	id := neighbors[0].Key
	stored, ok := m.encodings[id]
	if !ok {
		return nil, false
	}

	// The graph search is approximate; score against the stored encoding
	distance := hnsw.EuclideanDistance(encoding, stored)
	if distance > m.tolerance {
		return nil, false
	}

	confidence := 1 - float64(distance)
	if confidence < 0 {
		confidence = 0
	}

	return &Candidate{
		EmployeeID: id,
		Name:       m.names[id],
		Confidence: confidence,
	}, true
}

// Size returns the number of indexed identities.
func (m *Matcher) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.encodings)
}
