package dashboard

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/TEC7337/stes/internal/storage"
)

// employeeView is the API shape for an employee: the face encoding is
// never exposed over HTTP.
type employeeView struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Department string    `json:"department,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := s.store.Employees().List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]employeeView, 0, len(employees))
	for _, e := range employees {
		views = append(views, employeeView{
			ID:         e.ID,
			Name:       e.Name,
			Email:      e.Email,
			Department: e.Department,
			Active:     e.Active,
			CreatedAt:  e.CreatedAt,
		})
	}

	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day == "" {
		day = time.Now().Local().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		http.Error(w, "invalid day, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	summary, err := s.reporter.DailySummary(r.Context(), day)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTransitions(w http.ResponseWriter, r *http.Request) {
	filter := storage.TransitionFilter{
		EmployeeID: r.URL.Query().Get("employee"),
		DayKey:     r.URL.Query().Get("day"),
		Limit:      queryInt(r, "limit", 100),
		Offset:     queryInt(r, "offset", 0),
	}

	transitions, err := s.store.Transitions().Query(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, transitions)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := storage.EventFilter{
		EmployeeID: r.URL.Query().Get("employee"),
		Type:       r.URL.Query().Get("type"),
		Limit:      queryInt(r, "limit", 100),
		Offset:     queryInt(r, "offset", 0),
	}

	events, err := s.store.Events().Query(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.stats == nil {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "no recognition loop running"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.stats.Stats())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("Request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
