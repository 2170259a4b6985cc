package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/YumaSeno/AIDeveloper/internal/history"
	"github.com/YumaSeno/AIDeveloper/internal/model"
)

const defaultEntryLimit = 50

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Live run
	mux.HandleFunc("GET /api/status", s.getStatus)
	mux.HandleFunc("GET /api/team", s.getTeam)

	// Mirrored log
	mux.HandleFunc("GET /api/entries", s.getEntries)
	mux.HandleFunc("GET /api/history/{agent}", s.getHistory)

	// Run records
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}/phases", s.getRunPhases)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":    "ok",
		"run":       s.run.Status(),
		"uptime":    formatUptime(time.Since(s.startedAt)),
		"nats":      natsState(s.nats != nil),
		"viewers":   s.hub.clientCount(),
		"timestamp": time.Now().UTC(),
		"version":   s.version,
	}
	if stats, err := s.store.GetParticipantStats(s.project); err == nil {
		status["participants"] = stats
	}
	jsonResponse(w, status)
}

func (s *Server) getTeam(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.run.Team())
}

func (s *Server) getEntries(w http.ResponseWriter, r *http.Request) {
	limit := defaultEntryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	records, err := s.store.GetEntries(s.project, limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		jsonResponse(w, []any{})
		return
	}
	jsonResponse(w, records)
}

// getHistory returns the personal history the named agent would be shown,
// before compaction.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("agent")
	if !s.onTeam(name) {
		jsonError(w, fmt.Sprintf("agent %q is not on the team", name), http.StatusNotFound)
		return
	}
	entries, err := s.store.LogEntries(s.project)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	projected := history.Project(entries, name)
	if projected == nil {
		projected = []model.Entry{}
	}
	jsonResponse(w, projected)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(s.project)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, runs)
}

func (s *Server) getRunPhases(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := s.store.GetRun(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	phases, err := s.store.ListPhaseTransitions(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]any{"run": run, "phases": phases})
}

func (s *Server) onTeam(name string) bool {
	for _, p := range s.run.Team() {
		if p.Name == name {
			return true
		}
	}
	return false
}

func natsState(connected bool) string {
	if connected {
		return "ok"
	}
	return "disabled"
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
