// Package sessions exposes the live session view, user statistics and
// session history over HTTP.
package sessions

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/chargetrack/core/session"
	"github.com/kilianp07/chargetrack/core/sessionlog"
	"github.com/kilianp07/chargetrack/core/stats"
)

// Viewer provides the engine's current state for the display path.
type Viewer interface {
	View() session.View
}

// NewLiveHandler returns an HTTP handler exposing the engine state via
// GET /api/session.
func NewLiveHandler(engine Viewer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(engine.View()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewStatsHandler returns an HTTP handler exposing aggregated statistics via
// GET /api/stats.
func NewStatsHandler(agg *stats.Aggregator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(agg.View()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewHistoryHandler returns an HTTP handler exposing session history via
// GET /api/history. Supported query parameters: start, end (RFC3339),
// user_id, limit.
func NewHistoryHandler(store sessionlog.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q := sessionlog.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.UserID = r.URL.Query().Get("user_id")
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				q.Limit = n
			}
		}
		sessions, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(sessions); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewMux assembles all session endpoints on one ServeMux.
func NewMux(engine Viewer, agg *stats.Aggregator, history sessionlog.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/session", NewLiveHandler(engine))
	mux.Handle("/api/stats", NewStatsHandler(agg))
	mux.Handle("/api/history", NewHistoryHandler(history))
	return mux
}
