// Package api serves read-only queries over the persisted matches.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"xgform/ingestion/internal/models"
	"xgform/ingestion/internal/repository"
)

// DefaultMatchLimit caps /matches when no limit is given.
const DefaultMatchLimit = 3000

// DefaultFixtureLimit caps /fixtures when no limit is given.
const DefaultFixtureLimit = 100

// Reader is the query surface behind the handlers.
type Reader interface {
	ListTeams(ctx context.Context) ([]*models.Team, error)
	ListMatches(ctx context.Context, team string, limit int) ([]*models.MatchView, error)
	TeamStats(ctx context.Context, team string) (*models.TeamStats, error)
	UpcomingFixtures(ctx context.Context, from time.Time, limit int) ([]*models.FixtureView, error)
	Health(ctx context.Context) error
}

// Handlers holds the HTTP handlers.
type Handlers struct {
	reader Reader
	now    func() time.Time
}

// NewHandlers creates handlers over reader
func NewHandlers(reader Reader) *Handlers {
	return &Handlers{reader: reader, now: time.Now}
}

// NewRouter wires every route onto a gorilla/mux router.
func NewRouter(reader Reader) *mux.Router {
	h := NewHandlers(reader)

	router := mux.NewRouter()
	router.Use(logRequests)

	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/teams", h.HandleTeams).Methods(http.MethodGet)
	router.HandleFunc("/matches", h.HandleMatches).Methods(http.MethodGet)
	router.HandleFunc("/team_stats", h.HandleTeamStats).Methods(http.MethodGet)
	router.HandleFunc("/fixtures", h.HandleFixtures).Methods(http.MethodGet)

	return router
}

// HandleHealth reports store reachability.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.reader.Health(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleTeams lists every known team, ordered by name.
func (h *Handlers) HandleTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.reader.ListTeams(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"teams": teams,
		"count": len(teams),
	})
}

// HandleMatches lists matches newest first, optionally for one team.
func (h *Handlers) HandleMatches(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), DefaultMatchLimit)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	team := r.URL.Query().Get("team")
	matches, err := h.reader.ListMatches(r.Context(), team, limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
}

// HandleTeamStats returns aggregates for one team.
func (h *Handlers) HandleTeamStats(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	if team == "" {
		respondError(w, "team required", http.StatusBadRequest)
		return
	}

	stats, err := h.reader.TeamStats(r.Context(), team)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(w, "team not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// HandleFixtures lists scheduled matches from today on.
func (h *Handlers) HandleFixtures(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), DefaultFixtureLimit)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	today := h.now().UTC().Truncate(24 * time.Hour)
	fixtures, err := h.reader.UpcomingFixtures(r.Context(), today, limit)
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"fixtures": fixtures,
		"count":    len(fixtures),
	})
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("path", r.URL.Path).Msg("Query failed")
	respondError(w, "internal server error", http.StatusInternalServerError)
}

func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request served")
	})
}
