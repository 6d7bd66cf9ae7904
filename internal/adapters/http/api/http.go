// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/model"
)

// Standing mirrors the read shape returned by leaderboard queries.
type Standing = service.Standing

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Leaderboard returns one page of a race's ranked standings.
	Leaderboard(ctx context.Context, raceID string, limit, offset int) ([]Standing, error)

	// Summary returns every ledger an entity holds across races.
	Summary(ctx context.Context, entity model.EntityRef) ([]model.Ledger, error)

	// EventHistory returns one page of a ledger's events, newest first.
	EventHistory(ctx context.Context, ledgerID string, since, until time.Time, limit, offset int) ([]model.PointEvent, error)

	// SnapshotSeries returns one page of a ledger's daily snapshots,
	// oldest first.
	SnapshotSeries(ctx context.Context, ledgerID string, since, until time.Time, limit, offset int) ([]model.PointSnapshot, error)
}

// Server wires HTTP routes for the read-side API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	historyHandler     *HistoryHandler
	summaryHandler     *SummaryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps),
		historyHandler:     NewHistoryHandler(deps),
		summaryHandler:     NewSummaryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /races/{id}/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /ledgers/{id}/events", MetricsMiddleware(s.historyHandler.HandleGetEvents, "events"))
	mux.HandleFunc("GET /ledgers/{id}/snapshots", MetricsMiddleware(s.historyHandler.HandleGetSnapshots, "snapshots"))
	mux.HandleFunc("GET /entities/{kind}/{id}/summary", MetricsMiddleware(s.summaryHandler.HandleGetSummary, "summary"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates upstream errors to an HTTP status.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
