package api

import (
	"fmt"
	"net/http"
	"strconv"
)

const defaultPageLimit = 50

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps Dependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps Dependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /races/{id}/leaderboard?limit=N&offset=M.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	raceID := r.PathValue("id")
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	standings, err := h.deps.Leaderboard(r.Context(), raceID, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if standings == nil {
		standings = []Standing{}
	}
	writeJSON(w, http.StatusOK, standings)
}

// parsePage reads limit and offset query parameters with defaults.
func parsePage(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("%w: limit %q", ErrBadRequest, raw)
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: offset %q", ErrBadRequest, raw)
		}
	}
	return limit, offset, nil
}
