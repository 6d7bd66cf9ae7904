package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/okian/tally/internal/domain/model"
)

// HistoryHandler handles event and snapshot history requests.
type HistoryHandler struct {
	deps Dependencies
	now  func() time.Time
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps Dependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps, now: time.Now}
}

// HandleGetEvents handles GET /ledgers/{id}/events?period=P&limit=N&offset=M.
func (h *HistoryHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	ledgerID := r.PathValue("id")
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	since, err := parsePeriod(r.URL.Query().Get("period"), h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	events, err := h.deps.EventHistory(r.Context(), ledgerID, since, time.Time{}, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []model.PointEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleGetSnapshots handles GET /ledgers/{id}/snapshots?period=P&limit=N&offset=M.
func (h *HistoryHandler) HandleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	ledgerID := r.PathValue("id")
	limit, offset, err := parsePage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	since, err := parsePeriod(r.URL.Query().Get("period"), h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	snaps, err := h.deps.SnapshotSeries(r.Context(), ledgerID, since, time.Time{}, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if snaps == nil {
		snaps = []model.PointSnapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

// parsePeriod maps a chart period to the start of its time window. An empty
// period or "all" means an unbounded window.
func parsePeriod(period string, now time.Time) (time.Time, error) {
	switch period {
	case "", "all":
		return time.Time{}, nil
	case "day":
		return now.Add(-24 * time.Hour), nil
	case "week":
		return now.Add(-7 * 24 * time.Hour), nil
	case "month":
		return now.AddDate(0, -1, 0), nil
	case "quarter":
		return now.AddDate(0, -3, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}
