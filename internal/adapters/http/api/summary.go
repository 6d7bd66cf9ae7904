package api

import (
	"fmt"
	"net/http"

	"github.com/okian/tally/internal/domain/model"
)

// SummaryHandler handles entity summary requests.
type SummaryHandler struct {
	deps Dependencies
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(deps Dependencies) *SummaryHandler {
	return &SummaryHandler{deps: deps}
}

// HandleGetSummary handles GET /entities/{kind}/{id}/summary.
func (h *SummaryHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	entity := model.EntityRef{
		Kind: model.EntityKind(r.PathValue("kind")),
		ID:   r.PathValue("id"),
	}
	if !entity.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request",
			fmt.Errorf("%w: kind %q", ErrBadRequest, entity.Kind))
		return
	}

	ledgers, err := h.deps.Summary(r.Context(), entity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if ledgers == nil {
		ledgers = []model.Ledger{}
	}
	writeJSON(w, http.StatusOK, ledgers)
}
