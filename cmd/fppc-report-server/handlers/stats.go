package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

// StatsHandler serves the State Store's summary statistics.
type StatsHandler struct {
	logger *observability.Logger
	repo   *store.Repository
}

// NewStatsHandler builds a StatsHandler.
func NewStatsHandler(logger *observability.Logger, repo *store.Repository) *StatsHandler {
	return &StatsHandler{logger: logger, repo: repo}
}

// StatsResponse bundles the three stage-level stats the stats subcommand
// prints, so a dashboard can poll one endpoint instead of three.
type StatsResponse struct {
	Download  store.DownloadStats   `json:"download"`
	Extraction store.ExtractionStats `json:"extraction"`
	Fidelity  store.FidelityStats   `json:"fidelity"`
}

// GetStats handles GET /stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dl, err := h.repo.DownloadStats(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "download stats", err)
		return
	}
	ex, err := h.repo.ExtractionStats(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "extraction stats", err)
		return
	}
	fi, err := h.repo.FidelityStats(ctx)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "fidelity stats", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatsResponse{Download: dl, Extraction: ex, Fidelity: fi})
}

func (h *StatsHandler) writeError(w http.ResponseWriter, status int, msg string, err error) {
	h.logger.Error().Err(err).Msg(msg)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "detail": err.Error()})
}
