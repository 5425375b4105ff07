package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/reports"
)

// reportNames is the fixed set spec §6 names; a caller asking for anything
// else gets a 404 rather than an arbitrary filesystem read.
var reportNames = map[string]bool{
	reports.CanaryScan:           true,
	reports.HighRiskVerification: true,
	reports.MediumRiskSampling:   true,
	reports.FidelityReport:       true,
}

// ReportsHandler serves the Fidelity Verifier's JSON and Markdown report
// files straight off disk.
type ReportsHandler struct {
	logger     *observability.Logger
	reportsDir string
}

// NewReportsHandler builds a ReportsHandler rooted at reportsDir.
func NewReportsHandler(logger *observability.Logger, reportsDir string) *ReportsHandler {
	return &ReportsHandler{logger: logger, reportsDir: reportsDir}
}

// ListReports handles GET /reports, returning the names available.
func (h *ReportsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	available := make([]string, 0, len(reportNames))
	for name := range reportNames {
		if _, err := os.Stat(filepath.Join(h.reportsDir, name+".json")); err == nil {
			available = append(available, name)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"reports": available})
}

// GetReport handles GET /reports/{name}, returning the report's JSON body
// by default, or its rendered Markdown when ?format=md is given.
func (h *ReportsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !reportNames[name] {
		http.Error(w, "unknown report name", http.StatusNotFound)
		return
	}

	ext := ".json"
	contentType := "application/json"
	if r.URL.Query().Get("format") == "md" {
		ext = ".md"
		contentType = "text/markdown; charset=utf-8"
	}

	path := filepath.Join(h.reportsDir, name+ext)
	body, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		http.Error(w, "report not yet generated", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("report", name).Msg("read report file")
		http.Error(w, "failed to read report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(body)
}
