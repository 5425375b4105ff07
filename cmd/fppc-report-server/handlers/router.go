// Package handlers provides the HTTP handlers for fppc-report-server, a
// tiny read-only surface over the Fidelity Verifier's report files and the
// State Store's summary statistics. Shaped the same way as
// cmd/knowledge-engine-api/router.go: chi.NewRouter plus chi's standard
// middleware stack, health check first, then a handful of GET routes built
// from repositories opened here.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

// NewRouter opens the State Store and builds the report server's router.
// The returned close func releases the State Store handle; call it when
// the server shuts down.
func NewRouter(logger *observability.Logger, cfg *config.Config) (http.Handler, func() error, error) {
	db, err := store.Open(context.Background(), cfg.Store.Driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, nil, err
	}
	repo := store.NewRepository(db, cfg.Store.Driver)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(15 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"fppc-report-server"}`))
	})

	statsHandler := NewStatsHandler(logger, repo)
	r.Get("/stats", statsHandler.GetStats)

	reportsHandler := NewReportsHandler(logger, cfg.Fidelity.ReportsDir)
	r.Get("/reports/{name}", reportsHandler.GetReport)
	r.Get("/reports", reportsHandler.ListReports)

	return r, db.Close, nil
}
