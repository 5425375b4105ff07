// Command fppc-report-server exposes the Fidelity Verifier's JSON reports
// and the State Store's summary statistics over a tiny read-only HTTP
// surface, for a dashboard to poll. It is not part of THE CORE pipeline;
// it is wired here because the teacher's knowledge-engine-api router
// (cmd/knowledge-engine-api/router.go) shows exactly this shape — chi +
// chi middleware + a handful of GET routes over repositories — and this
// is the one place in the corpus that benefits from it.
package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/nomindnick/fppc-corpus/cmd/fppc-report-server/handlers"
	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/observability"
)

func main() {
	cfgPath := os.Getenv("FPPC_CONFIG")
	addr := os.Getenv("FPPC_REPORT_SERVER_ADDR")
	if addr == "" {
		addr = ":8089"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("fppc-report-server: load config: %v", err)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "fppc-report-server",
	})

	router, closeFn, err := handlers.NewRouter(logger, cfg)
	if err != nil {
		log.Fatalf("fppc-report-server: build router: %v", err)
	}
	defer closeFn()

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("fppc-report-server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("fppc-report-server: %v", err)
	}
}
