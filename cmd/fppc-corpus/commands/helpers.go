package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nomindnick/fppc-corpus/internal/config"
	"github.com/nomindnick/fppc-corpus/internal/observability"
	"github.com/nomindnick/fppc-corpus/internal/store"
)

// pipeline bundles the config, logger, and repository every subcommand
// needs, so each RunE does one loadPipeline call instead of repeating the
// config/store/logger wiring dance.
type pipeline struct {
	cfg  *config.Config
	log  *observability.Logger
	repo *store.Repository
	db   interface{ Close() error }
}

// loadPipeline wires config/logger/store for one subcommand invocation and
// tags ctx with a fresh run ID (one per process invocation, not per
// document), so every log line emitted through the returned pipeline's
// logger and every line emitted by p.log.WithContext(ctx) elsewhere in the
// same run correlates under a single run_id, the way an operator greps a
// batch run's logs after the fact.
func loadPipeline(ctx context.Context) (context.Context, *pipeline, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return ctx, nil, fmt.Errorf("load config: %w", err)
	}

	ctx = observability.ContextWithRunID(ctx, uuid.New().String())

	logLevel := cfg.Observability.LogLevel
	if verbose {
		logLevel = "debug"
	}
	log := observability.NewLogger(observability.LogConfig{
		Level:       logLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "fppc-corpus",
	}).WithContext(ctx)

	db, err := store.Open(ctx, cfg.Store.Driver, cfg.DatabaseDSN())
	if err != nil {
		return ctx, nil, fmt.Errorf("open state store: %w", err)
	}

	return ctx, &pipeline{
		cfg:  cfg,
		log:  log,
		repo: store.NewRepository(db, cfg.Store.Driver),
		db:   db,
	}, nil
}

func (p *pipeline) Close() {
	_ = p.db.Close()
}
