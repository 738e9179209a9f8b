package telemetry

import (
	"context"
	"log/slog"

	"telemetry/internal/config"
	"telemetry/internal/db"
)

// Build validates cfg, opens the pool and wires a Store.
func Build(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	settings, err := db.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	sources, err := db.NewEventSourceResolver(cfg.EventSourceAtomicUpsert, cfg.EventSourceCacheSize)
	if err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "telemetry store ready",
		"max_conns", cfg.MaxConns,
		"isolation_level", cfg.IsolationLevel,
		"command_timeout", cfg.CommandTimeout,
		"atomic_source_upsert", cfg.EventSourceAtomicUpsert,
	)
	return NewStore(pool, settings, sources, logger), nil
}

// BuildFromProvider resolves the database configuration through the
// environment, a dotenv file and provider (SSM outside local), then builds
// the Store.
func BuildFromProvider(ctx context.Context, provider config.SecretProvider, logger *slog.Logger) (*Store, error) {
	cfg, err := config.LoadDatabaseConfig(provider)
	if err != nil {
		return nil, err
	}
	return Build(ctx, *cfg, logger)
}
