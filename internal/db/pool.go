package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"telemetry/internal/config"
	"telemetry/internal/types"
)

// NewPoolConfig translates DatabaseConfig into a pgxpool configuration.
// Acquire failures surface quickly so the drain can skip a cycle instead of
// hanging on an exhausted pool.
func NewPoolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	if cfg.URL.IsZero() {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"database connection string is required", nil,
			map[string]any{"field": "DATABASE_URL"},
		)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		// The parse error may echo the DSN, so it is not wrapped.
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
			"database connection string could not be parsed", nil,
			map[string]any{"field": "DATABASE_URL"},
		)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns >= 0 && cfg.MinConns <= poolCfg.MaxConns {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	return poolCfg, nil
}

// NewPool opens a pool and verifies it with a ping bounded by the acquire
// timeout.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := NewPoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, classifyError("failed to create connection pool", err)
	}

	timeout := cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, types.NewAppError(types.ErrCodeConnectivity, "database is not reachable", err)
	}
	return pool, nil
}

// SettingsFromConfig derives the statement settings shared by the writers.
func SettingsFromConfig(cfg config.DatabaseConfig) (Settings, error) {
	iso, err := ParseIsolationLevel(cfg.IsolationLevel)
	if err != nil {
		return Settings{}, err
	}
	return Settings{IsoLevel: iso, CommandTimeout: cfg.CommandTimeout}, nil
}
