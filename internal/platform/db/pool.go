package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSettings sizes the record store's connection pool. Zero durations
// keep the pgxpool defaults.
type PoolSettings struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewPool opens the pool and pings it once so a bad DATABASE_URL fails at startup.
func NewPool(ctx context.Context, databaseURL string, s PoolSettings) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if err := s.apply(cfg); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func (s PoolSettings) apply(cfg *pgxpool.Config) error {
	if s.MaxConns <= 0 || s.MinConns < 0 || s.MinConns > s.MaxConns {
		return fmt.Errorf("pool size: min %d, max %d", s.MinConns, s.MaxConns)
	}
	cfg.MaxConns = s.MaxConns
	cfg.MinConns = s.MinConns
	if s.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = s.MaxConnLifetime
		// Spread reconnects so the whole pool does not recycle at once.
		cfg.MaxConnLifetimeJitter = s.MaxConnLifetime / 10
	}
	if s.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = s.MaxConnIdleTime
	}
	if s.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = s.HealthCheckPeriod
	}
	return nil
}
