package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds connection pool settings. The debit workload is small
// writes and short reads, so the pool is kept modest.
type Config struct {
	URL            string
	MaxConns       int32
	MinConns       int32
	ConnLifetime   time.Duration
	ConnIdleTime   time.Duration
	ConnectTimeout time.Duration
}

// DefaultConfig returns pool settings suitable for a single API instance
func DefaultConfig(url string) *Config {
	return &Config{
		URL:            url,
		MaxConns:       10,
		MinConns:       2,
		ConnLifetime:   30 * time.Minute,
		ConnIdleTime:   5 * time.Minute,
		ConnectTimeout: 5 * time.Second,
	}
}

// NewPool creates a connection pool and verifies it with a bounded ping
func NewPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.ConnLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
