// Package database persists closed trades and the entry-decision audit log
// to PostgreSQL, and mirrors the active-order snapshot to Redis.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"options-scalper-bot/config"
)

// DB wraps the PostgreSQL connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB connects to PostgreSQL and verifies the connection.
func NewDB(cfg config.DatabaseConfig) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// RunMigrations creates the schema if missing.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS closed_orders (
			id TEXT PRIMARY KEY,
			order_type TEXT NOT NULL,
			trading_symbol TEXT NOT NULL,
			instrument_token TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			entry_index_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			exit_index_price DOUBLE PRECISION NOT NULL,
			stop_loss_price DOUBLE PRECISION NOT NULL,
			target_price DOUBLE PRECISION NOT NULL,
			quantity INTEGER NOT NULL,
			scenario_name TEXT,
			exit_reason TEXT NOT NULL,
			exit_detail TEXT,
			total_points DOUBLE PRECISION NOT NULL,
			total_profit DOUBLE PRECISION NOT NULL,
			milestones_hit INTEGER NOT NULL DEFAULT 0,
			entry_time TIMESTAMPTZ NOT NULL,
			exit_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_closed_orders_exit_time ON closed_orders(exit_time)`,
		`CREATE TABLE IF NOT EXISTS entry_decisions (
			id BIGSERIAL PRIMARY KEY,
			should_entry BOOLEAN NOT NULL,
			scenario_name TEXT,
			confidence DOUBLE PRECISION NOT NULL,
			quality_score DOUBLE PRECISION NOT NULL,
			market_direction TEXT,
			reason TEXT NOT NULL,
			decided_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
