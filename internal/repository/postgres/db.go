// Package postgres stores identities in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/config"
)

const connectTimeout = 10 * time.Second

// DB owns the pgx pool shared by the repositories and the migrator.
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDB opens the pool and fails fast if the server is unreachable.
func NewDB(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*DB, error) {
	logger = logger.With().Str("component", "postgres").Logger()

	pc, err := poolConfig(cfg, logger)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: unreachable at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	logger.Info().
		Str("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)).
		Str("database", cfg.Database).
		Int32("max_conns", pc.MaxConns).
		Msg("pool ready")

	return &DB{Pool: pool, logger: logger}, nil
}

func poolConfig(cfg config.DatabaseConfig, logger zerolog.Logger) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: bad connection settings: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		pc.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		pc.MinConns = int32(cfg.MaxIdleConns)
	}
	pc.MaxConnLifetime = cfg.ConnMaxLifetime
	pc.MaxConnIdleTime = cfg.ConnMaxIdleTime
	pc.ConnConfig.ConnectTimeout = connectTimeout

	// Statements are only traced at debug level; arguments may hold hashes.
	if logger.GetLevel() <= zerolog.DebugLevel {
		pc.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   tracelog.LoggerFunc(logQuery(logger)),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	return pc, nil
}

func logQuery(logger zerolog.Logger) func(context.Context, tracelog.LogLevel, string, map[string]any) {
	return func(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		ev := logger.Debug()
		if level <= tracelog.LogLevelError {
			ev = logger.Warn()
		}
		for k, v := range data {
			if k == "args" {
				continue
			}
			ev = ev.Interface(k, v)
		}
		ev.Msg(msg)
	}
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	db.Pool.Close()
	db.logger.Info().Msg("pool closed")
	return nil
}

// Ping checks that a connection can be acquired.
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Health runs a round trip and warns when the pool is saturated.
func (db *DB) Health(ctx context.Context) error {
	var one int
	if err := db.Pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres: health check: %w", err)
	}
	if st := db.Pool.Stat(); st.IdleConns() == 0 && st.TotalConns() >= st.MaxConns() {
		db.logger.Warn().Int32("total", st.TotalConns()).Msg("pool saturated")
	}
	return nil
}

// SQLDB exposes the pool through database/sql for goose.
// Closing the handle leaves the pool open.
func (db *DB) SQLDB() *sql.DB {
	return stdlib.OpenDBFromPool(db.Pool)
}
