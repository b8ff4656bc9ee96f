// Package factory creates repositories based on configuration.
package factory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/config"
	"github.com/jordansmalls/cs/internal/lock"
	"github.com/jordansmalls/cs/internal/repository"
	"github.com/jordansmalls/cs/internal/repository/memory"
	"github.com/jordansmalls/cs/internal/repository/migrations"
	"github.com/jordansmalls/cs/internal/repository/postgres"
	"github.com/jordansmalls/cs/internal/repository/sqlite"
)

// Result contains the created repositories and database connection.
type Result struct {
	Repos    *repository.Repositories
	Database repository.DatabaseHealth

	// Migrator is nil for the memory driver.
	Migrator *migrations.Migrator

	driver string
	sqlDB  *sql.DB
}

// migrateLockTTL bounds how long a crashed instance can block others.
const migrateLockTTL = 5 * time.Minute

// Open connects to the configured database and builds the repositories.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Result, error) {
	logger = logger.With().Str("driver", cfg.Driver).Logger()

	switch cfg.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		sqlDB := db.SQLDB()
		m, err := migrations.New(sqlDB, migrations.DialectPostgres, logger)
		if err != nil {
			_ = sqlDB.Close()
			_ = db.Close()
			return nil, err
		}
		return &Result{
			Repos:    &repository.Repositories{User: postgres.NewUserRepository(db)},
			Database: db,
			Migrator: m,
			driver:   cfg.Driver,
			sqlDB:    sqlDB,
		}, nil

	case "sqlite":
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, err
		}
		m, err := migrations.New(db.DB(), migrations.DialectSQLite, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Result{
			Repos:    &repository.Repositories{User: sqlite.NewUserRepository(db)},
			Database: db,
			Migrator: m,
			driver:   cfg.Driver,
		}, nil

	case "memory":
		logger.Warn().Msg("using in-memory identity store; data is lost on restart")
		repo := memory.NewUserRepository()
		return &Result{
			Repos:    &repository.Repositories{User: repo},
			Database: repo,
			driver:   cfg.Driver,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
}

// Migrate applies pending migrations. It is a no-op for the memory driver.
// When locker is non-nil, instances sharing the locker migrate one at a time.
func (r *Result) Migrate(ctx context.Context, locker lock.Locker) error {
	if r.Migrator == nil {
		return nil
	}
	if locker == nil {
		return r.Migrator.Up(ctx)
	}
	return lock.WithLock(ctx, locker, lock.Keys.Migrate(r.driver), migrateLockTTL, lock.DefaultRetryPolicy, r.Migrator.Up)
}

// Close releases the database connection.
func (r *Result) Close() error {
	var errs []error
	if r.sqlDB != nil {
		errs = append(errs, r.sqlDB.Close())
	}
	errs = append(errs, r.Database.Close())
	return errors.Join(errs...)
}
