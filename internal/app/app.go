// Package app wires configuration into a running credential service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/auth"
	"github.com/jordansmalls/cs/internal/config"
	"github.com/jordansmalls/cs/internal/handler"
	"github.com/jordansmalls/cs/internal/lock"
	"github.com/jordansmalls/cs/internal/metrics"
	"github.com/jordansmalls/cs/internal/ratelimit"
	"github.com/jordansmalls/cs/internal/repository/factory"
	"github.com/jordansmalls/cs/internal/service"
)

// App holds the assembled components.
type App struct {
	Config   *config.Config
	Store    *factory.Result
	Tokens   *auth.TokenIssuer
	Accounts *service.AccountService

	// Optional components; nil when disabled.
	Redis   redis.UniversalClient
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics

	handler http.Handler
	closers []func() error
	logger  zerolog.Logger
}

// New builds the application from cfg. On error, everything opened so far
// is closed.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, version string) (_ *App, err error) {
	a := &App{
		Config: cfg,
		logger: logger.With().Str("component", "app").Logger(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if cfg.Redis.Enabled {
		a.Redis, err = NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.Redis.Close)
		a.logger.Info().Str("addr", cfg.Redis.Addr()).Msg("connected to redis")
	}

	a.Store, err = factory.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)

	if cfg.Database.AutoMigrate {
		if err = a.Store.Migrate(ctx, a.locker()); err != nil {
			return nil, err
		}
	}

	a.Tokens, err = auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     cfg.Auth.JWTSecret,
		TTL:        cfg.Auth.TokenTTL,
		CookieName: cfg.Auth.CookieName,
		Secure:     !cfg.Server.IsDevelopment(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
	}

	if cfg.RateLimit.Enabled {
		a.Limiter = a.newLimiter(logger)
	}

	accountCfg := service.AccountServiceConfig{
		Users:  a.Store.Repos.User,
		Hasher: auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Tokens: a.Tokens,
		Logger: logger,
	}
	if a.Metrics != nil {
		accountCfg.Metrics = a.Metrics
	}
	a.Accounts = service.NewAccountService(accountCfg)

	a.handler = handler.NewRouter(handler.RouterConfig{
		Accounts: a.Accounts,
		Tokens:   a.Tokens,
		Limiter:  a.Limiter,
		Metrics:  a.Metrics,
		DB:       a.Store.Database,
		Server:   cfg.Server,
		Version:  version,
		Logger:   logger,
	}).Handler()

	return a, nil
}

// Handler returns the API handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// MetricsHandler returns the scrape handler, or nil when metrics are disabled.
func (a *App) MetricsHandler() http.Handler {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics.Handler()
}

// Close releases everything in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// locker returns the lock used to serialize start-up migrations.
func (a *App) locker() lock.Locker {
	if a.Redis != nil {
		return lock.NewRedisLocker(a.Redis)
	}
	return lock.NewMemoryLocker()
}

func (a *App) newLimiter(logger zerolog.Logger) *ratelimit.Limiter {
	cfg := a.Config.RateLimit

	var store ratelimit.Store
	switch cfg.Backend {
	case "redis":
		store = ratelimit.NewRedisStore(a.Redis)
	default:
		mem := ratelimit.NewMemoryStore()
		a.closers = append(a.closers, func() error { mem.Stop(); return nil })
		store = mem
	}

	opts := []ratelimit.Option{
		ratelimit.WithKeyPrefix(cfg.KeyPrefix),
		ratelimit.WithLogger(logger),
	}
	if a.Metrics != nil {
		m := a.Metrics
		opts = append(opts, ratelimit.WithRejectHook(func(c ratelimit.Class) {
			m.RecordRateLimited(string(c))
		}))
	}

	a.logger.Info().Str("backend", cfg.Backend).Msg("rate limiting enabled")
	return ratelimit.NewLimiter(store, ratelimit.RulesFromConfig(cfg), opts...)
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr(), err)
	}

	return client, nil
}
