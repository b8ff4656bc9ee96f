// Package handler provides the HTTP/JSON API of the credential service.
package handler

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/auth"
	"github.com/jordansmalls/cs/internal/config"
	"github.com/jordansmalls/cs/internal/metrics"
	"github.com/jordansmalls/cs/internal/ratelimit"
	"github.com/jordansmalls/cs/internal/service"
)

// Router assembles the middleware chain and routes.
type Router struct {
	authHandler   *AuthHandler
	userHandler   *UserHandler
	healthHandler *HealthHandler
	tokens        auth.TokenVerifier
	limiter       *ratelimit.Limiter
	metrics       *metrics.Metrics
	server        config.ServerConfig
	logger        zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	Accounts *service.AccountService
	Tokens   *auth.TokenIssuer

	// Limiter is optional; nil disables rate limiting.
	Limiter *ratelimit.Limiter

	// Metrics is optional.
	Metrics *metrics.Metrics

	// DB is pinged by /health. Optional.
	DB Pinger

	Server  config.ServerConfig
	Version string
	Logger  zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		authHandler:   NewAuthHandler(cfg.Accounts, cfg.Tokens, cfg.Logger),
		userHandler:   NewUserHandler(cfg.Accounts, cfg.Tokens, cfg.Logger),
		healthHandler: NewHealthHandler(cfg.DB, cfg.Server.Environment, cfg.Version, cfg.Logger),
		tokens:        cfg.Tokens,
		limiter:       cfg.Limiter,
		metrics:       cfg.Metrics,
		server:        cfg.Server,
		logger:        cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if rt.server.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(RequestLogger(rt.logger))
	r.Use(middleware.Recoverer)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
	}
	r.Use(SecurityHeaders)
	if rt.server.IsDevelopment() || len(rt.server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(rt.corsOptions()))
	}
	r.Use(rt.limit(ratelimit.ClassGeneral))
	r.Use(MaxBodySize(rt.server.MaxBodySize))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, MsgRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	})

	r.Get("/", rt.healthHandler.Live)
	r.Get("/health", rt.healthHandler.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			rt.authHandler.RegisterRoutes(r, rt.limit(ratelimit.ClassCreate))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(rt.limit(ratelimit.ClassAccount))
			r.Use(auth.Middleware(rt.tokens))
			rt.userHandler.RegisterRoutes(r)
		})
	})

	return r
}

// limit returns the limiter middleware for class, or a pass-through when
// rate limiting is disabled.
func (rt *Router) limit(class ratelimit.Class) func(http.Handler) http.Handler {
	if rt.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rt.limiter.Middleware(class)
}

// corsOptions allows any origin in development and the configured
// allow-list otherwise. An empty allow-list outside development disables
// CORS entirely.
func (rt *Router) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	if rt.server.IsDevelopment() {
		opts.AllowedOrigins = []string{"*"}
		return opts
	}

	opts.AllowedOrigins = slices.Clone(rt.server.AllowedOrigins)
	return opts
}
