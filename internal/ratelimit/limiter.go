package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jordansmalls/cs/internal/config"
)

// Class names an operation class with its own quota.
type Class string

// Operation classes.
const (
	// ClassGeneral is the catch-all quota applied to every route.
	ClassGeneral Class = "general"

	// ClassCreate guards account creation.
	ClassCreate Class = "create"

	// ClassAccount guards profile and password operations.
	ClassAccount Class = "account"
)

// Rule is the quota for one class.
type Rule struct {
	Window  time.Duration
	Max     int
	Message string
}

// RulesFromConfig converts the rate limit config into rules.
func RulesFromConfig(cfg config.RateLimitConfig) map[Class]Rule {
	conv := func(c config.LimitConfig) Rule {
		return Rule{Window: c.Window, Max: c.Max, Message: c.Message}
	}
	return map[Class]Rule{
		ClassGeneral: conv(cfg.General),
		ClassCreate:  conv(cfg.Create),
		ClassAccount: conv(cfg.Account),
	}
}

// Decision is the outcome of counting one request.
type Decision struct {
	Class     Class
	Limit     int
	Remaining int
	ResetAt   time.Time
	Window    time.Duration
	Allowed   bool
	Message   string
}

// LimitError is returned when a client exceeds a class quota.
type LimitError struct {
	Class      Class
	Message    string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: retry after %s", e.Class, e.RetryAfter)
}

// Err returns a *LimitError for a rejected decision, or nil.
func (d *Decision) Err(now time.Time) error {
	if d.Allowed {
		return nil
	}
	return &LimitError{
		Class:      d.Class,
		Message:    d.Message,
		RetryAfter: d.ResetIn(now),
	}
}

// ResetIn returns the time left in the window, never negative.
func (d *Decision) ResetIn(now time.Time) time.Duration {
	if left := d.ResetAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithKeyPrefix namespaces counter keys.
func WithKeyPrefix(prefix string) Option {
	return func(l *Limiter) { l.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.logger = logger.With().Str("component", "ratelimit").Logger() }
}

// WithRejectHook registers a callback run for every rejected request.
func WithRejectHook(fn func(Class)) Option {
	return func(l *Limiter) { l.onReject = fn }
}

// Limiter enforces fixed-window quotas per class and client address.
type Limiter struct {
	store    Store
	rules    map[Class]Rule
	prefix   string
	logger   zerolog.Logger
	onReject func(Class)
	now      func() time.Time
}

// NewLimiter creates a limiter over store with the given rules.
func NewLimiter(store Store, rules map[Class]Rule, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		rules:  rules,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rule returns the rule for class.
func (l *Limiter) Rule(class Class) (Rule, bool) {
	r, ok := l.rules[class]
	return r, ok
}

// Allow counts one request from clientAddr against class.
func (l *Limiter) Allow(ctx context.Context, class Class, clientAddr string) (*Decision, error) {
	rule, ok := l.rules[class]
	if !ok {
		return nil, fmt.Errorf("unknown rate limit class: %q", class)
	}

	count, resetAt, err := l.store.Increment(ctx, l.key(class, clientAddr), rule.Window)
	if err != nil {
		return nil, err
	}

	remaining := rule.Max - int(count)
	if remaining < 0 {
		remaining = 0
	}

	d := &Decision{
		Class:     class,
		Limit:     rule.Max,
		Remaining: remaining,
		ResetAt:   resetAt,
		Window:    rule.Window,
		Allowed:   count <= int64(rule.Max),
		Message:   rule.Message,
	}

	if !d.Allowed {
		l.logger.Debug().
			Str("class", string(class)).
			Str("client", clientAddr).
			Int64("count", count).
			Msg("rate limit exceeded")
		if l.onReject != nil {
			l.onReject(class)
		}
	}

	return d, nil
}

// Reset clears the counter for clientAddr in class.
func (l *Limiter) Reset(ctx context.Context, class Class, clientAddr string) error {
	return l.store.Reset(ctx, l.key(class, clientAddr))
}

func (l *Limiter) key(class Class, clientAddr string) string {
	if l.prefix == "" {
		return string(class) + ":" + clientAddr
	}
	return l.prefix + ":" + string(class) + ":" + clientAddr
}
