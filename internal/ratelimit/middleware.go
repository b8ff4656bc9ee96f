package ratelimit

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Rate limit response headers (IETF draft-6 names).
const (
	HeaderPolicy     = "RateLimit-Policy"
	HeaderLimit      = "RateLimit-Limit"
	HeaderRemaining  = "RateLimit-Remaining"
	HeaderReset      = "RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Middleware enforces the quota for class on every request.
// Store failures are logged and the request is let through.
func (l *Limiter) Middleware(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := ClientAddr(r)

			d, err := l.Allow(r.Context(), class, addr)
			if err != nil {
				l.logger.Warn().Err(err).
					Str("class", string(class)).
					Str("client", addr).
					Msg("rate limit store unavailable, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			now := l.now()
			setHeaders(w.Header(), d, now)

			if !d.Allowed {
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(ceilSeconds(d.ResetIn(now))))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": d.Message})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientAddr returns the host part of the request's remote address.
// Proxy headers must already have been applied to RemoteAddr.
func ClientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setHeaders(h http.Header, d *Decision, now time.Time) {
	h.Set(HeaderPolicy, strconv.Itoa(d.Limit)+";w="+strconv.Itoa(ceilSeconds(d.Window)))
	h.Set(HeaderLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderReset, strconv.Itoa(ceilSeconds(d.ResetIn(now))))
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
