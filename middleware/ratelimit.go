package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	auth "github.com/mshaik15/Backend-firebase-auth"
	"github.com/mshaik15/Backend-firebase-auth/internal/rate"
)

// TrustedKeyHeader carries an allow-listed caller key that bypasses rate
// limiting (health probes, internal services).
const TrustedKeyHeader = "X-Internal-Key"

// RateLimit applies a policy class ("global" or "auth") keyed by client IP,
// sharing the engine's Redis budgets. Denials get a 429 with Retry-After.
// Redis outages fail closed with a 503.
func RateLimit(engine *auth.Engine, class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := engine.RateLimiter()
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(TrustedKeyHeader)
			if key == "" || !limiter.Trusted(key) {
				key = ClientIP(r)
			}

			retryAfter, err := limiter.Check(r.Context(), rate.Class(class), key)
			if err != nil {
				if errors.Is(err, rate.ErrRateLimited) {
					seconds := int(retryAfter.Seconds())
					if seconds < 1 {
						seconds = 1
					}
					w.Header().Set("Retry-After", strconv.Itoa(seconds))
					http.Error(w, "rate limited", http.StatusTooManyRequests)
					return
				}
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientContext attaches the client IP and user agent to the request
// context so engine audit events and rate keys see them.
func ClientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithClientIP(r.Context(), ClientIP(r))
		if ua := r.UserAgent(); ua != "" {
			ctx = auth.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP resolves the caller address, preferring the first entry of
// X-Forwarded-For when a proxy added one.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
