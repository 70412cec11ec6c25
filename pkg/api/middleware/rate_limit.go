package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/stigmer/stigmer/pkg/api/response"
	"golang.org/x/time/rate"
)

// RateLimiter manages per-client token-bucket limiters.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// getLimiter gets or creates a limiter for a client.
func (rl *RateLimiter) getLimiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[clientID]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[clientID] = limiter
	}

	return limiter
}

// RateLimit returns a middleware enforcing a per-client request budget.
// Clients are told how long to back off via Retry-After.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Probes are exempt so orchestrators never see throttling.
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			limiter := rl.getLimiter(clientID(r))
			if !limiter.Allow() {
				reservation := limiter.Reserve()
				retryAfter := int(reservation.Delay().Seconds())
				reservation.Cancel()
				if retryAfter < 1 {
					retryAfter = 1
				}

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				response.Error(w, http.StatusTooManyRequests, "RATE_LIMITED",
					"rate limit exceeded", GetRequestID(r.Context()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientID identifies the caller: the X-Agent-ID header when workers send
// it, otherwise the remote IP.
func clientID(r *http.Request) string {
	if agent := strings.TrimSpace(r.Header.Get("X-Agent-ID")); agent != "" {
		return agent
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
