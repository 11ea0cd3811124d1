package api

import (
	"net"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/blocke-ledger/internal/errors"
)

// ClientIDHeader lets a caller identify itself for rate limiting
const ClientIDHeader = "X-Client-ID"

// defaultMaxClients bounds how many per-client limiters are remembered.
// The least recently seen client is evicted first.
const defaultMaxClients = 10000

// RateLimiter hands out one token bucket per client
type RateLimiter struct {
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a new rate limiter allowing rps requests per
// second with the given burst for each client.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return NewRateLimiterWithCapacity(rps, burst, defaultMaxClients)
}

// NewRateLimiterWithCapacity is NewRateLimiter with an explicit client cap
func NewRateLimiterWithCapacity(rps float64, burst, maxClients int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	if maxClients < 1 {
		maxClients = defaultMaxClients
	}
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, *rate.Limiter](maxClients)
	return &RateLimiter{
		limiters: cache,
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// getLimiter returns the limiter for key, creating it on first sight
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.limiters.Get(key); ok {
		return limiter
	}

	limiter := rate.NewLimiter(rl.limit, rl.burst)
	if existing, found, _ := rl.limiters.PeekOrAdd(key, limiter); found {
		return existing
	}
	return limiter
}

// Allow reports whether key may make a request now
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// clientKey identifies the caller by X-Client-ID, falling back to the remote IP
func clientKey(r *http.Request) string {
	if id := r.Header.Get(ClientIDHeader); id != "" {
		return "client:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(clientKey(r)) {
				respondError(w, r, apperrors.NewRateLimitError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
