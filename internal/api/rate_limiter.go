package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/etf-dashboard/internal/errors"
)

// ClientIDHeader lets a client identify itself for rate limiting
const ClientIDHeader = "X-Client-ID"

// maxTrackedClients bounds the limiter table before idle clients are pruned
const maxTrackedClients = 10000

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages rate limiting for API requests, one token bucket per client
type RateLimiter struct {
	limiters map[string]*clientLimiter
	mu       sync.Mutex

	limit     rate.Limit
	burstSize int
	idleTTL   time.Duration
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(requestsPerSecond, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters:  make(map[string]*clientLimiter),
		limit:     limit,
		burstSize: burst,
		idleTTL:   10 * time.Minute,
		now:       time.Now,
	}
}

// getLimiter returns the rate limiter for a client
func (rl *RateLimiter) getLimiter(clientID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if cl, ok := rl.limiters[clientID]; ok {
		cl.lastSeen = now
		return cl.limiter
	}

	if len(rl.limiters) >= maxTrackedClients {
		rl.pruneLocked(now)
	}

	cl := &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burstSize), lastSeen: now}
	rl.limiters[clientID] = cl
	return cl.limiter
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	for id, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > rl.idleTTL {
			delete(rl.limiters, id)
		}
	}
}

// clientKey identifies the caller by header, falling back to the remote IP
func clientKey(r *http.Request) string {
	if id := r.Header.Get(ClientIDHeader); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.getLimiter(clientKey(r))

			if !limiter.Allow() {
				retryAfter := 1
				if l := limiter.Limit(); l > 0 && l != rate.Inf {
					retryAfter = int(math.Ceil(1 / float64(l)))
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respondServiceError(w, r, apperrors.NewRateLimitError(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
