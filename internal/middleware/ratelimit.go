package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long a client's limiter survives without requests
const DefaultIdleTTL = 3 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks rate limits per IP
type RateLimiter struct {
	clients    map[string]*client
	limit      rate.Limit
	burst      int
	trustProxy bool
	idleTTL    time.Duration
	lastSweep  time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a limiter allowing rps requests per second per IP with the given burst.
// X-Forwarded-For is only honoured when trustProxy is set, i.e. behind a reverse proxy that overwrites it.
func NewRateLimiter(rps float64, burst int, trustProxy bool) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		clients:    make(map[string]*client),
		limit:      rate.Limit(rps),
		burst:      burst,
		trustProxy: trustProxy,
		idleTTL:    DefaultIdleTTL,
		lastSweep:  time.Now(),
		now:        time.Now,
	}
}

// clientIP extracts the client IP from the request
func (rl *RateLimiter) clientIP(r *http.Request) string {
	if rl.trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			// The first entry is the original client.
			return strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// Allow checks if request is allowed
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		rl.sweepLocked(now)
	}
	c, exists := rl.clients[ip]
	if !exists {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	return c.limiter.AllowN(now, 1)
}

// sweepLocked drops limiters idle for longer than idleTTL
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for ip, c := range rl.clients {
		if now.Sub(c.lastSeen) > rl.idleTTL {
			delete(rl.clients, ip)
		}
	}
	rl.lastSweep = now
}

// Size returns the number of tracked clients
func (rl *RateLimiter) Size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Middleware returns rate limiting middleware
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
