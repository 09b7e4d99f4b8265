package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxTrackedClients      = 4096
	clientLimiterTTL       = 5 * time.Minute
	rateLimitedRetryAfterS = "1"
)

type rateLimiter interface {
	Allow(client string) bool
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	rate  rate.Limit
	burst int
	now   func() time.Time

	mu          sync.Mutex
	clients     map[string]*rate.Limiter
	lastCleanup time.Time
}

func newTokenBucketLimiter(ratePerSecond float64, burst int) rateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &clientLimiter{
		rate:        rate.Limit(ratePerSecond),
		burst:       burst,
		now:         time.Now,
		clients:     make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
	}
}

func (l *clientLimiter) Allow(client string) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Buckets are dropped wholesale; a client that returns starts full.
	now := l.now()
	if len(l.clients) >= maxTrackedClients || now.Sub(l.lastCleanup) >= clientLimiterTTL {
		l.clients = make(map[string]*rate.Limiter)
		l.lastCleanup = now
	}

	limiter, ok := l.clients[client]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.clients[client] = limiter
	}
	return limiter.AllowN(now, 1)
}

func rateLimitMiddleware(limiter rateLimiter, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter.Allow(clientAddress(r)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Retry-After", rateLimitedRetryAfterS)
		writeError(w, http.StatusTooManyRequests, "Too many requests", "rate limit exceeded, please retry shortly")
	})
}

// clientAddress returns the host part of RemoteAddr. Forwarding headers are
// ignored since the service is not expected to sit behind a proxy.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
