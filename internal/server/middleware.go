package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// clientLimiter hands out one token bucket per client IP. Stale entries are
// evicted lazily when the map grows past maxClients.
type clientLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientEntry
	perSec     rate.Limit
	burst      int
	maxClients int
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(perSec float64, burst int) *clientLimiter {
	return &clientLimiter{
		clients:    make(map[string]*clientEntry),
		perSec:     rate.Limit(perSec),
		burst:      burst,
		maxClients: 10000,
	}
}

func (c *clientLimiter) allow(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.clients[host]
	if !ok {
		if len(c.clients) >= c.maxClients {
			c.evictStale()
		}
		e = &clientEntry{limiter: rate.NewLimiter(c.perSec, c.burst)}
		c.clients[host] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

func (c *clientLimiter) evictStale() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for host, e := range c.clients {
		if e.lastSeen.Before(cutoff) {
			delete(c.clients, host)
		}
	}
}

// rateLimit rejects requests over the per-client budget with 429.
func rateLimit(limiter *clientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(r.RemoteAddr) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger logs each request with method, path, status and duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
