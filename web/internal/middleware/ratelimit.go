package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/devilmonastery/studenthistory/internal/pkg/metrics"
)

// DefaultWindow is the rolling window every limiter counts over
const DefaultWindow = time.Minute

// clientWindow holds the request timestamps of one client inside the window
type clientWindow struct {
	mu       sync.Mutex
	hits     []time.Time
	lastSeen time.Time
}

// RateLimiter is a sliding-window limiter keyed by client address
type RateLimiter struct {
	name     string
	capacity int
	window   time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	clients map[string]*clientWindow
}

// NewRateLimiter creates a limiter allowing capacity requests per window
func NewRateLimiter(name string, capacity int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RateLimiter{
		name:     name,
		capacity: capacity,
		window:   window,
		logger:   logger.With("component", "ratelimit", "limiter", name),
		now:      time.Now,
		clients:  make(map[string]*clientWindow),
	}
}

func (l *RateLimiter) client(key string) *clientWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.clients[key]
	if !ok {
		c = &clientWindow{}
		l.clients[key] = c
		metrics.RateLimitClients.WithLabelValues(l.name).Set(float64(len(l.clients)))
	}
	return c
}

// Allow records a request for key and reports whether it fits in the
// window. When it does not, the returned duration is how long until the
// oldest counted request leaves the window.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	c := l.client(key)
	now := l.now()
	cutoff := now.Add(-l.window)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastSeen = now
	kept := c.hits[:0]
	for _, t := range c.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.hits = kept

	if len(c.hits) >= l.capacity {
		return false, c.hits[0].Add(l.window).Sub(now)
	}
	c.hits = append(c.hits, now)
	return true, 0
}

// Sweep drops clients idle for more than two windows and returns how many
// were removed
func (l *RateLimiter) Sweep() int {
	idleCutoff := l.now().Add(-2 * l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, c := range l.clients {
		c.mu.Lock()
		idle := c.lastSeen.Before(idleCutoff)
		c.mu.Unlock()
		if idle {
			delete(l.clients, key)
			removed++
		}
	}
	metrics.RateLimitClients.WithLabelValues(l.name).Set(float64(len(l.clients)))
	return removed
}

// Clients returns the number of tracked clients
func (l *RateLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// RunSweeper sweeps idle clients every interval until ctx is cancelled
func (l *RateLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultWindow
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("Swept idle rate limit clients", "removed", n)
			}
		}
	}
}

// Middleware rejects requests over the limit with 429 and Retry-After
func (l *RateLimiter) Middleware(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r, trustProxy)
			ok, retryAfter := l.Allow(ip)
			if !ok {
				metrics.RateLimitRejections.WithLabelValues(l.name).Inc()
				l.logger.Warn("Rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeJSONError(w, http.StatusTooManyRequests, "Слишком много запросов. Попробуйте позже.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
