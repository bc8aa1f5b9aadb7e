// Package ratelimit implements fixed-window request limits, in process or
// shared through Redis.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"budgetwise/internal/log"
	"budgetwise/internal/metrics"
)

// Limiter decides whether the next request for key fits in its window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Backend() string
}

// Config holds rate limiter configuration
type Config struct {
	Limit           int
	Window          time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Limit:           120,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Limit <= 0 {
		c.Limit = d.Limit
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	return c
}

// Memory is a per-process fixed-window limiter.
type Memory struct {
	mu           sync.Mutex
	clients      map[string]*window
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
	now          func() time.Time

	limit           int
	window          time.Duration
	cleanupInterval time.Duration
}

type window struct {
	start    time.Time
	requests int
}

var _ Limiter = (*Memory)(nil)

// NewMemory creates a limiter and starts its stale-entry sweep.
func NewMemory(config Config) *Memory {
	config = config.withDefaults()
	rl := &Memory{
		clients:         make(map[string]*window),
		stopCleanup:     make(chan struct{}),
		now:             time.Now,
		limit:           config.Limit,
		window:          config.Window,
		cleanupInterval: config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

func (rl *Memory) Backend() string { return "memory" }

// Allow counts a request for key and reports whether it is within the limit.
func (rl *Memory) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[key]
	if !ok || now.Sub(w.start) >= rl.window {
		rl.clients[key] = &window{start: now, requests: 1}
		return true, nil
	}
	w.requests++
	return w.requests <= rl.limit, nil
}

func (rl *Memory) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes windows that ended before now.
func (rl *Memory) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	removed := 0
	for key, w := range rl.clients {
		if w.start.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (rl *Memory) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Memory) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Middleware rejects requests over the limit. Limiter errors let the request
// through and set X-RateLimit-Error.
func Middleware(l Limiter, window time.Duration, keyFn func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request), logger *log.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentRateLimit)
	retryAfter := strconv.Itoa(int(window.Seconds()))
	backend := l.Backend()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			metrics.RateLimitRequests.WithLabelValues(backend).Inc()

			ok, err := l.Allow(r.Context(), key)
			if err != nil {
				logger.WarnContext(r.Context(), "Rate limiter unavailable, allowing request",
					log.FieldClientIP, key, log.FieldError, err)
				w.Header().Set("X-RateLimit-Error", backend+"-error")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.RateLimitBlocked.WithLabelValues(backend).Inc()
				logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, key, log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", retryAfter)
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
