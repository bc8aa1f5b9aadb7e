package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_FixedWindow(t *testing.T) {
	rl := NewMemory(Config{Limit: 2, Window: time.Minute})
	defer rl.Stop()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "1.2.3.4")
	assert.False(t, ok, "third request in the window is blocked")

	ok, _ = rl.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute)
	ok, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "a new window starts after Window")
}

func TestMemory_Cleanup(t *testing.T) {
	rl := NewMemory(Config{Limit: 5, Window: time.Minute})
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	_, _ = rl.Allow(context.Background(), "a")
	_, _ = rl.Allow(context.Background(), "b")
	assert.Equal(t, 2, rl.ActiveClients())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, rl.cleanupStaleEntries())
	assert.Zero(t, rl.ActiveClients())

	rl.Stop()
	rl.Stop()
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return true, errors.New("connection refused")
}
func (brokenLimiter) Backend() string { return "broken" }

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	key := func(*http.Request) string { return "client" }

	t.Run("blocks over limit", func(t *testing.T) {
		rl := NewMemory(Config{Limit: 1, Window: 30 * time.Second})
		defer rl.Stop()
		var limited bool
		h := Middleware(rl, 30*time.Second, key, func(w http.ResponseWriter, _ *http.Request) {
			limited = true
			w.WriteHeader(http.StatusTooManyRequests)
		}, nil)(ok)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "30", rec.Header().Get("Retry-After"))
		assert.True(t, limited)
	})

	t.Run("fails open", func(t *testing.T) {
		h := Middleware(brokenLimiter{}, time.Minute, key, nil, nil)(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "broken-error", rec.Header().Get("X-RateLimit-Error"))
	})
}

func TestRedis_FailsOpenWhenUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedis(client, Config{Limit: 1, Window: time.Minute})
	ok, err := l.Allow(context.Background(), "x")
	assert.Error(t, err)
	assert.True(t, ok)
}

// Runs only when REDIS_URL points at a disposable server.
func TestRedis_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set; skipping integration test")
	}
	client, err := DialRedis(context.Background(), url)
	require.NoError(t, err)
	defer client.Close()

	l := NewRedis(client, Config{Limit: 2, Window: 2 * time.Second})
	key := "test-" + time.Now().Format("150405.000000")
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := l.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.TTL(ctx, l.prefix+key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
