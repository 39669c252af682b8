package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLimiterStore struct{}

func (failingLimiterStore) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMemoryLimiterStore_Burst(t *testing.T) {
	s := NewMemoryLimiterStore(0.001, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := s.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should fit in the burst", i)
	}

	allowed, err := s.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = s.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed, "other clients keep their own bucket")
}

func TestMemoryLimiterStore_Cleanup(t *testing.T) {
	s := NewMemoryLimiterStore(0.001, 1)
	ctx := context.Background()

	allowed, _ := s.Allow(ctx, "10.0.0.1")
	require.True(t, allowed)
	allowed, _ = s.Allow(ctx, "10.0.0.1")
	require.False(t, allowed)

	time.Sleep(time.Millisecond)
	s.Cleanup(0)

	allowed, _ = s.Allow(ctx, "10.0.0.1")
	assert.True(t, allowed, "a forgotten visitor starts with a full bucket")
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimitMiddleware(NewMemoryLimiterStore(0.001, 1))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/challenges", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	handler := RateLimitMiddleware(failingLimiterStore{})(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	assert.Equal(t, "192.0.2.10", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 198.51.100.4 , 192.0.2.10")
	assert.Equal(t, "198.51.100.4", clientIP(req))
}

func TestRedisLimiterStore(t *testing.T) {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := NewRedisLimiterStore(client, 0.001, 2)
	key := "test-" + uuid.NewString()
	t.Cleanup(func() { client.Del(context.Background(), "ratelimit:"+key) })

	for i := 0; i < 2; i++ {
		allowed, err := s.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := s.Allow(ctx, key)
	require.NoError(t, err)
	assert.False(t, allowed)
}
