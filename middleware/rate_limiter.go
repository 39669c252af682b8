package middleware

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Default budget per client IP.
const (
	DefaultRate  = 5
	DefaultBurst = 30
)

// LimiterStore decides whether the client identified by key may proceed.
type LimiterStore interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiterStore keeps one token bucket per key in process memory.
type MemoryLimiterStore struct {
	rate     rate.Limit
	burst    int
	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewMemoryLimiterStore(perSecond float64, burst int) *MemoryLimiterStore {
	return &MemoryLimiterStore{
		rate:     rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
}

func (s *MemoryLimiterStore) Allow(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(s.rate, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter.Allow(), nil
}

// Cleanup drops visitors idle for longer than idle.
func (s *MemoryLimiterStore) Cleanup(idle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range s.visitors {
		if time.Since(v.lastSeen) > idle {
			delete(s.visitors, key)
		}
	}
}

// CleanupVisitors runs Cleanup every minute until ctx is done.
func (s *MemoryLimiterStore) CleanupVisitors(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Cleanup(3 * time.Minute)
		case <-ctx.Done():
			return
		}
	}
}

// KEYS[1] = bucket key, ARGV = refill rate/s, capacity, cost, now (seconds).
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= cost then
    tokens = tokens - cost
    allowed = 1
end

redis.call("HSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 180)

return allowed
`)

// RedisLimiterStore shares token buckets across API instances.
type RedisLimiterStore struct {
	client redis.Scripter
	rate   float64
	burst  int
}

func NewRedisLimiterStore(client redis.Scripter, perSecond float64, burst int) *RedisLimiterStore {
	return &RedisLimiterStore{client: client, rate: perSecond, burst: burst}
}

func (s *RedisLimiterStore) Allow(ctx context.Context, key string) (bool, error) {
	now := float64(time.Now().UnixMicro()) / 1e6
	allowed, err := tokenBucketScript.Run(ctx, s.client, []string{"ratelimit:" + key}, s.rate, s.burst, 1, now).Int()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return allowed == 1, nil
}

// RateLimitMiddleware limits requests per client IP. A failing store lets the
// request through.
func RateLimitMiddleware(store LimiterStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := store.Allow(r.Context(), clientIP(r))
			if err != nil {
				log.Printf("Rate limiter unavailable: %v", err)
				allowed = true
			}

			if !allowed {
				rateLimited.Inc()
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
