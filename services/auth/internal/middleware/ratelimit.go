package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/school_admin/pkg/logging"
)

type Limiter interface {
	Allow(key string, limit int, window time.Duration) bool
}

// MemoryLimiter is a fixed window counter per key, local to the process.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*rateBucket
}

type rateBucket struct {
	count     int
	windowEnd time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{now: time.Now, buckets: make(map[string]*rateBucket)}
}

func (l *MemoryLimiter) Allow(key string, limit int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	bucket, ok := l.buckets[key]
	if !ok || now.After(bucket.windowEnd) {
		l.buckets[key] = &rateBucket{count: 1, windowEnd: now.Add(window)}
		return true
	}
	if bucket.count >= limit {
		return false
	}
	bucket.count++
	return true
}

type RateLimitConfig struct {
	Limiter Limiter
	Prefix  string
	Limit   int
	Window  time.Duration
	KeyFunc func(c echo.Context) string
}

// RateLimit answers 429 once a client exceeds Limit requests within Window.
// A zero limit disables it.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	keyFn := cfg.KeyFunc
	if keyFn == nil {
		keyFn = func(c echo.Context) string { return c.RealIP() }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Limiter == nil || cfg.Limit <= 0 || cfg.Window <= 0 {
				return next(c)
			}
			key := keyFn(c)
			if key == "" {
				return next(c)
			}
			if !cfg.Limiter.Allow(cfg.Prefix+key, cfg.Limit, cfg.Window) {
				logging.FromContext(c.Request().Context()).Warn("rate_limited", "status", http.StatusTooManyRequests, "key", key)
				c.Response().Header().Set("Retry-After", retryAfter(cfg.Window))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
			}
			return next(c)
		}
	}
}

func retryAfter(window time.Duration) string {
	return strconv.FormatInt(max(int64(window/time.Second), 1), 10)
}
