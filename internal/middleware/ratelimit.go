package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"postdesk/internal/models"
	"postdesk/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen falls back to the in-process limiter if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// CheckRateLimit counts one hit for resource/id in a fixed Redis window.
// Returns true if allowed, false if limit exceeded.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// localLimiter is a token bucket per client, used when Redis is not configured
// or unreachable.
type localLimiter struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	window  time.Duration
	buckets map[string]*localBucket
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// pruneAbove is the bucket count past which idle buckets are dropped.
const pruneAbove = 4096

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	return &localLimiter{
		every:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
		window:  window,
		buckets: make(map[string]*localBucket),
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if len(l.buckets) > pruneAbove {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.window {
				delete(l.buckets, k)
			}
		}
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	// Redis is the shared counter store. Nil means in-process limiting only.
	Redis    *redis.Client
	Limit    int
	Window   time.Duration
	Policy   FailPolicy
	Resource string
}

// RateLimit returns a Fiber middleware enforcing cfg.Limit requests per
// cfg.Window, keyed by remote IP. A non-positive limit disables it.
func RateLimit(cfg RateLimitConfig) fiber.Handler {
	if cfg.Limit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	local := newLocalLimiter(cfg.Limit, cfg.Window)

	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		resource := cfg.Resource
		if resource == "" {
			resource = c.Path()
		}

		backend := "redis"
		allowed, err := CheckRateLimit(c.UserContext(), cfg.Redis, resource, id, cfg.Limit, cfg.Window)
		if err != nil {
			if cfg.Redis != nil && cfg.Policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
					"resource", resource, "error", err.Error())
				return models.RespondWithError(c, fiber.StatusServiceUnavailable,
					fiber.NewError(fiber.StatusServiceUnavailable, "Service temporarily unavailable."), false)
			}
			if cfg.Redis != nil {
				Logger.WarnContext(c.UserContext(), "rate limit falling back to local limiter",
					"resource", resource, "error", err.Error())
			}
			backend = "local"
			allowed = local.allow(resource + ":" + id)
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		if !allowed {
			observability.RateLimitRejections.WithLabelValues(resource, backend).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				fiber.NewError(fiber.StatusTooManyRequests, "Too Many Attempts."), false)
		}
		return c.Next()
	}
}
