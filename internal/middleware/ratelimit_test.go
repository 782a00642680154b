package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// downRedis returns a client pointed at a stopped server.
func downRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func limitedApp(cfg RateLimitConfig) *fiber.App {
	app := fiber.New()
	app.Post("/api/posts", RateLimit(cfg), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func hit(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestCheckRateLimit(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := CheckRateLimit(ctx, rdb, "posts", "ip:1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	allowed, err := CheckRateLimit(ctx, rdb, "posts", "ip:1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	assert.Equal(t, time.Minute, mr.TTL("rl:posts:ip:1"))

	mr.FastForward(time.Minute + time.Second)
	allowed, err = CheckRateLimit(ctx, rdb, "posts", "ip:1", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckRateLimit_NilRedis(t *testing.T) {
	allowed, err := CheckRateLimit(context.Background(), nil, "posts", "ip:1", 1, time.Minute)
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("Redis backed", func(t *testing.T) {
		_, rdb := newRedis(t)
		app := limitedApp(RateLimitConfig{Redis: rdb, Limit: 1, Window: time.Minute, Resource: "posts:write"})

		resp := hit(t, app)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))
		_ = resp.Body.Close()

		resp = hit(t, app)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Too Many Attempts.", body["message"])
		_ = resp.Body.Close()
	})

	t.Run("Local limiter without redis", func(t *testing.T) {
		app := limitedApp(RateLimitConfig{Limit: 2, Window: time.Minute})

		for i := 0; i < 2; i++ {
			resp := hit(t, app)
			assert.Equal(t, http.StatusCreated, resp.StatusCode)
			_ = resp.Body.Close()
		}
		resp := hit(t, app)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailOpen falls back when redis is down", func(t *testing.T) {
		rdb := downRedis(t)
		app := limitedApp(RateLimitConfig{Redis: rdb, Limit: 1, Window: time.Minute, Policy: FailOpen})

		resp := hit(t, app)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()

		resp = hit(t, app)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("FailClosed when redis is down", func(t *testing.T) {
		rdb := downRedis(t)
		app := limitedApp(RateLimitConfig{Redis: rdb, Limit: 5, Window: time.Minute, Policy: FailClosed})

		resp := hit(t, app)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		_ = resp.Body.Close()
	})

	t.Run("Disabled with zero limit", func(t *testing.T) {
		app := limitedApp(RateLimitConfig{Limit: 0})
		for i := 0; i < 5; i++ {
			resp := hit(t, app)
			assert.Equal(t, http.StatusCreated, resp.StatusCode)
			_ = resp.Body.Close()
		}
	})
}
