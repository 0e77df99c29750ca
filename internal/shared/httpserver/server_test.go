package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/cristianortiz/propertyauction/internal/shared/config"
	"github.com/cristianortiz/propertyauction/internal/shared/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, app *fiber.App, path string) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestHealth(t *testing.T) {
	healthy := NewServer(config.ServerConfig{}, Options{Checks: map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	}})
	resp, body := get(t, healthy.App(), "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	sick := NewServer(config.ServerConfig{}, Options{Checks: map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}})
	resp, body = get(t, sick.App(), "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"unhealthy","checks":{"redis":"connection refused"}}`, body)
}

func TestMetricsEndpointAndMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := NewServer(config.ServerConfig{}, Options{Metrics: m, Gatherer: reg})
	s.App().Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	resp, _ := get(t, s.App(), "/ping")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/ping", "200")))

	resp, body := get(t, s.App(), "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "auction_http_requests_total")
}

func TestRateLimiter(t *testing.T) {
	app := fiber.New()
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}, func(c *fiber.Ctx) string {
		return c.Get("X-Client")
	})
	app.Get("/", rl.Handler(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	call := func(client string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Client", client)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, http.StatusNoContent, call("a").StatusCode)
	assert.Equal(t, http.StatusNoContent, call("a").StatusCode)

	limited := call("a")
	assert.Equal(t, http.StatusTooManyRequests, limited.StatusCode)
	retry, err := strconv.Atoi(limited.Header.Get(fiber.HeaderRetryAfter))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)

	assert.Equal(t, http.StatusNoContent, call("b").StatusCode, "buckets are per client")
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 1, IdleTTL: time.Minute}, func(c *fiber.Ctx) string {
		return c.Get("X-Client")
	})
	rl.now = func() time.Time { return now }
	app := fiber.New()
	app.Get("/", rl.Handler(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	call := func(client string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Client", client)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusNoContent, call("a"))
	assert.Equal(t, http.StatusTooManyRequests, call("a"))
	now = now.Add(50 * time.Second)
	assert.Equal(t, http.StatusNoContent, call("b"))
	require.Equal(t, 2, rl.Len())

	assert.Equal(t, 1, rl.Evict(now.Add(40*time.Second)), "only the idle client goes")
	assert.Equal(t, 1, rl.Len())
	assert.Equal(t, http.StatusNoContent, call("a"), "an evicted client starts with a full bucket")
	assert.Equal(t, http.StatusTooManyRequests, call("b"))
}

func TestRateLimiter_RunStopsWithContext(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: 10 * time.Millisecond}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
