package httpserver

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/cristianortiz/propertyauction/internal/shared/config"
	"github.com/cristianortiz/propertyauction/internal/shared/logger"
	"github.com/cristianortiz/propertyauction/internal/shared/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	app *fiber.App
	cfg config.ServerConfig
}

var log = logger.GetLogger() // package logger instance

// HealthCheck reports whether a dependency is usable. It is run by GET /health.
type HealthCheck func(ctx context.Context) error

// Options carries the optional collaborators of the server.
type Options struct {
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Checks   map[string]HealthCheck
}

func NewServer(cfg config.ServerConfig, opts Options) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
	})

	// logging and metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		log.Info("HTTP request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("remote_addr", c.IP()),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
		)
		if opts.Metrics != nil {
			route := c.Route().Path
			opts.Metrics.HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
			opts.Metrics.HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		}
		return err
	})

	// health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		failed := map[string]string{}
		for name, check := range opts.Checks {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			if err := check(ctx); err != nil {
				failed[name] = err.Error()
			}
			cancel()
		}
		if len(failed) > 0 {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "checks": failed})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	return &Server{app: app, cfg: cfg}
}

// App exposes the fiber app so modules can register their routes.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until ctx is cancelled, then shuts down within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server started", zap.String("addr", s.cfg.Addr))
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
