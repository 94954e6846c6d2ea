// Package server assembles the fiber application.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"onlinestore/internal/middleware"
)

// RouteRegistrar is implemented by every handler.
type RouteRegistrar interface {
	RegisterRoutes(router fiber.Router)
}

// Options tunes the fiber app.
type Options struct {
	// AccessLog enables one zap line per request on Logger.
	AccessLog    bool
	Logger       *zap.Logger
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Health reports extra component status for GET /health.
	Health func() fiber.Map
}

// NewApp builds the fiber app with middleware, the health check and every
// handler mounted under /api.
func NewApp(opts Options, registrars ...RouteRegistrar) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "onlinestore",
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		// Emails, session ids and SKUs arrive percent-encoded in path segments.
		UnescapePath: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	if opts.AccessLog {
		app.Use(middleware.RequestLogger(opts.Logger))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		body := fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		}
		if opts.Health != nil {
			for k, v := range opts.Health() {
				body[k] = v
			}
		}
		return c.Status(fiber.StatusOK).JSON(body)
	})

	api := app.Group("/api")
	for _, r := range registrars {
		r.RegisterRoutes(api)
	}
	return app
}
