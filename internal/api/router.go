package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ticketmatch/internal/api/handlers"
	"ticketmatch/pkg/auth"
	"ticketmatch/pkg/middleware"
)

func SetupRouter(
	matchHandler *handlers.MatchHandler,
	eventHandler *handlers.EventHandler,
	jwtManager *auth.JWTManager,
	registry *prometheus.Registry,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Protected routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, appLogger))

	solutions := protected.Group("/solutions")
	solutions.Post("/match", matchHandler.Match)
	solutions.Post("/check", matchHandler.Check)

	events := protected.Group("/events")
	events.Post("/issue-created", eventHandler.IssueCreated)
	events.Post("/status-changed", eventHandler.StatusChanged)
	events.Post("/resolution-added", eventHandler.ResolutionAdded)
	events.Post("/attachments-deprecated", eventHandler.AttachmentsDeprecated)

	return app
}
