package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AppConfig toggles the optional parts of the HTTP app.
type AppConfig struct {
	// Gatherer backs GET /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer
	// AccessLog enables the fiber request logger.
	AccessLog bool
}

// NewApp mounts every API route on a new fiber app.
func NewApp(handlers *APIHandlers, cfg AppConfig) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())

	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			DisableColors: true,
		}))
	}

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Taskflow API")
	})

	app.Get("/health", handlers.HealthCheck)

	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/import", handlers.ImportWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/toggle", handlers.ToggleWorkflow)
	w.Post("/:id/run", handlers.RunWorkflow)

	t := app.Group("/templates")
	t.Get("/", handlers.GetTemplates)
	t.Post("/:id/instantiate", handlers.InstantiateTemplate)

	e := app.Group("/executions")
	e.Get("/", handlers.GetExecutions)
	e.Get("/:id", handlers.GetExecution)

	app.Get("/stats", handlers.GetStats)
	app.Post("/events", handlers.PostEvent)

	cf := app.Group("/custom-fields")
	cf.Get("/", handlers.GetCustomFields)
	cf.Post("/", handlers.CreateCustomField)
	cf.Delete("/:id", handlers.DeleteCustomField)

	ar := app.Group("/automation-rules")
	ar.Get("/", handlers.GetAutomationRules)
	ar.Post("/", handlers.CreateAutomationRule)
	ar.Patch("/:id", handlers.UpdateAutomationRule)
	ar.Delete("/:id", handlers.DeleteAutomationRule)

	return app
}
