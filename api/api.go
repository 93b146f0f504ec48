// Package api exposes workflow submission and run monitoring over HTTP.
package api

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/rs/zerolog"
	"github.com/sicko7947/agentflow"
	"github.com/sicko7947/agentflow/engine"
)

type API struct {
	logger   zerolog.Logger
	engine   *engine.Engine
	monitor  *agentflow.Monitor
	validate *validator.Validate
}

// NewAPI builds the HTTP layer. The engine may be nil for a read-only
// monitoring deployment; submission routes are then not registered.
func NewAPI(logger zerolog.Logger, eng *engine.Engine, monitor *agentflow.Monitor) *API {
	return &API{
		logger:   logger,
		engine:   eng,
		monitor:  monitor,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Agentflow API")
	})

	if a.engine != nil {
		w := app.Group("/workflows")
		w.Post("/execute", a.ExecuteWorkflow)
	}

	if a.monitor != nil {
		r := app.Group("/runs")
		r.Get("/", a.ListRuns)
		r.Get("/:id", a.GetRun)
		r.Get("/:id/steps", a.ListRunSteps)

		if a.engine != nil {
			r.Post("/:id/cancel", a.CancelRun)
		}
	}

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
