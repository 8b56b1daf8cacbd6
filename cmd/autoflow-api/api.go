package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/autoflow/pkg/cmd"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/triggers"
	"github.com/dukex/autoflow/pkg/web"
	"github.com/dukex/autoflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// API serves the HTTP surface of the engine.
type API struct {
	logger   *slog.Logger
	engine   *cmd.Engine
	handlers *web.APIHandlers
}

// NewAPI creates an API over the engine's persistence, coordinator and event bus.
func NewAPI(logger *slog.Logger, engine *cmd.Engine) (*API, error) {
	repository := workflow.NewRepository(engine.Persistence)

	router, err := triggers.NewRouter(repository, engine.EventBus, logger)
	if err != nil {
		return nil, err
	}

	handlers := web.NewAPIHandlers(
		repository,
		engine.Coordinator,
		router,
		validator.New(validator.WithRequiredStructEnabled()),
		logger,
	)

	return &API{
		logger:   logger,
		engine:   engine,
		handlers: handlers,
	}, nil
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Autoflow API")
	})

	a.handlers.Register(app)

	return app
}

// ServeExecutionRequests runs execution requests published by the trigger intake in this process.
func (a *API) ServeExecutionRequests(ctx context.Context) error {
	err := a.engine.EventBus.Handle(events.ExecutionRequestedEvent, a.engine.Coordinator.HandleExecutionRequested)
	if err != nil {
		return err
	}

	return a.engine.EventBus.Subscribe(ctx)
}

// Start serves the API until ctx is cancelled.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	go func() {
		<-ctx.Done()

		err := app.Shutdown()
		if err != nil {
			a.logger.Error("Failed to shut down API server", "error", err)
		}
	}()

	return app.Listen(":" + strconv.Itoa(port))
}
