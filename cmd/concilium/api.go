package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/PFerreria/Concilium/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger   *slog.Logger
	jobs     web.JobService
	checkers map[string]web.HealthChecker
}

func NewAPI(
	logger *slog.Logger,
	jobs web.JobService,
	checkers map[string]web.HealthChecker,
) *API {
	return &API{
		logger:   logger,
		jobs:     jobs,
		checkers: checkers,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.jobs, a.checkers, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Concilium API")
	})

	handlers.Register(app)

	return app
}

// Run serves until ctx is cancelled, then drains open connections.
func (a *API) Run(ctx context.Context, port int) error {
	app := a.App()
	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":" + strconv.Itoa(port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.logger.InfoContext(ctx, "Shutting down API")

		err := app.ShutdownWithTimeout(shutdownTimeout)
		if err != nil {
			return err
		}

		err = <-errCh
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	}
}
