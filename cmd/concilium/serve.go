package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/PFerreria/Concilium/pkg/artifacts"
	"github.com/PFerreria/Concilium/pkg/cmd"
	"github.com/PFerreria/Concilium/pkg/config"
	"github.com/PFerreria/Concilium/pkg/log"
	"github.com/PFerreria/Concilium/pkg/otelhelper"
	"github.com/PFerreria/Concilium/pkg/pipeline"
	"github.com/PFerreria/Concilium/pkg/web"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the HTTP API and the job workers",
		Flags:   configFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			log.SetupWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, slog.Default())
		},
	}
}

// serve hands base to every component, which adds its own module attribute.
func serve(ctx context.Context, cfg config.Config, base *slog.Logger) error {
	logger := base.With("module", "serve")
	logger.InfoContext(ctx, "Initializing Concilium")

	tracer := otelhelper.NoopTracer()

	if cfg.Tracing {
		t, shutdown, err := otelhelper.NewTracer(ctx, "concilium")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			err := shutdown(context.WithoutCancel(ctx))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()

		tracer = t
	}

	jobs, err := cmd.NewPersistence(ctx, base, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}

	defer func() {
		err := jobs.Close(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(cfg.EventBus, base)
	if err != nil {
		return err
	}

	defer func() {
		err := eventBus.Close()
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	orchestrator, err := newOrchestrator(cfg, jobs, artifacts.NewFileStore(cfg.ArtifactsPath), base,
		pipeline.WithPublisher(eventBus),
		pipeline.WithTracer(tracer),
	)
	if err != nil {
		return err
	}

	pool := pipeline.NewPool(cfg.Worker.PoolSize, cfg.Worker.QueueSize, orchestrator, base)
	pool.Start(ctx)

	defer pool.Stop()

	worker := pipeline.NewWorker("worker-"+uuid.New().String()[:8], eventBus, pool, base)

	err = worker.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	recovered, err := orchestrator.Recover(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to recover unfinished jobs", "error", err)
	} else if recovered > 0 {
		logger.InfoContext(ctx, "Recovered unfinished jobs", "count", recovered)
	}

	api := NewAPI(base, orchestrator, map[string]web.HealthChecker{"repository": jobs})

	return api.Run(ctx, cfg.Port)
}
