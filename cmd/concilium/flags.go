package main

import (
	"github.com/PFerreria/Concilium/pkg/config"
	cli "github.com/urfave/cli/v3"
)

// configFlags are shared by every command that builds a pipeline. Defaults live
// in config.Default so that a YAML file can override them; a flag only wins
// when it is actually set.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			Sources: cli.EnvVars("CONCILIUM_CONFIG"),
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on (default 9091)",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Job store URL: memory://, file://<dir>, postgres://..., redis://... (default memory://)",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "artifacts-path",
			Usage:   "Directory holding artifact bytes (default ./data/artifacts)",
			Sources: cli.EnvVars("ARTIFACTS_PATH"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "diagram-format",
			Usage:   "Diagram format: png, svg, pdf or raster, vector, document (default png)",
			Sources: cli.EnvVars("DIAGRAM_FORMAT"),
		},
		&cli.StringFlag{
			Name:    "renderer-order",
			Usage:   "Comma separated renderer strategies to try in order (default graphviz,builtin)",
			Sources: cli.EnvVars("RENDERER_ORDER"),
		},
		&cli.StringFlag{
			Name:    "graphviz-binary",
			Usage:   "Path or name of the graphviz dot program (default dot)",
			Sources: cli.EnvVars("GRAPHVIZ_BINARY"),
		},
		&cli.BoolFlag{
			Name:    "no-diagram",
			Usage:   "Only produce the BPMN document",
			Sources: cli.EnvVars("NO_DIAGRAM"),
		},
		&cli.IntFlag{
			Name:    "worker-pool-size",
			Usage:   "Number of jobs executed concurrently (default 4)",
			Sources: cli.EnvVars("WORKER_POOL_SIZE"),
		},
		&cli.IntFlag{
			Name:    "queue-size",
			Usage:   "Number of submitted jobs waiting for a worker (default 64)",
			Sources: cli.EnvVars("QUEUE_SIZE"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:    "llm-base-url",
			Usage:   "Base URL of the OpenAI-compatible API used for step extraction",
			Sources: cli.EnvVars("LLM_BASE_URL"),
		},
		&cli.StringFlag{
			Name:    "llm-api-key",
			Usage:   "API key for step extraction",
			Sources: cli.EnvVars("LLM_API_KEY", "OPENAI_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "llm-model",
			Usage:   "Model used for step extraction",
			Sources: cli.EnvVars("LLM_MODEL"),
		},
		&cli.DurationFlag{
			Name:    "llm-timeout",
			Usage:   "Time limit for one extraction call (default 2m)",
			Sources: cli.EnvVars("LLM_TIMEOUT"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	}
}

// loadConfig layers the defaults, the optional YAML file and the flags that
// were set, then validates the result.
func loadConfig(command *cli.Command) (config.Config, error) {
	cfg := config.Default()

	if path := command.String("config"); path != "" {
		err := config.LoadFile(path, &cfg)
		if err != nil {
			return cfg, err
		}
	}

	overrideString(command, "database-url", &cfg.DatabaseURL)
	overrideString(command, "artifacts-path", &cfg.ArtifactsPath)
	overrideString(command, "event-bus", &cfg.EventBus)
	overrideString(command, "log-level", &cfg.LogLevel)
	overrideString(command, "log-format", &cfg.LogFormat)
	overrideString(command, "diagram-format", &cfg.Render.DiagramFormat)
	overrideString(command, "graphviz-binary", &cfg.Render.GraphvizBinary)
	overrideString(command, "llm-base-url", &cfg.LLM.BaseURL)
	overrideString(command, "llm-api-key", &cfg.LLM.APIKey)
	overrideString(command, "llm-model", &cfg.LLM.Model)

	if command.IsSet("port") {
		cfg.Port = command.Int("port")
	}

	if command.IsSet("worker-pool-size") {
		cfg.Worker.PoolSize = command.Int("worker-pool-size")
	}

	if command.IsSet("queue-size") {
		cfg.Worker.QueueSize = command.Int("queue-size")
	}

	if command.IsSet("renderer-order") {
		cfg.Render.Order = config.ParseOrder(command.String("renderer-order"))
	}

	if command.IsSet("no-diagram") {
		cfg.Render.NoDiagram = command.Bool("no-diagram")
	}

	if command.IsSet("llm-timeout") {
		cfg.LLM.Timeout = command.Duration("llm-timeout")
	}

	if command.IsSet("tracing") {
		cfg.Tracing = command.Bool("tracing")
	}

	return cfg, cfg.Validate()
}

func overrideString(command *cli.Command, name string, target *string) {
	if command.IsSet(name) {
		*target = command.String(name)
	}
}
