package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PFerreria/Concilium/pkg/config"
	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

func runLoadConfig(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()

	var (
		cfg     config.Config
		loadErr error
	)

	command := &cli.Command{
		Name:  "concilium",
		Flags: configFlags(),
		Action: func(_ context.Context, command *cli.Command) error {
			cfg, loadErr = loadConfig(command)

			return nil
		},
	}

	err := command.Run(context.Background(), append([]string{"concilium"}, args...))
	require.NoError(t, err)

	return cfg, loadErr
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := runLoadConfig(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfig_Flags(t *testing.T) {
	cfg, err := runLoadConfig(t,
		"--port", "8080",
		"--database-url", "file:///tmp/jobs",
		"--diagram-format", "vector",
		"--renderer-order", "builtin, graphviz",
		"--worker-pool-size", "2",
		"--no-diagram",
		"--llm-base-url", "http://localhost:11434/v1",
		"--llm-timeout", "15s",
	)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "file:///tmp/jobs", cfg.DatabaseURL)
	assert.Equal(t, "vector", cfg.Render.DiagramFormat)
	assert.Equal(t, []string{"builtin", "graphviz"}, cfg.Render.Order)
	assert.Equal(t, 2, cfg.Worker.PoolSize)
	assert.True(t, cfg.Render.NoDiagram)
	assert.True(t, cfg.LLM.Enabled())
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concilium.yaml")
	err := os.WriteFile(path, []byte("port: 7000\nworker:\n  pool_size: 16\n"), 0600)
	require.NoError(t, err)

	cfg, err := runLoadConfig(t, "--config", path, "--port", "7001")
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Port)
	assert.Equal(t, 16, cfg.Worker.PoolSize)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("DIAGRAM_FORMAT", "pdf")
	t.Setenv("WORKER_POOL_SIZE", "3")

	cfg, err := runLoadConfig(t)
	require.NoError(t, err)

	assert.Equal(t, "pdf", cfg.Render.DiagramFormat)
	assert.Equal(t, 3, cfg.Worker.PoolSize)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string][]string{
		"unknown format":   {"--diagram-format", "gif"},
		"pool too large":   {"--worker-pool-size", "1000"},
		"unknown renderer": {"--renderer-order", "imagemagick"},
		"empty order":      {"--renderer-order", " , "},
		"unknown log":      {"--log-format", "xml"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := runLoadConfig(t, args...)
			require.Error(t, err)
			assert.True(t, failure.IsValidation(err))
		})
	}
}
