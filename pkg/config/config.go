// Package config holds the startup configuration of the service. It is read
// once, from an optional YAML file overlaid with command-line flags, and never
// changes afterwards.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/render"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Port          int    `yaml:"port" validate:"min=1,max=65535"`
	DatabaseURL   string `yaml:"database_url" validate:"required"`
	ArtifactsPath string `yaml:"artifacts_path" validate:"required"`
	EventBus      string `yaml:"event_bus" validate:"oneof=gochannel"`
	LogLevel      string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat     string `yaml:"log_format" validate:"oneof=text json"`
	Tracing       bool   `yaml:"tracing"`

	Render RenderConfig `yaml:"render"`
	Worker WorkerConfig `yaml:"worker"`
	LLM    LLMConfig    `yaml:"llm"`
}

// RenderConfig selects the diagram output.
type RenderConfig struct {
	DiagramFormat  string   `yaml:"diagram_format" validate:"required,oneof=raster vector document png svg pdf"`
	Order          []string `yaml:"renderer_order" validate:"min=1,dive,oneof=graphviz builtin"`
	GraphvizBinary string   `yaml:"graphviz_binary"`
	NoDiagram      bool     `yaml:"no_diagram"`
}

// WorkerConfig sizes the execution pool.
type WorkerConfig struct {
	PoolSize  int `yaml:"pool_size" validate:"min=1,max=256"`
	QueueSize int `yaml:"queue_size" validate:"gte=0"`
}

// LLMConfig points at the OpenAI-compatible endpoint used to extract steps
// from transcripts. Extraction is disabled when BaseURL and APIKey are empty.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// Enabled reports whether a step extractor should be configured.
func (c LLMConfig) Enabled() bool {
	return c.BaseURL != "" || c.APIKey != ""
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		Port:          9091,
		DatabaseURL:   "memory://",
		ArtifactsPath: "./data/artifacts",
		EventBus:      "gochannel",
		LogLevel:      "info",
		LogFormat:     "text",
		Render: RenderConfig{
			DiagramFormat: string(render.FormatPNG),
			Order:         []string{render.GraphvizName, render.BuiltinName},
		},
		Worker: WorkerConfig{
			PoolSize:  4,
			QueueSize: 64,
		},
		LLM: LLMConfig{
			Timeout: 2 * time.Minute,
		},
	}
}

// LoadFile reads a YAML file over cfg. Keys absent from the file keep their
// current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return failure.Validation("config.LoadFile", "failed to parse YAML config %s: %v", path, err)
	}

	return nil
}

// ParseOrder splits a comma separated renderer list.
func ParseOrder(raw string) []string {
	var order []string

	for _, name := range strings.Split(raw, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			order = append(order, name)
		}
	}

	return order
}

// Validate checks every field constraint.
func (c Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err != nil {
		return &failure.Error{Op: "config.Validate", Kind: failure.KindValidation, Message: "invalid configuration", Err: err}
	}

	return nil
}

// DiagramFormat resolves the configured format or alias.
func (c Config) DiagramFormat() (render.Format, error) {
	return render.ParseFormat(c.Render.DiagramFormat)
}
