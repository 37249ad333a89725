package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/PFerreria/Concilium/pkg/artifacts"
	"github.com/PFerreria/Concilium/pkg/config"
	"github.com/PFerreria/Concilium/pkg/log"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/persistence/memory"
	"github.com/PFerreria/Concilium/pkg/pipeline"
	cli "github.com/urfave/cli/v3"
)

// deferred leaves a submitted job pending so the caller can execute it inline.
type deferred struct{}

func (deferred) Dispatch(context.Context, string) error { return nil }

func RenderCommand() *cli.Command {
	flags := append(configFlags(),
		&cli.StringFlag{
			Name:    "steps",
			Aliases: []string{"s"},
			Usage:   "JSON file with a list of steps, or an object with title, description and steps",
		},
		&cli.StringFlag{
			Name:  "transcript",
			Usage: "Text file with a process transcript; requires --llm-base-url or --llm-api-key",
		},
		&cli.StringFlag{
			Name:    "title",
			Aliases: []string{"t"},
			Usage:   "Workflow title",
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Aliases: []string{"o"},
			Usage:   "Directory the artifacts are written to",
			Value:   ".",
		},
	)

	return &cli.Command{
		Name:    "render",
		Aliases: []string{"r"},
		Usage:   "Build the BPMN document and diagram for one workflow and write them to disk",
		Flags:   flags,
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg, err := loadConfig(command)
			if err != nil {
				return err
			}

			log.SetupWriter(os.Stderr, cfg.LogLevel, cfg.LogFormat)

			req, err := readRenderRequest(command.String("steps"), command.String("transcript"), command.String("title"))
			if err != nil {
				return err
			}

			paths, err := renderOnce(ctx, cfg, req, command.String("output-dir"))
			for _, path := range paths {
				fmt.Fprintln(command.Root().Writer, path)
			}

			return err
		},
	}
}

func readRenderRequest(stepsPath, transcriptPath, title string) (pipeline.SubmitRequest, error) {
	var req pipeline.SubmitRequest

	switch {
	case stepsPath != "" && transcriptPath != "":
		return req, errors.New("--steps and --transcript are mutually exclusive")
	case stepsPath != "":
		data, err := os.ReadFile(stepsPath)
		if err != nil {
			return req, fmt.Errorf("failed to read steps file: %w", err)
		}

		err = decodeSteps(data, &req)
		if err != nil {
			return req, fmt.Errorf("failed to parse steps file %s: %w", stepsPath, err)
		}
	case transcriptPath != "":
		data, err := os.ReadFile(transcriptPath)
		if err != nil {
			return req, fmt.Errorf("failed to read transcript file: %w", err)
		}

		req.Transcript = &pipeline.TranscriptRequest{Text: string(data)}
	default:
		return req, errors.New("one of --steps or --transcript is required")
	}

	if title != "" {
		req.Title = title
	}

	if req.Title == "" {
		req.Title = "Workflow"
	}

	return req, nil
}

// decodeSteps accepts either a bare list of steps or a full submit request.
func decodeSteps(data []byte, req *pipeline.SubmitRequest) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, &req.Steps)
	}

	return json.Unmarshal(trimmed, req)
}

// renderOnce runs a single job on in-memory stores and writes every artifact
// it produced to dir. The artifacts of a failed job are still written.
func renderOnce(ctx context.Context, cfg config.Config, req pipeline.SubmitRequest, dir string) ([]string, error) {
	logger := log.WithModule("render")
	store := artifacts.NewMemoryStore()

	orchestrator, err := newOrchestrator(cfg, memory.NewPersistence(), store, slog.Default(), pipeline.WithDispatcher(deferred{}))
	if err != nil {
		return nil, err
	}

	job, err := orchestrator.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	job, err = orchestrator.Execute(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	err = os.MkdirAll(dir, 0750)
	if err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	kinds := make([]models.ArtifactKind, 0, len(job.Artifacts))
	for kind := range job.Artifacts {
		kinds = append(kinds, kind)
	}

	slices.Sort(kinds)

	paths := make([]string, 0, len(kinds))

	for _, kind := range kinds {
		artifact, data, err := orchestrator.Download(ctx, job.ID, kind)
		if err != nil {
			return paths, err
		}

		path := filepath.Join(dir, artifact.Filename())

		err = os.WriteFile(path, data, 0600)
		if err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}

		paths = append(paths, path)
	}

	if job.Status == models.JobStatusFailed {
		return paths, fmt.Errorf("job failed with %s: %s", job.Error.Kind, job.Error.Message)
	}

	logger.InfoContext(ctx, "Workflow rendered", "job_id", job.ID, "strategy", job.Strategy)

	return paths, nil
}
