package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/PFerreria/Concilium/pkg/bpmn"
	"github.com/PFerreria/Concilium/pkg/failure"
	cli "github.com/urfave/cli/v3"
)

func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check a BPMN document and print a summary of its process",
		ArgsUsage: "<file.bpmn>",
		Action: func(_ context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return errors.New("a BPMN file is required")
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			summary, err := validateDocument(data)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(command.Root().Writer)
			encoder.SetIndent("", "  ")

			return encoder.Encode(summary)
		},
	}
}

// validateDocument parses data and requires at least one start and one end event.
func validateDocument(data []byte) (*bpmn.Summary, error) {
	const op = "concilium.validate"

	summary, err := bpmn.Parse(data)
	if err != nil {
		return nil, err
	}

	if summary.StartEvents == 0 {
		return summary, failure.Validation(op, "process %q has no start event", summary.ProcessName)
	}

	if summary.EndEvents == 0 {
		return summary, failure.Validation(op, "process %q has no end event", summary.ProcessName)
	}

	return summary, nil
}
