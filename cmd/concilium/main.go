package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "concilium",
		Usage:                 "Turn process descriptions into BPMN documents and diagrams",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			ServeCommand(),
			RenderCommand(),
			ValidateCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
