package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/apichain/apichain/pkg/cmd"
	"github.com/apichain/apichain/pkg/log"
	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/otelhelper"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a workflow file",
		ArgsUsage: "<workflow-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Path to the API catalog file",
				Sources: cli.EnvVars("APICHAIN_CATALOG"),
			},
			&cli.StringFlag{
				Name:    "environment",
				Aliases: []string{"e"},
				Usage:   "Active environment for API base-URL resolution",
				Sources: cli.EnvVars("APICHAIN_ENVIRONMENT"),
			},
			&cli.StringSliceFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Workflow input as key=value (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "mocked",
				Usage: "Replace real calls with configured mocks",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-call HTTP timeout",
				Value: 30 * time.Second,
			},
			&cli.BoolFlag{
				Name:    "trace",
				Usage:   "Export OpenTelemetry traces",
				Sources: cli.EnvVars("APICHAIN_TRACE"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return models.NewConfigurationError("a workflow file is required")
			}

			inputs, err := parseInputs(command.StringSlice("input"))
			if err != nil {
				return err
			}

			logger := log.WithModule("apichain")

			opts := cmd.Options{
				Logger:      logger,
				CatalogPath: command.String("catalog"),
				Timeout:     command.Duration("timeout"),
			}

			if command.Bool("trace") {
				tracer, err := otelhelper.NewTracer(ctx, "apichain")
				if err != nil {
					return fmt.Errorf("cannot initialize tracing: %w", err)
				}

				opts.Tracer = tracer
			}

			engine, err := cmd.NewEngine(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := engine.RunFile(ctx, cmd.RunRequest{
				Path:        path,
				Inputs:      inputs,
				Environment: command.String("environment"),
				Mocked:      command.Bool("mocked"),
			})
			if err != nil {
				return err
			}

			encoded, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(encoded))

			if result.Failed() {
				return cli.Exit("workflow failed", 1)
			}

			return nil
		},
	}
}

// parseInputs turns repeated key=value flags into the input map.
func parseInputs(pairs []string) (map[string]string, error) {
	inputs := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, models.NewConfigurationError("invalid input %q, expected key=value", pair)
		}

		inputs[key] = value
	}

	return inputs, nil
}
