package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/apichain/apichain/pkg/cmd"
	"github.com/apichain/apichain/pkg/log"
)

const defaultPort = 9091

func main() {
	command := &cli.Command{
		Name:                  "apichain-api",
		Usage:                 "Run workflows over HTTP",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Path to the API catalog file",
				Sources: cli.EnvVars("APICHAIN_CATALOG"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-call HTTP timeout",
				Value: 30 * time.Second,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("api")
			logger.InfoContext(ctx, "Initializing Apichain API")

			engine, err := cmd.NewEngine(cmd.Options{
				Logger:      logger,
				CatalogPath: command.String("catalog"),
				Timeout:     command.Duration("timeout"),
			})
			if err != nil {
				return err
			}

			api := NewAPI(logger, engine)

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
