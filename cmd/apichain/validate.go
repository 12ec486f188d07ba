package main

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/apichain/apichain/pkg/cmd"
	"github.com/apichain/apichain/pkg/log"
	"github.com/apichain/apichain/pkg/models"
)

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate a workflow file without executing it",
		ArgsUsage: "<workflow-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Path to the API catalog file",
				Sources: cli.EnvVars("APICHAIN_CATALOG"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			path := command.Args().First()
			if path == "" {
				return models.NewConfigurationError("a workflow file is required")
			}

			engine, err := cmd.NewEngine(cmd.Options{
				Logger:      log.WithModule("apichain"),
				CatalogPath: command.String("catalog"),
			})
			if err != nil {
				return err
			}

			doc, err := engine.ValidateFile(path)
			if err != nil {
				return err
			}

			fmt.Printf("workflow %q is valid (%d stages)\n", doc.Name, len(doc.Stages))

			return nil
		},
	}
}
