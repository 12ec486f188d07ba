// Package main provides the apichain scheduler, which runs a workflow
// file repeatedly on a cron schedule.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/apichain/apichain/pkg/cmd"
	"github.com/apichain/apichain/pkg/log"
	"github.com/apichain/apichain/pkg/models"
)

func main() {
	command := &cli.Command{
		Name:                  "apichain-scheduler",
		Usage:                 "Run a workflow on a cron schedule",
		ArgsUsage:             "<workflow-file>",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "cron",
				Usage:    "Cron expression (e.g. '*/5 * * * *')",
				Required: true,
				Sources:  cli.EnvVars("APICHAIN_CRON"),
			},
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
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))

	logger := log.WithModule("scheduler")

	path := command.Args().First()
	if path == "" {
		return models.NewConfigurationError("a workflow file is required")
	}

	expr := command.String("cron")
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	engine, err := cmd.NewEngine(cmd.Options{
		Logger:      logger,
		CatalogPath: command.String("catalog"),
		Timeout:     command.Duration("timeout"),
	})
	if err != nil {
		return err
	}

	// Validate once up front so a broken document fails fast instead of
	// on the first tick.
	if _, err := engine.ValidateFile(path); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	environment := command.String("environment")

	_, err = scheduler.AddFunc(expr, func() {
		result, err := engine.RunFile(ctx, cmd.RunRequest{
			Path:        path,
			Environment: environment,
		})
		if err != nil {
			logger.ErrorContext(ctx, "Scheduled run failed", "workflow", path, "error", err)

			return
		}

		logger.InfoContext(ctx, "Scheduled run finished",
			"workflow", path, "status", result.Status, "message", result.Message)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	logger.InfoContext(ctx, "Scheduler started", "workflow", path, "cron", expr)
	scheduler.Start()

	<-ctx.Done()

	logger.InfoContext(ctx, "Shutting down scheduler")

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	return nil
}
