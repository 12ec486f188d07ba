package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/apichain/apichain/pkg/cmd"
	"github.com/apichain/apichain/pkg/log"
	"github.com/apichain/apichain/pkg/models"
)

func planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Print the execution plan of a workflow without running it",
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

			printPlan(doc)

			return nil
		},
	}
}

func printPlan(doc *models.Workflow) {
	fmt.Printf("workflow: %s\n", doc.Name)

	if doc.InitStage != nil && len(doc.InitStage.Variables) > 0 {
		names := make([]string, 0, len(doc.InitStage.Variables))
		for _, variable := range doc.InitStage.Variables {
			names = append(names, variable.Name)
		}

		fmt.Printf("init: variables %s\n", strings.Join(names, ", "))
	}

	for i, stage := range doc.Stages {
		fmt.Printf("%2d. [%s] %s%s\n", i+1, stage.KindKey(), stage.Name, stageSummary(doc, stage))
	}

	if doc.EndStage != nil && len(doc.EndStage.Output) > 0 {
		keys := make([]string, 0, len(doc.EndStage.Output))
		for key := range doc.EndStage.Output {
			keys = append(keys, key)
		}

		sort.Strings(keys)
		fmt.Printf("end: outputs %s\n", strings.Join(keys, ", "))
	}
}

func stageSummary(doc *models.Workflow, stage *models.Stage) string {
	var parts []string

	if stage.RunIf != "" {
		parts = append(parts, fmt.Sprintf("runIf %s", stage.RunIf))
	}

	switch stage.KindKey() {
	case models.StageKindEndpoint:
		verb := stage.HTTPVerb
		if verb == "" {
			verb = "GET"
		}

		parts = append(parts, fmt.Sprintf("%s %s%s", strings.ToUpper(verb), stage.APIRef, stage.Endpoint))

		if policy, err := doc.Resilience.ResolveRetry(stage.Retry); err == nil && stage.Retry != nil {
			parts = append(parts, fmt.Sprintf("retry %dx/%s", policy.MaxRetries, policy.Delay()))
		}

		if policy, err := doc.Resilience.ResolveCircuitBreaker(stage.CircuitBreaker); err == nil && stage.CircuitBreaker != nil {
			parts = append(parts, fmt.Sprintf("breaker %d failures/%s", policy.FailureThreshold, policy.Break()))
		}

		if len(stage.JumpOnStatus) > 0 {
			statuses := make([]int, 0, len(stage.JumpOnStatus))
			for status := range stage.JumpOnStatus {
				statuses = append(statuses, status)
			}

			sort.Ints(statuses)

			jumps := make([]string, 0, len(statuses))
			for _, status := range statuses {
				jumps = append(jumps, fmt.Sprintf("%d->%s", status, stage.JumpOnStatus[status]))
			}

			parts = append(parts, fmt.Sprintf("jumps %s", strings.Join(jumps, " ")))
		}
	case models.StageKindWorkflow:
		parts = append(parts, fmt.Sprintf("calls %s", stage.WorkflowRef))
	}

	if len(parts) == 0 {
		return ""
	}

	return " (" + strings.Join(parts, "; ") + ")"
}
