// Package workflow drives the execution of a workflow document: init stage,
// stage sequencing with runIf skips and status jumps, end stage.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/otelhelper"
	"github.com/apichain/apichain/pkg/protocol"
	"github.com/apichain/apichain/pkg/registry"
	"github.com/apichain/apichain/pkg/template"
)

// Executor runs workflow documents. It implements protocol.WorkflowRunner so
// workflow-kind stages can recurse into it.
type Executor struct {
	logger   *slog.Logger
	registry *registry.Registry
	tracer   trace.Tracer
}

// NewExecutor builds an executor over a stage registry. tracer may be nil.
func NewExecutor(logger *slog.Logger, reg *registry.Registry, tracer trace.Tracer) *Executor {
	return &Executor{logger: logger, registry: reg, tracer: tracer}
}

// Run executes the document against the context. Configuration errors are
// returned as errors before any stage runs; everything else ends in a
// terminal WorkflowResult; failed runs carry the failure message so a
// parent workflow stage can branch on it.
func (e *Executor) Run(ctx context.Context, doc *models.Workflow, execCtx *models.ExecutionContext) (*models.WorkflowResult, error) {
	logger := e.logger.With("workflow", doc.Name, "execution", execCtx.ID)
	execCtx.Logger = logger

	if err := ValidateDocument(doc, e.registry); err != nil {
		return nil, err
	}

	var span trace.Span

	if e.tracer != nil {
		ctx, span = e.tracer.Start(ctx, "workflow."+doc.Name, trace.WithAttributes(
			attribute.String(otelhelper.WorkflowNameKey, doc.Name),
			attribute.String(otelhelper.ExecutionIDKey, execCtx.ID),
			attribute.Int(otelhelper.DepthKey, execCtx.Depth),
		))
		defer span.End()
	}

	logger.Info(execCtx.Indent()+"workflow started", "depth", execCtx.Depth)

	if err := e.runInitStage(doc, execCtx); err != nil {
		otelhelper.SetError(span, err)

		return e.fail(doc, execCtx, logger, err)
	}

	if err := e.runStages(ctx, doc, execCtx, logger); err != nil {
		otelhelper.SetError(span, err)

		if models.IsConfigurationError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		return e.fail(doc, execCtx, logger, err)
	}

	return e.complete(doc, execCtx, logger)
}

// runInitStage evaluates the ordered global variable declarations and seeds
// the context map. Later declarations may reference earlier ones.
func (e *Executor) runInitStage(doc *models.Workflow, execCtx *models.ExecutionContext) error {
	if doc.InitStage == nil {
		return nil
	}

	scope := template.NewScope(execCtx)

	for _, decl := range doc.InitStage.Variables {
		value, err := template.Resolve(decl.Value, scope)
		if err != nil {
			return fmt.Errorf("init stage variable %q: %w", decl.Name, err)
		}

		execCtx.Globals[decl.Name] = value
	}

	for key, tmpl := range doc.InitStage.Context {
		value, err := template.Resolve(tmpl, scope)
		if err != nil {
			return fmt.Errorf("init stage context %q: %w", key, err)
		}

		execCtx.Context[key] = value
	}

	return nil
}

// runStages iterates the declared stage order, honoring runIf skips and jump
// signals. A jump target is searched over the full stage list, not only the
// stages after the current one.
func (e *Executor) runStages(ctx context.Context, doc *models.Workflow, execCtx *models.ExecutionContext, logger *slog.Logger) error {
	i := 0

	for i < len(doc.Stages) {
		stage := doc.Stages[i]

		run, err := EvaluateRunIf(stage.RunIf, template.NewScope(execCtx))
		if err != nil {
			// An unresolved runIf reads as "condition not satisfied":
			// the stage is skipped, the workflow continues.
			logger.Warn(execCtx.Indent()+"stage runIf unresolved, skipping", "stage", stage.Name, "error", err)

			run = false
		}

		if !run {
			logger.Info(execCtx.Indent()+"stage skipped", "stage", stage.Name)

			i++

			continue
		}

		handler, err := e.registry.HandlerFor(stage.KindKey())
		if err != nil {
			return err
		}

		logger.Info(execCtx.Indent()+"stage started", "stage", stage.Name, "kind", stage.KindKey())

		result, err := handler.Execute(ctx, stage, doc, execCtx)
		if err != nil {
			if models.IsConfigurationError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			if handler.Capabilities().FatalFailures {
				return err
			}

			logger.Warn(execCtx.Indent()+"stage failed, continuing", "stage", stage.Name, "error", err)
			execCtx.StageResults[stage.Name] = models.StageOutcome{Status: models.ResultFailed, Message: err.Error()}

			i++

			continue
		}

		if result.Outcome == protocol.OutcomeJumped {
			if result.JumpTo == models.JumpToEnd {
				logger.Info(execCtx.Indent()+"jump to end stage", "stage", stage.Name)

				return nil
			}

			target := stageIndex(doc, result.JumpTo)
			if target == -1 {
				return models.NewConfigurationError("stage %q jumps to unknown stage %q", stage.Name, result.JumpTo)
			}

			i = target

			continue
		}

		i++
	}

	return nil
}

// complete runs the end stage on the success path: outputs are produced only
// when the document's output flag is set, context writes always apply.
func (e *Executor) complete(doc *models.Workflow, execCtx *models.ExecutionContext, logger *slog.Logger) (*models.WorkflowResult, error) {
	result := &models.WorkflowResult{Status: models.ResultCompleted}
	scope := template.NewScope(execCtx)

	if doc.EndStage != nil {
		if doc.Output {
			outputs, err := template.ResolveMap(doc.EndStage.Output, scope)
			if err != nil {
				return e.fail(doc, execCtx, logger, fmt.Errorf("end stage output: %w", err))
			}

			result.Outputs = outputs
		}

		if err := e.applyEndStageContext(doc, execCtx); err != nil {
			return e.fail(doc, execCtx, logger, err)
		}
	}

	logger.Info(execCtx.Indent() + "workflow completed")

	return result, nil
}

// fail closes a run on the failure path. End-stage context writes still
// apply, mirroring cleanup semantics; outputs of unreached stages are
// simply absent.
func (e *Executor) fail(doc *models.Workflow, execCtx *models.ExecutionContext, logger *slog.Logger, cause error) (*models.WorkflowResult, error) {
	if err := e.applyEndStageContext(doc, execCtx); err != nil {
		logger.Warn(execCtx.Indent()+"end stage context writes failed", "error", err)
	}

	logger.Error(execCtx.Indent()+"workflow failed", "error", cause)

	return &models.WorkflowResult{Status: models.ResultFailed, Message: cause.Error()}, nil
}

// applyEndStageContext performs the end stage's context writes.
func (e *Executor) applyEndStageContext(doc *models.Workflow, execCtx *models.ExecutionContext) error {
	if doc.EndStage == nil || doc.EndStage.Context == nil {
		return nil
	}

	resolved, err := template.ResolveMap(doc.EndStage.Context, template.NewScope(execCtx))
	if err != nil {
		return fmt.Errorf("end stage context: %w", err)
	}

	for key, value := range resolved {
		execCtx.Context[key] = value
	}

	return nil
}

// stageIndex returns the position of the named stage, or -1.
func stageIndex(doc *models.Workflow, name string) int {
	for i, stage := range doc.Stages {
		if stage.Name == name {
			return i
		}
	}

	return -1
}
