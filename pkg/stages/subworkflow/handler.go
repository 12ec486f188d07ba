// Package subworkflow implements the workflow stage kind: recursive
// execution of a referenced child workflow with input/output propagation.
package subworkflow

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/protocol"
	"github.com/apichain/apichain/pkg/template"
)

// Handler executes workflow-kind stages.
type Handler struct {
	logger *slog.Logger
	loader protocol.DocumentLoader
	runner protocol.WorkflowRunner
}

// NewHandler wires a workflow stage handler from its collaborators.
func NewHandler(deps protocol.Dependencies) *Handler {
	return &Handler{
		logger: deps.Logger,
		loader: deps.Loader,
		runner: deps.Runner,
	}
}

// Kind returns the stage kind this handler claims.
func (h *Handler) Kind() string {
	return models.StageKindWorkflow
}

// Capabilities: workflow stages use no response tokens and no jumps; a child
// failure propagates as a result the parent may branch on, never aborting
// the parent by itself.
func (h *Handler) Capabilities() protocol.Capabilities {
	return protocol.Capabilities{}
}

// Execute resolves the child document, builds a nested execution context and
// runs the child workflow to completion, then projects its outputs and
// terminal status back into the parent context under the stage's name.
func (h *Handler) Execute(ctx context.Context, stage *models.Stage, doc *models.Workflow, execCtx *models.ExecutionContext) (*protocol.StageResult, error) {
	logger := execCtx.Logger.With("workflow", doc.Name, "stage", stage.Name)
	scope := template.NewScope(execCtx)

	if execCtx.Mocked {
		return h.executeMock(stage, scope, execCtx, logger)
	}

	refPath, ok := doc.References.Workflows[stage.WorkflowRef]
	if !ok {
		return nil, models.NewConfigurationError("stage %q: workflowRef %q is not declared in references", stage.Name, stage.WorkflowRef)
	}

	childPath := refPath
	if !filepath.IsAbs(childPath) {
		childPath = filepath.Join(filepath.Dir(doc.Path), refPath)
	}

	inputs, err := h.childInputs(stage, childPath, scope)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
	}

	childDoc, childEnv, err := h.loader.Load(childPath, execCtx.Env)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
	}

	// A nested document enforces its input declarations the same way the
	// root entry point does.
	if err := childDoc.CheckInputs(inputs); err != nil {
		return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
	}

	childCtx := execCtx.Child(childDoc.ID, inputs)
	childCtx.Env = childEnv

	logger.Info(execCtx.Indent()+"entering nested workflow", "child", childDoc.Name)

	result, err := h.runner.Run(ctx, childDoc, childCtx)
	if err != nil {
		return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
	}

	return h.project(stage, scope, execCtx, result, logger)
}

// executeMock populates the stage's output directly from mock.output; a
// workflow-kind stage without one cannot run under mocking.
func (h *Handler) executeMock(stage *models.Stage, scope *template.Scope, execCtx *models.ExecutionContext, logger *slog.Logger) (*protocol.StageResult, error) {
	if stage.Mock == nil || stage.Mock.Output == nil {
		return nil, models.NewConfigurationError("stage %q: workflow stages need a mock.output under mocked mode", stage.Name)
	}

	outputs, err := template.ResolveMap(stage.Mock.Output, scope)
	if err != nil {
		return nil, fmt.Errorf("stage %q mock output: %w", stage.Name, err)
	}

	logger.Info(execCtx.Indent() + "stage mocked")

	result := &models.WorkflowResult{Status: models.ResultCompleted, Outputs: outputs}

	return h.project(stage, scope, execCtx, result, logger)
}

// childInputs resolves the stage's explicit inputs map; when none is given,
// the child's sidecar variables file is consulted. An explicit inputs map is
// the active override and suppresses the sidecar.
func (h *Handler) childInputs(stage *models.Stage, childPath string, scope *template.Scope) (map[string]string, error) {
	if len(stage.Inputs) > 0 {
		return template.ResolveMap(stage.Inputs, scope)
	}

	sidecar, found, err := h.loader.SidecarInputs(childPath)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return sidecar, nil
}

// project copies the child's terminal state into the parent context and
// finishes the stage: outputs under the stage name, status/message for
// set/context bindings to branch on.
func (h *Handler) project(stage *models.Stage, scope *template.Scope, execCtx *models.ExecutionContext, result *models.WorkflowResult, logger *slog.Logger) (*protocol.StageResult, error) {
	outputs := result.Outputs
	if outputs == nil {
		outputs = make(map[string]string)
	}

	execCtx.SetStageOutput(stage.Name, outputs)
	execCtx.StageResults[stage.Name] = models.StageOutcome{Status: result.Status, Message: result.Message}

	for _, bindings := range []map[string]string{stage.Set, stage.Context} {
		resolved, err := template.ResolveMap(bindings, scope)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
		}

		for key, value := range resolved {
			execCtx.Context[key] = value
		}
	}

	if stage.Message != "" {
		message, err := template.Resolve(stage.Message, scope)
		if err != nil {
			return nil, fmt.Errorf("stage %q message: %w", stage.Name, err)
		}

		logger.Info(execCtx.Indent() + message)
	}

	if result.Failed() {
		logger.Warn(execCtx.Indent()+"nested workflow failed", "status", result.Status, "message", result.Message)

		return &protocol.StageResult{
			Outcome: protocol.OutcomeFailed,
			Status:  result.Status,
			Message: result.Message,
		}, nil
	}

	return &protocol.StageResult{
		Outcome: protocol.OutcomeCompleted,
		Status:  result.Status,
		Message: result.Message,
	}, nil
}
