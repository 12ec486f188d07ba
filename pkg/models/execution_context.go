package models

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// StageOutcome records the terminal status and message of a nested workflow
// invocation, observable by the parent's set/context bindings.
type StageOutcome struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ExecutionContext is the variable state of one workflow invocation. It is
// exclusively owned by the executor that created it and passed by reference
// into every stage handler call; nested invocations get a fresh context,
// never a shared one.
type ExecutionContext struct {
	ID          string `json:"id"`
	WorkflowID  string `json:"workflow_id"`
	Environment string `json:"environment,omitempty"`
	Mocked      bool   `json:"mocked,omitempty"`

	// Inputs are immutable for this invocation.
	Inputs map[string]string `json:"inputs,omitempty"`
	// Globals are produced by the init stage, read-only afterwards.
	Globals map[string]string `json:"globals,omitempty"`
	// Context is the mutable cross-stage state; the only state designed to
	// survive beyond a single stage's scope.
	Context map[string]string `json:"context,omitempty"`
	// Env is the merged environment map (parent env plus this document's
	// environment file plus explicit overrides).
	Env map[string]string `json:"env,omitempty"`

	// StageOutputs holds each executed stage's captured output bindings,
	// keyed by stage name.
	StageOutputs map[string]map[string]string `json:"stage_outputs,omitempty"`
	// StageResults holds nested-workflow terminal status/message per stage.
	StageResults map[string]StageOutcome `json:"stage_results,omitempty"`

	// Depth is the nesting depth, reflected as log indentation.
	Depth int `json:"depth"`

	Logger *slog.Logger `json:"-"`
}

// NewExecutionContext creates the context for a root workflow invocation.
func NewExecutionContext(workflowID string, inputs map[string]string) *ExecutionContext {
	if inputs == nil {
		inputs = make(map[string]string)
	}

	return &ExecutionContext{
		ID:           "exec-" + uuid.New().String()[:8],
		WorkflowID:   workflowID,
		Inputs:       inputs,
		Globals:      make(map[string]string),
		Context:      make(map[string]string),
		Env:          make(map[string]string),
		StageOutputs: make(map[string]map[string]string),
		StageResults: make(map[string]StageOutcome),
		Logger:       slog.Default(),
	}
}

// Child creates a fresh context for a nested workflow invocation: own maps,
// the given inputs, inherited environment/mode, depth incremented by one.
// The child's env starts as a copy of the parent's; the child document's
// environment file is merged on top by the loader.
func (c *ExecutionContext) Child(workflowID string, inputs map[string]string) *ExecutionContext {
	child := NewExecutionContext(workflowID, inputs)
	child.Environment = c.Environment
	child.Mocked = c.Mocked
	child.Depth = c.Depth + 1
	child.Logger = c.Logger

	for k, v := range c.Env {
		child.Env[k] = v
	}

	return child
}

// SetStageOutput stores a stage's captured output map.
func (c *ExecutionContext) SetStageOutput(stage string, output map[string]string) {
	if c.StageOutputs == nil {
		c.StageOutputs = make(map[string]map[string]string)
	}

	c.StageOutputs[stage] = output
}

// StageOutput returns a named stage's captured output value.
func (c *ExecutionContext) StageOutput(stage, key string) (string, error) {
	output, ok := c.StageOutputs[stage]
	if !ok {
		return "", fmt.Errorf("stage %q has no captured output (not executed yet?)", stage)
	}

	value, ok := output[key]
	if !ok {
		return "", fmt.Errorf("stage %q output has no key %q", stage, key)
	}

	return value, nil
}

// Indent returns the log indentation prefix for this context's depth.
func (c *ExecutionContext) Indent() string {
	return strings.Repeat("  ", c.Depth)
}
