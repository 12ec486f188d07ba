// Package protocol defines the contracts between the workflow executor, the
// pluggable stage handlers, and the external collaborators they call.
package protocol

import (
	"context"

	"github.com/apichain/apichain/pkg/models"
)

// Outcome classifies how a stage execution ended from the executor's point
// of view.
type Outcome string

const (
	// OutcomeCompleted means the stage finished and the executor proceeds
	// to the next declared stage.
	OutcomeCompleted Outcome = "completed"
	// OutcomeJumped means control transfers to StageResult.JumpTo.
	OutcomeJumped Outcome = "jumped"
	// OutcomeFailed means the stage failed but the failure is carried as a
	// result rather than an error (workflow-kind child failures).
	OutcomeFailed Outcome = "failed"
)

// StageResult is what a handler reports back to the executor on a non-error
// return.
type StageResult struct {
	Outcome Outcome
	// JumpTo is the target stage name, or models.JumpToEnd, when Outcome
	// is OutcomeJumped.
	JumpTo string
	// Status and Message carry a nested workflow's terminal state.
	Status  string
	Message string
}

// Capabilities declares what a stage kind supports; the executor and the
// static validator consume these flags.
type Capabilities struct {
	// AllowResponseTokens permits response.* tokens in the stage's output
	// bindings and message template.
	AllowResponseTokens bool
	// SupportsJumps permits a jumpOnStatus map on the stage.
	SupportsJumps bool
	// FatalFailures makes an Execute error abort the whole workflow; kinds
	// without it have failures recorded and propagated as results.
	FatalFailures bool
}

// StageHandler executes and validates stages of one kind.
type StageHandler interface {
	// Kind returns the stage kind this handler claims, canonical form.
	Kind() string

	// Capabilities returns the kind's capability flags.
	Capabilities() Capabilities

	// Execute runs the stage against the execution context, mutating the
	// context's output/context maps as the stage's bindings dictate. An
	// error return is a stage failure; whether it is fatal to the workflow
	// is decided by the capability flags.
	Execute(ctx context.Context, stage *models.Stage, doc *models.Workflow, execCtx *models.ExecutionContext) (*StageResult, error)

	// Validate statically checks a stage definition. Returned errors are
	// configuration errors; an empty slice means the stage is well formed.
	Validate(stage *models.Stage, vctx *ValidationContext) []error
}

// ValidationContext gives a handler's Validate the surrounding document and
// the stage's position in it.
type ValidationContext struct {
	Workflow   *models.Workflow
	StageIndex int
}

// HandlerFactory builds a stage handler from the engine's collaborators.
// Factories are registered against plugin identifiers at init time; there is
// no runtime plugin scanning.
type HandlerFactory interface {
	// ID is the plugin identifier this factory is registered under.
	ID() string

	// Create builds the handler.
	Create(deps Dependencies) (StageHandler, error)
}
