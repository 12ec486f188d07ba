// Package endpoint implements the HTTP-call stage kind: template resolution
// of the request, resilience wrapping, mock substitution, output capture and
// jump-on-status evaluation.
package endpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/otelhelper"
	"github.com/apichain/apichain/pkg/protocol"
	"github.com/apichain/apichain/pkg/resilience"
	"github.com/apichain/apichain/pkg/template"
)

// Handler executes endpoint-kind stages. One handler instance serves every
// endpoint stage of a process; circuit breakers are kept per workflow+stage
// so their state survives across invocations of the same stage.
type Handler struct {
	logger   *slog.Logger
	invoker  protocol.Invoker
	baseURLs protocol.BaseURLResolver
	mocks    protocol.MockPayloadSource
	tracer   trace.Tracer

	mu       sync.Mutex
	breakers map[string]*resilience.CircuitBreaker
}

// NewHandler wires an endpoint handler from its collaborators.
func NewHandler(deps protocol.Dependencies) *Handler {
	return &Handler{
		logger:   deps.Logger,
		invoker:  deps.Invoker,
		baseURLs: deps.BaseURLs,
		mocks:    deps.Mocks,
		tracer:   deps.Tracer,
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

// Kind returns the stage kind this handler claims.
func (h *Handler) Kind() string {
	return models.StageKindEndpoint
}

// Capabilities: endpoint stages may use response tokens and jumps, and their
// failures are fatal to the workflow.
func (h *Handler) Capabilities() protocol.Capabilities {
	return protocol.Capabilities{
		AllowResponseTokens: true,
		SupportsJumps:       true,
		FatalFailures:       true,
	}
}

// Execute runs the stage: resolve request templates, perform (or mock) the
// call under the resilience wrapper, capture outputs, evaluate set/context
// bindings, emit the message, and decide jump/continue/fail.
func (h *Handler) Execute(ctx context.Context, stage *models.Stage, doc *models.Workflow, execCtx *models.ExecutionContext) (*protocol.StageResult, error) {
	logger := execCtx.Logger.With("workflow", doc.Name, "stage", stage.Name)
	scope := template.NewScope(execCtx)

	status, body, err := h.perform(ctx, stage, doc, execCtx, scope, logger)
	if err != nil {
		return nil, err
	}

	respScope := scope.WithResponse(status, body)

	// Output bindings see response.*; they must be captured before
	// set/context so a stage can post-process its own output.
	outputs, err := template.ResolveMap(stage.Output, respScope)
	if err != nil {
		return nil, fmt.Errorf("stage %q output bindings: %w", stage.Name, err)
	}

	if outputs == nil {
		outputs = make(map[string]string)
	}

	execCtx.SetStageOutput(stage.Name, outputs)

	if err := applyContextBindings(stage, scope, execCtx); err != nil {
		return nil, fmt.Errorf("stage %q: %w", stage.Name, err)
	}

	if stage.Message != "" {
		message, err := template.Resolve(stage.Message, respScope)
		if err != nil {
			return nil, fmt.Errorf("stage %q message: %w", stage.Name, err)
		}

		logger.Info(execCtx.Indent() + message)
	}

	if target, ok := stage.JumpOnStatus[status]; ok {
		target = normalizeJumpTarget(target)
		logger.Info(execCtx.Indent()+"stage jump", "status", status, "target", target)

		return &protocol.StageResult{Outcome: protocol.OutcomeJumped, JumpTo: target}, nil
	}

	if status != stage.ExpectedStatus {
		return nil, &models.StageFailure{
			Stage:    stage.Name,
			Status:   status,
			Expected: stage.ExpectedStatus,
		}
	}

	logger.Info(execCtx.Indent()+"stage complete", "status", status)

	return &protocol.StageResult{Outcome: protocol.OutcomeCompleted}, nil
}

// perform produces the stage's response: a synthesized one in mocked mode,
// otherwise the real call through circuit breaker and retry.
func (h *Handler) perform(ctx context.Context, stage *models.Stage, doc *models.Workflow, execCtx *models.ExecutionContext, scope *template.Scope, logger *slog.Logger) (int, string, error) {
	if execCtx.Mocked && stage.Mock != nil {
		payload, err := h.mocks.Payload(doc.Path, stage.Mock)
		if err != nil {
			return 0, "", fmt.Errorf("stage %q mock: %w", stage.Name, err)
		}

		logger.Info(execCtx.Indent()+"stage mocked", "status", stage.Mock.Status)

		return stage.Mock.Status, payload, nil
	}

	inv, err := h.buildInvocation(stage, doc, execCtx, scope)
	if err != nil {
		return 0, "", err
	}

	var span trace.Span

	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "stage."+stage.Name, trace.WithAttributes(
			attribute.String(otelhelper.WorkflowNameKey, doc.Name),
			attribute.String(otelhelper.StageNameKey, stage.Name),
			attribute.String(otelhelper.StageKindKey, models.StageKindEndpoint),
			attribute.String("http.method", inv.Method),
			attribute.String("http.url", inv.URL),
		))
		defer span.End()
	}

	status, body, err := h.invokeWithResilience(ctx, stage, doc, execCtx, inv, logger)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return status, body, err
}

// buildInvocation resolves the request templates and joins the endpoint path
// onto the catalog base URL.
func (h *Handler) buildInvocation(stage *models.Stage, doc *models.Workflow, execCtx *models.ExecutionContext, scope *template.Scope) (protocol.Invocation, error) {
	var inv protocol.Invocation

	path, err := template.Resolve(stage.Endpoint, scope)
	if err != nil {
		return inv, fmt.Errorf("stage %q endpoint: %w", stage.Name, err)
	}

	headers, err := template.ResolveMap(stage.Headers, scope)
	if err != nil {
		return inv, fmt.Errorf("stage %q headers: %w", stage.Name, err)
	}

	query, err := template.ResolveMap(stage.Query, scope)
	if err != nil {
		return inv, fmt.Errorf("stage %q query: %w", stage.Name, err)
	}

	body, err := template.Resolve(stage.Body, scope)
	if err != nil {
		return inv, fmt.Errorf("stage %q body: %w", stage.Name, err)
	}

	api, ok := doc.References.APIs[stage.APIRef]
	if !ok {
		return inv, models.NewConfigurationError("stage %q: apiRef %q is not declared in references", stage.Name, stage.APIRef)
	}

	base, err := h.baseURLs.BaseURL(api, execCtx.Environment)
	if err != nil {
		return inv, fmt.Errorf("stage %q: %w", stage.Name, err)
	}

	verb := strings.ToUpper(stage.HTTPVerb)
	if verb == "" {
		verb = http.MethodGet
	}

	inv = protocol.Invocation{
		Method:  verb,
		URL:     joinURL(base, path),
		Headers: headers,
		Query:   query,
		Body:    body,
	}

	return inv, nil
}

// invokeWithResilience runs the transport call under breaker(retry(call)).
// A blocked breaker short-circuits before any retry attempt; a canceled call
// is never recorded against the breaker.
func (h *Handler) invokeWithResilience(ctx context.Context, stage *models.Stage, doc *models.Workflow, execCtx *models.ExecutionContext, inv protocol.Invocation, logger *slog.Logger) (int, string, error) {
	retryPolicy, err := doc.Resilience.ResolveRetry(stage.Retry)
	if err != nil {
		return 0, "", err
	}

	var breaker *resilience.CircuitBreaker

	if stage.CircuitBreaker != nil {
		cbPolicy, err := doc.Resilience.ResolveCircuitBreaker(stage.CircuitBreaker)
		if err != nil {
			return 0, "", err
		}

		breaker = h.breakerFor(doc.Name+"/"+stage.Name, cbPolicy)

		allowed, remaining := breaker.Allow()
		if !allowed {
			logger.Warn(execCtx.Indent()+"stage blocked, circuit open", "remaining", remaining)

			return 0, "", &models.CircuitOpenError{Stage: stage.Name, Remaining: remaining}
		}
	}

	var last *protocol.InvocationResult

	call := func(ctx context.Context) (int, error) {
		result, err := h.invoker.Invoke(ctx, inv)
		if err != nil {
			return 0, err
		}

		last = result

		return result.Status, nil
	}

	var onStatus []int
	if stage.Retry != nil {
		onStatus = stage.Retry.OnStatus
	}

	retrier := resilience.NewRetrier(retryPolicy, onStatus)

	status, retries, err := retrier.Do(ctx, call)

	if retries > 0 {
		logger.Info(execCtx.Indent()+"stage retried", "retries", retries)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Incomplete call: the breaker state must not move.
			return 0, "", err
		}

		if breaker != nil {
			breaker.RecordFailure()
		}

		if stage.Retry != nil {
			return 0, "", &models.RetryExhaustedError{Stage: stage.Name, Attempts: retries, Last: err}
		}

		return 0, "", &models.StageFailure{Stage: stage.Name, Status: status, Msg: err.Error()}
	}

	if breaker != nil {
		breaker.RecordSuccess()
	}

	return last.Status, last.Body, nil
}

// breakerFor returns the stage's breaker, creating it on first use.
func (h *Handler) breakerFor(key string, policy models.CircuitBreakerPolicy) *resilience.CircuitBreaker {
	h.mu.Lock()
	defer h.mu.Unlock()

	breaker, ok := h.breakers[key]
	if !ok {
		breaker = resilience.NewCircuitBreaker(policy)
		h.breakers[key] = breaker
	}

	return breaker
}

// applyContextBindings evaluates the stage's set and context bindings. They
// run after output capture, so the stage's own output is visible through the
// stage scope; response tokens are not (validation rejects them here).
func applyContextBindings(stage *models.Stage, scope *template.Scope, execCtx *models.ExecutionContext) error {
	for _, bindings := range []map[string]string{stage.Set, stage.Context} {
		resolved, err := template.ResolveMap(bindings, scope)
		if err != nil {
			return err
		}

		for key, value := range resolved {
			execCtx.Context[key] = value
		}
	}

	return nil
}

// normalizeJumpTarget folds the accepted end-stage spellings onto the
// canonical one.
func normalizeJumpTarget(target string) string {
	if target == models.JumpToEnd || strings.EqualFold(target, "endStage") {
		return models.JumpToEnd
	}

	return target
}

// joinURL joins a base URL and a path without doubling the slash.
func joinURL(base, path string) string {
	if path == "" {
		return base
	}

	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
