package endpoint

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/protocol"
)

type fakeInvoker struct {
	invocations []protocol.Invocation
	responses   []*protocol.InvocationResult
	errs        []error
	calls       int
}

func (f *fakeInvoker) Invoke(ctx context.Context, inv protocol.Invocation) (*protocol.InvocationResult, error) {
	f.invocations = append(f.invocations, inv)

	idx := f.calls
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}

	f.calls++

	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}

	return f.responses[idx], nil
}

type fakeBaseURLs struct {
	base string
}

func (f *fakeBaseURLs) BaseURL(api, environment string) (string, error) {
	return f.base, nil
}

type fakeMocks struct {
	payload string
}

func (f *fakeMocks) Payload(docPath string, mock *models.Mock) (string, error) {
	if mock.Payload != "" {
		return mock.Payload, nil
	}

	return f.payload, nil
}

func newTestHandler(invoker protocol.Invoker) *Handler {
	return NewHandler(protocol.Dependencies{
		Logger:   slog.Default(),
		Invoker:  invoker,
		BaseURLs: &fakeBaseURLs{base: "https://api.example.com"},
		Mocks:    &fakeMocks{},
	})
}

func testDoc(stages ...*models.Stage) *models.Workflow {
	return &models.Workflow{
		Name: "test-workflow",
		References: models.References{
			APIs: map[string]string{"users": "users-api"},
		},
		Resilience: models.Resilience{
			Retries: map[string]models.RetryPolicy{
				"default": {MaxRetries: 3, DelayMs: 1},
			},
			CircuitBreakers: map[string]models.CircuitBreakerPolicy{
				"default": {FailureThreshold: 2, BreakMs: 60000, CloseOnSuccessAttempts: 1},
			},
		},
		Stages: stages,
	}
}

func newExecCtx() *models.ExecutionContext {
	execCtx := models.NewExecutionContext("test-workflow", map[string]string{"userId": "42"})
	execCtx.Logger = slog.Default()

	return execCtx
}

func TestExecute_SuccessCapturesOutputs(t *testing.T) {
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 200, Body: `{"id":"u-7","name":"Ana"}`},
	}}
	handler := newTestHandler(invoker)

	stage := &models.Stage{
		Name:           "getUser",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/users/{{input.userId}}",
		ExpectedStatus: 200,
		Output: map[string]string{
			"id":   "{{response.body.id}}",
			"code": "{{response.status}}",
		},
	}

	execCtx := newExecCtx()
	doc := testDoc(stage)

	result, err := handler.Execute(context.Background(), stage, doc, execCtx)
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeCompleted, result.Outcome)

	require.Len(t, invoker.invocations, 1)
	assert.Equal(t, "GET", invoker.invocations[0].Method)
	assert.Equal(t, "https://api.example.com/users/42", invoker.invocations[0].URL)

	id, err := execCtx.StageOutput("getUser", "id")
	require.NoError(t, err)
	assert.Equal(t, "u-7", id)

	code, err := execCtx.StageOutput("getUser", "code")
	require.NoError(t, err)
	assert.Equal(t, "200", code)
}

func TestExecute_SetAndContextBindings(t *testing.T) {
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 200, Body: `{"token":"tk-1"}`},
	}}
	handler := newTestHandler(invoker)

	stage := &models.Stage{
		Name:           "login",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/login",
		ExpectedStatus: 200,
		Output:         map[string]string{"token": "{{response.body.token}}"},
		Set:            map[string]string{"authToken": "{{stage.login.output.token}}"},
	}

	execCtx := newExecCtx()

	_, err := handler.Execute(context.Background(), stage, testDoc(stage), execCtx)
	require.NoError(t, err)

	// Set bindings run after output capture, so the stage sees its own
	// output through the stage scope.
	assert.Equal(t, "tk-1", execCtx.Context["authToken"])
}

func TestExecute_UnexpectedStatusFails(t *testing.T) {
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 500, Body: "boom"},
	}}
	handler := newTestHandler(invoker)

	stage := &models.Stage{
		Name:           "getUser",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/users/1",
		ExpectedStatus: 200,
	}

	_, err := handler.Execute(context.Background(), stage, testDoc(stage), newExecCtx())
	require.Error(t, err)

	var failure *models.StageFailure

	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 500, failure.Status)
	assert.Equal(t, 200, failure.Expected)
}

func TestExecute_JumpOnStatus(t *testing.T) {
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 404, Body: ""},
	}}
	handler := newTestHandler(invoker)

	stage := &models.Stage{
		Name:           "findUser",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/users/1",
		ExpectedStatus: 200,
		JumpOnStatus:   map[int]string{404: "createUser"},
	}

	result, err := handler.Execute(context.Background(), stage, testDoc(stage), newExecCtx())
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeJumped, result.Outcome)
	assert.Equal(t, "createUser", result.JumpTo)
}

func TestExecute_JumpToEnd(t *testing.T) {
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 409, Body: ""},
	}}
	handler := newTestHandler(invoker)

	stage := &models.Stage{
		Name:           "createUser",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/users",
		HTTPVerb:       "POST",
		ExpectedStatus: 201,
		JumpOnStatus:   map[int]string{409: "end"},
	}

	result, err := handler.Execute(context.Background(), stage, testDoc(stage), newExecCtx())
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeJumped, result.Outcome)
	assert.Equal(t, models.JumpToEnd, result.JumpTo)
}

func TestExecute_JumpWinsOverExpectedStatus(t *testing.T) {
	// A status present in jumpOnStatus jumps even though it differs from
	// expectedStatus.
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 409, Body: ""},
	}}
	handler := newTestHandler(invoker)

	stage := &models.Stage{
		Name:           "createUser",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/users",
		ExpectedStatus: 201,
		JumpOnStatus:   map[int]string{409: "endStage"},
	}

	result, err := handler.Execute(context.Background(), stage, testDoc(stage), newExecCtx())
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeJumped, result.Outcome)
	assert.Equal(t, models.JumpToEnd, result.JumpTo)
}

func TestExecute_RetryThenSuccess(t *testing.T) {
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 503, Body: ""},
		{Status: 503, Body: ""},
		{Status: 200, Body: `{}`},
	}}
	handler := newTestHandler(invoker)

	stage := &models.Stage{
		Name:           "flaky",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/flaky",
		ExpectedStatus: 200,
		Retry:          &models.StageRetry{Ref: "default", OnStatus: []int{503}},
	}

	result, err := handler.Execute(context.Background(), stage, testDoc(stage), newExecCtx())
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeCompleted, result.Outcome)
	assert.Equal(t, 3, invoker.calls)
}

func TestExecute_RetryExhausted(t *testing.T) {
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 503, Body: ""},
	}}
	handler := newTestHandler(invoker)

	maxRetries := 1
	delayMs := 1
	stage := &models.Stage{
		Name:           "flaky",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/flaky",
		ExpectedStatus: 200,
		Retry:          &models.StageRetry{MaxRetries: &maxRetries, DelayMs: &delayMs, OnStatus: []int{503}},
	}

	_, err := handler.Execute(context.Background(), stage, testDoc(stage), newExecCtx())
	require.Error(t, err)

	var exhausted *models.RetryExhaustedError

	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Equal(t, 2, invoker.calls)
}

func TestExecute_CircuitOpensAndBlocks(t *testing.T) {
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 503, Body: ""},
	}}
	handler := newTestHandler(invoker)

	maxRetries := 0
	delayMs := 1
	stage := &models.Stage{
		Name:           "flaky",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/flaky",
		ExpectedStatus: 200,
		Retry:          &models.StageRetry{MaxRetries: &maxRetries, DelayMs: &delayMs, OnStatus: []int{503}},
		CircuitBreaker: &models.StageCircuitBreaker{Ref: "default"},
	}

	doc := testDoc(stage)

	// Two retry-loop failures reach the threshold.
	_, err := handler.Execute(context.Background(), stage, doc, newExecCtx())
	require.Error(t, err)

	_, err = handler.Execute(context.Background(), stage, doc, newExecCtx())
	require.Error(t, err)

	callsBefore := invoker.calls

	// Third invocation is rejected without touching the transport.
	_, err = handler.Execute(context.Background(), stage, doc, newExecCtx())
	require.Error(t, err)

	var open *models.CircuitOpenError

	require.ErrorAs(t, err, &open)
	assert.Equal(t, callsBefore, invoker.calls)
}

func TestExecute_MockedModeSkipsTransport(t *testing.T) {
	invoker := &fakeInvoker{}
	handler := newTestHandler(invoker)

	stage := &models.Stage{
		Name:           "getUser",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/users/1",
		ExpectedStatus: 200,
		Mock:           &models.Mock{Status: 200, Payload: `{"id":"mock-1"}`},
		Output:         map[string]string{"id": "{{response.body.id}}"},
	}

	execCtx := newExecCtx()
	execCtx.Mocked = true

	result, err := handler.Execute(context.Background(), stage, testDoc(stage), execCtx)
	require.NoError(t, err)
	assert.Equal(t, protocol.OutcomeCompleted, result.Outcome)
	assert.Zero(t, invoker.calls)

	id, err := execCtx.StageOutput("getUser", "id")
	require.NoError(t, err)
	assert.Equal(t, "mock-1", id)
}

func TestExecute_MockedModeWithoutMockCallsTransport(t *testing.T) {
	invoker := &fakeInvoker{responses: []*protocol.InvocationResult{
		{Status: 200, Body: `{}`},
	}}
	handler := newTestHandler(invoker)

	stage := &models.Stage{
		Name:           "getUser",
		Kind:           models.StageKindEndpoint,
		APIRef:         "users",
		Endpoint:       "/users/1",
		ExpectedStatus: 200,
	}

	execCtx := newExecCtx()
	execCtx.Mocked = true

	_, err := handler.Execute(context.Background(), stage, testDoc(stage), execCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, invoker.calls)
}

func TestExecute_UndeclaredAPIRef(t *testing.T) {
	handler := newTestHandler(&fakeInvoker{})

	stage := &models.Stage{
		Name:           "getUser",
		Kind:           models.StageKindEndpoint,
		APIRef:         "unknown",
		Endpoint:       "/users/1",
		ExpectedStatus: 200,
	}

	_, err := handler.Execute(context.Background(), stage, testDoc(stage), newExecCtx())
	require.Error(t, err)
	assert.True(t, models.IsConfigurationError(err))
}
