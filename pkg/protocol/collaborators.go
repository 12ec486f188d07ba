package protocol

import (
	"context"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/apichain/apichain/pkg/models"
)

// Invocation is one HTTP call to perform.
type Invocation struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   map[string]string
	Body    string
}

// InvocationResult is the transport's answer to an Invocation.
type InvocationResult struct {
	Status  int
	Body    string
	Headers http.Header
}

// Invoker is the HTTP transport collaborator. A network failure or timeout
// is returned as a models.TransportError and is always retry-eligible.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (*InvocationResult, error)
}

// DocumentLoader loads and validates workflow documents from disk.
type DocumentLoader interface {
	// Load parses the document at path, validates it, and returns it along
	// with the execution environment: envOverrides with the document's
	// environment file merged on top.
	Load(path string, envOverrides map[string]string) (*models.Workflow, map[string]string, error)

	// SidecarInputs looks for the sidecar variables file associated with a
	// workflow path and returns its input values when present.
	SidecarInputs(path string) (map[string]string, bool, error)
}

// MockPayloadSource resolves a stage mock's payload or payloadFile into a
// concrete body at execution time.
type MockPayloadSource interface {
	Payload(docPath string, mock *models.Mock) (string, error)
}

// BaseURLResolver maps an API catalog entry and the active environment to
// the base URL an endpoint template is joined onto.
type BaseURLResolver interface {
	BaseURL(api, environment string) (string, error)
}

// WorkflowRunner executes a loaded workflow document against an execution
// context. It exists so stage handlers can invoke nested workflows without
// depending on the executor package.
type WorkflowRunner interface {
	Run(ctx context.Context, doc *models.Workflow, execCtx *models.ExecutionContext) (*models.WorkflowResult, error)
}

// Dependencies bundles the collaborators a handler factory may wire into its
// handler. Unused fields stay nil.
type Dependencies struct {
	Logger   *slog.Logger
	Invoker  Invoker
	BaseURLs BaseURLResolver
	Loader   DocumentLoader
	Mocks    MockPayloadSource
	Runner   WorkflowRunner
	Tracer   trace.Tracer
}
