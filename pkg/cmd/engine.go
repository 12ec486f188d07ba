// Package cmd provides common initialization for the apichain binaries:
// registry assembly, collaborator wiring, and a file-level run entry point.
package cmd

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/apichain/apichain/pkg/catalog"
	"github.com/apichain/apichain/pkg/invoker"
	"github.com/apichain/apichain/pkg/loader"
	"github.com/apichain/apichain/pkg/mockpayload"
	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/protocol"
	"github.com/apichain/apichain/pkg/registry"
	"github.com/apichain/apichain/pkg/stages/endpoint"
	"github.com/apichain/apichain/pkg/stages/subworkflow"
	"github.com/apichain/apichain/pkg/workflow"
)

// Options configures engine assembly.
type Options struct {
	Logger *slog.Logger
	// Plugins is the ordered plugin identifier list; empty means the two
	// built-ins.
	Plugins []string
	// External maps additional plugin identifiers to host-supplied handler
	// factories. An external factory may not shadow a built-in identifier.
	External map[string]protocol.HandlerFactory
	// CatalogPath points at the API catalog file; optional for workflows
	// without endpoint stages.
	CatalogPath string
	// Timeout is the per-call HTTP timeout.
	Timeout time.Duration
	// Tracer enables per-workflow and per-stage spans when set.
	Tracer trace.Tracer
}

// Engine is an assembled workflow engine.
type Engine struct {
	Logger   *slog.Logger
	Registry *registry.Registry
	Executor *workflow.Executor
	Loader   *loader.Loader
}

// runnerProxy breaks the wiring cycle between the executor and the workflow
// stage handler: handlers receive the proxy, the executor is installed after
// the registry exists.
type runnerProxy struct {
	runner protocol.WorkflowRunner
}

func (p *runnerProxy) Run(ctx context.Context, doc *models.Workflow, execCtx *models.ExecutionContext) (*models.WorkflowResult, error) {
	return p.runner.Run(ctx, doc, execCtx)
}

// noCatalog rejects every lookup; used when no catalog file is configured.
type noCatalog struct{}

func (noCatalog) BaseURL(api, environment string) (string, error) {
	return "", models.NewConfigurationError("no API catalog configured, cannot resolve %q", api)
}

// NewEngine assembles the registry, executor and collaborators.
func NewEngine(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var baseURLs protocol.BaseURLResolver = noCatalog{}

	if opts.CatalogPath != "" {
		cat, err := catalog.LoadFile(opts.CatalogPath)
		if err != nil {
			return nil, err
		}

		baseURLs = cat
	}

	ldr := loader.New(logger)
	proxy := &runnerProxy{}

	deps := protocol.Dependencies{
		Logger:   logger,
		Invoker:  invoker.NewHTTP(opts.Timeout),
		BaseURLs: baseURLs,
		Loader:   ldr,
		Mocks:    mockpayload.New(),
		Runner:   proxy,
		Tracer:   opts.Tracer,
	}

	factories := nativeFactories()

	for id, factory := range opts.External {
		if _, taken := factories[id]; taken {
			return nil, models.NewConfigurationError("external plugin %q shadows a built-in", id)
		}

		factories[id] = factory
	}

	plugins := opts.Plugins
	if len(plugins) == 0 {
		plugins = []string{"endpoint", registry.RequiredPlugin}
	}

	reg, err := registry.New(logger, plugins, factories, deps)
	if err != nil {
		return nil, err
	}

	executor := workflow.NewExecutor(logger, reg, opts.Tracer)
	proxy.runner = executor

	return &Engine{
		Logger:   logger,
		Registry: reg,
		Executor: executor,
		Loader:   ldr,
	}, nil
}

// nativeFactories returns the built-in stage handler factories.
func nativeFactories() map[string]protocol.HandlerFactory {
	factories := make(map[string]protocol.HandlerFactory)

	for _, factory := range []protocol.HandlerFactory{
		endpoint.NewFactory(),
		subworkflow.NewFactory(),
	} {
		factories[factory.ID()] = factory
	}

	return factories
}

// RunRequest describes one root workflow invocation.
type RunRequest struct {
	Path        string
	Inputs      map[string]string
	Environment string
	Mocked      bool
	Env         map[string]string
}

// RunFile loads the document at the request's path and executes it.
func (e *Engine) RunFile(ctx context.Context, req RunRequest) (*models.WorkflowResult, error) {
	doc, env, err := e.Loader.Load(req.Path, req.Env)
	if err != nil {
		return nil, err
	}

	if err := doc.CheckInputs(req.Inputs); err != nil {
		return nil, err
	}

	execCtx := models.NewExecutionContext(doc.ID, req.Inputs)
	execCtx.Environment = req.Environment
	execCtx.Mocked = req.Mocked
	execCtx.Env = env
	execCtx.Logger = e.Logger

	return e.Executor.Run(ctx, doc, execCtx)
}

// ValidateFile loads the document at path and runs static validation only.
func (e *Engine) ValidateFile(path string) (*models.Workflow, error) {
	doc, _, err := e.Loader.Load(path, nil)
	if err != nil {
		return nil, err
	}

	if err := workflow.ValidateDocument(doc, e.Registry); err != nil {
		return nil, err
	}

	return doc, nil
}
