// Package registry maps stage kinds to their handlers. Handlers come from an
// init-time factory table keyed by plugin identifier; there is no runtime
// plugin discovery.
package registry

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/apichain/apichain/pkg/models"
	"github.com/apichain/apichain/pkg/protocol"
)

// RequiredPlugin must appear in every plugin configuration: nested workflow
// execution is not optional.
const RequiredPlugin = "workflow"

// Registry resolves a stage's kind to its handler.
type Registry struct {
	logger   *slog.Logger
	handlers map[string]protocol.StageHandler
}

// New assembles a registry from the configured, ordered plugin identifier
// list. Each identifier is resolved against the factory table (built-ins
// plus host-supplied external factories) and instantiated with the given
// collaborators. The whole configuration is rejected, with no registry
// produced, when the list is empty, an identifier is repeated, an
// identifier cannot be located, a factory fails, two handlers claim the same
// kind, or the required workflow built-in is missing.
func New(logger *slog.Logger, plugins []string, factories map[string]protocol.HandlerFactory, deps protocol.Dependencies) (*Registry, error) {
	if len(plugins) == 0 {
		return nil, models.NewConfigurationError("no stage plugins configured")
	}

	seen := make(map[string]bool, len(plugins))
	handlers := make(map[string]protocol.StageHandler, len(plugins))
	claimedBy := make(map[string]string, len(plugins))

	for _, id := range plugins {
		if seen[id] {
			return nil, models.NewConfigurationError("stage plugin %q is registered twice", id)
		}

		seen[id] = true

		factory, ok := factories[id]
		if !ok {
			return nil, models.NewConfigurationError("stage plugin %q cannot be located", id)
		}

		handler, err := factory.Create(deps)
		if err != nil {
			return nil, models.NewConfigurationError("stage plugin %q cannot be instantiated: %v", id, err)
		}

		kind := strings.ToLower(handler.Kind())
		if owner, taken := claimedBy[kind]; taken {
			return nil, models.NewConfigurationError("stage kind %q is claimed by both %q and %q", kind, owner, id)
		}

		claimedBy[kind] = id
		handlers[kind] = handler

		logger.Debug("registered stage plugin", "plugin", id, "kind", kind)
	}

	if !seen[RequiredPlugin] {
		return nil, models.NewConfigurationError("required stage plugin %q is not configured", RequiredPlugin)
	}

	return &Registry{logger: logger, handlers: handlers}, nil
}

// HandlerFor returns the handler claiming the stage's kind.
func (r *Registry) HandlerFor(kind string) (protocol.StageHandler, error) {
	handler, ok := r.handlers[strings.ToLower(kind)]
	if !ok {
		return nil, models.NewConfigurationError("no stage plugin claims kind %q", kind)
	}

	return handler, nil
}

// Kinds returns the registered stage kinds, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)

	return kinds
}
