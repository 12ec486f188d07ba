package subworkflow

import "github.com/apichain/apichain/pkg/protocol"

// Factory registers the workflow handler under the "workflow" plugin id,
// the one plugin every configuration must carry.
type Factory struct{}

// NewFactory creates the workflow handler factory.
func NewFactory() protocol.HandlerFactory {
	return &Factory{}
}

// ID returns the plugin identifier.
func (f *Factory) ID() string {
	return "workflow"
}

// Create builds the handler.
func (f *Factory) Create(deps protocol.Dependencies) (protocol.StageHandler, error) {
	return NewHandler(deps), nil
}
