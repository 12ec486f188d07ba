package endpoint

import "github.com/apichain/apichain/pkg/protocol"

// Factory registers the endpoint handler under the "endpoint" plugin id.
type Factory struct{}

// NewFactory creates the endpoint handler factory.
func NewFactory() protocol.HandlerFactory {
	return &Factory{}
}

// ID returns the plugin identifier.
func (f *Factory) ID() string {
	return "endpoint"
}

// Create builds the handler.
func (f *Factory) Create(deps protocol.Dependencies) (protocol.StageHandler, error) {
	return NewHandler(deps), nil
}
