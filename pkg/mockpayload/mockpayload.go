// Package mockpayload resolves stage mock definitions into concrete bodies.
package mockpayload

import (
	"os"
	"path/filepath"

	"github.com/apichain/apichain/pkg/models"
)

// FileSource implements the mock-payload collaborator: inline payloads are
// returned as-is, payloadFile paths are read relative to the workflow
// document that declares them.
type FileSource struct{}

// New builds a FileSource.
func New() *FileSource {
	return &FileSource{}
}

// Payload resolves the mock's body. Payload and payloadFile are mutually
// exclusive; validation enforces that before execution.
func (s *FileSource) Payload(docPath string, mock *models.Mock) (string, error) {
	if mock.PayloadFile == "" {
		return mock.Payload, nil
	}

	path := mock.PayloadFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(docPath), path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", models.NewConfigurationError("cannot read mock payload %q: %v", path, err)
	}

	return string(data), nil
}
