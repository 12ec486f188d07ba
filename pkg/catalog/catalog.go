// Package catalog resolves API references to environment-specific base URLs.
package catalog

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/apichain/apichain/pkg/models"
)

// Entry describes one API in the catalog: a base URL per environment plus
// an optional default.
type Entry struct {
	Description  string            `yaml:"description"`
	Default      string            `yaml:"default"`
	Environments map[string]string `yaml:"environments"`
}

// Catalog implements the base-URL-resolver collaborator over a catalog file.
type Catalog struct {
	Version string           `yaml:"version"`
	APIs    map[string]Entry `yaml:"apis"`
}

// LoadFile reads a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewConfigurationError("cannot read API catalog %q: %v", path, err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, models.NewConfigurationError("cannot parse API catalog %q: %v", path, err)
	}

	return &cat, nil
}

// BaseURL returns the base URL for an API in the given environment, falling
// back to the entry's default when the environment has no dedicated URL.
func (c *Catalog) BaseURL(api, environment string) (string, error) {
	entry, ok := c.APIs[api]
	if !ok {
		return "", models.NewConfigurationError("API %q is not in the catalog", api)
	}

	if url, ok := entry.Environments[environment]; ok {
		return url, nil
	}

	if entry.Default != "" {
		return entry.Default, nil
	}

	return "", models.NewConfigurationError("API %q has no base URL for environment %q", api, environment)
}
