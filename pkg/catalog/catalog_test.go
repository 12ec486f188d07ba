package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
version: "1"
apis:
  users-api:
    description: User service
    default: https://users.example.com
    environments:
      staging: https://users.staging.example.com
  orders-api:
    environments:
      prod: https://orders.example.com
`

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))

	cat, err := LoadFile(path)
	require.NoError(t, err)

	return cat
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "ghost.yaml"))
	assert.Error(t, err)
}

func TestBaseURL_EnvironmentSpecific(t *testing.T) {
	cat := loadTestCatalog(t)

	url, err := cat.BaseURL("users-api", "staging")
	require.NoError(t, err)
	assert.Equal(t, "https://users.staging.example.com", url)
}

func TestBaseURL_FallsBackToDefault(t *testing.T) {
	cat := loadTestCatalog(t)

	url, err := cat.BaseURL("users-api", "prod")
	require.NoError(t, err)
	assert.Equal(t, "https://users.example.com", url)

	url, err = cat.BaseURL("users-api", "")
	require.NoError(t, err)
	assert.Equal(t, "https://users.example.com", url)
}

func TestBaseURL_NoDefaultNoEnvironment(t *testing.T) {
	cat := loadTestCatalog(t)

	_, err := cat.BaseURL("orders-api", "staging")
	assert.Error(t, err)
}

func TestBaseURL_UnknownAPI(t *testing.T) {
	cat := loadTestCatalog(t)

	_, err := cat.BaseURL("ghost-api", "prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the catalog")
}
