package loader

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
name: user-sync
references:
  apis:
    users: users-api
stages:
  - name: getUser
    kind: endpoint
    apiRef: users
    endpoint: /users/{{input.userId}}
    expectedStatus: 200
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "flow.yaml", validYAML)

	doc, env, err := New(slog.Default()).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "user-sync", doc.Name)
	require.Len(t, doc.Stages, 1)
	assert.Equal(t, "getUser", doc.Stages[0].Name)
	assert.Equal(t, "users-api", doc.References.APIs["users"])
	assert.Empty(t, env)

	// Path is resolved to the absolute document location.
	assert.True(t, filepath.IsAbs(doc.Path))
}

func TestLoad_ValidJSON(t *testing.T) {
	content := `{
  "name": "user-sync",
  "stages": [
    {"name": "getUser", "kind": "endpoint", "apiRef": "users", "endpoint": "/users/1", "expectedStatus": 200}
  ]
}`
	path := writeFile(t, t.TempDir(), "flow.json", content)

	doc, _, err := New(slog.Default()).Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "user-sync", doc.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := New(slog.Default()).Load(filepath.Join(t.TempDir(), "ghost.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_MissingName(t *testing.T) {
	content := `
stages:
  - name: getUser
    kind: endpoint
`
	path := writeFile(t, t.TempDir(), "flow.yaml", content)

	_, _, err := New(slog.Default()).Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestLoad_NoStages(t *testing.T) {
	path := writeFile(t, t.TempDir(), "flow.yaml", "name: empty-flow\n")

	_, _, err := New(slog.Default()).Load(path, nil)
	assert.Error(t, err)
}

func TestLoad_StageMissingKind(t *testing.T) {
	content := `
name: user-sync
stages:
  - name: getUser
`
	path := writeFile(t, t.TempDir(), "flow.yaml", content)

	_, _, err := New(slog.Default()).Load(path, nil)
	assert.Error(t, err)
}

func TestLoad_EnvironmentFileMergesOverOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "flow.env", "# comment\nTOKEN=from-file\nEXTRA=x\n")

	content := `
name: user-sync
references:
  environmentFile: flow.env
stages:
  - name: getUser
    kind: endpoint
    apiRef: users
    endpoint: /users/1
    expectedStatus: 200
`
	path := writeFile(t, dir, "flow.yaml", content)

	_, env, err := New(slog.Default()).Load(path, map[string]string{
		"TOKEN": "from-parent",
		"KEEP":  "parent-only",
	})
	require.NoError(t, err)

	// The document's own environment file wins over inherited values.
	assert.Equal(t, "from-file", env["TOKEN"])
	assert.Equal(t, "x", env["EXTRA"])
	assert.Equal(t, "parent-only", env["KEEP"])
}

func TestLoad_MalformedEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "flow.env", "NOT A PAIR\n")

	content := `
name: user-sync
references:
  environmentFile: flow.env
stages:
  - name: getUser
    kind: endpoint
    apiRef: users
    endpoint: /users/1
    expectedStatus: 200
`
	path := writeFile(t, dir, "flow.yaml", content)

	_, _, err := New(slog.Default()).Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestSidecarInputs_Present(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "flow.yaml", validYAML)
	writeFile(t, dir, "flow.vars.yaml", "userId: \"42\"\nregion: eu\n")

	inputs, found, err := New(slog.Default()).SidecarInputs(path)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]string{"userId": "42", "region": "eu"}, inputs)
}

func TestSidecarInputs_Absent(t *testing.T) {
	path := writeFile(t, t.TempDir(), "flow.yaml", validYAML)

	inputs, found, err := New(slog.Default()).SidecarInputs(path)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, inputs)
}
