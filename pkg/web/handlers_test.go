package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apichain/apichain/pkg/cmd"
	"github.com/apichain/apichain/pkg/models"
)

func setupTestApp(t *testing.T) *fiber.App {
	t.Helper()

	engine, err := cmd.NewEngine(cmd.Options{})
	require.NoError(t, err)

	handlers := NewAPIHandlers(engine, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Post("/workflows/run", handlers.RunWorkflow)
	app.Post("/workflows/validate", handlers.ValidateWorkflow)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

const mockedFlow = `
name: fetch-user
output: true
references:
  apis:
    users: users-api
stages:
  - name: getUser
    kind: endpoint
    apiRef: users
    endpoint: /users/1
    expectedStatus: 200
    mock:
      status: 200
      payload: '{"name":"Mocked"}'
    output:
      name: "{{response.body.name}}"
endStage:
  output:
    userName: "{{stage.getUser.output.name}}"
`

func postJSON(t *testing.T, app *fiber.App, path, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = resp.Body.Close()
	})

	return resp
}

func TestRunWorkflow_Success(t *testing.T) {
	app := setupTestApp(t)
	path := writeWorkflow(t, mockedFlow)

	resp := postJSON(t, app, "/workflows/run", `{"path":"`+path+`","mocked":true}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.WorkflowResult

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, models.ResultCompleted, result.Status)
	assert.Equal(t, "Mocked", result.Outputs["userName"])
}

func TestRunWorkflow_MissingPath(t *testing.T) {
	app := setupTestApp(t)

	resp := postJSON(t, app, "/workflows/run", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunWorkflow_InvalidBody(t *testing.T) {
	app := setupTestApp(t)

	resp := postJSON(t, app, "/workflows/run", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunWorkflow_ConfigurationErrorIsUnprocessable(t *testing.T) {
	app := setupTestApp(t)

	resp := postJSON(t, app, "/workflows/run", `{"path":"/does/not/exist.yaml"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var problem map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&problem))
	assert.Equal(t, "configuration_error", problem["type"])
}

func TestValidateWorkflow_Success(t *testing.T) {
	app := setupTestApp(t)
	path := writeWorkflow(t, mockedFlow)

	resp := postJSON(t, app, "/workflows/validate", `{"path":"`+path+`"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "fetch-user", body["name"])
	assert.Equal(t, float64(1), body["stages"])
}

func TestValidateWorkflow_InvalidDocument(t *testing.T) {
	app := setupTestApp(t)
	path := writeWorkflow(t, "name: broken-flow\nstages:\n  - name: x\n    kind: endpoint\n")

	resp := postJSON(t, app, "/workflows/validate", `{"path":"`+path+`"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
