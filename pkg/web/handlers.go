// Package web provides the HTTP surface for running and validating
// workflows.
package web

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/apichain/apichain/pkg/cmd"
)

// RunWorkflowRequest is the POST /workflows/run body.
type RunWorkflowRequest struct {
	Path        string            `json:"path"        validate:"required"`
	Inputs      map[string]string `json:"inputs,omitempty"`
	Environment string            `json:"environment,omitempty"`
	Mocked      bool              `json:"mocked,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
}

// ValidateWorkflowRequest is the POST /workflows/validate body.
type ValidateWorkflowRequest struct {
	Path string `json:"path" validate:"required"`
}

// APIHandlers serves the workflow endpoints over an assembled engine.
type APIHandlers struct {
	engine    *cmd.Engine
	validator *validator.Validate
}

// NewAPIHandlers builds the handler set.
func NewAPIHandlers(engine *cmd.Engine, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{engine: engine, validator: validate}
}

// RunWorkflow executes an on-disk workflow synchronously and returns its
// terminal result. A failed run is still a successful request; defects in
// the document or request are problems.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	var req RunWorkflowRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.RunFile(c.Context(), cmd.RunRequest{
		Path:        req.Path,
		Inputs:      req.Inputs,
		Environment: req.Environment,
		Mocked:      req.Mocked,
		Env:         req.Env,
	})
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(result)
}

// ValidateWorkflow statically validates an on-disk workflow document.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	var req ValidateWorkflowRequest

	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	doc, err := h.engine.ValidateFile(req.Path)
	if err != nil {
		return handleEngineError(c, err)
	}

	return c.JSON(fiber.Map{
		"valid":  true,
		"name":   doc.Name,
		"stages": len(doc.Stages),
	})
}

// HealthCheck reports liveness.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
