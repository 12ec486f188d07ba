package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/apichain/apichain/pkg/models"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError translates engine errors into problem responses:
// configuration defects are the caller's fault, everything else is ours.
func handleEngineError(c fiber.Ctx, err error) error {
	if models.IsConfigurationError(err) {
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("configuration_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)
	}

	return internalError(c, err)
}
