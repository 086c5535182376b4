package web

import (
	"errors"

	"github.com/dukex/taskflow/pkg/actions"
	"github.com/dukex/taskflow/pkg/protocol"
	"github.com/dukex/taskflow/pkg/schema"
	"github.com/dukex/taskflow/pkg/services"
	"github.com/dukex/taskflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, kind, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps engine and store errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err), errors.Is(err, schema.ErrInvalidDocument):
		return badRequest(c, err.Error())

	case errors.Is(err, workflow.ErrNotScheduled):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrWorkflowNotFound):
		return notFound(c, "workflow_not_found", "workflow not found")

	case errors.Is(err, services.ErrTemplateNotFound):
		return notFound(c, "template_not_found", "template not found")

	case errors.Is(err, protocol.ErrBoardNotFound):
		return notFound(c, "board_not_found", err.Error())

	case errors.Is(err, actions.ErrTaskNotFound):
		return notFound(c, "task_not_found", err.Error())

	case services.IsNotFoundError(err):
		return notFound(c, "not_found", err.Error())

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		return internalError(c, err)
	}
}
