package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"crop-claim-service/internal/services"
	"crop-claim-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

// respondError maps a service error onto the API error envelope.
func respondError(c fiber.Ctx, err error) error {
	var formErr *services.FormValidationError
	if errors.As(err, &formErr) {
		return c.Status(http.StatusUnprocessableEntity).JSON(
			utils.CreateValidationErrorResponse("Please correct the highlighted fields", formErr.Fields))
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return c.Status(http.StatusNotFound).JSON(utils.CreateErrorResponse("SESSION_NOT_FOUND", err.Error()))
	case errors.Is(err, services.ErrInvalidTab), errors.Is(err, services.ErrInvalidLocation):
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", err.Error()))
	case errors.Is(err, services.ErrNotEligible):
		return c.Status(http.StatusConflict).JSON(utils.CreateErrorResponse("NOT_ELIGIBLE", err.Error()))
	case errors.Is(err, services.ErrAnalysisBusy):
		return c.Status(http.StatusServiceUnavailable).JSON(utils.CreateErrorResponse("ANALYSIS_BUSY", services.ErrAnalysisBusy.Error()))
	case errors.Is(err, services.ErrNoImageSelected),
		errors.Is(err, services.ErrAnalysisInFlight),
		errors.Is(err, services.ErrNoAnalysisResult),
		errors.Is(err, services.ErrClaimFlowClosed),
		errors.Is(err, services.ErrInvalidClaimStep):
		return c.Status(http.StatusConflict).JSON(utils.CreateErrorResponse("INVALID_STATE", err.Error()))
	default:
		slog.Error("request failed", "path", c.Path(), "error", err)
		return c.Status(http.StatusInternalServerError).JSON(utils.CreateErrorResponse("INTERNAL_SERVER_ERROR", "Something went wrong, please try again"))
	}
}
