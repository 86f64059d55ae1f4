package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"crop-claim-service/internal/models"
	"crop-claim-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

func (h *CropSessionHandler) OpenClaimFlow(c fiber.Ctx) error {
	view, err := h.sessionService.OpenClaimFlow(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(view))
}

func (h *CropSessionHandler) SubmitClaim(c fiber.Ctx) error {
	var req models.SubmitClaimRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	view, err := h.sessionService.SubmitClaim(c.Context(), c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(utils.CreateSuccessResponse(view))
}

func (h *CropSessionHandler) RetryClaim(c fiber.Ctx) error {
	view, err := h.sessionService.RetryClaim(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(utils.CreateSuccessResponse(view))
}

func (h *CropSessionHandler) CloseClaimFlow(c fiber.Ctx) error {
	snapshot, err := h.sessionService.CloseClaimFlow(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(snapshot))
}

func (h *CropSessionHandler) ListClaims(c fiber.Ctx) error {
	claims, err := h.sessionService.ListClaims(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]any{
		"claims": claims,
		"count":  len(claims),
	}))
}

func (h *CropSessionHandler) ClaimsMap(c fiber.Ctx) error {
	data, err := h.sessionService.ClaimsMap(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(json.RawMessage(data)))
}
