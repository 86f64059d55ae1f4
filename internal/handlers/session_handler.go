package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"crop-claim-service/internal/models"
	"crop-claim-service/internal/services"
	"crop-claim-service/internal/utils"

	"github.com/gofiber/fiber/v3"
)

const maxImageBytes = 10 << 20

type CropSessionHandler struct {
	sessionService *services.SessionService
}

func NewCropSessionHandler(sessionService *services.SessionService) *CropSessionHandler {
	return &CropSessionHandler{sessionService: sessionService}
}

func (h *CropSessionHandler) Register(app *fiber.App) {
	publicGr := app.Group("crop/public/api/v1")

	sessionGroup := publicGr.Group("/sessions")
	sessionGroup.Post("/", h.CreateSession)
	sessionGroup.Get("/:id", h.GetSession)
	sessionGroup.Delete("/:id", h.DeleteSession)
	sessionGroup.Put("/:id/tab", h.SwitchTab)
	sessionGroup.Put("/:id/location", h.ReportLocation)

	// image & analysis
	sessionGroup.Post("/:id/image", h.SelectImage)
	sessionGroup.Delete("/:id/image", h.ClearImage)
	sessionGroup.Post("/:id/analysis", h.StartAnalysis)
	sessionGroup.Get("/:id/analysis", h.GetAnalysis)

	// claims
	sessionGroup.Post("/:id/claim-flow", h.OpenClaimFlow)
	sessionGroup.Post("/:id/claim-flow/submit", h.SubmitClaim)
	sessionGroup.Post("/:id/claim-flow/retry", h.RetryClaim)
	sessionGroup.Delete("/:id/claim-flow", h.CloseClaimFlow)
	sessionGroup.Get("/:id/claims", h.ListClaims)
	sessionGroup.Get("/:id/claims/map", h.ClaimsMap)
}

// ============================================================================
// SESSION
// ============================================================================

func (h *CropSessionHandler) CreateSession(c fiber.Ctx) error {
	snapshot := h.sessionService.CreateSession(c.Context())
	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(snapshot))
}

func (h *CropSessionHandler) GetSession(c fiber.Ctx) error {
	snapshot, err := h.sessionService.GetSession(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(snapshot))
}

func (h *CropSessionHandler) DeleteSession(c fiber.Ctx) error {
	id := c.Params("id")
	if err := h.sessionService.DeleteSession(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(map[string]any{
		"session_id": id,
		"deleted":    true,
	}))
}

func (h *CropSessionHandler) SwitchTab(c fiber.Ctx) error {
	var req models.SwitchTabRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	snapshot, err := h.sessionService.SwitchTab(c.Context(), c.Params("id"), req.Tab)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(snapshot))
}

func (h *CropSessionHandler) ReportLocation(c fiber.Ctx) error {
	var req models.LocationUpdateRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body"))
	}

	report, err := h.sessionService.ReportLocation(c.Context(), c.Params("id"), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(report))
}

// ============================================================================
// IMAGE & ANALYSIS
// ============================================================================

// SelectImage accepts a multipart "image" file or a JSON body with base64 data.
func (h *CropSessionHandler) SelectImage(c fiber.Ctx) error {
	data, mimeType, err := readImage(c)
	if err != nil {
		slog.Warn("rejected image upload", "session_id", c.Params("id"), "error", err)
		return c.Status(http.StatusBadRequest).JSON(utils.CreateErrorResponse("INVALID_IMAGE", err.Error()))
	}

	snapshot, err := h.sessionService.SelectImage(c.Context(), c.Params("id"), data, mimeType)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(snapshot))
}

func readImage(c fiber.Ctx) ([]byte, string, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fileHeader, err := c.FormFile("image")
		if err != nil {
			return nil, "", fiber.NewError(http.StatusBadRequest, "image file is required")
		}
		if fileHeader.Size > maxImageBytes {
			return nil, "", fiber.NewError(http.StatusBadRequest, "image exceeds 10 MB")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return nil, "", err
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", err
		}
		// browsers often send application/octet-stream; sniff instead
		mimeType := fileHeader.Header.Get(fiber.HeaderContentType)
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = ""
		}
		return data, mimeType, nil
	}

	var req models.SelectImageRequest
	if err := c.Bind().Body(&req); err != nil {
		return nil, "", fiber.NewError(http.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		return nil, "", fiber.NewError(http.StatusBadRequest, "image_base64 is required")
	}
	data, mimeType, err := utils.DecodeImageBase64(req.ImageBase64)
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxImageBytes {
		return nil, "", fiber.NewError(http.StatusBadRequest, "image exceeds 10 MB")
	}
	if req.MIMEType != "" {
		mimeType = req.MIMEType
	}
	return data, mimeType, nil
}

func (h *CropSessionHandler) ClearImage(c fiber.Ctx) error {
	snapshot, err := h.sessionService.ClearImage(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(snapshot))
}

func (h *CropSessionHandler) StartAnalysis(c fiber.Ctx) error {
	state, err := h.sessionService.StartAnalysis(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(utils.CreateSuccessResponse(state))
}

type analysisResponse struct {
	models.AnalysisState
	View *models.AnalysisView `json:"view,omitempty"`
}

func (h *CropSessionHandler) GetAnalysis(c fiber.Ctx) error {
	state, err := h.sessionService.AnalysisState(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	resp := analysisResponse{AnalysisState: state}
	if state.Result != nil {
		view := models.NewAnalysisView(*state.Result)
		resp.View = &view
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(resp))
}
