// Package server provides HTTP handlers and server setup for the AI gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"aigateway/internal/auditlog"
	"aigateway/internal/core"
	"aigateway/internal/gateway"
)

// Gateway is the subset of *gateway.Gateway the handlers call.
type Gateway interface {
	Chat(ctx context.Context, req core.ChatRequest) (*core.ChatResponse, error)
	AnalyzeImage(ctx context.Context, req core.ImageRequest) (*core.ChatResponse, error)
	EstimateAge(ctx context.Context, req core.ImageRequest) (*core.ChatResponse, error)
}

// ChatRequestBody is the JSON body of POST /ai/chat.
type ChatRequestBody struct {
	Message   string `json:"message" validate:"required" example:"Hello, how are you?"`
	Provider  string `json:"provider,omitempty" example:"local" enums:"local,cloud"`
	ModelName string `json:"modelName,omitempty" example:"llama3"`
}

// Multipart field names.
const (
	fieldImage        = "image"
	fieldProvider     = "provider"
	fieldModelName    = "modelName"
	fieldCustomPrompt = "customPrompt"
)

const msgNoImage = "No image file provided"

// Handler holds the HTTP handlers
type Handler struct {
	gateway  Gateway
	validate *validator.Validate
}

// NewHandler creates a new handler over gw.
func NewHandler(gw Gateway) *Handler {
	return &Handler{
		gateway:  gw,
		validate: validator.New(),
	}
}

// Chat handles POST /ai/chat
//
// @Summary      Chat with a model
// @Tags         ai
// @Accept       json
// @Produce      json
// @Param        request  body      ChatRequestBody  true  "Message and optional backend selection"
// @Success      200      {object}  core.ChatResponse
// @Failure      400      {object}  core.ErrorResponse
// @Failure      401      {object}  core.ErrorResponse
// @Failure      502      {object}  core.ErrorResponse
// @Router       /ai/chat [post]
func (h *Handler) Chat(c echo.Context) error {
	var body ChatRequestBody
	if err := c.Bind(&body); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}
	if err := h.validate.Struct(body); err != nil {
		return handleError(c, core.NewMissingInputError("message is required"))
	}

	provider, err := core.ParseProvider(body.Provider)
	if err != nil {
		return handleError(c, err)
	}

	resp, err := h.gateway.Chat(c.Request().Context(), core.ChatRequest{
		Message:   body.Message,
		Provider:  provider,
		ModelName: body.ModelName,
	})
	return h.respond(c, gateway.OperationChat, gateway.KindChat, provider, body.ModelName, resp, err)
}

// AnalyzeImage handles POST /ai/analyze-image
//
// @Summary      Describe an uploaded image
// @Tags         ai
// @Accept       mpfd
// @Produce      json
// @Param        image         formData  file    true   "Image file"
// @Param        provider      formData  string  false  "local or cloud (default local)"
// @Param        modelName     formData  string  false  "Model override"
// @Param        customPrompt  formData  string  false  "Instruction replacing the default description prompt"
// @Success      200           {object}  core.ChatResponse
// @Failure      400           {object}  core.ErrorResponse
// @Failure      502           {object}  core.ErrorResponse
// @Router       /ai/analyze-image [post]
func (h *Handler) AnalyzeImage(c echo.Context) error {
	req, err := readImageRequest(c)
	if err != nil {
		return handleError(c, err)
	}
	req.CustomPrompt = c.FormValue(fieldCustomPrompt)

	resp, err := h.gateway.AnalyzeImage(c.Request().Context(), req)
	return h.respond(c, gateway.OperationAnalyzeImage, gateway.KindVision, req.Provider, req.ModelName, resp, err)
}

// EstimateAge handles POST /ai/estimate-age
//
// @Summary      Estimate the age of the person in an image
// @Tags         ai
// @Accept       mpfd
// @Produce      json
// @Param        image      formData  file    true   "Image file"
// @Param        provider   formData  string  false  "local or cloud (default local)"
// @Param        modelName  formData  string  false  "Model override"
// @Success      200        {object}  core.ChatResponse
// @Failure      400        {object}  core.ErrorResponse
// @Failure      502        {object}  core.ErrorResponse
// @Router       /ai/estimate-age [post]
func (h *Handler) EstimateAge(c echo.Context) error {
	req, err := readImageRequest(c)
	if err != nil {
		return handleError(c, err)
	}

	resp, err := h.gateway.EstimateAge(c.Request().Context(), req)
	return h.respond(c, gateway.OperationEstimateAge, gateway.KindVision, req.Provider, req.ModelName, resp, err)
}

// Health handles GET /health
//
// @Summary      Liveness probe
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// respond records the call on the audit entry and writes the reply. Failed
// calls are attributed to the model the request resolved to.
func (h *Handler) respond(c echo.Context, operation string, kind gateway.Kind, provider core.Provider, model string, resp *core.ChatResponse, err error) error {
	if err != nil {
		if model == "" {
			model, _ = gateway.DefaultModel(provider, kind)
		}
		auditlog.EnrichEntry(c, operation, string(provider), model)
		return handleError(c, err)
	}
	auditlog.EnrichEntry(c, operation, string(resp.Provider), resp.Model)
	return c.JSON(http.StatusOK, resp)
}

// readImageRequest pulls the upload and the backend selection out of a
// multipart form. Any failure to find the file is reported as missing input.
func readImageRequest(c echo.Context) (core.ImageRequest, error) {
	provider, err := core.ParseProvider(c.FormValue(fieldProvider))
	if err != nil {
		return core.ImageRequest{}, err
	}

	fh, err := c.FormFile(fieldImage)
	if err != nil {
		return core.ImageRequest{}, core.NewMissingInputError(msgNoImage)
	}
	f, err := fh.Open()
	if err != nil {
		return core.ImageRequest{}, core.NewInvalidRequestError("failed to open uploaded image", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return core.ImageRequest{}, core.NewInvalidRequestError("failed to read uploaded image", err)
	}
	if len(data) == 0 {
		return core.ImageRequest{}, core.NewMissingInputError(msgNoImage)
	}

	return core.ImageRequest{
		Image:     data,
		MIMEType:  imageMIMEType(fh.Header.Get(echo.HeaderContentType), data),
		Provider:  provider,
		ModelName: c.FormValue(fieldModelName),
	}, nil
}

// imageMIMEType trusts the part's declared type unless it is missing or
// generic, in which case the content is sniffed.
func imageMIMEType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != echo.MIMEOctetStream {
		return declared
	}
	detected, _, _ := strings.Cut(mimetype.Detect(data).String(), ";")
	return detected
}

// handleError converts gateway errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		auditlog.EnrichEntryWithError(c, string(gatewayErr.Type), gatewayErr.Message)
		if gatewayErr.HTTPStatusCode() >= http.StatusInternalServerError {
			slog.Warn("backend call failed",
				"request_id", core.GetRequestID(c.Request().Context()),
				"error", gatewayErr.Error(),
			)
		}
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	slog.Error("unexpected error", "error", err, "request_id", core.GetRequestID(c.Request().Context()))
	auditlog.EnrichEntryWithError(c, "internal_error", fmt.Sprint(err))
	return c.JSON(http.StatusInternalServerError, core.ErrorResponse{Error: core.ErrorBody{
		Type:    "internal_error",
		Message: "an unexpected error occurred",
	}})
}
