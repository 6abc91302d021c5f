package handler

import (
	"encoding/json"
	"net/http"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/mapper"
	"github.com/garagedesk/workshop-api/internal/service"
	"go.uber.org/zap"
)

// ExtractionHandler serves the document extraction merge endpoints
type ExtractionHandler struct {
	extractionService *service.ExtractionService
	logger            *zap.Logger
}

func NewExtractionHandler(extractionService *service.ExtractionService, logger *zap.Logger) *ExtractionHandler {
	return &ExtractionHandler{
		extractionService: extractionService,
		logger:            logger,
	}
}

// UpdateFromExtraction godoc
// @Summary Merge extracted data into an order
// @Description Overwrites the order's customer, vehicle and detail fields with extracted data. The whole payload is validated first; a rejected payload changes nothing.
// @Tags Extraction
// @Accept json
// @Produce json
// @Param request body domain.UpdateFromExtractionRequest true "Extracted data"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError "Field-level validation errors"
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/from-extraction [post]
func (h *ExtractionHandler) UpdateFromExtraction(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateFromExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	order, err := h.extractionService.MergeIntoOrder(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to merge extraction into order", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOrderDTO(order))
}

// CreateFromModal godoc
// @Summary Create an order from extracted or manual data
// @Description Creates a fresh order with full customer identity reconciliation. Unlike the quick-start flow this accepts the upload order type.
// @Tags Extraction
// @Accept json
// @Produce json
// @Param request body domain.CreateFromModalRequest true "Order data"
// @Success 201 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError "Field-level validation errors"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/from-modal [post]
func (h *ExtractionHandler) CreateFromModal(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFromModalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	order, err := h.extractionService.CreateFromModal(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to create order from modal", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/orders/"+order.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToOrderDTO(order))
}
