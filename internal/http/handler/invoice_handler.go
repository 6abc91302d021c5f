package handler

import (
	"encoding/json"
	"net/http"

	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/mapper"
	"github.com/garagedesk/workshop-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceHandler serves manual invoicing endpoints
type InvoiceHandler struct {
	invoiceService *service.InvoiceService
	logger         *zap.Logger
}

func NewInvoiceHandler(invoiceService *service.InvoiceService, logger *zap.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		logger:         logger,
	}
}

// Create godoc
// @Summary Create a manual invoice for an order
// @Description Creates an invoice from manually entered line items. Totals are recomputed server-side. Creating an invoice completes the order when it is still open.
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Param request body domain.CreateInvoiceRequest true "Invoice data"
// @Success 201 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/invoices [post]
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req domain.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	createdBy := ""
	if userCtx, ok := auth.FromContext(r.Context()); ok {
		createdBy = userCtx.DisplayName
	}

	invoice, err := h.invoiceService.CreateManual(r.Context(), orderID, &req, createdBy)
	if err != nil {
		h.logger.Error("failed to create invoice", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/invoices/"+invoice.ID.String())
	respondJSON(w, http.StatusCreated, mapper.ToInvoiceDTO(invoice))
}

// Get godoc
// @Summary Get invoice by ID
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID" format(uuid)
// @Success 200 {object} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid invoice ID format")
		return
	}

	invoice, err := h.invoiceService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToInvoiceDTO(invoice))
}

// ListByOrder godoc
// @Summary List invoices for an order
// @Tags Invoices
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Success 200 {array} domain.InvoiceDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/invoices [get]
func (h *InvoiceHandler) ListByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	invoices, err := h.invoiceService.ListByOrder(r.Context(), orderID)
	if err != nil {
		h.logger.Error("failed to list invoices", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	dtos := make([]domain.InvoiceDTO, 0, len(invoices))
	for i := range invoices {
		dtos = append(dtos, *mapper.ToInvoiceDTO(&invoices[i]))
	}
	respondJSON(w, http.StatusOK, dtos)
}
