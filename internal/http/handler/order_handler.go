package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/mapper"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/garagedesk/workshop-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderHandler serves the order lifecycle endpoints
type OrderHandler struct {
	orderService    *service.OrderService
	identityService *service.IdentityService
	invoiceService  *service.InvoiceService
	reportService   *service.ReportService
	logger          *zap.Logger
}

func NewOrderHandler(
	orderService *service.OrderService,
	identityService *service.IdentityService,
	invoiceService *service.InvoiceService,
	reportService *service.ReportService,
	logger *zap.Logger,
) *OrderHandler {
	return &OrderHandler{
		orderService:    orderService,
		identityService: identityService,
		invoiceService:  invoiceService,
		reportService:   reportService,
		logger:          logger,
	}
}

// Start godoc
// @Summary Start an order from a plate number
// @Description Start a new order for a vehicle. When the plate is already known and customer reuse is not confirmed, the response asks for confirmation instead of creating anything. Starting twice for the same vehicle returns the existing open order.
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body domain.StartOrderRequest true "Start order data"
// @Success 200 {object} domain.StartOrderResponse
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/start [post]
func (h *OrderHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req domain.StartOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	result, err := h.orderService.Start(r.Context(), &req)
	if err != nil {
		h.logger.Error("failed to start order", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	if result.RequiresConfirmation {
		respondJSON(w, http.StatusOK, domain.StartOrderResponse{
			Success:              false,
			RequiresConfirmation: true,
			ExistingCustomer:     mapper.ToCustomerDTO(result.ExistingCustomer),
			ExistingVehicle:      mapper.ToVehicleDTO(result.ExistingVehicle),
		})
		return
	}

	order := result.Order
	orderID := order.ID
	respondJSON(w, http.StatusOK, domain.StartOrderResponse{
		Success:     true,
		OrderID:     &orderID,
		OrderNumber: order.OrderNumber,
		StartedAt:   mapper.ToOrderDTO(order).StartedAt,
	})
}

// CheckPlate godoc
// @Summary Check whether a plate is known
// @Description Case-insensitive plate lookup scoped to the caller's branch
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body domain.CheckPlateRequest true "Plate to check"
// @Success 200 {object} domain.CheckPlateResponse
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/check-plate [post]
func (h *OrderHandler) CheckPlate(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckPlateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	branchID := auth.GetEffectiveBranchFilter(r.Context())
	if branchID == nil {
		respondWithError(w, http.StatusForbidden, "A branch scope is required to check plates")
		return
	}

	result, err := h.identityService.CheckPlate(r.Context(), *branchID, req.PlateNumber)
	if err != nil {
		h.logger.Error("failed to check plate", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, domain.CheckPlateResponse{
		Found:    result.Found,
		Customer: mapper.ToCustomerDTO(result.Customer),
		Vehicle:  mapper.ToVehicleDTO(result.Vehicle),
	})
}

// List godoc
// @Summary List orders
// @Description Paginated order list with optional status, type and search filters
// @Tags Orders
// @Accept json
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param status query string false "Filter by status" Enums(created, completed, cancelled)
// @Param orderType query string false "Filter by type" Enums(service, sales, inquiry, upload)
// @Param search query string false "Search by order number, plate or customer"
// @Param sortBy query string false "Sort field" Enums(started_at, order_number, priority, created_at)
// @Param sortOrder query string false "Sort direction" Enums(asc, desc)
// @Success 200 {object} domain.OrderListResponse
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders [get]
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize < 1 {
		pageSize = 20
	}

	filter := repository.OrderListFilter{
		Status:    domain.OrderStatus(r.URL.Query().Get("status")),
		OrderType: domain.OrderType(r.URL.Query().Get("orderType")),
		Search:    r.URL.Query().Get("search"),
		Page:      page,
		PageSize:  pageSize,
		Sort:      repository.DefaultSortConfig(),
	}
	if s := r.URL.Query().Get("sortBy"); s != "" {
		filter.Sort = repository.SortConfig{
			Field: s,
			Order: repository.ParseSortOrder(r.URL.Query().Get("sortOrder")),
		}
	}

	orders, total, err := h.orderService.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list orders", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, domain.OrderListResponse{
		Orders: mapper.ToOrderDTOs(orders),
		Total:  total,
		Page:   page,
		Limit:  pageSize,
	})
}

// KPIs godoc
// @Summary Started-orders KPIs
// @Description Total started, started today and vehicles seen more than once today for the caller's branch
// @Tags Orders
// @Produce json
// @Success 200 {object} domain.OrderKPIsResponse
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/kpis [get]
func (h *OrderHandler) KPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := h.reportService.GetOrderKPIs(r.Context())
	if err != nil {
		h.logger.Error("failed to compute order KPIs", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, domain.OrderKPIsResponse{
		TotalStarted:          kpis.TotalStarted,
		TodayStarted:          kpis.TodayStarted,
		RepeatedVehiclesToday: kpis.RepeatedVehiclesToday,
	})
}

// Get godoc
// @Summary Get order detail
// @Description Order with customer, vehicle, selections, documents and invoices
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Success 200 {object} domain.OrderDetailDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.orderService.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	invoices, err := h.invoiceService.ListByOrder(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list order invoices", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOrderDetailDTO(order, invoices))
}

// UpdateCustomer godoc
// @Summary Update the customer on an order
// @Description Overwrites the customer identity fields on the order's customer record
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Param request body domain.UpdateCustomerRequest true "Customer data"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/customer [put]
func (h *OrderHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req domain.UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	order, err := h.orderService.UpdateCustomer(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to update order customer", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOrderDTO(order))
}

// UpdateVehicle godoc
// @Summary Update the vehicle on an order
// @Description Updates the plate and vehicle details; creates the vehicle when the order has none
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Param request body domain.UpdateVehicleRequest true "Vehicle data"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/vehicle [put]
func (h *OrderHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req domain.UpdateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	order, err := h.orderService.UpdateVehicle(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to update order vehicle", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOrderDTO(order))
}

// UpdateDetails godoc
// @Summary Update order details
// @Description Partial update of description, priority, estimate, selections and sold item. Omitted fields are untouched; a present selections array replaces the whole set.
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Param request body domain.UpdateOrderDetailsRequest true "Order details"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/details [patch]
func (h *OrderHandler) UpdateDetails(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req domain.UpdateOrderDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	order, err := h.orderService.UpdateDetails(r.Context(), id, &req)
	if err != nil {
		h.logger.Error("failed to update order details", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOrderDTO(order))
}

// Complete godoc
// @Summary Complete an order
// @Description Marks the order completed. Completing an already completed order is a no-op success; cancelled orders are rejected.
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError "Order is cancelled"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/complete [post]
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.orderService.Complete(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to complete order", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOrderDTO(order))
}

// RecordOverrun godoc
// @Summary Record an overrun reason
// @Description Stores why the order ran over its estimate. The order status is never changed by this call.
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID" format(uuid)
// @Param request body domain.OverrunReasonRequest true "Overrun reason"
// @Success 200 {object} domain.OrderDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /orders/{id}/overrun [post]
func (h *OrderHandler) RecordOverrun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req domain.OverrunReasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	reportedBy := ""
	if userCtx, ok := auth.FromContext(r.Context()); ok {
		reportedBy = userCtx.DisplayName
	}

	order, err := h.orderService.RecordOverrun(r.Context(), id, req.Reason, reportedBy)
	if err != nil {
		h.logger.Error("failed to record overrun", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, mapper.ToOrderDTO(order))
}
