package domain

import (
	"time"

	"github.com/google/uuid"
)

// DTOs for API requests and responses. Timestamps are ISO 8601 strings.

// CustomerDTO is the wire representation of a customer
type CustomerDTO struct {
	ID               uuid.UUID        `json:"id"`
	FullName         string           `json:"full_name"`
	Phone            string           `json:"phone"`
	Email            string           `json:"email,omitempty"`
	Address          string           `json:"address,omitempty"`
	CustomerType     CustomerType     `json:"customer_type"`
	PersonalSubtype  *PersonalSubtype `json:"personal_subtype,omitempty"`
	OrganizationName string           `json:"organization_name,omitempty"`
	TaxNumber        string           `json:"tax_number,omitempty"`
	IsPlaceholder    bool             `json:"is_placeholder"`
	CreatedAt        string           `json:"created_at"`
	UpdatedAt        string           `json:"updated_at"`
}

// VehicleDTO is the wire representation of a vehicle
type VehicleDTO struct {
	ID          uuid.UUID `json:"id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	PlateNumber string    `json:"plate_number"`
	Make        string    `json:"make,omitempty"`
	Model       string    `json:"model,omitempty"`
	VehicleType string    `json:"vehicle_type,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

// SelectionDTO is one selected service on an order
type SelectionDTO struct {
	Kind SelectionKind `json:"kind"`
	Name string        `json:"name"`
}

// OrderDTO is the wire representation of an order
type OrderDTO struct {
	ID                uuid.UUID     `json:"id"`
	OrderNumber       string        `json:"order_number"`
	OrderType         OrderType     `json:"order_type"`
	Status            OrderStatus   `json:"status"`
	Priority          OrderPriority `json:"priority"`
	Description       string        `json:"description,omitempty"`
	Customer          *CustomerDTO  `json:"customer,omitempty"`
	Vehicle           *VehicleDTO   `json:"vehicle,omitempty"`
	Selections        []SelectionDTO `json:"selections"`
	StartedAt         string        `json:"started_at"`
	CompletedAt       *string       `json:"completed_at,omitempty"`
	EstimatedDuration *int          `json:"estimated_duration,omitempty"`
	ActualDuration    *int          `json:"actual_duration,omitempty"`
	ItemName          string        `json:"item_name,omitempty"`
	ItemBrand         string        `json:"item_brand,omitempty"`
	ItemQuantity      *int          `json:"item_quantity,omitempty"`
	OverrunReason     string        `json:"overrun_reason,omitempty"`
	OverrunReportedBy string        `json:"overrun_reported_by,omitempty"`
	OverrunReportedAt *string       `json:"overrun_reported_at,omitempty"`
	CreatedAt         string        `json:"created_at"`
	UpdatedAt         string        `json:"updated_at"`
}

// OrderDetailDTO is an order with its documents and invoices
type OrderDetailDTO struct {
	OrderDTO
	Documents []OrderDocumentDTO `json:"documents,omitempty"`
	Invoices  []InvoiceDTO       `json:"invoices,omitempty"`
}

// StartOrderRequest starts an order from a plate number. Without
// use_existing_customer a matching plate triggers a probe response instead
// of a write.
type StartOrderRequest struct {
	PlateNumber         string         `json:"plate_number" validate:"required,max=20"`
	OrderType           OrderType      `json:"order_type" validate:"omitempty,oneof=service sales inquiry"`
	UseExistingCustomer bool           `json:"use_existing_customer"`
	ExistingCustomerID  *uuid.UUID     `json:"existing_customer_id"`
	ServiceSelection    []SelectionDTO `json:"service_selection"`
	EstimatedDuration   *int           `json:"estimated_duration" validate:"omitempty,gt=0"`
	Description         string         `json:"description" validate:"omitempty,max=5000"`
}

// StartOrderResponse is either a created/reused order or a probe result
// asking the caller to confirm customer reuse.
type StartOrderResponse struct {
	Success              bool         `json:"success"`
	RequiresConfirmation bool         `json:"requires_confirmation,omitempty"`
	OrderID              *uuid.UUID   `json:"order_id,omitempty"`
	OrderNumber          string       `json:"order_number,omitempty"`
	StartedAt            string       `json:"started_at,omitempty"`
	ExistingCustomer     *CustomerDTO `json:"existing_customer,omitempty"`
	ExistingVehicle      *VehicleDTO  `json:"existing_vehicle,omitempty"`
}

// CheckPlateRequest looks up a plate within the caller's branch
type CheckPlateRequest struct {
	PlateNumber string `json:"plate_number" validate:"required,max=20"`
}

// CheckPlateResponse reports whether the plate is known
type CheckPlateResponse struct {
	Found    bool         `json:"found"`
	Customer *CustomerDTO `json:"customer,omitempty"`
	Vehicle  *VehicleDTO  `json:"vehicle,omitempty"`
}

// ServiceTypeDTO is a catalog entry
type ServiceTypeDTO struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	EstimatedMinutes int       `json:"estimated_minutes"`
}

// InventoryItemDTO is a sellable stock item
type InventoryItemDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Brand    string    `json:"brand"`
	Quantity int       `json:"quantity"`
	Price    float64   `json:"price"`
}

// CatalogResponse bundles everything the order forms need
type CatalogResponse struct {
	ServiceTypes   []ServiceTypeDTO   `json:"service_types"`
	ServiceAddons  []ServiceTypeDTO   `json:"service_addons"`
	InventoryItems []InventoryItemDTO `json:"inventory_items"`
}

// UpdateCustomerRequest updates the customer on a started order
type UpdateCustomerRequest struct {
	FullName         string           `json:"full_name" validate:"required,max=200"`
	Phone            string           `json:"phone" validate:"required,max=50"`
	Email            string           `json:"email" validate:"omitempty,email,max=255"`
	Address          string           `json:"address" validate:"omitempty,max=500"`
	CustomerType     CustomerType     `json:"customer_type" validate:"omitempty,oneof=personal company government ngo"`
	PersonalSubtype  *PersonalSubtype `json:"personal_subtype" validate:"omitempty,oneof=owner driver"`
	OrganizationName string           `json:"organization_name" validate:"omitempty,max=200"`
	TaxNumber        string           `json:"tax_number" validate:"omitempty,max=50"`
}

// UpdateVehicleRequest updates the vehicle on a started order
type UpdateVehicleRequest struct {
	PlateNumber string `json:"plate_number" validate:"required,max=20"`
	Make        string `json:"make" validate:"omitempty,max=100"`
	Model       string `json:"model" validate:"omitempty,max=100"`
	VehicleType string `json:"vehicle_type" validate:"omitempty,max=50"`
}

// UpdateOrderDetailsRequest partially updates a started order. Nil fields are
// left untouched; a non-nil Selections replaces the whole selection set.
type UpdateOrderDetailsRequest struct {
	Description       *string        `json:"description" validate:"omitempty,max=5000"`
	EstimatedDuration *int           `json:"estimated_duration" validate:"omitempty,gt=0"`
	Priority          *OrderPriority `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Selections        []SelectionDTO `json:"selections"`
	ItemName          *string        `json:"item_name" validate:"omitempty,max=200"`
	ItemQuantity      *int           `json:"item_quantity" validate:"omitempty,gt=0"`
}

// ExtractionPayload is the flat field set merged into an order from the
// document extraction workflow, or used to create one from the modal.
type ExtractionPayload struct {
	CustomerName     string `json:"customer_name"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Address          string `json:"address"`
	CustomerType     string `json:"customer_type"`
	PersonalSubtype  string `json:"personal_subtype"`
	OrganizationName string `json:"organization_name"`
	TaxNumber        string `json:"tax_number"`

	PlateNumber string `json:"plate_number"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	VehicleType string `json:"vehicle_type"`

	Description       string `json:"description"`
	Priority          string `json:"priority"`
	EstimatedDuration *int   `json:"estimated_duration"`

	// Services is the extracted comma-separated service name list. Names
	// become the order's selection set.
	Services string `json:"services"`
}

// UpdateFromExtractionRequest merges extracted data into an existing order
type UpdateFromExtractionRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	ExtractionPayload
}

// CreateFromModalRequest creates a new order from extracted/manual data
type CreateFromModalRequest struct {
	OrderType OrderType `json:"order_type" validate:"omitempty,oneof=service sales inquiry upload"`
	ExtractionPayload
}

// OverrunReasonRequest records why an order ran over its estimate
type OverrunReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=5000"`
}

// InvoiceLineItemInput is one manual invoice line
type InvoiceLineItemInput struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// CreateInvoiceRequest creates a manual invoice for an order. A nil
// InvoiceDate means the invoice is dated now.
type CreateInvoiceRequest struct {
	Reference   string                 `json:"reference" validate:"omitempty,max=100"`
	InvoiceDate *time.Time             `json:"invoice_date"`
	TaxAmount   float64                `json:"tax_amount" validate:"gte=0"`
	Notes       string                 `json:"notes" validate:"omitempty,max=5000"`
	LineItems   []InvoiceLineItemInput `json:"line_items" validate:"required,min=1"`
}

// InvoiceLineItemDTO is the wire representation of an invoice line
type InvoiceLineItemDTO struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Quantity    int       `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	Amount      float64   `json:"amount"`
}

// InvoiceDTO is the wire representation of an invoice
type InvoiceDTO struct {
	ID            uuid.UUID            `json:"id"`
	OrderID       uuid.UUID            `json:"order_id"`
	CustomerID    uuid.UUID            `json:"customer_id"`
	InvoiceNumber string               `json:"invoice_number"`
	Reference     string               `json:"reference,omitempty"`
	InvoiceDate   string               `json:"invoice_date"`
	Subtotal      float64              `json:"subtotal"`
	TaxAmount     float64              `json:"tax_amount"`
	TotalAmount   float64              `json:"total_amount"`
	Notes         string               `json:"notes,omitempty"`
	LineItems     []InvoiceLineItemDTO `json:"line_items"`
	CreatedAt     string               `json:"created_at"`
}

// OrderDocumentDTO is an uploaded source document on an order
type OrderDocumentDTO struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

// OrderKPIsResponse is the started-orders dashboard header
type OrderKPIsResponse struct {
	TotalStarted          int64 `json:"total_started"`
	TodayStarted          int64 `json:"today_started"`
	RepeatedVehiclesToday int64 `json:"repeated_vehicles_today"`
}

// OverrunRowDTO is one row of the overrun report
type OverrunRowDTO struct {
	OrderID           uuid.UUID   `json:"order_id"`
	OrderNumber       string      `json:"order_number"`
	PlateNumber       string      `json:"plate_number,omitempty"`
	CustomerName      string      `json:"customer_name"`
	Status            OrderStatus `json:"status"`
	EstimatedDuration *int        `json:"estimated_duration,omitempty"`
	ActualDuration    *int        `json:"actual_duration,omitempty"`
	DelayMinutes      *int        `json:"delay_minutes,omitempty"`
	Reason            string      `json:"reason"`
	ReportedBy        string      `json:"reported_by,omitempty"`
	ReportedAt        string      `json:"reported_at"`
}

// ReasonCountDTO is a reason with its frequency
type ReasonCountDTO struct {
	Reason string `json:"reason"`
	Count  int64  `json:"count"`
}

// OverrunReportResponse is the full overrun report
type OverrunReportResponse struct {
	Overruns        []OverrunRowDTO  `json:"overruns"`
	AvgDelayMinutes *float64         `json:"avg_delay_minutes,omitempty"`
	CompletedLate   int64            `json:"completed_late"`
	TopReasons      []ReasonCountDTO `json:"top_reasons"`
}

// OrderListResponse is a page of orders
type OrderListResponse struct {
	Orders []OrderDTO `json:"orders"`
	Total  int64      `json:"total"`
	Page   int        `json:"page"`
	Limit  int        `json:"limit"`
}

// SuccessResponse is a minimal acknowledgement body
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// AuthUserDTO describes the authenticated caller
type AuthUserDTO struct {
	ID       uuid.UUID    `json:"id"`
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Role     UserRoleType `json:"role"`
	BranchID uuid.UUID    `json:"branch_id"`
}

// IssueTokenRequest requests a staff token. Admin or API key access only.
type IssueTokenRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// TokenResponse carries an issued bearer token
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
