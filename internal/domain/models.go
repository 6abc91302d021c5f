package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the database has no uuid default
// (the sqlite test databases).
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Branch is the scoping unit for all identity and order data
type Branch struct {
	BaseModel
	Name     string `gorm:"type:varchar(200);not null"`
	Code     string `gorm:"type:varchar(10);not null;unique"` // short code used in order/invoice numbers
	Address  string `gorm:"type:varchar(500)"`
	Phone    string `gorm:"type:varchar(50)"`
	IsActive bool   `gorm:"not null;default:true;column:is_active"`
}

// CustomerType represents the kind of customer
type CustomerType string

const (
	CustomerTypePersonal   CustomerType = "personal"
	CustomerTypeCompany    CustomerType = "company"
	CustomerTypeGovernment CustomerType = "government"
	CustomerTypeNGO        CustomerType = "ngo"
)

// IsValid checks if the CustomerType is a valid enum value
func (ct CustomerType) IsValid() bool {
	switch ct {
	case CustomerTypePersonal, CustomerTypeCompany, CustomerTypeGovernment, CustomerTypeNGO:
		return true
	}
	return false
}

// IsOrganizational reports whether the type requires organization fields
func (ct CustomerType) IsOrganizational() bool {
	switch ct {
	case CustomerTypeCompany, CustomerTypeGovernment, CustomerTypeNGO:
		return true
	}
	return false
}

// PersonalSubtype distinguishes who brought the vehicle in
type PersonalSubtype string

const (
	PersonalSubtypeOwner  PersonalSubtype = "owner"
	PersonalSubtypeDriver PersonalSubtype = "driver"
)

// IsValid checks if the PersonalSubtype is a valid enum value
func (ps PersonalSubtype) IsValid() bool {
	return ps == PersonalSubtypeOwner || ps == PersonalSubtypeDriver
}

// PlaceholderPhonePrefix marks customers auto-created from a plate number
const PlaceholderPhonePrefix = "PLATE_"

// Customer is an identity record scoped to a branch. Identity within a branch
// is (full_name, phone, organization_name, tax_number). A placeholder
// customer ("Plate {X}" / phone "PLATE_{X}") is created when an order is
// started from a plate alone.
type Customer struct {
	BaseModel
	BranchID         uuid.UUID        `gorm:"type:uuid;not null;index;column:branch_id"`
	Branch           *Branch          `gorm:"foreignKey:BranchID"`
	FullName         string           `gorm:"type:varchar(200);not null;index;column:full_name"`
	Phone            string           `gorm:"type:varchar(50);not null;index"`
	Email            string           `gorm:"type:varchar(255)"`
	Address          string           `gorm:"type:varchar(500)"`
	CustomerType     CustomerType     `gorm:"type:varchar(20);not null;default:'personal';column:customer_type"`
	PersonalSubtype  *PersonalSubtype `gorm:"type:varchar(20);column:personal_subtype"`
	OrganizationName string           `gorm:"type:varchar(200);column:organization_name"`
	TaxNumber        string           `gorm:"type:varchar(50);column:tax_number"`
	Vehicles         []Vehicle        `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE"`
}

// IsPlaceholder reports whether the customer still carries the auto-generated
// plate identity and is pending real details.
func (c *Customer) IsPlaceholder() bool {
	return strings.HasPrefix(c.Phone, PlaceholderPhonePrefix)
}

// Vehicle belongs to exactly one customer. Plates are stored uppercase and
// matched case-insensitively.
type Vehicle struct {
	BaseModel
	CustomerID  uuid.UUID `gorm:"type:uuid;not null;index;column:customer_id"`
	Customer    *Customer `gorm:"foreignKey:CustomerID"`
	PlateNumber string    `gorm:"type:varchar(20);not null;index;column:plate_number"`
	Make        string    `gorm:"type:varchar(100)"`
	Model       string    `gorm:"type:varchar(100)"`
	VehicleType string    `gorm:"type:varchar(50);column:vehicle_type"`
}

// OrderType represents the kind of order
type OrderType string

const (
	OrderTypeService OrderType = "service"
	OrderTypeSales   OrderType = "sales"
	OrderTypeInquiry OrderType = "inquiry"
	OrderTypeUpload  OrderType = "upload"
)

// IsValid checks if the OrderType is a valid enum value
func (ot OrderType) IsValid() bool {
	switch ot {
	case OrderTypeService, OrderTypeSales, OrderTypeInquiry, OrderTypeUpload:
		return true
	}
	return false
}

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsValid checks if the OrderStatus is a valid enum value
func (os OrderStatus) IsValid() bool {
	switch os {
	case OrderStatusCreated, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderPriority represents the urgency of an order
type OrderPriority string

const (
	OrderPriorityLow    OrderPriority = "low"
	OrderPriorityMedium OrderPriority = "medium"
	OrderPriorityHigh   OrderPriority = "high"
	OrderPriorityUrgent OrderPriority = "urgent"
)

// IsValid checks if the OrderPriority is a valid enum value
func (op OrderPriority) IsValid() bool {
	switch op {
	case OrderPriorityLow, OrderPriorityMedium, OrderPriorityHigh, OrderPriorityUrgent:
		return true
	}
	return false
}

// Order is a unit of work for a customer, usually tied to a vehicle. At most
// one order with status=created exists per vehicle; a partial unique index
// backs the idempotent start.
type Order struct {
	BaseModel
	BranchID          uuid.UUID     `gorm:"type:uuid;not null;index;column:branch_id"`
	Branch            *Branch       `gorm:"foreignKey:BranchID"`
	CustomerID        uuid.UUID     `gorm:"type:uuid;not null;index;column:customer_id"`
	Customer          *Customer     `gorm:"foreignKey:CustomerID"`
	VehicleID         *uuid.UUID    `gorm:"type:uuid;index;column:vehicle_id"`
	Vehicle           *Vehicle      `gorm:"foreignKey:VehicleID"`
	OrderNumber       string        `gorm:"type:varchar(50);not null;unique;column:order_number"`
	OrderType         OrderType     `gorm:"type:varchar(20);not null;default:'service';column:order_type"`
	Status            OrderStatus   `gorm:"type:varchar(20);not null;default:'created';index"`
	Priority          OrderPriority `gorm:"type:varchar(20);not null;default:'medium'"`
	Description       string        `gorm:"type:text"`
	StartedAt         time.Time     `gorm:"not null;index;column:started_at"`
	CompletedAt       *time.Time    `gorm:"column:completed_at"`
	EstimatedDuration *int          `gorm:"column:estimated_duration"` // minutes
	ActualDuration    *int          `gorm:"column:actual_duration"`    // minutes

	// Sales orders carry the sold item inline
	ItemName     string `gorm:"type:varchar(200);column:item_name"`
	ItemBrand    string `gorm:"type:varchar(200);column:item_brand"`
	ItemQuantity *int   `gorm:"column:item_quantity"`

	// Overrun metadata; recording a reason never changes the status
	OverrunReason     string     `gorm:"type:text;column:overrun_reason"`
	OverrunReportedBy string     `gorm:"type:varchar(200);column:overrun_reported_by"`
	OverrunReportedAt *time.Time `gorm:"column:overrun_reported_at"`

	Selections []OrderServiceSelection `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Documents  []OrderDocument         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// DelayMinutes returns the overrun delay clamped at zero, or nil when either
// duration is missing.
func (o *Order) DelayMinutes() *int {
	if o.ActualDuration == nil || o.EstimatedDuration == nil {
		return nil
	}
	d := *o.ActualDuration - *o.EstimatedDuration
	if d < 0 {
		d = 0
	}
	return &d
}

// SelectionKind identifies which catalog a selection came from
type SelectionKind string

const (
	SelectionKindService     SelectionKind = "service"
	SelectionKindAddon       SelectionKind = "addon"
	SelectionKindTireService SelectionKind = "tire_service"
)

// IsValid checks if the SelectionKind is a valid enum value
func (sk SelectionKind) IsValid() bool {
	switch sk {
	case SelectionKindService, SelectionKindAddon, SelectionKindTireService:
		return true
	}
	return false
}

// OrderServiceSelection is one selected service or add-on on an order
type OrderServiceSelection struct {
	ID        uuid.UUID     `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID     `gorm:"type:uuid;not null;index;column:order_id"`
	Kind      SelectionKind `gorm:"type:varchar(20);not null;default:'service'"`
	Name      string        `gorm:"type:varchar(200);not null"`
	Position  int           `gorm:"not null;default:0"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the database has no uuid default
func (s *OrderServiceSelection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName overrides the default table name
func (OrderServiceSelection) TableName() string {
	return "order_service_selections"
}

// ServiceType is a catalog entry with a duration estimate
type ServiceType struct {
	BaseModel
	Name             string `gorm:"type:varchar(200);not null;unique"`
	EstimatedMinutes int    `gorm:"not null;default:0;column:estimated_minutes"`
	IsActive         bool   `gorm:"not null;default:true;column:is_active"`
}

// ServiceAddon is a catalog entry for an add-on service
type ServiceAddon struct {
	BaseModel
	Name             string `gorm:"type:varchar(200);not null;unique"`
	EstimatedMinutes int    `gorm:"not null;default:0;column:estimated_minutes"`
	IsActive         bool   `gorm:"not null;default:true;column:is_active"`
}

// InventoryItem is a sellable stock item
type InventoryItem struct {
	BaseModel
	Name     string  `gorm:"type:varchar(200);not null;uniqueIndex:idx_inventory_name_brand"`
	Brand    string  `gorm:"type:varchar(200);uniqueIndex:idx_inventory_name_brand"`
	Quantity int     `gorm:"not null;default:0"`
	Price    float64 `gorm:"type:decimal(15,2);not null;default:0"`
	IsActive bool    `gorm:"not null;default:true;column:is_active"`
}

// BrandOrDefault returns the brand name, or "Unbranded" when empty
func (i *InventoryItem) BrandOrDefault() string {
	if i.Brand == "" {
		return "Unbranded"
	}
	return i.Brand
}

// Invoice is created from an order. Totals are recomputed from line items
// after every line item change.
type Invoice struct {
	BaseModel
	BranchID      uuid.UUID         `gorm:"type:uuid;not null;index;column:branch_id"`
	OrderID       uuid.UUID         `gorm:"type:uuid;not null;index;column:order_id"`
	Order         *Order            `gorm:"foreignKey:OrderID"`
	CustomerID    uuid.UUID         `gorm:"type:uuid;not null;index;column:customer_id"`
	Customer      *Customer         `gorm:"foreignKey:CustomerID"`
	InvoiceNumber string            `gorm:"type:varchar(50);not null;unique;column:invoice_number"`
	Reference     string            `gorm:"type:varchar(100)"`
	InvoiceDate   time.Time         `gorm:"type:date;not null;column:invoice_date"`
	Subtotal      float64           `gorm:"type:decimal(15,2);not null;default:0"`
	TaxAmount     float64           `gorm:"type:decimal(15,2);not null;default:0;column:tax_amount"`
	TotalAmount   float64           `gorm:"type:decimal(15,2);not null;default:0;column:total_amount"`
	Notes         string            `gorm:"type:text"`
	CreatedBy     string            `gorm:"type:varchar(200);column:created_by"`
	LineItems     []InvoiceLineItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// RecalculateTotals recomputes subtotal and total from the line items. The
// tax amount stays as entered.
func (inv *Invoice) RecalculateTotals() {
	subtotal := 0.0
	for i := range inv.LineItems {
		subtotal += inv.LineItems[i].Amount()
	}
	inv.Subtotal = subtotal
	inv.TotalAmount = subtotal + inv.TaxAmount
}

// InvoiceLineItem is quantity x unit price
type InvoiceLineItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID `gorm:"type:uuid;not null;index;column:invoice_id"`
	Description string    `gorm:"type:varchar(500);not null"`
	Quantity    int       `gorm:"not null;default:1"`
	UnitPrice   float64   `gorm:"type:decimal(15,2);not null;default:0;column:unit_price"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the database has no uuid default
func (li *InvoiceLineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}

// Amount returns quantity x unit price
func (li *InvoiceLineItem) Amount() float64 {
	return float64(li.Quantity) * li.UnitPrice
}

// UserRoleType represents a role a user can have
type UserRoleType string

const (
	RoleAdmin      UserRoleType = "admin"
	RoleManager    UserRoleType = "manager"
	RoleStaff      UserRoleType = "staff"
	RoleAPIService UserRoleType = "api_service"
)

// User is a staff member assigned to a branch
type User struct {
	BaseModel
	Email       string       `gorm:"type:varchar(255);not null;unique"`
	DisplayName string       `gorm:"type:varchar(200);not null;column:display_name"`
	Role        UserRoleType `gorm:"type:varchar(50);not null;default:'staff'"`
	BranchID    uuid.UUID    `gorm:"type:uuid;not null;index;column:branch_id"`
	Branch      *Branch      `gorm:"foreignKey:BranchID"`
	IsActive    bool         `gorm:"not null;default:true;column:is_active"`
	LastLoginAt *time.Time   `gorm:"column:last_login_at"`
}

// SequenceKind distinguishes order and invoice numbering
type SequenceKind string

const (
	SequenceKindOrder   SequenceKind = "order"
	SequenceKindInvoice SequenceKind = "invoice"
)

// NumberSequence tracks the last issued number per branch, year and kind
type NumberSequence struct {
	ID           uuid.UUID    `gorm:"type:uuid;primary_key"`
	BranchID     uuid.UUID    `gorm:"type:uuid;not null;index;column:branch_id"`
	Year         int          `gorm:"not null"`
	Kind         SequenceKind `gorm:"type:varchar(20);not null"`
	LastSequence int          `gorm:"not null;default:0;column:last_sequence"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// BeforeCreate assigns an ID when the database has no uuid default
func (n *NumberSequence) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// OrderDocument is an uploaded source document (scan, photo) attached to an
// order for the extraction workflow.
type OrderDocument struct {
	BaseModel
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index;column:order_id"`
	Filename    string    `gorm:"type:varchar(255);not null"`
	ContentType string    `gorm:"type:varchar(100);not null;column:content_type"`
	Size        int64     `gorm:"not null"`
	StoragePath string    `gorm:"type:varchar(500);not null;unique;column:storage_path"`
	UploadedBy  string    `gorm:"type:varchar(200);column:uploaded_by"`
}
