package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExtractionService merges externally-extracted (OCR or manual-entry)
// customer/vehicle/order data into orders. Validation happens before any
// write: a rejected payload leaves the database untouched.
type ExtractionService struct {
	db        *gorm.DB
	orders    *repository.OrderRepository
	identity  *IdentityService
	catalog   *CatalogService
	sequences *NumberSequenceService
	logger    *zap.Logger
}

// NewExtractionService creates a new ExtractionService
func NewExtractionService(
	db *gorm.DB,
	orders *repository.OrderRepository,
	identity *IdentityService,
	catalog *CatalogService,
	sequences *NumberSequenceService,
	logger *zap.Logger,
) *ExtractionService {
	return &ExtractionService{
		db:        db,
		orders:    orders,
		identity:  identity,
		catalog:   catalog,
		sequences: sequences,
		logger:    logger,
	}
}

// normalized is the validated form of an extraction payload
type normalized struct {
	customer          CustomerFields
	plate             string
	make              string
	model             string
	vehicleType       string
	description       string
	priority          domain.OrderPriority
	estimatedDuration *int
	selections        []domain.SelectionDTO
}

// parseServiceList splits the extracted comma-separated service names into
// selection entries, dropping empties.
func parseServiceList(services string) []domain.SelectionDTO {
	var selections []domain.SelectionDTO
	for _, name := range strings.Split(services, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		selections = append(selections, domain.SelectionDTO{
			Kind: domain.SelectionKindService,
			Name: name,
		})
	}
	return selections
}

// validatePayload enforces the extraction field rules and returns the
// normalized values. All violations are collected into one ValidationError.
func validatePayload(p *domain.ExtractionPayload) (*normalized, error) {
	fields := map[string]string{}

	name := strings.TrimSpace(p.CustomerName)
	phone := strings.TrimSpace(p.Phone)
	if name == "" {
		fields["customer_name"] = "Customer name is required"
	}
	if phone == "" {
		fields["phone"] = "Phone is required"
	}

	customerType := domain.CustomerTypePersonal
	if p.CustomerType != "" {
		customerType = domain.CustomerType(p.CustomerType)
		if !customerType.IsValid() {
			fields["customer_type"] = "Must be one of: personal, company, government, ngo"
		}
	}

	var subtype *domain.PersonalSubtype
	if customerType == domain.CustomerTypePersonal {
		if p.PersonalSubtype == "" {
			fields["personal_subtype"] = "Personal subtype is required for personal customers"
		} else {
			st := domain.PersonalSubtype(p.PersonalSubtype)
			if !st.IsValid() {
				fields["personal_subtype"] = "Must be one of: owner, driver"
			} else {
				subtype = &st
			}
		}
	}

	if customerType.IsOrganizational() {
		if strings.TrimSpace(p.OrganizationName) == "" {
			fields["organization_name"] = "Organization name is required for " + string(customerType) + " customers"
		}
		if strings.TrimSpace(p.TaxNumber) == "" {
			fields["tax_number"] = "Tax number is required for " + string(customerType) + " customers"
		}
	}

	priority := domain.OrderPriorityMedium
	if p.Priority != "" {
		priority = domain.OrderPriority(p.Priority)
		if !priority.IsValid() {
			fields["priority"] = "Must be one of: low, medium, high, urgent"
		}
	}

	if p.EstimatedDuration != nil && *p.EstimatedDuration <= 0 {
		fields["estimated_duration"] = "Must be greater than zero"
	}

	if len(fields) > 0 {
		return nil, NewValidationError(fields)
	}

	return &normalized{
		customer: CustomerFields{
			FullName:         name,
			Phone:            phone,
			Email:            strings.TrimSpace(p.Email),
			Address:          strings.TrimSpace(p.Address),
			CustomerType:     customerType,
			PersonalSubtype:  subtype,
			OrganizationName: strings.TrimSpace(p.OrganizationName),
			TaxNumber:        strings.TrimSpace(p.TaxNumber),
		},
		plate:             NormalizePlate(p.PlateNumber),
		make:              strings.TrimSpace(p.Make),
		model:             strings.TrimSpace(p.Model),
		vehicleType:       strings.TrimSpace(p.VehicleType),
		description:       StripLegacySelectionHeaders(p.Description),
		priority:          priority,
		estimatedDuration: p.EstimatedDuration,
		selections:        parseServiceList(p.Services),
	}, nil
}

// MergeIntoOrder overwrites an order's customer, vehicle and detail fields
// with validated extracted data, inside one transaction.
func (s *ExtractionService) MergeIntoOrder(ctx context.Context, req *domain.UpdateFromExtractionRequest) (*domain.Order, error) {
	branchID, err := branchFromContext(ctx)
	if err != nil {
		return nil, err
	}

	n, err := validatePayload(&req.ExtractionPayload)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		order, err := orders.GetByID(ctx, req.OrderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, req.OrderID)
		}
		if err != nil {
			return err
		}

		customer, err := s.identity.GetOrCreateCustomer(ctx, tx, branchID, n.customer)
		if err != nil {
			return err
		}
		order.CustomerID = customer.ID

		if n.plate != "" {
			vehicle, err := s.identity.GetOrCreateVehicle(ctx, tx, customer.ID, n.plate, n.make, n.model, n.vehicleType)
			if err != nil {
				return err
			}
			vehicleID := vehicle.ID
			order.VehicleID = &vehicleID
		}

		if n.description != "" {
			order.Description = n.description
		}
		order.Priority = n.priority
		if n.estimatedDuration != nil {
			order.EstimatedDuration = n.estimatedDuration
		}

		if len(n.selections) > 0 {
			selections := make([]domain.OrderServiceSelection, 0, len(n.selections))
			for i, sel := range n.selections {
				selections = append(selections, domain.OrderServiceSelection{
					Kind:     sel.Kind,
					Name:     sel.Name,
					Position: i,
				})
			}
			if err := orders.ReplaceSelections(ctx, order.ID, selections); err != nil {
				return fmt.Errorf("failed to replace selections: %w", err)
			}
			order.Selections = selections

			if n.estimatedDuration == nil && order.OrderType == domain.OrderTypeService {
				if estimate := s.catalog.EstimateDuration(ctx, n.selections); estimate != nil {
					order.EstimatedDuration = estimate
				}
			}
		}

		if err := orders.Update(ctx, order); err != nil {
			return fmt.Errorf("failed to update order from extraction: %w", err)
		}

		s.logger.Info("order updated from extraction",
			zap.String("order_id", order.ID.String()),
			zap.String("customer_id", customer.ID.String()))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.get(ctx, req)
}

func (s *ExtractionService) get(ctx context.Context, req *domain.UpdateFromExtractionRequest) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}
	return order, nil
}

// CreateFromModal creates a fresh order from validated extracted/manual
// data. Unlike the quick-start flow this supports the upload order type and
// never probes: the customer identity is taken as given.
func (s *ExtractionService) CreateFromModal(ctx context.Context, req *domain.CreateFromModalRequest) (*domain.Order, error) {
	branchID, err := branchFromContext(ctx)
	if err != nil {
		return nil, err
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeService
	}
	if !orderType.IsValid() {
		return nil, NewValidationError(map[string]string{
			"order_type": "Must be one of: service, sales, inquiry, upload",
		})
	}

	n, err := validatePayload(&req.ExtractionPayload)
	if err != nil {
		return nil, err
	}

	estimate := n.estimatedDuration
	if estimate == nil && orderType == domain.OrderTypeService && len(n.selections) > 0 {
		estimate = s.catalog.EstimateDuration(ctx, n.selections)
	}

	var created *domain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.identity.GetOrCreateCustomer(ctx, tx, branchID, n.customer)
		if err != nil {
			return err
		}

		var vehicleID *uuid.UUID
		if n.plate != "" {
			vehicle, err := s.identity.GetOrCreateVehicle(ctx, tx, customer.ID, n.plate, n.make, n.model, n.vehicleType)
			if err != nil {
				return err
			}
			id := vehicle.ID
			vehicleID = &id
		}

		number, err := s.sequences.WithTx(tx).GenerateOrderNumber(ctx, branchID)
		if err != nil {
			return err
		}

		order := &domain.Order{
			BranchID:          branchID,
			CustomerID:        customer.ID,
			VehicleID:         vehicleID,
			OrderNumber:       number,
			OrderType:         orderType,
			Status:            domain.OrderStatusCreated,
			Priority:          n.priority,
			Description:       n.description,
			StartedAt:         time.Now(),
			EstimatedDuration: estimate,
		}
		for i, sel := range n.selections {
			order.Selections = append(order.Selections, domain.OrderServiceSelection{
				Kind:     sel.Kind,
				Name:     sel.Name,
				Position: i,
			})
		}

		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		created = order
		s.logger.Info("order created from modal",
			zap.String("order_id", order.ID.String()),
			zap.String("order_number", order.OrderNumber),
			zap.String("order_type", string(orderType)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.orders.GetByID(ctx, created.ID)
}
