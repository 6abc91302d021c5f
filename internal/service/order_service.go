package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService manages the order lifecycle: idempotent start, partial
// updates, completion and overrun recording.
type OrderService struct {
	db        *gorm.DB
	orders    *repository.OrderRepository
	identity  *IdentityService
	catalog   *CatalogService
	sequences *NumberSequenceService
	logger    *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(
	db *gorm.DB,
	orders *repository.OrderRepository,
	identity *IdentityService,
	catalog *CatalogService,
	sequences *NumberSequenceService,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		db:        db,
		orders:    orders,
		identity:  identity,
		catalog:   catalog,
		sequences: sequences,
		logger:    logger,
	}
}

// branchFromContext resolves the caller's branch scope
func branchFromContext(ctx context.Context) (uuid.UUID, error) {
	branchID := auth.GetEffectiveBranchFilter(ctx)
	if branchID == nil || *branchID == uuid.Nil {
		return uuid.Nil, ErrNoBranch
	}
	return *branchID, nil
}

// legacySelectionHeaders are the description text blocks older clients used
// to encode selections. They are stripped so re-submitted descriptions do
// not accumulate; selections live in their own table now.
var legacySelectionHeaders = []string{"Services:", "Add-ons:", "Tire Services:"}

// StripLegacySelectionHeaders removes legacy selection blocks (a header line
// and its following list up to a blank line) from a description.
func StripLegacySelectionHeaders(description string) string {
	lines := strings.Split(description, "\n")
	var kept []string
	skipping := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		isHeader := false
		for _, h := range legacySelectionHeaders {
			if strings.HasPrefix(trimmed, h) {
				isHeader = true
				break
			}
		}
		if isHeader {
			skipping = true
			continue
		}
		if skipping {
			if trimmed == "" {
				skipping = false
			}
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// StartResult is the outcome of Start: either an order (new or the existing
// open one for the vehicle) or a probe asking to confirm customer reuse.
type StartResult struct {
	Order                *domain.Order
	RequiresConfirmation bool
	ExistingCustomer     *domain.Customer
	ExistingVehicle      *domain.Vehicle
}

// Start begins an order for a plate. Idempotent: an open order for the
// resolved vehicle is returned instead of creating a duplicate. A known
// plate with no open order and no confirmed customer reuse yields a
// confirmation prompt and no writes.
func (s *OrderService) Start(ctx context.Context, req *domain.StartOrderRequest) (*StartResult, error) {
	branchID, err := branchFromContext(ctx)
	if err != nil {
		return nil, err
	}

	orderType := req.OrderType
	if orderType == "" {
		orderType = domain.OrderTypeService
	}
	if !orderType.IsValid() || orderType == domain.OrderTypeUpload {
		return nil, fmt.Errorf("%w: order type %q cannot be started", ErrInvalidInput, orderType)
	}

	var result StartResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resolution, err := s.identity.ResolveCustomerAndVehicle(ctx, tx, branchID, req.PlateNumber, ResolveOptions{
			UseExistingCustomer: req.UseExistingCustomer,
			ExistingCustomerID:  req.ExistingCustomerID,
		})
		if err != nil {
			return err
		}

		orders := s.orders.WithTx(tx)

		// An open order for the resolved vehicle always wins: restarting
		// the same plate returns it, whether or not customer reuse was
		// confirmed. The probe only fires for a known plate with no open
		// order.
		existing, err := orders.FindStartedByVehicle(ctx, resolution.Vehicle.ID)
		if err == nil {
			result = StartResult{Order: existing}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check for open order: %w", err)
		}

		if resolution.RequiresConfirmation {
			result = StartResult{
				RequiresConfirmation: true,
				ExistingCustomer:     resolution.Customer,
				ExistingVehicle:      resolution.Vehicle,
			}
			return nil
		}

		estimate := req.EstimatedDuration
		if estimate == nil && orderType == domain.OrderTypeService {
			estimate = s.catalog.EstimateDuration(ctx, req.ServiceSelection)
		}

		number, err := s.sequences.WithTx(tx).GenerateOrderNumber(ctx, branchID)
		if err != nil {
			return err
		}

		vehicleID := resolution.Vehicle.ID
		order := &domain.Order{
			BranchID:          branchID,
			CustomerID:        resolution.Customer.ID,
			VehicleID:         &vehicleID,
			OrderNumber:       number,
			OrderType:         orderType,
			Status:            domain.OrderStatusCreated,
			Priority:          domain.OrderPriorityMedium,
			Description:       StripLegacySelectionHeaders(req.Description),
			StartedAt:         time.Now(),
			EstimatedDuration: estimate,
		}
		for i, sel := range req.ServiceSelection {
			kind := sel.Kind
			if kind == "" {
				kind = domain.SelectionKindService
			}
			order.Selections = append(order.Selections, domain.OrderServiceSelection{
				Kind:     kind,
				Name:     sel.Name,
				Position: i,
			})
		}

		if err := orders.Create(ctx, order); err != nil {
			// The partial unique index closes the check-then-create race:
			// a concurrent start for the same vehicle surfaces here and
			// resolves to the already-created order.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				winner, findErr := orders.FindStartedByVehicle(ctx, resolution.Vehicle.ID)
				if findErr == nil {
					result = StartResult{Order: winner}
					return nil
				}
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		order.Customer = resolution.Customer
		order.Vehicle = resolution.Vehicle
		result = StartResult{Order: order}

		s.logger.Info("order started",
			zap.String("order_id", order.ID.String()),
			zap.String("order_number", order.OrderNumber),
			zap.String("plate", resolution.Vehicle.PlateNumber),
			zap.String("branch_id", branchID.String()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns an order in the caller's branch
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// List returns branch-scoped orders
func (s *OrderService) List(ctx context.Context, filter repository.OrderListFilter) ([]domain.Order, int64, error) {
	return s.orders.List(ctx, filter)
}

// UpdateCustomer updates the customer attached to a started order
func (s *OrderService) UpdateCustomer(ctx context.Context, orderID uuid.UUID, req *domain.UpdateCustomerRequest) (*domain.Order, error) {
	if req.CustomerType != "" && !req.CustomerType.IsValid() {
		return nil, fmt.Errorf("%w: invalid customer type %q", ErrInvalidInput, req.CustomerType)
	}

	var updated *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		order, err := orders.GetByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		if err != nil {
			return err
		}

		customer := order.Customer
		customer.FullName = req.FullName
		customer.Phone = req.Phone
		if req.Email != "" {
			customer.Email = req.Email
		}
		if req.Address != "" {
			customer.Address = req.Address
		}
		if req.CustomerType != "" {
			customer.CustomerType = req.CustomerType
		}
		if req.PersonalSubtype != nil {
			customer.PersonalSubtype = req.PersonalSubtype
		}
		customer.OrganizationName = req.OrganizationName
		customer.TaxNumber = req.TaxNumber

		if err := tx.Save(customer).Error; err != nil {
			return fmt.Errorf("failed to update customer: %w", err)
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateVehicle updates the vehicle attached to a started order, creating
// one when the order has none yet.
func (s *OrderService) UpdateVehicle(ctx context.Context, orderID uuid.UUID, req *domain.UpdateVehicleRequest) (*domain.Order, error) {
	var updated *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		order, err := orders.GetByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		if err != nil {
			return err
		}

		if order.Vehicle == nil {
			vehicle, err := s.identity.GetOrCreateVehicle(ctx, tx, order.CustomerID, req.PlateNumber, req.Make, req.Model, req.VehicleType)
			if err != nil {
				return err
			}
			vehicleID := vehicle.ID
			order.VehicleID = &vehicleID
			order.Vehicle = vehicle
			return orders.Update(ctx, order)
		}

		vehicle := order.Vehicle
		vehicle.PlateNumber = NormalizePlate(req.PlateNumber)
		vehicle.Make = req.Make
		vehicle.Model = req.Model
		vehicle.VehicleType = req.VehicleType
		if err := tx.Save(vehicle).Error; err != nil {
			return fmt.Errorf("failed to update vehicle: %w", err)
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateDetails partially updates a started order. Nil fields are left
// untouched; a non-nil selection set replaces the existing one and, when no
// explicit estimate is supplied, re-derives the duration estimate.
func (s *OrderService) UpdateDetails(ctx context.Context, orderID uuid.UUID, req *domain.UpdateOrderDetailsRequest) (*domain.Order, error) {
	if req.Priority != nil && !req.Priority.IsValid() {
		return nil, fmt.Errorf("%w: invalid priority %q", ErrInvalidInput, *req.Priority)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		order, err := orders.GetByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		if err != nil {
			return err
		}

		if req.Description != nil {
			order.Description = StripLegacySelectionHeaders(*req.Description)
		}
		if req.Priority != nil {
			order.Priority = *req.Priority
		}
		if req.EstimatedDuration != nil {
			order.EstimatedDuration = req.EstimatedDuration
		}

		if req.Selections != nil {
			selections := make([]domain.OrderServiceSelection, 0, len(req.Selections))
			for i, sel := range req.Selections {
				kind := sel.Kind
				if kind == "" {
					kind = domain.SelectionKindService
				}
				selections = append(selections, domain.OrderServiceSelection{
					Kind:     kind,
					Name:     sel.Name,
					Position: i,
				})
			}
			if err := orders.ReplaceSelections(ctx, order.ID, selections); err != nil {
				return fmt.Errorf("failed to replace selections: %w", err)
			}
			order.Selections = selections

			if req.EstimatedDuration == nil && order.OrderType == domain.OrderTypeService {
				if estimate := s.catalog.EstimateDuration(ctx, req.Selections); estimate != nil {
					order.EstimatedDuration = estimate
				}
			}
		}

		if req.ItemName != nil {
			order.ItemName = *req.ItemName
			if req.ItemQuantity != nil {
				order.ItemQuantity = req.ItemQuantity
			}
			item, ok, err := s.catalog.LookupInventoryItem(ctx, *req.ItemName, "")
			if err != nil {
				return err
			}
			if ok {
				order.ItemBrand = item.BrandOrDefault()
			} else {
				s.logger.Warn("inventory item not found, keeping free-text item",
					zap.String("order_id", order.ID.String()),
					zap.String("item_name", *req.ItemName))
			}
		}

		return orders.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

// Complete sets status=completed and completed_at=now. The actual duration
// is derived from started_at when not already recorded. No field validation
// is performed; staff also complete stale placeholder orders.
func (s *OrderService) Complete(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var updated *domain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		order, err := orders.GetByID(ctx, orderID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
		}
		if err != nil {
			return err
		}

		if order.Status == domain.OrderStatusCompleted {
			updated = order
			return nil
		}
		if order.Status == domain.OrderStatusCancelled {
			return fmt.Errorf("%w: order %s is cancelled", ErrOrderNotOpen, orderID)
		}

		now := time.Now()
		order.Status = domain.OrderStatusCompleted
		order.CompletedAt = &now
		if order.ActualDuration == nil {
			minutes := int(now.Sub(order.StartedAt).Minutes())
			if minutes < 0 {
				minutes = 0
			}
			order.ActualDuration = &minutes
		}

		if err := orders.Update(ctx, order); err != nil {
			return fmt.Errorf("failed to complete order: %w", err)
		}

		updated = order
		s.logger.Info("order completed",
			zap.String("order_id", order.ID.String()),
			zap.String("order_number", order.OrderNumber))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecordOverrun attaches an overrun reason to an order. The status is never
// touched; completed orders may be annotated too.
func (s *OrderService) RecordOverrun(ctx context.Context, orderID uuid.UUID, reason, reportedBy string) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order.OverrunReason = reason
	order.OverrunReportedBy = reportedBy
	order.OverrunReportedAt = &now

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to record overrun: %w", err)
	}

	s.logger.Info("overrun recorded",
		zap.String("order_id", order.ID.String()),
		zap.String("reported_by", reportedBy))

	return order, nil
}
