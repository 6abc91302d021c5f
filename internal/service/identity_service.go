package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IdentityService resolves plate numbers and loosely-identified customers
// into canonical Customer and Vehicle records.
type IdentityService struct {
	db        *gorm.DB
	customers *repository.CustomerRepository
	vehicles  *repository.VehicleRepository
	logger    *zap.Logger
}

// NewIdentityService creates a new IdentityService
func NewIdentityService(
	db *gorm.DB,
	customers *repository.CustomerRepository,
	vehicles *repository.VehicleRepository,
	logger *zap.Logger,
) *IdentityService {
	return &IdentityService{
		db:        db,
		customers: customers,
		vehicles:  vehicles,
		logger:    logger,
	}
}

// NormalizePlate trims and uppercases a plate number
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// PlaceholderName returns the auto-generated customer name for a plate
func PlaceholderName(plate string) string {
	return "Plate " + NormalizePlate(plate)
}

// PlaceholderPhone returns the deterministic phone token for a plate. The
// token keeps repeated starts from creating duplicate placeholders.
func PlaceholderPhone(plate string) string {
	return domain.PlaceholderPhonePrefix + NormalizePlate(plate)
}

// CheckPlateResult is the outcome of a plate lookup
type CheckPlateResult struct {
	Found    bool
	Customer *domain.Customer
	Vehicle  *domain.Vehicle
}

// CheckPlate performs a case-insensitive, branch-scoped plate lookup
func (s *IdentityService) CheckPlate(ctx context.Context, branchID uuid.UUID, plate string) (*CheckPlateResult, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate number is required", ErrInvalidInput)
	}

	vehicle, err := s.vehicles.FindByPlate(ctx, branchID, plate)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &CheckPlateResult{Found: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up plate: %w", err)
	}

	return &CheckPlateResult{
		Found:    true,
		Customer: vehicle.Customer,
		Vehicle:  vehicle,
	}, nil
}

// ResolveOptions steer the probe/commit flow
type ResolveOptions struct {
	// UseExistingCustomer confirms reuse of the identity found for the plate
	UseExistingCustomer bool
	// ExistingCustomerID attaches the vehicle to a specific customer
	ExistingCustomerID *uuid.UUID
}

// Resolution is the outcome of ResolveCustomerAndVehicle. When
// RequiresConfirmation is set, nothing was written and Customer/Vehicle are
// the existing records for the caller to confirm against.
type Resolution struct {
	Customer             *domain.Customer
	Vehicle              *domain.Vehicle
	RequiresConfirmation bool
}

// ResolveCustomerAndVehicle resolves a plate to a canonical customer and
// vehicle. Two-phase: when the plate is already known in-branch and the
// caller has not confirmed reuse, the existing identity is returned without
// writing. Otherwise a placeholder customer is created (or the chosen
// customer loaded) and the vehicle created-or-fetched under it, all inside
// tx.
func (s *IdentityService) ResolveCustomerAndVehicle(ctx context.Context, tx *gorm.DB, branchID uuid.UUID, plate string, opts ResolveOptions) (*Resolution, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate number is required", ErrInvalidInput)
	}

	vehicles := s.vehicles.WithTx(tx)
	customers := s.customers.WithTx(tx)

	existing, err := vehicles.FindByPlate(ctx, branchID, plate)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up plate: %w", err)
	}

	if existing != nil && !opts.UseExistingCustomer && opts.ExistingCustomerID == nil {
		return &Resolution{
			Customer:             existing.Customer,
			Vehicle:              existing,
			RequiresConfirmation: true,
		}, nil
	}

	var customer *domain.Customer
	switch {
	case opts.ExistingCustomerID != nil:
		customer, err = customers.GetByID(ctx, *opts.ExistingCustomerID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, opts.ExistingCustomerID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load customer: %w", err)
		}

	case existing != nil:
		// Confirmed reuse of the identity already attached to the plate
		customer = existing.Customer

	default:
		customer, err = s.getOrCreatePlaceholder(ctx, customers, branchID, plate)
		if err != nil {
			return nil, err
		}
	}

	vehicle, err := s.getOrCreateVehicle(ctx, vehicles, customer.ID, plate, "", "", "")
	if err != nil {
		return nil, err
	}

	return &Resolution{Customer: customer, Vehicle: vehicle}, nil
}

func (s *IdentityService) getOrCreatePlaceholder(ctx context.Context, customers *repository.CustomerRepository, branchID uuid.UUID, plate string) (*domain.Customer, error) {
	phone := PlaceholderPhone(plate)

	customer, err := customers.FindByPhone(ctx, branchID, phone)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up placeholder customer: %w", err)
	}

	customer = &domain.Customer{
		BranchID:     branchID,
		FullName:     PlaceholderName(plate),
		Phone:        phone,
		CustomerType: domain.CustomerTypePersonal,
	}
	if err := customers.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create placeholder customer: %w", err)
	}

	s.logger.Info("created placeholder customer",
		zap.String("plate", plate),
		zap.String("customer_id", customer.ID.String()),
		zap.String("branch_id", branchID.String()))

	return customer, nil
}

func (s *IdentityService) getOrCreateVehicle(ctx context.Context, vehicles *repository.VehicleRepository, customerID uuid.UUID, plate, makeName, model, vehicleType string) (*domain.Vehicle, error) {
	vehicle, err := vehicles.FindByPlateForCustomer(ctx, customerID, plate)
	if err == nil {
		return vehicle, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up vehicle: %w", err)
	}

	vehicle = &domain.Vehicle{
		CustomerID:  customerID,
		PlateNumber: NormalizePlate(plate),
		Make:        makeName,
		Model:       model,
		VehicleType: vehicleType,
	}
	if err := vehicles.Create(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	return vehicle, nil
}

// CustomerFields is the identity tuple plus contact details used by
// create-or-get.
type CustomerFields struct {
	FullName         string
	Phone            string
	Email            string
	Address          string
	CustomerType     domain.CustomerType
	PersonalSubtype  *domain.PersonalSubtype
	OrganizationName string
	TaxNumber        string
}

// GetOrCreateCustomer finds a customer by the per-branch identity tuple
// (name, phone, organization name, tax number) or creates one.
func (s *IdentityService) GetOrCreateCustomer(ctx context.Context, tx *gorm.DB, branchID uuid.UUID, fields CustomerFields) (*domain.Customer, error) {
	customers := s.customers.WithTx(tx)

	customer, err := customers.FindByIdentity(ctx, branchID, fields.FullName, fields.Phone, fields.OrganizationName, fields.TaxNumber)
	if err == nil {
		// Refresh contact details on the existing record
		changed := false
		if fields.Email != "" && customer.Email != fields.Email {
			customer.Email = fields.Email
			changed = true
		}
		if fields.Address != "" && customer.Address != fields.Address {
			customer.Address = fields.Address
			changed = true
		}
		if fields.PersonalSubtype != nil {
			customer.PersonalSubtype = fields.PersonalSubtype
			changed = true
		}
		if changed {
			if err := customers.Update(ctx, customer); err != nil {
				return nil, fmt.Errorf("failed to update customer: %w", err)
			}
		}
		return customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}

	customer = &domain.Customer{
		BranchID:         branchID,
		FullName:         fields.FullName,
		Phone:            fields.Phone,
		Email:            fields.Email,
		Address:          fields.Address,
		CustomerType:     fields.CustomerType,
		PersonalSubtype:  fields.PersonalSubtype,
		OrganizationName: fields.OrganizationName,
		TaxNumber:        fields.TaxNumber,
	}
	if customer.CustomerType == "" {
		customer.CustomerType = domain.CustomerTypePersonal
	}
	if err := customers.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return customer, nil
}

// GetOrCreateVehicle finds a vehicle by plate under a customer or creates it
func (s *IdentityService) GetOrCreateVehicle(ctx context.Context, tx *gorm.DB, customerID uuid.UUID, plate, makeName, model, vehicleType string) (*domain.Vehicle, error) {
	plate = NormalizePlate(plate)
	if plate == "" {
		return nil, fmt.Errorf("%w: plate number is required", ErrInvalidInput)
	}
	return s.getOrCreateVehicle(ctx, s.vehicles.WithTx(tx), customerID, plate, makeName, model, vehicleType)
}
