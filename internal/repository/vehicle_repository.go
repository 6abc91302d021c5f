package repository

import (
	"context"
	"strings"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *VehicleRepository) WithTx(tx *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: tx}
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *domain.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

func (r *VehicleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vehicle, error) {
	var vehicle domain.Vehicle
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("id = ?", id).
		First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *VehicleRepository) Update(ctx context.Context, vehicle *domain.Vehicle) error {
	return r.db.WithContext(ctx).Save(vehicle).Error
}

// FindByPlate performs a case-insensitive plate lookup scoped to a branch
// through the owning customer.
func (r *VehicleRepository) FindByPlate(ctx context.Context, branchID uuid.UUID, plate string) (*domain.Vehicle, error) {
	var vehicle domain.Vehicle
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Joins("JOIN customers ON customers.id = vehicles.customer_id").
		Where("customers.branch_id = ? AND LOWER(vehicles.plate_number) = ?", branchID, strings.ToLower(plate)).
		First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// FindByPlateForCustomer finds a vehicle by plate under a specific customer
func (r *VehicleRepository) FindByPlateForCustomer(ctx context.Context, customerID uuid.UUID, plate string) (*domain.Vehicle, error) {
	var vehicle domain.Vehicle
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND LOWER(plate_number) = ?", customerID, strings.ToLower(plate)).
		First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// ListByCustomer returns all vehicles owned by a customer
func (r *VehicleRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Vehicle, error) {
	var vehicles []domain.Vehicle
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&vehicles).Error
	return vehicles, err
}
