package repository

import (
	"context"
	"strings"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *CustomerRepository) WithTx(tx *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: tx}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplyBranchFilter(ctx, query)
	err := query.First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Save(customer).Error
}

func (r *CustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Customer{}, "id = ?", id).Error
}

// FindByIdentity looks up a customer by its per-branch identity tuple
// (name, phone, organization name, tax number).
func (r *CustomerRepository) FindByIdentity(ctx context.Context, branchID uuid.UUID, fullName, phone, orgName, taxNumber string) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND full_name = ? AND phone = ? AND organization_name = ? AND tax_number = ?",
			branchID, fullName, phone, orgName, taxNumber).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByPhone returns the first customer with the given phone in the branch.
// Used to locate placeholder customers by their deterministic PLATE_ token.
func (r *CustomerRepository) FindByPhone(ctx context.Context, branchID uuid.UUID, phone string) (*domain.Customer, error) {
	var customer domain.Customer
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND phone = ?", branchID, phone).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) List(ctx context.Context, page, pageSize int, search string) ([]domain.Customer, int64, error) {
	var customers []domain.Customer
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Customer{})
	query = ApplyBranchFilter(ctx, query)

	if search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(organization_name) LIKE ?",
			searchPattern, searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&customers).Error

	return customers, total, err
}

func (r *CustomerRepository) Count(ctx context.Context) (int, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&domain.Customer{})
	query = ApplyBranchFilter(ctx, query)
	err := query.Count(&count).Error
	return int(count), err
}
