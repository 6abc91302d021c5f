package repository

import (
	"context"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *InvoiceRepository) WithTx(tx *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: tx}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	query := r.db.WithContext(ctx).
		Preload("LineItems").
		Preload("Customer").
		Where("id = ?", id)
	query = ApplyBranchFilter(ctx, query)
	err := query.First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *InvoiceRepository) Update(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

// ListByOrder returns the invoices created for an order, newest first
func (r *InvoiceRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.Invoice, error) {
	var invoices []domain.Invoice
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&invoices).Error
	return invoices, err
}

// ExistsByReference reports whether a manual reference is already in use in
// the branch.
func (r *InvoiceRepository) ExistsByReference(ctx context.Context, branchID uuid.UUID, reference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Invoice{}).
		Where("branch_id = ? AND reference = ?", branchID, reference).
		Count(&count).Error
	return count > 0, err
}
