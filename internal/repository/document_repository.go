package repository

import (
	"context"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.OrderDocument) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.OrderDocument, error) {
	var doc domain.OrderDocument
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]domain.OrderDocument, error) {
	var docs []domain.OrderDocument
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&docs).Error
	return docs, err
}

func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.OrderDocument{}, "id = ?", id).Error
}
