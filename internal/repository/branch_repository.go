package repository

import (
	"context"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BranchRepository struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) *BranchRepository {
	return &BranchRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *BranchRepository) WithTx(tx *gorm.DB) *BranchRepository {
	return &BranchRepository{db: tx}
}

func (r *BranchRepository) Create(ctx context.Context, branch *domain.Branch) error {
	return r.db.WithContext(ctx).Create(branch).Error
}

func (r *BranchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Branch, error) {
	var branch domain.Branch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&branch).Error
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *BranchRepository) GetByCode(ctx context.Context, code string) (*domain.Branch, error) {
	var branch domain.Branch
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&branch).Error
	if err != nil {
		return nil, err
	}
	return &branch, nil
}

func (r *BranchRepository) ListActive(ctx context.Context) ([]domain.Branch, error) {
	var branches []domain.Branch
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&branches).Error
	return branches, err
}
