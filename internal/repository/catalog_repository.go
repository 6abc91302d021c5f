package repository

import (
	"context"
	"strings"

	"github.com/garagedesk/workshop-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogRepository handles the service/addon/inventory catalogs. The catalog
// is global, not branch-scoped.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListServiceTypes returns all active service types ordered by name
func (r *CatalogRepository) ListServiceTypes(ctx context.Context) ([]domain.ServiceType, error) {
	var types []domain.ServiceType
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&types).Error
	return types, err
}

// ListServiceAddons returns all active service addons ordered by name
func (r *CatalogRepository) ListServiceAddons(ctx context.Context) ([]domain.ServiceAddon, error) {
	var addons []domain.ServiceAddon
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&addons).Error
	return addons, err
}

// ListInventoryItems returns all active inventory items ordered by name
func (r *CatalogRepository) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	var items []domain.InventoryItem
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&items).Error
	return items, err
}

// FindServiceTypeByName looks up an active service type by exact name
func (r *CatalogRepository) FindServiceTypeByName(ctx context.Context, name string) (*domain.ServiceType, error) {
	var st domain.ServiceType
	err := r.db.WithContext(ctx).
		Where("name = ? AND is_active = ?", name, true).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// FindServiceAddonByName looks up an active service addon by exact name
func (r *CatalogRepository) FindServiceAddonByName(ctx context.Context, name string) (*domain.ServiceAddon, error) {
	var addon domain.ServiceAddon
	err := r.db.WithContext(ctx).
		Where("name = ? AND is_active = ?", name, true).
		First(&addon).Error
	if err != nil {
		return nil, err
	}
	return &addon, nil
}

// FindInventoryItem finds an active inventory item by name and optional brand
func (r *CatalogRepository) FindInventoryItem(ctx context.Context, name, brand string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	query := r.db.WithContext(ctx).
		Where("LOWER(name) = ? AND is_active = ?", strings.ToLower(name), true)
	if brand != "" {
		query = query.Where("LOWER(brand) = ?", strings.ToLower(brand))
	}
	err := query.First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertServiceType inserts or refreshes a service type by name. Used by the
// legacy DMS catalog sync.
func (r *CatalogRepository) UpsertServiceType(ctx context.Context, st *domain.ServiceType) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"estimated_minutes", "is_active", "updated_at"}),
	}).Create(st).Error
}

// UpsertServiceAddon inserts or refreshes a service addon by name
func (r *CatalogRepository) UpsertServiceAddon(ctx context.Context, addon *domain.ServiceAddon) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"estimated_minutes", "is_active", "updated_at"}),
	}).Create(addon).Error
}

// UpsertInventoryItem inserts or refreshes an inventory item by name and
// brand. Quantity and price are not touched; the DMS is not authoritative
// for stock levels.
func (r *CatalogRepository) UpsertInventoryItem(ctx context.Context, item *domain.InventoryItem) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "brand"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_active", "updated_at"}),
	}).Create(item).Error
}
