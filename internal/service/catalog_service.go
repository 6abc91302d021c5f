package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatalogService serves the service/addon/inventory catalogs and the
// duration lookups used by order estimation.
type CatalogService struct {
	repo   *repository.CatalogRepository
	logger *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(repo *repository.CatalogRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

// Catalog bundles everything the order forms need
type Catalog struct {
	ServiceTypes   []domain.ServiceType
	ServiceAddons  []domain.ServiceAddon
	InventoryItems []domain.InventoryItem
}

// GetCatalog returns the active catalogs
func (s *CatalogService) GetCatalog(ctx context.Context) (*Catalog, error) {
	types, err := s.repo.ListServiceTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list service types: %w", err)
	}
	addons, err := s.repo.ListServiceAddons(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list service addons: %w", err)
	}
	items, err := s.repo.ListInventoryItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory items: %w", err)
	}
	return &Catalog{
		ServiceTypes:   types,
		ServiceAddons:  addons,
		InventoryItems: items,
	}, nil
}

// LookupDuration returns the estimated minutes for a selection by exact name
// match against the matching catalog. ok is false when the name is unknown;
// callers decide the fallback.
func (s *CatalogService) LookupDuration(ctx context.Context, kind domain.SelectionKind, name string) (minutes int, ok bool, err error) {
	switch kind {
	case domain.SelectionKindAddon:
		addon, lookupErr := s.repo.FindServiceAddonByName(ctx, name)
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		if lookupErr != nil {
			return 0, false, fmt.Errorf("failed to look up addon duration: %w", lookupErr)
		}
		return addon.EstimatedMinutes, true, nil

	default:
		// service and tire_service selections share the service type catalog
		st, lookupErr := s.repo.FindServiceTypeByName(ctx, name)
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		if lookupErr != nil {
			return 0, false, fmt.Errorf("failed to look up service duration: %w", lookupErr)
		}
		return st.EstimatedMinutes, true, nil
	}
}

// EstimateDuration sums estimated minutes over the matched selections. A
// failed or unmatched lookup is logged and contributes nothing; the result
// is nil when nothing matched.
func (s *CatalogService) EstimateDuration(ctx context.Context, selections []domain.SelectionDTO) *int {
	total := 0
	matched := false
	for _, sel := range selections {
		kind := sel.Kind
		if kind == "" {
			kind = domain.SelectionKindService
		}
		minutes, ok, err := s.LookupDuration(ctx, kind, sel.Name)
		if err != nil {
			s.logger.Warn("duration lookup failed",
				zap.String("selection", sel.Name),
				zap.Error(err))
			continue
		}
		if !ok {
			s.logger.Warn("no duration for selection",
				zap.String("selection", sel.Name),
				zap.String("kind", string(kind)))
			continue
		}
		total += minutes
		matched = true
	}
	if !matched {
		return nil
	}
	return &total
}

// LookupInventoryItem finds an inventory item by name and optional brand.
// ok is false when no active item matches.
func (s *CatalogService) LookupInventoryItem(ctx context.Context, name, brand string) (*domain.InventoryItem, bool, error) {
	item, err := s.repo.FindInventoryItem(ctx, name, brand)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up inventory item: %w", err)
	}
	return item, true, nil
}
