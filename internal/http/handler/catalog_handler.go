package handler

import (
	"net/http"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/mapper"
	"github.com/garagedesk/workshop-api/internal/service"
	"go.uber.org/zap"
)

// CatalogHandler serves the service and inventory catalog
type CatalogHandler struct {
	catalogService *service.CatalogService
	logger         *zap.Logger
}

func NewCatalogHandler(catalogService *service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// Get godoc
// @Summary Get the order form catalog
// @Description Active service types, add-ons and inventory items in one response
// @Tags Catalog
// @Produce json
// @Success 200 {object} domain.CatalogResponse
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /catalog [get]
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.catalogService.GetCatalog(r.Context())
	if err != nil {
		h.logger.Error("failed to load catalog", zap.Error(err))
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, domain.CatalogResponse{
		ServiceTypes:   mapper.ToServiceTypeDTOs(catalog.ServiceTypes),
		ServiceAddons:  mapper.ToServiceAddonDTOs(catalog.ServiceAddons),
		InventoryItems: mapper.ToInventoryItemDTOs(catalog.InventoryItems),
	})
}
