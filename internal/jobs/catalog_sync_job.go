package jobs

import (
	"context"
	"time"

	"github.com/garagedesk/workshop-api/internal/domain"
	"github.com/garagedesk/workshop-api/internal/legacydms"
	"github.com/garagedesk/workshop-api/internal/repository"
	"go.uber.org/zap"
)

// CatalogSyncJobName is the name of the legacy DMS catalog sync job
const CatalogSyncJobName = "catalog_sync"

// DefaultCatalogSyncTimeout bounds one full catalog import run
const DefaultCatalogSyncTimeout = 5 * time.Minute

// CatalogSyncJob imports service types, add-ons and inventory items from
// the legacy DMS into the local catalog tables. The import is upsert-only;
// rows that disappear from the DMS are deactivated there first and the
// is_active flag carries over.
type CatalogSyncJob struct {
	client  *legacydms.Client
	catalog *repository.CatalogRepository
	logger  *zap.Logger
	timeout time.Duration
}

// NewCatalogSyncJob creates a new catalog sync job.
// The timeout controls how long one import run is allowed to take.
func NewCatalogSyncJob(client *legacydms.Client, catalog *repository.CatalogRepository, logger *zap.Logger, timeout time.Duration) *CatalogSyncJob {
	return &CatalogSyncJob{
		client:  client,
		catalog: catalog,
		logger:  logger,
		timeout: timeout,
	}
}

// Run executes one catalog import.
// This is called by the scheduler according to the cron expression.
func (j *CatalogSyncJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	j.logger.Info("starting catalog sync job")

	synced, failed := j.syncServiceTypes(ctx)

	addonsSynced, addonsFailed := j.syncServiceAddons(ctx)
	synced += addonsSynced
	failed += addonsFailed

	itemsSynced, itemsFailed := j.syncInventoryItems(ctx)
	synced += itemsSynced
	failed += itemsFailed

	j.logger.Info("catalog sync job completed",
		zap.Int("rows_synced", synced),
		zap.Int("rows_failed", failed),
		zap.Duration("duration", time.Since(start)))
}

func (j *CatalogSyncJob) syncServiceTypes(ctx context.Context) (synced int, failed int) {
	records, err := j.client.FetchServiceTypes(ctx)
	if err != nil {
		j.logger.Error("catalog sync: failed to fetch service types", zap.Error(err))
		return 0, 0
	}

	for _, r := range records {
		if r.Name == "" {
			continue
		}
		st := &domain.ServiceType{
			Name:             r.Name,
			EstimatedMinutes: r.DurationMinutes,
			IsActive:         r.Active,
		}
		if err := j.catalog.UpsertServiceType(ctx, st); err != nil {
			j.logger.Warn("catalog sync: failed to upsert service type",
				zap.String("name", r.Name),
				zap.Error(err))
			failed++
			continue
		}
		synced++
	}
	return synced, failed
}

func (j *CatalogSyncJob) syncServiceAddons(ctx context.Context) (synced int, failed int) {
	records, err := j.client.FetchServiceAddons(ctx)
	if err != nil {
		j.logger.Error("catalog sync: failed to fetch service addons", zap.Error(err))
		return 0, 0
	}

	for _, r := range records {
		if r.Name == "" {
			continue
		}
		addon := &domain.ServiceAddon{
			Name:             r.Name,
			EstimatedMinutes: r.DurationMinutes,
			IsActive:         r.Active,
		}
		if err := j.catalog.UpsertServiceAddon(ctx, addon); err != nil {
			j.logger.Warn("catalog sync: failed to upsert service addon",
				zap.String("name", r.Name),
				zap.Error(err))
			failed++
			continue
		}
		synced++
	}
	return synced, failed
}

func (j *CatalogSyncJob) syncInventoryItems(ctx context.Context) (synced int, failed int) {
	records, err := j.client.FetchInventoryItems(ctx)
	if err != nil {
		j.logger.Error("catalog sync: failed to fetch inventory items", zap.Error(err))
		return 0, 0
	}

	for _, r := range records {
		if r.Name == "" {
			continue
		}
		item := &domain.InventoryItem{
			Name:     r.Name,
			Brand:    r.Brand,
			IsActive: r.Active,
		}
		if err := j.catalog.UpsertInventoryItem(ctx, item); err != nil {
			j.logger.Warn("catalog sync: failed to upsert inventory item",
				zap.String("name", r.Name),
				zap.String("brand", r.Brand),
				zap.Error(err))
			failed++
			continue
		}
		synced++
	}
	return synced, failed
}

// RegisterCatalogSyncJob registers the catalog sync job with the scheduler.
// The job is skipped entirely when the legacy DMS client is disabled.
func RegisterCatalogSyncJob(scheduler *Scheduler, client *legacydms.Client, catalog *repository.CatalogRepository, logger *zap.Logger, cronExpr string) error {
	if !client.IsEnabled() {
		logger.Info("catalog sync job not registered, legacy DMS disabled")
		return nil
	}

	job := NewCatalogSyncJob(client, catalog, logger, DefaultCatalogSyncTimeout)
	return scheduler.AddJob(CatalogSyncJobName, cronExpr, job.Run)
}
