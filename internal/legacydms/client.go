// Package legacydms provides read-only connectivity to the legacy
// dealer-management MS SQL Server. The catalog sync job imports service
// types, add-ons and inventory items from it.
package legacydms

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"github.com/garagedesk/workshop-api/internal/config"
	"go.uber.org/zap"
)

const (
	// Retry configuration for connection attempts
	defaultMaxRetries     = 3
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 10 * time.Second
	defaultBackoffFactor  = 2.0

	defaultHealthCheckTimeout = 5 * time.Second
)

// Client provides read-only access to the legacy DMS database.
// It manages connection pooling and exposes the catalog queries the sync
// job needs.
type Client struct {
	db           *sql.DB
	config       *config.LegacyDMSConfig
	logger       *zap.Logger
	queryTimeout time.Duration
}

// HealthStatus represents the health check result for the DMS connection
type HealthStatus struct {
	Status     string        `json:"status"`
	Latency    time.Duration `json:"latency_ms"`
	Error      string        `json:"error,omitempty"`
	MaxOpen    int           `json:"max_open_connections"`
	Open       int           `json:"open_connections"`
	InUse      int           `json:"in_use"`
	Idle       int           `json:"idle"`
	WaitCount  int64         `json:"wait_count"`
	WaitTimeMs int64         `json:"wait_time_ms"`
}

// ServiceRecord is a service type or add-on row from the legacy catalog
type ServiceRecord struct {
	Name            string
	DurationMinutes int
	Active          bool
}

// InventoryRecord is an inventory item row from the legacy catalog
type InventoryRecord struct {
	Name   string
	Brand  string
	Active bool
}

// NewClient creates a new legacy DMS client with the given configuration.
// Returns nil if the DMS connection is not enabled or not configured.
// The client establishes a connection pool with retry logic for transient
// failures.
func NewClient(cfg *config.LegacyDMSConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Legacy DMS connection disabled")
		return nil, nil
	}

	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("Legacy DMS enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	logger.Info("Initializing legacy DMS connection",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Int("conn_max_lifetime_seconds", cfg.ConnMaxLifetime),
		zap.Int("query_timeout_seconds", cfg.QueryTimeout),
	)

	connStr, err := buildConnectionString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	var db *sql.DB
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxRetries; attempt++ {
		logger.Info("Attempting legacy DMS connection",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", defaultMaxRetries),
		)

		db, err = sql.Open("sqlserver", connStr)
		if err != nil {
			logger.Warn("Failed to open legacy DMS connection",
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			if attempt < defaultMaxRetries {
				time.Sleep(backoff)
				backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
			}
			continue
		}

		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

		ctx, cancel := context.WithTimeout(context.Background(), defaultHealthCheckTimeout)
		err = db.PingContext(ctx)
		cancel()

		if err != nil {
			logger.Warn("Legacy DMS ping failed",
				zap.Error(err),
				zap.Int("attempt", attempt),
			)
			_ = db.Close()
			if attempt < defaultMaxRetries {
				time.Sleep(backoff)
				backoff = min(time.Duration(float64(backoff)*defaultBackoffFactor), defaultMaxBackoff)
			}
			continue
		}

		logger.Info("Legacy DMS connection established successfully",
			zap.Int("attempts_taken", attempt),
		)

		return &Client{
			db:           db,
			config:       cfg,
			logger:       logger,
			queryTimeout: cfg.QueryTimeoutDuration(),
		}, nil
	}

	return nil, fmt.Errorf("failed to connect to legacy DMS after %d attempts: %w", defaultMaxRetries, err)
}

// buildConnectionString constructs a SQL Server connection string from the
// config. URL format expected: host:port/database or host:port.
func buildConnectionString(cfg *config.LegacyDMSConfig) (string, error) {
	urlParts := strings.SplitN(cfg.URL, "/", 2)
	hostPort := urlParts[0]
	database := ""
	if len(urlParts) > 1 {
		database = urlParts[1]
	}

	hostParts := strings.SplitN(hostPort, ":", 2)
	host := hostParts[0]
	port := "1433" // Default SQL Server port
	if len(hostParts) > 1 {
		port = hostParts[1]
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		RawQuery: query.Encode(),
	}

	return u.String(), nil
}

// Close gracefully closes the DMS connection.
// Should be called during application shutdown.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}

	c.logger.Info("Closing legacy DMS connection")

	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close legacy DMS connection", zap.Error(err))
		return fmt.Errorf("failed to close legacy DMS connection: %w", err)
	}

	return nil
}

// HealthCheck performs a health check on the DMS connection.
// Returns detailed status including connection pool statistics.
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if c == nil || c.db == nil {
		return &HealthStatus{
			Status: "disabled",
		}
	}

	start := time.Now()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	err := c.db.PingContext(ctx)
	latency := time.Since(start)

	stats := c.db.Stats()
	status := &HealthStatus{
		Latency:    latency,
		MaxOpen:    stats.MaxOpenConnections,
		Open:       stats.OpenConnections,
		InUse:      stats.InUse,
		Idle:       stats.Idle,
		WaitCount:  stats.WaitCount,
		WaitTimeMs: stats.WaitDuration.Milliseconds(),
	}

	if err != nil {
		c.logger.Warn("Legacy DMS health check failed",
			zap.Error(err),
			zap.Duration("latency", latency),
		)
		status.Status = "unhealthy"
		status.Error = err.Error()
	} else {
		status.Status = "healthy"
	}

	return status
}

// IsEnabled returns true if the client is initialized and ready for queries
func (c *Client) IsEnabled() bool {
	return c != nil && c.db != nil
}

// FetchServiceTypes returns the active service catalog from the legacy DMS
func (c *Client) FetchServiceTypes(ctx context.Context) ([]ServiceRecord, error) {
	const query = `
		SELECT service_name, duration_minutes, is_active
		FROM dbo.workshop_service_catalog
		WHERE category = 'service'`
	return c.queryServiceRecords(ctx, query)
}

// FetchServiceAddons returns the active add-on catalog from the legacy DMS
func (c *Client) FetchServiceAddons(ctx context.Context) ([]ServiceRecord, error) {
	const query = `
		SELECT service_name, duration_minutes, is_active
		FROM dbo.workshop_service_catalog
		WHERE category = 'addon'`
	return c.queryServiceRecords(ctx, query)
}

func (c *Client) queryServiceRecords(ctx context.Context, query string) ([]ServiceRecord, error) {
	if c == nil || c.db == nil {
		return nil, fmt.Errorf("legacy DMS client not initialized")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	start := time.Now()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.logger.Error("Legacy DMS catalog query failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	var records []ServiceRecord
	for rows.Next() {
		var r ServiceRecord
		var duration sql.NullInt64
		var active sql.NullBool
		if err := rows.Scan(&r.Name, &duration, &active); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.DurationMinutes = int(duration.Int64)
		r.Active = !active.Valid || active.Bool
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	c.logger.Debug("Legacy DMS catalog query completed",
		zap.Int("rows_returned", len(records)),
		zap.Duration("duration", time.Since(start)),
	)

	return records, nil
}

// FetchInventoryItems returns the sales inventory from the legacy DMS
func (c *Client) FetchInventoryItems(ctx context.Context) ([]InventoryRecord, error) {
	if c == nil || c.db == nil {
		return nil, fmt.Errorf("legacy DMS client not initialized")
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	const query = `
		SELECT item_name, brand, is_active
		FROM dbo.workshop_inventory`

	start := time.Now()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.logger.Error("Legacy DMS inventory query failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	var records []InventoryRecord
	for rows.Next() {
		var r InventoryRecord
		var brand sql.NullString
		var active sql.NullBool
		if err := rows.Scan(&r.Name, &brand, &active); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.Brand = brand.String
		r.Active = !active.Valid || active.Bool
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	c.logger.Debug("Legacy DMS inventory query completed",
		zap.Int("rows_returned", len(records)),
		zap.Duration("duration", time.Since(start)),
	)

	return records, nil
}
