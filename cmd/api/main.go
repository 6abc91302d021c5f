package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garagedesk/workshop-api/docs"
	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/config"
	"github.com/garagedesk/workshop-api/internal/database"
	"github.com/garagedesk/workshop-api/internal/http/handler"
	"github.com/garagedesk/workshop-api/internal/http/middleware"
	"github.com/garagedesk/workshop-api/internal/http/router"
	"github.com/garagedesk/workshop-api/internal/jobs"
	"github.com/garagedesk/workshop-api/internal/legacydms"
	"github.com/garagedesk/workshop-api/internal/logger"
	"github.com/garagedesk/workshop-api/internal/repository"
	"github.com/garagedesk/workshop-api/internal/service"
	"github.com/garagedesk/workshop-api/internal/storage"
	"go.uber.org/zap"
)

// @title GarageDesk Workshop API
// @version 1.0
// @description Workshop order intake, customer reconciliation and invoicing API
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@garagedesk.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Configure Swagger host based on environment
	switch basicCfg.App.Environment {
	case "staging":
		docs.SwaggerInfo.Host = "workshop-api-staging.garagedesk.io"
	case "production":
		docs.SwaggerInfo.Host = "api.garagedesk.io"
	default:
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// Connect to database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// AutoMigrate keeps the dev schema current; deployed environments run
	// the goose migrations instead
	if cfg.App.Environment == "development" {
		if err := database.AutoMigrate(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	// Initialize storage
	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Initialize legacy DMS connection (optional - for catalog sync)
	// This connection is read-only and the app continues without it if not configured
	var dmsClient *legacydms.Client
	if cfg.LegacyDMS.Enabled {
		dmsClient, err = legacydms.NewClient(&cfg.LegacyDMS, log)
		if err != nil {
			// Log error but don't fail - the legacy DMS is optional
			log.Warn("Legacy DMS connection failed, continuing without it",
				zap.Error(err),
			)
		} else if dmsClient != nil {
			log.Info("Legacy DMS connected successfully",
				zap.Int("max_open_conns", cfg.LegacyDMS.MaxOpenConns),
				zap.Int("query_timeout_seconds", cfg.LegacyDMS.QueryTimeout),
			)
		}
	} else {
		log.Info("Legacy DMS not configured, skipping",
			zap.Bool("enabled", cfg.LegacyDMS.Enabled),
		)
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Initialize services
	// Number sequence service first (orders and invoices depend on it)
	numberSequenceService := service.NewNumberSequenceService(numberSequenceRepo, branchRepo, log)

	identityService := service.NewIdentityService(db, customerRepo, vehicleRepo, log)
	catalogService := service.NewCatalogService(catalogRepo, log)
	orderService := service.NewOrderService(db, orderRepo, identityService, catalogService, numberSequenceService, log)
	extractionService := service.NewExtractionService(db, orderRepo, identityService, catalogService, numberSequenceService, log)
	invoiceService := service.NewInvoiceService(db, invoiceRepo, orderRepo, numberSequenceService, log)
	reportService := service.NewReportService(orderRepo, log)
	documentService := service.NewDocumentService(documentRepo, orderRepo, fileStorage, log)

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	branchFilterMiddleware := middleware.NewBranchFilterMiddleware(log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize handlers
	orderHandler := handler.NewOrderHandler(orderService, identityService, invoiceService, reportService, log)
	extractionHandler := handler.NewExtractionHandler(extractionService, log)
	catalogHandler := handler.NewCatalogHandler(catalogService, log)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, log)
	documentHandler := handler.NewDocumentHandler(documentService, cfg.Storage.MaxUploadSizeMB, log)
	reportHandler := handler.NewReportHandler(reportService, log)
	authHandler := handler.NewAuthHandler(userRepo, authMiddleware.Validator(), &cfg.Auth, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		authMiddleware,
		branchFilterMiddleware,
		rateLimiter,
		orderHandler,
		extractionHandler,
		catalogHandler,
		invoiceHandler,
		documentHandler,
		reportHandler,
		authHandler,
	)

	// Initialize and start scheduler for background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.CatalogSyncEnabled && dmsClient != nil {
		scheduler = jobs.NewScheduler(log)

		if err := jobs.RegisterCatalogSyncJob(
			scheduler,
			dmsClient,
			catalogRepo,
			log,
			cfg.Jobs.CatalogSyncSchedule,
		); err != nil {
			log.Error("Failed to register catalog sync job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started with catalog sync job",
				zap.String("cron_expr", cfg.Jobs.CatalogSyncSchedule),
			)
		}
	} else {
		log.Info("Catalog sync disabled",
			zap.Bool("sync_enabled", cfg.Jobs.CatalogSyncEnabled),
			zap.Bool("dms_client_available", dmsClient != nil),
		)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler if running
		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		// Close legacy DMS connection if initialized
		if dmsClient != nil {
			if err := dmsClient.Close(); err != nil {
				log.Warn("Error closing legacy DMS connection", zap.Error(err))
			}
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
