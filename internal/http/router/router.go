package router

import (
	"encoding/json"
	"net/http"

	"github.com/garagedesk/workshop-api/internal/auth"
	"github.com/garagedesk/workshop-api/internal/config"
	"github.com/garagedesk/workshop-api/internal/database"
	"github.com/garagedesk/workshop-api/internal/http/handler"
	"github.com/garagedesk/workshop-api/internal/http/middleware"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/garagedesk/workshop-api/docs" // Import generated swagger docs
)

type Router struct {
	cfg               *config.Config
	logger            *zap.Logger
	db                *gorm.DB
	authMiddleware    *auth.Middleware
	branchFilter      *middleware.BranchFilterMiddleware
	rateLimiter       *middleware.RateLimiter
	orderHandler      *handler.OrderHandler
	extractionHandler *handler.ExtractionHandler
	catalogHandler    *handler.CatalogHandler
	invoiceHandler    *handler.InvoiceHandler
	documentHandler   *handler.DocumentHandler
	reportHandler     *handler.ReportHandler
	authHandler       *handler.AuthHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	branchFilter *middleware.BranchFilterMiddleware,
	rateLimiter *middleware.RateLimiter,
	orderHandler *handler.OrderHandler,
	extractionHandler *handler.ExtractionHandler,
	catalogHandler *handler.CatalogHandler,
	invoiceHandler *handler.InvoiceHandler,
	documentHandler *handler.DocumentHandler,
	reportHandler *handler.ReportHandler,
	authHandler *handler.AuthHandler,
) *Router {
	return &Router{
		cfg:               cfg,
		logger:            logger,
		db:                db,
		authMiddleware:    authMiddleware,
		branchFilter:      branchFilter,
		rateLimiter:       rateLimiter,
		orderHandler:      orderHandler,
		extractionHandler: extractionHandler,
		catalogHandler:    catalogHandler,
		invoiceHandler:    invoiceHandler,
		documentHandler:   documentHandler,
		reportHandler:     reportHandler,
		authHandler:       authHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP) // Apply IP-based rate limiting globally

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(r.Context(), rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
				"max_idle_closed":      stats.MaxIdleClosed,
				"max_lifetime_closed":  stats.MaxLifetimeClosed,
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		// Check database
		if err := database.HealthCheck(r.Context(), rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if allHealthy {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "healthy",
				"checks": checks,
			})
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "unhealthy",
				"checks": checks,
			})
		}
	})

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.branchFilter.Filter)
		r.Use(rt.rateLimiter.Limit) // Per-user rate limiting after auth

		// Auth
		r.Get("/auth/me", rt.authHandler.Me)
		r.With(rt.authMiddleware.RequireAdmin).Post("/auth/token", rt.authHandler.IssueToken)

		// Orders
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", rt.orderHandler.List)
			r.Get("/kpis", rt.orderHandler.KPIs)
			r.Post("/start", rt.orderHandler.Start)
			r.Post("/check-plate", rt.orderHandler.CheckPlate)

			// Extraction intake
			r.Post("/from-extraction", rt.extractionHandler.UpdateFromExtraction)
			r.Post("/from-modal", rt.extractionHandler.CreateFromModal)

			r.Get("/{id}", rt.orderHandler.Get)
			r.Put("/{id}/customer", rt.orderHandler.UpdateCustomer)
			r.Put("/{id}/vehicle", rt.orderHandler.UpdateVehicle)
			r.Patch("/{id}/details", rt.orderHandler.UpdateDetails)
			r.Post("/{id}/complete", rt.orderHandler.Complete)
			r.Post("/{id}/overrun", rt.orderHandler.RecordOverrun)

			// Sub-resources
			r.Get("/{id}/invoices", rt.invoiceHandler.ListByOrder)
			r.Post("/{id}/invoices", rt.invoiceHandler.Create)
			r.Get("/{id}/documents", rt.documentHandler.ListByOrder)
			r.Post("/{id}/documents", rt.documentHandler.Upload)
		})

		// Invoices
		r.Get("/invoices/{id}", rt.invoiceHandler.Get)

		// Documents
		r.Get("/documents/{id}/download", rt.documentHandler.Download)

		// Catalog
		r.Get("/catalog", rt.catalogHandler.Get)

		// Reports
		r.Get("/reports/overruns", rt.reportHandler.Overruns)
	})

	return r
}
