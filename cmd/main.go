package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"fleetstock/internal/caching"
	"fleetstock/internal/config"
	_ "fleetstock/internal/docs"
	"fleetstock/internal/handlers"
	"fleetstock/internal/jobs"
	"fleetstock/internal/jobs/background"
	"fleetstock/internal/logger"
	"fleetstock/internal/middleware"
	"fleetstock/internal/repositories"
	"fleetstock/internal/repositories/memory"
	"fleetstock/internal/services"
	"fleetstock/pkg/database"
)

const version = "1.0.0"

//	@title						fleetstock API
//	@version					1.0
//	@description				Spare-part inventory ledger for a truck fleet.
//	@BasePath					/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store and cache
	var (
		store repositories.Store
		cache caching.CacheService
	)
	switch cfg.Server.StoreDriver {
	case "postgres":
		pool, err := database.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns, zapLogger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		if err := repositories.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
		store = repositories.NewPostgresStore(pool, zapLogger,
			repositories.WithMaxAttempts(cfg.Database.TxMaxAttempts),
			repositories.WithLockTimeout(cfg.Database.LockTimeout),
		)
		cache = caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, zapLogger)
	case "memory":
		zapLogger.Warn("using in-memory store, data is lost on restart")
		store = memory.NewStore()
		cache = caching.NewNoopCacheService()
	}

	// Initialize MinIO service
	minioSvc, err := services.NewMinioService(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.UseSSL)
	if err != nil {
		return fmt.Errorf("failed to initialize MinIO service: %w", err)
	}

	// Services
	catalogSvc := services.NewCatalogService(store, zapLogger)
	allocationSvc := services.NewAllocationService(store, cache, zapLogger)
	reportingSvc := services.NewReportingService(store, cache, zapLogger)
	exportSvc := services.NewExportService(reportingSvc, minioSvc, cfg.Storage.ExportBucket, zapLogger)

	// Background jobs
	if cfg.Jobs.Enabled {
		scheduler, err := background.NewJobScheduler(cfg.Jobs, background.Jobs{
			Reconciliation: jobs.NewReconciliationJob(reportingSvc, zapLogger),
			LedgerExport:   jobs.NewLedgerExportJob(exportSvc, cfg.Jobs.ExportInterval, cfg.Jobs.ExportSettleDelay, zapLogger),
			LowStock:       jobs.NewLowStockAlertService(reportingSvc, zapLogger),
		}, zapLogger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			if err := scheduler.Stop(); err != nil {
				zapLogger.Warn("scheduler shutdown failed", zap.Error(err))
			}
		}()
	}

	// Authentication
	jwtAuth, stopJWKS, err := middleware.JWTAuth(cfg.Auth, zapLogger)
	if err != nil {
		return err
	}
	defer stopJWKS()

	// Create handlers
	inventoryHandlers := handlers.NewInventoryHandlers(catalogSvc, allocationSvc, reportingSvc, exportSvc, zapLogger)
	unitHandlers := handlers.NewUnitHandlers(allocationSvc, reportingSvc, zapLogger)
	healthHandlers := handlers.NewHealthHandlers(store, cache, minioSvc, cfg.Storage.ExportBucket, version, zapLogger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()

	// Global middleware
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(middleware.RequestLogger(zapLogger))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.LivenessCheck)
	e.GET("/health/ready", healthHandlers.ReadinessCheck)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// API routes
	v1 := versionMiddleware.VersionRoute(e, "v1")
	inventory := v1.Group("/inventory",
		jwtAuth,
		middleware.RequireRole(middleware.InventoryRoles...),
		middleware.Idempotency(cache, zapLogger),
	)
	inventoryHandlers.RegisterRoutes(inventory)
	unitHandlers.RegisterRoutes(inventory)

	// Start server
	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("fleetstock server starting",
			zap.String("version", version),
			zap.Int("port", cfg.Server.Port),
			zap.String("store", cfg.Server.StoreDriver))
		if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
