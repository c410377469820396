package handlers

import (
	"context"
	"net/http"
	"time"

	"fleetstock/internal/caching"
	"fleetstock/internal/repositories"
	"fleetstock/internal/services"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandlers handles health check endpoints
type HealthHandlers struct {
	store     repositories.Store
	cache     caching.CacheService
	storage   services.MinioService
	bucket    string
	version   string
	startedAt time.Time
	logger    *zap.Logger
}

// NewHealthHandlers creates a new health handlers instance
func NewHealthHandlers(store repositories.Store, cache caching.CacheService, storage services.MinioService, bucket, version string, logger *zap.Logger) *HealthHandlers {
	return &HealthHandlers{
		store:     store,
		cache:     cache,
		storage:   storage,
		bucket:    bucket,
		version:   version,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

// LivenessCheck answers as long as the process is serving
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, &HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Version:   h.version,
	})
}

// ReadinessCheck pings the database, the cache and the export bucket. The
// database is critical; the others only degrade the status.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	health := &HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Version:   h.version,
	}

	statusCode := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("database health check failed", zap.Error(err))
		health.Services["database"] = "unhealthy"
		health.Status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else {
		health.Services["database"] = "healthy"
	}

	if err := h.cache.Ping(ctx); err != nil {
		h.logger.Warn("redis health check failed", zap.Error(err))
		health.Services["redis"] = "unhealthy"
		if statusCode == http.StatusOK {
			health.Status = "degraded"
		}
	} else {
		health.Services["redis"] = "healthy"
	}

	if err := h.storage.Ping(ctx, h.bucket); err != nil {
		h.logger.Warn("storage health check failed", zap.String("bucket", h.bucket), zap.Error(err))
		health.Services["storage"] = "unhealthy"
		if statusCode == http.StatusOK {
			health.Status = "degraded"
		}
	} else {
		health.Services["storage"] = "healthy"
	}

	return c.JSON(statusCode, health)
}
