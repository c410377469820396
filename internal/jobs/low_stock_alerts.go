package jobs

import (
	"context"
	"fmt"

	"fleetstock/internal/models"
	"fleetstock/internal/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LowStockAlert is one fungible stock level at or below the threshold
type LowStockAlert struct {
	ItemID       uuid.UUID
	SKU          string
	LocationID   uuid.UUID
	LocationName string
	CurrentStock int
	Threshold    int
}

type LowStockAlertService struct {
	reporting services.ReportingService
	logger    *zap.Logger
}

func NewLowStockAlertService(reporting services.ReportingService, logger *zap.Logger) *LowStockAlertService {
	return &LowStockAlertService{
		reporting: reporting,
		logger:    logger.With(zap.String("job", "low-stock-alerts")),
	}
}

// CheckLowStock lists stock levels holding threshold or fewer. Serialized
// items are tracked per unit and are skipped.
func (a *LowStockAlertService) CheckLowStock(ctx context.Context, threshold int) ([]LowStockAlert, error) {
	if threshold <= 0 {
		return nil, nil
	}
	levels, err := a.reporting.StockLevels(ctx, &models.StockLevelFilter{})
	if err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}

	var alerts []LowStockAlert
	for _, level := range levels {
		if level.Item.IsSerialized || level.Qty > threshold {
			continue
		}
		alerts = append(alerts, LowStockAlert{
			ItemID:       level.ItemID,
			SKU:          level.Item.SKU,
			LocationID:   level.LocationID,
			LocationName: level.Location.Name,
			CurrentStock: level.Qty,
			Threshold:    threshold,
		})
	}
	return alerts, nil
}

func (a *LowStockAlertService) LogLowStockAlerts(alerts []LowStockAlert) {
	for _, alert := range alerts {
		a.logger.Warn("low stock",
			zap.String("sku", alert.SKU),
			zap.String("location", alert.LocationName),
			zap.Int("current_stock", alert.CurrentStock),
			zap.Int("threshold", alert.Threshold))
	}
}

// Run checks and logs in one pass, for the scheduler
func (a *LowStockAlertService) Run(ctx context.Context, threshold int) error {
	alerts, err := a.CheckLowStock(ctx, threshold)
	if err != nil {
		a.logger.Error("low stock check failed", zap.Error(err))
		return err
	}
	a.LogLowStockAlerts(alerts)
	return nil
}
