package jobs

import (
	"context"
	"fmt"

	"fleetstock/internal/models"
	"fleetstock/internal/services"

	"go.uber.org/zap"
)

// ReconciliationJob replays the movement ledger against the stored stock
// levels and unit registry, logging every discrepancy it finds.
type ReconciliationJob struct {
	reporting services.ReportingService
	logger    *zap.Logger
}

func NewReconciliationJob(reporting services.ReportingService, logger *zap.Logger) *ReconciliationJob {
	return &ReconciliationJob{
		reporting: reporting,
		logger:    logger.With(zap.String("job", "reconciliation")),
	}
}

func (j *ReconciliationJob) Run(ctx context.Context) (*models.ReconciliationReport, error) {
	report, err := j.reporting.Reconcile(ctx)
	if err != nil {
		j.logger.Error("reconciliation failed", zap.Error(err))
		return nil, fmt.Errorf("reconcile ledger: %w", err)
	}

	for _, d := range report.Discrepancies {
		j.logger.Error("stock discrepancy",
			zap.String("kind", d.Kind),
			zap.String("item_id", d.ItemID.String()),
			zap.String("location_id", d.LocationID.String()),
			zap.Int("recorded_qty", d.RecordedQty),
			zap.Int("expected_qty", d.ExpectedQty))
	}
	j.logger.Info("reconciliation finished",
		zap.Bool("consistent", report.Consistent()),
		zap.Int("pairs_checked", report.PairsChecked),
		zap.Int("movements", report.Movements))
	return report, nil
}
