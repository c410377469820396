package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"fleetstock/internal/common"
	"fleetstock/internal/models"

	"go.uber.org/zap"
)

const (
	ExportURLExpiry = time.Hour
	csvContentType  = "text/csv"
)

var ledgerCSVHeader = []string{
	"created_at", "id", "type", "item_id", "qty",
	"from_location_id", "to_location_id", "stock_unit_id",
	"consumer_kind", "consumer_id", "note", "actor_id",
}

// ExportService writes the movement ledger to object storage as CSV.
type ExportService interface {
	ExportLedger(ctx context.Context, req *models.ExportRequest) (*models.LedgerExport, error)
}

type exportService struct {
	reporting ReportingService
	storage   MinioService
	bucket    string
	logger    *zap.Logger
	now       func() time.Time
}

func NewExportService(reporting ReportingService, storage MinioService, bucket string, logger *zap.Logger, opts ...Option) ExportService {
	o := applyOptions(opts)
	return &exportService{
		reporting: reporting,
		storage:   storage,
		bucket:    bucket,
		logger:    logger.With(zap.String("component", "export")),
		now:       o.now,
	}
}

func (s *exportService) ExportLedger(ctx context.Context, req *models.ExportRequest) (*models.LedgerExport, error) {
	now := s.now()
	from, to := time.Unix(0, 0).UTC(), now
	if req != nil && req.From != nil {
		from = req.From.UTC()
	}
	if req != nil && req.To != nil {
		to = req.To.UTC()
	}
	if !from.Before(to) {
		return nil, common.Validation("from", "from must be before to")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ledgerCSVHeader); err != nil {
		return nil, err
	}
	rows := 0
	err := s.reporting.ForEachMovement(ctx, from, to, func(m *models.Movement) error {
		rows++
		return w.Write(movementRecord(m))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to encode ledger: %w", err)
	}

	if err := s.storage.EnsureBucketExists(ctx, s.bucket); err != nil {
		return nil, fmt.Errorf("failed to prepare export bucket: %w", err)
	}
	object := fmt.Sprintf("movements/%s_%s.csv", from.Format("20060102T150405Z"), to.Format("20060102T150405Z"))
	if err := s.storage.PutObject(ctx, s.bucket, object, bytes.NewReader(buf.Bytes()), int64(buf.Len()), csvContentType); err != nil {
		return nil, fmt.Errorf("failed to upload ledger export: %w", err)
	}
	url, err := s.storage.GetPresignedURL(ctx, s.bucket, object, ExportURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign ledger export: %w", err)
	}

	s.logger.Info("ledger exported", zap.String("object", object), zap.Int("rows", rows))
	return &models.LedgerExport{
		Bucket:    s.bucket,
		Object:    object,
		From:      from,
		To:        to,
		Rows:      rows,
		URL:       url,
		ExpiresAt: now.Add(ExportURLExpiry),
	}, nil
}

func movementRecord(m *models.Movement) []string {
	record := []string{
		m.CreatedAt.UTC().Format(time.RFC3339Nano),
		m.ID.String(),
		string(m.Type),
		m.ItemID.String(),
		strconv.Itoa(m.Qty),
		"", "", "", "", "", "", "",
	}
	if m.FromLocationID != nil {
		record[5] = m.FromLocationID.String()
	}
	if m.ToLocationID != nil {
		record[6] = m.ToLocationID.String()
	}
	if m.StockUnitID != nil {
		record[7] = m.StockUnitID.String()
	}
	if m.Consumer != nil {
		record[8] = string(m.Consumer.Kind)
		record[9] = m.Consumer.ID.String()
	}
	if m.Note != nil {
		record[10] = *m.Note
	}
	if m.ActorID != nil {
		record[11] = m.ActorID.String()
	}
	return record
}
