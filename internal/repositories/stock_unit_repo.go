package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fleetstock/internal/common"
	"fleetstock/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const unitColumns = `id, item_id, serial_number, barcode, status, location_id, purchase_price, purchased_at, retired_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUnit(row rowScanner, unit *models.StockUnit) error {
	return row.Scan(&unit.ID, &unit.ItemID, &unit.SerialNumber, &unit.Barcode, &unit.Status, &unit.LocationID,
		&unit.PurchasePrice, &unit.PurchasedAt, &unit.RetiredAt, &unit.CreatedAt, &unit.UpdatedAt)
}

type stockUnitRepo struct {
	db DBTX
}

func NewStockUnitRepo(db DBTX) StockUnitRepository {
	return &stockUnitRepo{db: db}
}

func (r *stockUnitRepo) Create(ctx context.Context, unit *models.StockUnit) error {
	query := `
		INSERT INTO stock_units (` + unitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query, unit.ID, unit.ItemID, unit.SerialNumber, unit.Barcode, unit.Status, unit.LocationID,
		unit.PurchasePrice, unit.PurchasedAt, unit.RetiredAt, unit.CreatedAt, unit.UpdatedAt)
	if err != nil {
		return translateUnitError(err, unit)
	}
	return nil
}

func (r *stockUnitRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StockUnit, error) {
	return r.get(ctx, `SELECT `+unitColumns+` FROM stock_units WHERE id = $1`, id)
}

func (r *stockUnitRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.StockUnit, error) {
	return r.get(ctx, `SELECT `+unitColumns+` FROM stock_units WHERE id = $1 FOR UPDATE`, id)
}

func (r *stockUnitRepo) get(ctx context.Context, query string, id uuid.UUID) (*models.StockUnit, error) {
	unit := &models.StockUnit{}
	err := scanUnit(r.db.QueryRow(ctx, query, id), unit)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFound("stock unit", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock unit: %w", err)
	}
	return unit, nil
}

// Update writes the mutable columns. Serial number, item and purchase data
// never change after receive.
func (r *stockUnitRepo) Update(ctx context.Context, unit *models.StockUnit) error {
	query := `
		UPDATE stock_units
		SET status = $1, location_id = $2, barcode = $3, retired_at = $4, updated_at = $5
		WHERE id = $6
	`
	tag, err := r.db.Exec(ctx, query, unit.Status, unit.LocationID, unit.Barcode, unit.RetiredAt, unit.UpdatedAt, unit.ID)
	if err != nil {
		return translateUnitError(err, unit)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("stock unit", unit.ID)
	}
	return nil
}

func (r *stockUnitRepo) SerialExists(ctx context.Context, serial string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM stock_units WHERE serial_number = $1)`
	if err := r.db.QueryRow(ctx, query, serial).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check serial number: %w", err)
	}
	return exists, nil
}

func (r *stockUnitRepo) BarcodeExists(ctx context.Context, barcode string, excludeID *uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM stock_units WHERE barcode = $1 AND ($2::uuid IS NULL OR id <> $2))`
	if err := r.db.QueryRow(ctx, query, barcode, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check barcode: %w", err)
	}
	return exists, nil
}

func (r *stockUnitRepo) List(ctx context.Context, filter *models.StockUnitFilter) ([]*models.StockUnit, error) {
	if filter == nil {
		filter = &models.StockUnitFilter{}
	}

	query := `SELECT ` + unitColumns + ` FROM stock_units WHERE 1=1`
	args := []interface{}{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.ItemID != nil {
		args = append(args, *filter.ItemID)
		query += fmt.Sprintf(" AND item_id = $%d", len(args))
	}
	if filter.LocationID != nil {
		args = append(args, *filter.LocationID)
		query += fmt.Sprintf(" AND location_id = $%d", len(args))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		query += fmt.Sprintf(" AND (serial_number ILIKE $%d OR barcode ILIKE $%d)", len(args), len(args))
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock units: %w", err)
	}
	defer rows.Close()

	var units []*models.StockUnit
	for rows.Next() {
		unit := &models.StockUnit{}
		if err := scanUnit(rows, unit); err != nil {
			return nil, fmt.Errorf("failed to scan stock unit: %w", err)
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (r *stockUnitRepo) CountInStock(ctx context.Context) (map[models.StockKey]int, error) {
	query := `
		SELECT item_id, location_id, COUNT(*)
		FROM stock_units
		WHERE status = 'IN_STOCK'
		GROUP BY item_id, location_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count units in stock: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.StockKey]int)
	for rows.Next() {
		var key models.StockKey
		var count int
		if err := rows.Scan(&key.ItemID, &key.LocationID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unit count: %w", err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func translateUnitError(err error, unit *models.StockUnit) error {
	if pgErr, ok := uniqueViolation(err); ok {
		switch pgErr.ConstraintName {
		case "stock_units_serial_number_key":
			return common.DuplicateIdentifier("serial_number", derefString(unit.SerialNumber))
		case "stock_units_barcode_key":
			return common.DuplicateIdentifier("barcode", derefString(unit.Barcode))
		}
	}
	return fmt.Errorf("failed to write stock unit: %w", err)
}
