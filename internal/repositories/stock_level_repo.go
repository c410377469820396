package repositories

import (
	"context"
	"errors"
	"fmt"

	"fleetstock/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type stockLevelRepo struct {
	db DBTX
}

func NewStockLevelRepo(db DBTX) StockLevelRepository {
	return &stockLevelRepo{db: db}
}

// LockForUpdate is get-or-create followed by a row lock. The insert is a
// no-op when the row exists, so two callers racing on a new pair both end
// up waiting on the same row.
func (r *stockLevelRepo) LockForUpdate(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, error) {
	insert := `
		INSERT INTO stock_levels (item_id, location_id, qty, updated_at)
		VALUES ($1, $2, 0, NOW())
		ON CONFLICT (item_id, location_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, itemID, locationID); err != nil {
		return nil, fmt.Errorf("failed to create stock level: %w", err)
	}

	level := &models.StockLevel{ItemID: itemID, LocationID: locationID}
	query := `
		SELECT qty, updated_at
		FROM stock_levels
		WHERE item_id = $1 AND location_id = $2
		FOR UPDATE
	`
	if err := r.db.QueryRow(ctx, query, itemID, locationID).Scan(&level.Qty, &level.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to lock stock level: %w", err)
	}
	return level, nil
}

func (r *stockLevelRepo) Get(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, error) {
	level := &models.StockLevel{ItemID: itemID, LocationID: locationID}
	query := `SELECT qty, updated_at FROM stock_levels WHERE item_id = $1 AND location_id = $2`
	err := r.db.QueryRow(ctx, query, itemID, locationID).Scan(&level.Qty, &level.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return level, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock level: %w", err)
	}
	return level, nil
}

func (r *stockLevelRepo) SetQty(ctx context.Context, level *models.StockLevel) error {
	query := `
		UPDATE stock_levels
		SET qty = $1, updated_at = $2
		WHERE item_id = $3 AND location_id = $4
	`
	tag, err := r.db.Exec(ctx, query, level.Qty, level.UpdatedAt, level.ItemID, level.LocationID)
	if err != nil {
		return fmt.Errorf("failed to update stock level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("stock level %s/%s was not locked before update", level.ItemID, level.LocationID)
	}
	return nil
}

func (r *stockLevelRepo) List(ctx context.Context, filter *models.StockLevelFilter) ([]*models.StockLevelView, error) {
	query := `
		SELECT s.item_id, s.location_id, s.qty, s.updated_at,
		       i.sku, i.name, i.unit_of_measure, i.is_serialized, i.created_at, i.updated_at,
		       l.name, l.created_at
		FROM stock_levels s
		JOIN items i ON i.id = s.item_id
		JOIN locations l ON l.id = s.location_id
		WHERE ($1::uuid IS NULL OR s.item_id = $1)
		  AND ($2::uuid IS NULL OR s.location_id = $2)
		ORDER BY i.sku, l.name
	`
	var itemID, locationID *uuid.UUID
	if filter != nil {
		itemID, locationID = filter.ItemID, filter.LocationID
	}
	rows, err := r.db.Query(ctx, query, itemID, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock levels: %w", err)
	}
	defer rows.Close()

	var levels []*models.StockLevelView
	for rows.Next() {
		v := &models.StockLevelView{}
		if err := rows.Scan(
			&v.ItemID, &v.LocationID, &v.Qty, &v.StockLevel.UpdatedAt,
			&v.Item.SKU, &v.Item.Name, &v.Item.UnitOfMeasure, &v.Item.IsSerialized, &v.Item.CreatedAt, &v.Item.UpdatedAt,
			&v.Location.Name, &v.Location.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock level: %w", err)
		}
		v.Item.ID = v.ItemID
		v.Location.ID = v.LocationID
		levels = append(levels, v)
	}
	return levels, rows.Err()
}
