package repositories

import (
	"context"
	"errors"
	"fmt"

	"fleetstock/internal/common"
	"fleetstock/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type itemRepo struct {
	db DBTX
}

func NewItemRepo(db DBTX) ItemRepository {
	return &itemRepo{db: db}
}

func (r *itemRepo) Create(ctx context.Context, item *models.Item) error {
	query := `
		INSERT INTO items (id, sku, name, unit_of_measure, is_serialized, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, item.ID, item.SKU, item.Name, item.UnitOfMeasure, item.IsSerialized, item.CreatedAt, item.UpdatedAt)
	if _, ok := uniqueViolation(err); ok {
		return common.DuplicateIdentifier("sku", item.SKU)
	}
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (r *itemRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item := &models.Item{}
	query := `
		SELECT id, sku, name, unit_of_measure, is_serialized, created_at, updated_at
		FROM items
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(&item.ID, &item.SKU, &item.Name, &item.UnitOfMeasure, &item.IsSerialized, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFound("item", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *itemRepo) Update(ctx context.Context, item *models.Item) error {
	query := `
		UPDATE items
		SET name = $1, unit_of_measure = $2, updated_at = $3
		WHERE id = $4
	`
	tag, err := r.db.Exec(ctx, query, item.Name, item.UnitOfMeasure, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.NotFound("item", item.ID)
	}
	return nil
}

// Search matches SKU or name case-insensitively; an empty query lists everything.
func (r *itemRepo) Search(ctx context.Context, filter *models.ItemSearchFilter) ([]*models.Item, error) {
	query := `
		SELECT id, sku, name, unit_of_measure, is_serialized, created_at, updated_at
		FROM items
		WHERE $1 = '' OR sku ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		ORDER BY sku
	`
	q := ""
	if filter != nil {
		q = filter.Query
	}
	rows, err := r.db.Query(ctx, query, q)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item := &models.Item{}
		if err := rows.Scan(&item.ID, &item.SKU, &item.Name, &item.UnitOfMeasure, &item.IsSerialized, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
