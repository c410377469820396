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

const assignmentColumns = `id, stock_unit_id, consumer_kind, consumer_id, installed_at, removed_at, note, actor_id`

func scanAssignment(row rowScanner, a *models.Assignment) error {
	return row.Scan(&a.ID, &a.StockUnitID, &a.Consumer.Kind, &a.Consumer.ID, &a.InstalledAt, &a.RemovedAt, &a.Note, &a.ActorID)
}

type assignmentRepo struct {
	db DBTX
}

func NewAssignmentRepo(db DBTX) AssignmentRepository {
	return &assignmentRepo{db: db}
}

// Create opens an assignment. The partial unique index on open assignments
// turns a lost race into AlreadyAssigned.
func (r *assignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	query := `
		INSERT INTO assignments (` + assignmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query, a.ID, a.StockUnitID, a.Consumer.Kind, a.Consumer.ID, a.InstalledAt, a.RemovedAt, a.Note, a.ActorID)
	if pgErr, ok := uniqueViolation(err); ok && pgErr.ConstraintName == "assignments_open_unit_key" {
		return common.AlreadyAssigned(a.StockUnitID)
	}
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

func (r *assignmentRepo) GetOpenForUpdate(ctx context.Context, unitID uuid.UUID) (*models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE stock_unit_id = $1 AND removed_at IS NULL
		FOR UPDATE
	`
	a := &models.Assignment{}
	err := scanAssignment(r.db.QueryRow(ctx, query, unitID), a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open assignment: %w", err)
	}
	return a, nil
}

func (r *assignmentRepo) Close(ctx context.Context, a *models.Assignment) error {
	query := `
		UPDATE assignments
		SET removed_at = $1, note = $2
		WHERE id = $3 AND removed_at IS NULL
	`
	tag, err := r.db.Exec(ctx, query, a.RemovedAt, a.Note, a.ID)
	if err != nil {
		return fmt.Errorf("failed to close assignment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.InvalidState("assignment is already closed")
	}
	return nil
}

func (r *assignmentRepo) ListByUnit(ctx context.Context, unitID uuid.UUID) ([]*models.Assignment, error) {
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE stock_unit_id = $1
		ORDER BY installed_at DESC, id
	`
	rows, err := r.db.Query(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*models.Assignment
	for rows.Next() {
		a := &models.Assignment{}
		if err := scanAssignment(rows, a); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (r *assignmentRepo) OpenByUnits(ctx context.Context, unitIDs []uuid.UUID) (map[uuid.UUID]*models.Assignment, error) {
	open := make(map[uuid.UUID]*models.Assignment)
	if len(unitIDs) == 0 {
		return open, nil
	}
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE stock_unit_id = ANY($1) AND removed_at IS NULL
	`
	rows, err := r.db.Query(ctx, query, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list open assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a := &models.Assignment{}
		if err := scanAssignment(rows, a); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		open[a.StockUnitID] = a
	}
	return open, rows.Err()
}

func (r *assignmentRepo) ListByConsumer(ctx context.Context, consumer models.ConsumerRef, currentOnly bool) ([]*models.ConsumerPart, error) {
	query := `
		SELECT a.id, a.stock_unit_id, a.consumer_kind, a.consumer_id, a.installed_at, a.removed_at, a.note, a.actor_id,
		       u.id, u.item_id, u.serial_number, u.barcode, u.status, u.location_id, u.purchase_price, u.purchased_at, u.retired_at, u.created_at, u.updated_at,
		       i.sku, i.name, i.unit_of_measure, i.is_serialized, i.created_at, i.updated_at
		FROM assignments a
		JOIN stock_units u ON u.id = a.stock_unit_id
		JOIN items i ON i.id = u.item_id
		WHERE a.consumer_kind = $1 AND a.consumer_id = $2
		  AND (NOT $3 OR a.removed_at IS NULL)
		ORDER BY a.installed_at DESC, a.id
	`
	rows, err := r.db.Query(ctx, query, consumer.Kind, consumer.ID, currentOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumer parts: %w", err)
	}
	defer rows.Close()

	var parts []*models.ConsumerPart
	for rows.Next() {
		p := &models.ConsumerPart{}
		a, u, i := &p.Assignment, &p.Unit, &p.Item
		if err := rows.Scan(
			&a.ID, &a.StockUnitID, &a.Consumer.Kind, &a.Consumer.ID, &a.InstalledAt, &a.RemovedAt, &a.Note, &a.ActorID,
			&u.ID, &u.ItemID, &u.SerialNumber, &u.Barcode, &u.Status, &u.LocationID, &u.PurchasePrice, &u.PurchasedAt, &u.RetiredAt, &u.CreatedAt, &u.UpdatedAt,
			&i.SKU, &i.Name, &i.UnitOfMeasure, &i.IsSerialized, &i.CreatedAt, &i.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan consumer part: %w", err)
		}
		i.ID = u.ItemID
		parts = append(parts, p)
	}
	return parts, rows.Err()
}
