package repositories

import (
	"context"
	"fmt"
	"time"

	"fleetstock/internal/models"

	"github.com/google/uuid"
)

const movementColumns = `id, type, item_id, qty, from_location_id, to_location_id, stock_unit_id, consumer_kind, consumer_id, note, actor_id, created_at`

func scanMovement(row rowScanner, m *models.Movement) error {
	var kind *models.ConsumerKind
	var consumerID *uuid.UUID
	if err := row.Scan(&m.ID, &m.Type, &m.ItemID, &m.Qty, &m.FromLocationID, &m.ToLocationID, &m.StockUnitID,
		&kind, &consumerID, &m.Note, &m.ActorID, &m.CreatedAt); err != nil {
		return err
	}
	if kind != nil && consumerID != nil {
		m.Consumer = &models.ConsumerRef{Kind: *kind, ID: *consumerID}
	}
	return nil
}

type movementRepo struct {
	db DBTX
}

func NewMovementRepo(db DBTX) MovementRepository {
	return &movementRepo{db: db}
}

func (r *movementRepo) Create(ctx context.Context, m *models.Movement) error {
	var kind *models.ConsumerKind
	var consumerID *uuid.UUID
	if m.Consumer != nil {
		kind, consumerID = &m.Consumer.Kind, &m.Consumer.ID
	}
	query := `
		INSERT INTO movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query, m.ID, m.Type, m.ItemID, m.Qty, m.FromLocationID, m.ToLocationID, m.StockUnitID,
		kind, consumerID, m.Note, m.ActorID, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

// List returns the newest movements first.
func (r *movementRepo) List(ctx context.Context, filter *models.MovementFilter) ([]*models.Movement, error) {
	if filter == nil {
		filter = &models.MovementFilter{}
	}
	filter.Normalize()

	query := `SELECT ` + movementColumns + ` FROM movements WHERE 1=1`
	args := []interface{}{}
	if filter.ItemID != nil {
		args = append(args, *filter.ItemID)
		query += fmt.Sprintf(" AND item_id = $%d", len(args))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Consumer != nil {
		args = append(args, filter.Consumer.Kind, filter.Consumer.ID)
		query += fmt.Sprintf(" AND consumer_kind = $%d AND consumer_id = $%d", len(args)-1, len(args))
	}
	if filter.StockUnitID != nil {
		args = append(args, *filter.StockUnitID)
		query += fmt.Sprintf(" AND stock_unit_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, seq DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	var movements []*models.Movement
	for rows.Next() {
		m := &models.Movement{}
		if err := scanMovement(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func (r *movementRepo) ForEach(ctx context.Context, from, to time.Time, fn func(*models.Movement) error) error {
	query := `
		SELECT ` + movementColumns + `
		FROM movements
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY seq
	`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return fmt.Errorf("failed to read movements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		m := &models.Movement{}
		if err := scanMovement(rows, m); err != nil {
			return fmt.Errorf("failed to scan movement: %w", err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return rows.Err()
}

// NetEffects replays the ledger in SQL: +qty into to_location, -qty out of
// from_location.
func (r *movementRepo) NetEffects(ctx context.Context) (map[models.StockKey]int, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM movements`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count movements: %w", err)
	}

	query := `
		SELECT item_id, location_id, SUM(delta)
		FROM (
			SELECT item_id, to_location_id AS location_id, qty AS delta
			FROM movements WHERE to_location_id IS NOT NULL
			UNION ALL
			SELECT item_id, from_location_id, -qty
			FROM movements WHERE from_location_id IS NOT NULL
		) effects
		GROUP BY item_id, location_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to replay movements: %w", err)
	}
	defer rows.Close()

	net := make(map[models.StockKey]int)
	for rows.Next() {
		var key models.StockKey
		var sum int
		if err := rows.Scan(&key.ItemID, &key.LocationID, &sum); err != nil {
			return nil, 0, fmt.Errorf("failed to scan movement effect: %w", err)
		}
		net[key] = sum
	}
	return net, total, rows.Err()
}
