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

type locationRepo struct {
	db DBTX
}

func NewLocationRepo(db DBTX) LocationRepository {
	return &locationRepo{db: db}
}

func (r *locationRepo) Create(ctx context.Context, location *models.Location) error {
	query := `INSERT INTO locations (id, name, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, query, location.ID, location.Name, location.CreatedAt)
	if _, ok := uniqueViolation(err); ok {
		return common.DuplicateIdentifier("name", location.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

func (r *locationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	location := &models.Location{}
	query := `SELECT id, name, created_at FROM locations WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&location.ID, &location.Name, &location.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NotFound("location", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return location, nil
}

func (r *locationRepo) List(ctx context.Context) ([]*models.Location, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.Location
	for rows.Next() {
		location := &models.Location{}
		if err := rows.Scan(&location.ID, &location.Name, &location.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, location)
	}
	return locations, rows.Err()
}
