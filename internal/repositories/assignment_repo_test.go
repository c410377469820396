package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"fleetstock/internal/common"
	"fleetstock/internal/models"
)

func newAssignment() *models.Assignment {
	return &models.Assignment{
		ID:          uuid.New(),
		StockUnitID: uuid.New(),
		Consumer:    models.ConsumerRef{Kind: models.ConsumerTruck, ID: uuid.New()},
		InstalledAt: time.Now().UTC(),
	}
}

func TestAssignmentRepo_CreateOpenConflict(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepo(mock)
	a := newAssignment()

	mock.ExpectExec(`INSERT INTO assignments`).
		WithArgs(a.ID, a.StockUnitID, a.Consumer.Kind, a.Consumer.ID, a.InstalledAt, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "assignments_open_unit_key"})

	err := repo.Create(context.Background(), a)
	assert.ErrorIs(t, err, common.ErrAlreadyAssigned)
}

func TestAssignmentRepo_Close(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepo(mock)
	a := newAssignment()
	removed := a.InstalledAt.Add(time.Hour)
	a.RemovedAt = &removed

	mock.ExpectExec(`UPDATE assignments\s+SET removed_at = \$1, note = \$2\s+WHERE id = \$3 AND removed_at IS NULL`).
		WithArgs(&removed, pgxmock.AnyArg(), a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.Close(context.Background(), a))
}

func TestAssignmentRepo_CloseAlreadyClosed(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepo(mock)
	a := newAssignment()
	removed := a.InstalledAt.Add(time.Hour)
	a.RemovedAt = &removed

	mock.ExpectExec(`UPDATE assignments`).
		WithArgs(&removed, pgxmock.AnyArg(), a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Close(context.Background(), a)
	assert.ErrorIs(t, err, common.ErrInvalidState)
}

func TestAssignmentRepo_OpenByUnitsEmpty(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssignmentRepo(mock)

	open, err := repo.OpenByUnits(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, open)
}

func TestMovementRepo_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewMovementRepo(mock)
	to := uuid.New()
	m := &models.Movement{
		ID:           uuid.New(),
		Type:         models.MovementIn,
		ItemID:       uuid.New(),
		Qty:          10,
		ToLocationID: &to,
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO movements`).
		WithArgs(m.ID, models.MovementIn, m.ItemID, 10, pgxmock.AnyArg(), &to, pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), m.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), m))
}
