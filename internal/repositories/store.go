package repositories

import (
	"context"
	"time"

	"fleetstock/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxFunc is one unit of work. Returning an error rolls back every write
// made through uow.
type TxFunc func(ctx context.Context, uow UnitOfWork) error

// Store runs units of work against a backing store.
type Store interface {
	// RunInTx executes fn atomically. Transient conflicts are retried a
	// bounded number of times before surfacing as common.ErrConflict.
	RunInTx(ctx context.Context, fn TxFunc) error
	// View executes fn for reads only. Every read in fn sees the same
	// committed snapshot. Writes made through uow in View are undefined.
	View(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
}

// UnitOfWork groups the repositories that share one transaction.
type UnitOfWork interface {
	Items() ItemRepository
	Locations() LocationRepository
	StockLevels() StockLevelRepository
	Units() StockUnitRepository
	Assignments() AssignmentRepository
	Movements() MovementRepository
}

type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	Search(ctx context.Context, filter *models.ItemSearchFilter) ([]*models.Item, error)
}

type LocationRepository interface {
	Create(ctx context.Context, location *models.Location) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error)
	List(ctx context.Context) ([]*models.Location, error)
}

type StockLevelRepository interface {
	// LockForUpdate loads the (item, location) row, creating it at qty 0 if
	// absent, and holds its row lock until the unit of work ends.
	LockForUpdate(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, error)
	// Get reads without locking. A missing row reads as qty 0.
	Get(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, error)
	SetQty(ctx context.Context, level *models.StockLevel) error
	List(ctx context.Context, filter *models.StockLevelFilter) ([]*models.StockLevelView, error)
}

type StockUnitRepository interface {
	Create(ctx context.Context, unit *models.StockUnit) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StockUnit, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.StockUnit, error)
	Update(ctx context.Context, unit *models.StockUnit) error
	SerialExists(ctx context.Context, serial string) (bool, error)
	// BarcodeExists ignores the unit named by excludeID, if any.
	BarcodeExists(ctx context.Context, barcode string, excludeID *uuid.UUID) (bool, error)
	List(ctx context.Context, filter *models.StockUnitFilter) ([]*models.StockUnit, error)
	// CountInStock counts IN_STOCK units per (item, location).
	CountInStock(ctx context.Context) (map[models.StockKey]int, error)
}

type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	// GetOpenForUpdate returns nil, nil when the unit has no open assignment.
	GetOpenForUpdate(ctx context.Context, unitID uuid.UUID) (*models.Assignment, error)
	Close(ctx context.Context, assignment *models.Assignment) error
	ListByUnit(ctx context.Context, unitID uuid.UUID) ([]*models.Assignment, error)
	OpenByUnits(ctx context.Context, unitIDs []uuid.UUID) (map[uuid.UUID]*models.Assignment, error)
	ListByConsumer(ctx context.Context, consumer models.ConsumerRef, currentOnly bool) ([]*models.ConsumerPart, error)
}

type MovementRepository interface {
	Create(ctx context.Context, movement *models.Movement) error
	List(ctx context.Context, filter *models.MovementFilter) ([]*models.Movement, error)
	// ForEach streams movements created in [from, to) in ledger order.
	ForEach(ctx context.Context, from, to time.Time, fn func(*models.Movement) error) error
	// NetEffects sums signed movement effects per (item, location) and
	// returns the number of movements read.
	NetEffects(ctx context.Context) (map[models.StockKey]int, int, error)
}
