package repositories

import (
	"context"
	"fmt"
	"time"

	"fleetstock/internal/common"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Pool is the subset of *pgxpool.Pool the store needs; pgxmock satisfies it.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

type PostgresStore struct {
	pool        Pool
	maxAttempts int
	lockTimeout time.Duration
	backoff     time.Duration
	logger      *zap.Logger
}

type PostgresOption func(*PostgresStore)

func WithMaxAttempts(n int) PostgresOption {
	return func(s *PostgresStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithLockTimeout(d time.Duration) PostgresOption {
	return func(s *PostgresStore) { s.lockTimeout = d }
}

func WithRetryBackoff(d time.Duration) PostgresOption {
	return func(s *PostgresStore) { s.backoff = d }
}

func NewPostgresStore(pool Pool, logger *zap.Logger, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		pool:        pool,
		maxAttempts: 3,
		lockTimeout: 5 * time.Second,
		backoff:     20 * time.Millisecond,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn in a READ COMMITTED transaction. Row locks taken by the
// repositories provide the serialization; lock waits are capped by
// lock_timeout so a stuck holder surfaces as a retryable conflict.
func (s *PostgresStore) RunInTx(ctx context.Context, fn TxFunc) error {
	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt >= s.maxAttempts {
			s.logger.Warn("transaction retries exhausted", zap.Int("attempts", attempt), zap.Error(err))
			return common.Conflict(err)
		}
		s.logger.Debug("retrying transaction", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
}

func (s *PostgresStore) runOnce(ctx context.Context, fn TxFunc) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if s.lockTimeout > 0 {
		// SET does not accept bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(ctx, newPgUnitOfWork(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// viewTxOptions gives every query in one View the same snapshot, so a
// report built from several reads never mixes states of the ledger.
var viewTxOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

// View runs fn in a read-only REPEATABLE READ transaction.
func (s *PostgresStore) View(ctx context.Context, fn TxFunc) error {
	tx, err := s.pool.BeginTx(ctx, viewTxOptions)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(ctx, newPgUnitOfWork(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit read transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type pgUnitOfWork struct {
	items       ItemRepository
	locations   LocationRepository
	stockLevels StockLevelRepository
	units       StockUnitRepository
	assignments AssignmentRepository
	movements   MovementRepository
}

func newPgUnitOfWork(db DBTX) *pgUnitOfWork {
	return &pgUnitOfWork{
		items:       NewItemRepo(db),
		locations:   NewLocationRepo(db),
		stockLevels: NewStockLevelRepo(db),
		units:       NewStockUnitRepo(db),
		assignments: NewAssignmentRepo(db),
		movements:   NewMovementRepo(db),
	}
}

func (u *pgUnitOfWork) Items() ItemRepository { return u.items }
func (u *pgUnitOfWork) Locations() LocationRepository { return u.locations }
func (u *pgUnitOfWork) StockLevels() StockLevelRepository { return u.stockLevels }
func (u *pgUnitOfWork) Units() StockUnitRepository { return u.units }
func (u *pgUnitOfWork) Assignments() AssignmentRepository { return u.assignments }
func (u *pgUnitOfWork) Movements() MovementRepository { return u.movements }
