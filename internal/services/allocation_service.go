package services

import (
	"context"
	"time"

	"fleetstock/internal/caching"
	"fleetstock/internal/common"
	"fleetstock/internal/models"
	"fleetstock/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllocationService is the mutating surface of the inventory core. Each
// method runs as exactly one unit of work: on error nothing it touched is
// changed.
type AllocationService interface {
	Receive(ctx context.Context, req *models.ReceiveRequest) (*models.AllocationResult, error)
	Adjust(ctx context.Context, req *models.AdjustRequest) (*models.AllocationResult, error)
	Transfer(ctx context.Context, req *models.TransferRequest) (*models.AllocationResult, error)
	Consume(ctx context.Context, req *models.ConsumeRequest) (*models.AllocationResult, error)

	TransferUnit(ctx context.Context, unitID uuid.UUID, req *models.TransferUnitRequest) (*models.AllocationResult, error)
	Assign(ctx context.Context, unitID uuid.UUID, req *models.AssignRequest) (*models.AllocationResult, error)
	Return(ctx context.Context, unitID uuid.UUID, req *models.ReturnRequest) (*models.AllocationResult, error)
	Scrap(ctx context.Context, unitID uuid.UUID, req *models.ScrapRequest) (*models.AllocationResult, error)
	UpdateUnitBarcode(ctx context.Context, unitID uuid.UUID, req *models.UpdateUnitRequest) (*models.AllocationResult, error)
}

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func defaultClock() time.Time {
	// Postgres keeps microseconds; truncating keeps memory and SQL stores comparable.
	return time.Now().UTC().Truncate(time.Microsecond)
}

func applyOptions(opts []Option) options {
	o := options{now: defaultClock}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type allocationService struct {
	store    repositories.Store
	cache    caching.CacheService
	logger   *zap.Logger
	ledger   *StockLedger
	registry *UnitRegistry
	tracker  *AssignmentTracker
}

func NewAllocationService(store repositories.Store, cache caching.CacheService, logger *zap.Logger, opts ...Option) AllocationService {
	o := applyOptions(opts)
	ledger := NewStockLedger(o.now)
	registry := NewUnitRegistry(ledger, o.now)
	return &allocationService{
		store:    store,
		cache:    cache,
		logger:   logger.With(zap.String("component", "allocation")),
		ledger:   ledger,
		registry: registry,
		tracker:  NewAssignmentTracker(ledger, registry, o.now),
	}
}

type allocationFunc func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error)

// run executes fn in one transaction, then drops the cached stock levels
// the operation changed.
func (s *allocationService) run(ctx context.Context, operation string, fields []zap.Field, fn allocationFunc) (*models.AllocationResult, error) {
	log := s.logger.With(zap.String("operation", operation))
	log = log.With(fields...)
	if actor := common.ActorFromContext(ctx); actor != nil {
		log = log.With(zap.String("actor_id", actor.String()))
	}

	var res *models.AllocationResult
	err := s.store.RunInTx(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		var err error
		res, err = fn(ctx, uow)
		return err
	})
	if err != nil {
		if common.KindOf(err) != "" {
			log.Info("operation rejected", zap.Error(err))
		} else {
			log.Error("operation failed", zap.Error(err))
		}
		return nil, err
	}

	if keys := res.TouchedKeys(); len(keys) > 0 {
		if cacheErr := s.cache.DeleteStockLevels(ctx, keys...); cacheErr != nil {
			log.Warn("failed to invalidate stock level cache", zap.Error(cacheErr))
		}
	}
	log.Info("operation committed", zap.Int("movements", len(res.Movements)))
	return res, nil
}

// loadItemAndLocation checks that both catalog rows exist.
func loadItemAndLocation(ctx context.Context, uow repositories.UnitOfWork, itemID uuid.UUID, locationIDs ...uuid.UUID) (*models.Item, error) {
	item, err := uow.Items().GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	for _, id := range locationIDs {
		if _, err := uow.Locations().GetByID(ctx, id); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (s *allocationService) Receive(ctx context.Context, req *models.ReceiveRequest) (*models.AllocationResult, error) {
	fields := []zap.Field{zap.String("item_id", req.ItemID.String()), zap.String("location_id", req.LocationID.String()), zap.Int("qty", req.Qty)}
	return s.run(ctx, "receive", fields, func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error) {
		item, err := loadItemAndLocation(ctx, uow, req.ItemID, req.LocationID)
		if err != nil {
			return nil, err
		}
		if !item.IsSerialized {
			if len(req.Units) > 0 {
				return nil, common.Validation("units", "units can only be given for serialized items")
			}
			return s.ledger.Receive(ctx, uow, item, req.LocationID, req.Qty, req.Note)
		}

		specs := req.Units
		switch {
		case len(specs) == 0 && req.Qty > 0:
			// anonymous serialized stock
			specs = make([]models.UnitSpec, req.Qty)
		case len(specs) == 0:
			return nil, common.Validation("qty", "qty must be greater than 0")
		case req.Qty != 0 && req.Qty != len(specs):
			return nil, common.Validation("qty", "qty must match the number of units")
		}
		return s.registry.ReceiveUnits(ctx, uow, item, req.LocationID, specs, req.Note)
	})
}

func (s *allocationService) Adjust(ctx context.Context, req *models.AdjustRequest) (*models.AllocationResult, error) {
	fields := []zap.Field{zap.String("item_id", req.ItemID.String()), zap.String("location_id", req.LocationID.String()), zap.Int("delta", req.Delta)}
	return s.run(ctx, "adjust", fields, func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error) {
		item, err := loadItemAndLocation(ctx, uow, req.ItemID, req.LocationID)
		if err != nil {
			return nil, err
		}
		return s.ledger.Adjust(ctx, uow, item, req.LocationID, req.Delta, req.Note)
	})
}

func (s *allocationService) Transfer(ctx context.Context, req *models.TransferRequest) (*models.AllocationResult, error) {
	fields := []zap.Field{zap.String("item_id", req.ItemID.String()), zap.String("from_location_id", req.FromLocationID.String()), zap.String("to_location_id", req.ToLocationID.String()), zap.Int("qty", req.Qty)}
	return s.run(ctx, "transfer", fields, func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error) {
		item, err := loadItemAndLocation(ctx, uow, req.ItemID, req.FromLocationID, req.ToLocationID)
		if err != nil {
			return nil, err
		}
		return s.ledger.Transfer(ctx, uow, item, req.FromLocationID, req.ToLocationID, req.Qty, req.Note)
	})
}

func (s *allocationService) Consume(ctx context.Context, req *models.ConsumeRequest) (*models.AllocationResult, error) {
	fields := []zap.Field{zap.String("item_id", req.ItemID.String()), zap.String("location_id", req.LocationID.String()), zap.Int("qty", req.Qty)}
	if req.Consumer != nil {
		fields = append(fields, zap.Stringer("consumer", req.Consumer))
	}
	return s.run(ctx, "consume", fields, func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error) {
		item, err := loadItemAndLocation(ctx, uow, req.ItemID, req.LocationID)
		if err != nil {
			return nil, err
		}
		return s.ledger.Consume(ctx, uow, item, req.LocationID, req.Qty, req.Consumer, req.Note)
	})
}

func (s *allocationService) TransferUnit(ctx context.Context, unitID uuid.UUID, req *models.TransferUnitRequest) (*models.AllocationResult, error) {
	fields := []zap.Field{zap.String("unit_id", unitID.String()), zap.String("to_location_id", req.ToLocationID.String())}
	return s.run(ctx, "transfer_unit", fields, func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error) {
		return s.registry.TransferUnit(ctx, uow, unitID, req.ToLocationID, req.Note)
	})
}

func (s *allocationService) Assign(ctx context.Context, unitID uuid.UUID, req *models.AssignRequest) (*models.AllocationResult, error) {
	fields := []zap.Field{zap.String("unit_id", unitID.String()), zap.Stringer("consumer", req.Consumer)}
	if req.ReplaceUnitID != nil {
		fields = append(fields, zap.String("replace_unit_id", req.ReplaceUnitID.String()))
	}
	return s.run(ctx, "assign", fields, func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error) {
		return s.tracker.Assign(ctx, uow, unitID, req)
	})
}

func (s *allocationService) Return(ctx context.Context, unitID uuid.UUID, req *models.ReturnRequest) (*models.AllocationResult, error) {
	fields := []zap.Field{zap.String("unit_id", unitID.String()), zap.String("status_after", string(req.StatusAfter))}
	return s.run(ctx, "return", fields, func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error) {
		return s.tracker.ReturnOrRetire(ctx, uow, unitID, req)
	})
}

func (s *allocationService) Scrap(ctx context.Context, unitID uuid.UUID, req *models.ScrapRequest) (*models.AllocationResult, error) {
	fields := []zap.Field{zap.String("unit_id", unitID.String()), zap.String("status_after", string(req.StatusAfter))}
	return s.run(ctx, "scrap", fields, func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error) {
		return s.registry.Scrap(ctx, uow, unitID, req.StatusAfter, req.Note)
	})
}

func (s *allocationService) UpdateUnitBarcode(ctx context.Context, unitID uuid.UUID, req *models.UpdateUnitRequest) (*models.AllocationResult, error) {
	fields := []zap.Field{zap.String("unit_id", unitID.String())}
	return s.run(ctx, "update_unit_barcode", fields, func(ctx context.Context, uow repositories.UnitOfWork) (*models.AllocationResult, error) {
		return s.registry.UpdateBarcode(ctx, uow, unitID, req.Barcode)
	})
}
