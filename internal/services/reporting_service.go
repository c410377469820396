package services

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"time"

	"fleetstock/internal/caching"
	"fleetstock/internal/models"
	"fleetstock/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReportingService is the read surface. Nothing here writes to the store.
type ReportingService interface {
	StockLevels(ctx context.Context, filter *models.StockLevelFilter) ([]*models.StockLevelView, error)
	StockLevel(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, error)
	Units(ctx context.Context, filter *models.StockUnitFilter) ([]*models.StockUnitView, error)
	Movements(ctx context.Context, filter *models.MovementFilter) ([]*models.Movement, error)
	ForEachMovement(ctx context.Context, from, to time.Time, fn func(*models.Movement) error) error
	History(ctx context.Context, unitID uuid.UUID) ([]*models.Assignment, error)
	ConsumerParts(ctx context.Context, consumer models.ConsumerRef, currentOnly bool) ([]*models.ConsumerPart, error)
	ItemTotals(ctx context.Context, filter *models.ItemSearchFilter) ([]*models.ItemWithTotal, error)
	Reconcile(ctx context.Context) (*models.ReconciliationReport, error)
}

type reportingService struct {
	store   repositories.Store
	cache   caching.CacheService
	logger  *zap.Logger
	now     func() time.Time
	tracker *AssignmentTracker
}

func NewReportingService(store repositories.Store, cache caching.CacheService, logger *zap.Logger, opts ...Option) ReportingService {
	o := applyOptions(opts)
	ledger := NewStockLedger(o.now)
	return &reportingService{
		store:   store,
		cache:   cache,
		logger:  logger.With(zap.String("component", "reporting")),
		now:     o.now,
		tracker: NewAssignmentTracker(ledger, NewUnitRegistry(ledger, o.now), o.now),
	}
}

func (s *reportingService) StockLevels(ctx context.Context, filter *models.StockLevelFilter) ([]*models.StockLevelView, error) {
	var levels []*models.StockLevelView
	err := s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		var err error
		levels, err = uow.StockLevels().List(ctx, filter)
		return err
	})
	return levels, err
}

// StockLevel reads through the Redis cache. The fill carries the
// generation seen before the database read; a writer that commits and
// invalidates in between bumps it, and the stale fill is discarded.
func (s *reportingService) StockLevel(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, error) {
	cached, generation, err := s.cache.GetStockLevel(ctx, itemID, locationID)
	if err != nil {
		s.logger.Warn("stock level cache read failed", zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}
	cacheOK := err == nil

	var level *models.StockLevel
	err = s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		if _, err := loadItemAndLocation(ctx, uow, itemID, locationID); err != nil {
			return err
		}
		var err error
		level, err = uow.StockLevels().Get(ctx, itemID, locationID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// without a generation the fill could not be checked
	if cacheOK {
		if cacheErr := s.cache.SetStockLevel(ctx, level, generation, caching.StockLevelTTL); cacheErr != nil {
			s.logger.Warn("stock level cache write failed", zap.Error(cacheErr))
		}
	}
	return level, nil
}

func (s *reportingService) Units(ctx context.Context, filter *models.StockUnitFilter) ([]*models.StockUnitView, error) {
	var views []*models.StockUnitView
	err := s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		units, err := uow.Units().List(ctx, filter)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(units))
		for _, u := range units {
			if u.Status == models.UnitAssigned {
				ids = append(ids, u.ID)
			}
		}
		open, err := uow.Assignments().OpenByUnits(ctx, ids)
		if err != nil {
			return err
		}
		views = make([]*models.StockUnitView, 0, len(units))
		for _, u := range units {
			views = append(views, &models.StockUnitView{StockUnit: *u, OpenAssignment: open[u.ID]})
		}
		return nil
	})
	return views, err
}

func (s *reportingService) Movements(ctx context.Context, filter *models.MovementFilter) ([]*models.Movement, error) {
	if filter == nil {
		filter = &models.MovementFilter{}
	}
	filter.Normalize()
	var movements []*models.Movement
	err := s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		var err error
		movements, err = uow.Movements().List(ctx, filter)
		return err
	})
	return movements, err
}

// ForEachMovement streams the ledger for [from, to) in ledger order.
func (s *reportingService) ForEachMovement(ctx context.Context, from, to time.Time, fn func(*models.Movement) error) error {
	return s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		return uow.Movements().ForEach(ctx, from, to, fn)
	})
}

func (s *reportingService) History(ctx context.Context, unitID uuid.UUID) ([]*models.Assignment, error) {
	var history []*models.Assignment
	err := s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		var err error
		history, err = s.tracker.History(ctx, uow, unitID)
		return err
	})
	return history, err
}

func (s *reportingService) ConsumerParts(ctx context.Context, consumer models.ConsumerRef, currentOnly bool) ([]*models.ConsumerPart, error) {
	consumer, err := normalizeConsumer(consumer, true)
	if err != nil {
		return nil, err
	}
	var parts []*models.ConsumerPart
	err = s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		var err error
		parts, err = uow.Assignments().ListByConsumer(ctx, consumer, currentOnly)
		return err
	})
	return parts, err
}

func (s *reportingService) ItemTotals(ctx context.Context, filter *models.ItemSearchFilter) ([]*models.ItemWithTotal, error) {
	var totals []*models.ItemWithTotal
	err := s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		items, err := uow.Items().Search(ctx, filter)
		if err != nil {
			return err
		}
		levels, err := uow.StockLevels().List(ctx, nil)
		if err != nil {
			return err
		}
		byItem := make(map[uuid.UUID][]models.StockLevel)
		for _, l := range levels {
			byItem[l.ItemID] = append(byItem[l.ItemID], l.StockLevel)
		}

		totals = make([]*models.ItemWithTotal, 0, len(items))
		for _, item := range items {
			t := &models.ItemWithTotal{Item: *item, Stocks: byItem[item.ID]}
			if t.Stocks == nil {
				t.Stocks = []models.StockLevel{}
			}
			for _, l := range t.Stocks {
				t.QtyTotal += l.Qty
			}
			totals = append(totals, t)
		}
		return nil
	})
	return totals, err
}

// Reconcile replays the movement ledger and compares it with the stored
// quantities. For serialized items the stored quantity must also equal the
// number of IN_STOCK units at the location.
func (s *reportingService) Reconcile(ctx context.Context) (*models.ReconciliationReport, error) {
	report := &models.ReconciliationReport{Discrepancies: []models.Discrepancy{}}
	err := s.store.View(ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		expected, count, err := uow.Movements().NetEffects(ctx)
		if err != nil {
			return err
		}
		levels, err := uow.StockLevels().List(ctx, nil)
		if err != nil {
			return err
		}
		inStock, err := uow.Units().CountInStock(ctx)
		if err != nil {
			return err
		}

		recorded := make(map[models.StockKey]int, len(levels))
		serialized := make(map[uuid.UUID]bool)
		keys := make(map[models.StockKey]struct{}, len(levels))
		for _, l := range levels {
			recorded[l.Key()] = l.Qty
			keys[l.Key()] = struct{}{}
			if l.Item.IsSerialized {
				serialized[l.ItemID] = true
			}
		}
		for k := range expected {
			keys[k] = struct{}{}
		}
		for k := range inStock {
			keys[k] = struct{}{}
			serialized[k.ItemID] = true
		}

		report.CheckedAt = s.now()
		report.Movements = count
		report.PairsChecked = len(keys)
		for k := range keys {
			qty := recorded[k]
			if qty < 0 {
				report.Discrepancies = append(report.Discrepancies, discrepancy(models.DiscrepancyNegative, k, qty, 0))
			}
			if want := expected[k]; want != qty {
				report.Discrepancies = append(report.Discrepancies, discrepancy(models.DiscrepancyLedger, k, qty, want))
			}
			if serialized[k.ItemID] {
				if want := inStock[k]; want != qty {
					report.Discrepancies = append(report.Discrepancies, discrepancy(models.DiscrepancyUnits, k, qty, want))
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(report.Discrepancies, func(a, b models.Discrepancy) int {
		if c := bytes.Compare(a.ItemID[:], b.ItemID[:]); c != 0 {
			return c
		}
		if c := bytes.Compare(a.LocationID[:], b.LocationID[:]); c != 0 {
			return c
		}
		return strings.Compare(a.Kind, b.Kind)
	})
	if !report.Consistent() {
		s.logger.Error("ledger reconciliation found discrepancies", zap.Int("count", len(report.Discrepancies)))
	}
	return report, nil
}

func discrepancy(kind string, k models.StockKey, recorded, expected int) models.Discrepancy {
	return models.Discrepancy{Kind: kind, ItemID: k.ItemID, LocationID: k.LocationID, RecordedQty: recorded, ExpectedQty: expected}
}
