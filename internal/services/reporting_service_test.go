package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"fleetstock/internal/caching"
	"fleetstock/internal/common"
	"fleetstock/internal/models"
	"fleetstock/internal/repositories"
	"fleetstock/internal/repositories/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (suite *AllocationServiceTestSuite) TestItemTotals() {
	_, err := suite.alloc.Receive(suite.ctx, &models.ReceiveRequest{ItemID: suite.oil.ID, LocationID: suite.yardA.ID, Qty: 4})
	require.NoError(suite.T(), err)
	_, err = suite.alloc.Receive(suite.ctx, &models.ReceiveRequest{ItemID: suite.oil.ID, LocationID: suite.yardB.ID, Qty: 6})
	require.NoError(suite.T(), err)

	totals, err := suite.reporting.ItemTotals(suite.ctx, nil)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), totals, 2)

	byID := map[uuid.UUID]*models.ItemWithTotal{}
	for _, t := range totals {
		byID[t.ID] = t
	}
	assert.Equal(suite.T(), 10, byID[suite.oil.ID].QtyTotal)
	assert.Len(suite.T(), byID[suite.oil.ID].Stocks, 2)
	assert.Equal(suite.T(), 0, byID[suite.alternator.ID].QtyTotal)
	assert.NotNil(suite.T(), byID[suite.alternator.ID].Stocks)
}

func (suite *AllocationServiceTestSuite) TestStockLevels_Filter() {
	_, err := suite.alloc.Receive(suite.ctx, &models.ReceiveRequest{ItemID: suite.oil.ID, LocationID: suite.yardA.ID, Qty: 4})
	require.NoError(suite.T(), err)
	suite.receiveUnit("ALT-0001", suite.yardA)

	levels, err := suite.reporting.StockLevels(suite.ctx, &models.StockLevelFilter{LocationID: &suite.yardA.ID})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), levels, 2)
	assert.Equal(suite.T(), "Yard A", levels[0].Location.Name)

	levels, err = suite.reporting.StockLevels(suite.ctx, &models.StockLevelFilter{ItemID: &suite.oil.ID})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), levels, 1)
	assert.Equal(suite.T(), "OIL-15W40", levels[0].Item.SKU)
}

func (suite *AllocationServiceTestSuite) TestStockLevel_MissingPairReadsZero() {
	level, err := suite.reporting.StockLevel(suite.ctx, suite.oil.ID, suite.yardB.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0, level.Qty)

	_, err = suite.reporting.StockLevel(suite.ctx, uuid.New(), suite.yardB.ID)
	assertKind(suite.T(), err, common.KindNotFound)
}

func (suite *AllocationServiceTestSuite) TestUnits_FilterAndSearch() {
	a := suite.receiveUnit("ALT-AA-01", suite.yardA)
	suite.receiveUnit("ALT-BB-02", suite.yardB)
	_, err := suite.alloc.Assign(suite.ctx, a.ID, &models.AssignRequest{Consumer: suite.truckT1})
	require.NoError(suite.T(), err)

	assigned := models.UnitAssigned
	units, err := suite.reporting.Units(suite.ctx, &models.StockUnitFilter{Status: &assigned})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), units, 1)
	assert.NotNil(suite.T(), units[0].OpenAssignment)

	units, err = suite.reporting.Units(suite.ctx, &models.StockUnitFilter{Query: "bb-02"})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), units, 1)
	assert.Nil(suite.T(), units[0].OpenAssignment)

	units, err = suite.reporting.Units(suite.ctx, &models.StockUnitFilter{LocationID: &suite.yardA.ID})
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), units)
}

func (suite *AllocationServiceTestSuite) TestConsumerParts_CurrentAndPast() {
	u := suite.receiveUnit("ALT-0001", suite.yardA)
	_, err := suite.alloc.Assign(suite.ctx, u.ID, &models.AssignRequest{Consumer: suite.truckT1})
	require.NoError(suite.T(), err)
	_, err = suite.alloc.Return(suite.ctx, u.ID, &models.ReturnRequest{StatusAfter: models.UnitInStock, ToLocationID: &suite.yardA.ID})
	require.NoError(suite.T(), err)
	_, err = suite.alloc.Assign(suite.ctx, u.ID, &models.AssignRequest{Consumer: suite.truckT1})
	require.NoError(suite.T(), err)

	current, err := suite.reporting.ConsumerParts(suite.ctx, suite.truckT1, true)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), current, 1)
	assert.Equal(suite.T(), "ALT-24V", current[0].Item.SKU)
	assert.Equal(suite.T(), "ALT-0001", *current[0].Unit.SerialNumber)

	all, err := suite.reporting.ConsumerParts(suite.ctx, suite.truckT1, false)
	require.NoError(suite.T(), err)
	assert.Len(suite.T(), all, 2)

	history, err := suite.reporting.History(suite.ctx, u.ID)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), history, 2)
	assert.True(suite.T(), history[0].InstalledAt.After(history[1].InstalledAt))
	assert.Nil(suite.T(), history[0].RemovedAt)

	_, err = suite.reporting.History(suite.ctx, uuid.New())
	assertKind(suite.T(), err, common.KindNotFound)

	_, err = suite.reporting.ConsumerParts(suite.ctx, models.ConsumerRef{Kind: models.ConsumerTrip, ID: uuid.New()}, true)
	assertKind(suite.T(), err, common.KindValidation)
}

func (suite *AllocationServiceTestSuite) TestReconcile_DetectsTampering() {
	_, err := suite.alloc.Receive(suite.ctx, &models.ReceiveRequest{ItemID: suite.oil.ID, LocationID: suite.yardA.ID, Qty: 5})
	require.NoError(suite.T(), err)
	suite.receiveUnit("ALT-0001", suite.yardA)
	suite.assertReconciled()

	// write around the ledger
	err = suite.store.RunInTx(suite.ctx, func(ctx context.Context, uow repositories.UnitOfWork) error {
		for _, item := range []*models.Item{suite.oil, suite.alternator} {
			level, err := uow.StockLevels().LockForUpdate(ctx, item.ID, suite.yardA.ID)
			if err != nil {
				return err
			}
			level.Qty += 2
			if err := uow.StockLevels().SetQty(ctx, level); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(suite.T(), err)

	report, err := suite.reporting.Reconcile(suite.ctx)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), report.Consistent())
	assert.Equal(suite.T(), 2, report.PairsChecked)
	assert.Equal(suite.T(), 2, report.Movements)

	kinds := map[string]int{}
	for _, d := range report.Discrepancies {
		kinds[d.Kind]++
		assert.Equal(suite.T(), d.ExpectedQty+2, d.RecordedQty)
	}
	assert.Equal(suite.T(), 2, kinds[models.DiscrepancyLedger])
	assert.Equal(suite.T(), 1, kinds[models.DiscrepancyUnits])
}

// TestRandomOperationsKeepInvariants drives random operation sequences and
// checks after every step that no quantity is negative, then reconciles.
func TestRandomOperationsKeepInvariants(t *testing.T) {
	for seed := uint64(1); seed <= 5; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7919))
		ctx := context.Background()
		store := memory.NewStore()
		logger := zap.NewNop()
		cache := caching.NewNoopCacheService()
		catalog := NewCatalogService(store, logger)
		alloc := NewAllocationService(store, cache, logger)
		reporting := NewReportingService(store, cache, logger)

		fungible, err := catalog.CreateItem(ctx, &models.CreateItemRequest{SKU: "BOLT-M12", Name: "Wheel bolt"})
		require.NoError(t, err)
		serialized, err := catalog.CreateItem(ctx, &models.CreateItemRequest{SKU: "TYRE-315", Name: "Tyre 315/80", IsSerialized: true})
		require.NoError(t, err)
		var locations []uuid.UUID
		for _, name := range []string{"North", "South", "Workshop"} {
			loc, err := catalog.CreateLocation(ctx, &models.CreateLocationRequest{Name: name})
			require.NoError(t, err)
			locations = append(locations, loc.ID)
		}
		consumers := []models.ConsumerRef{
			{Kind: models.ConsumerTruck, ID: uuid.New()},
			{Kind: models.ConsumerMaintenanceJob, ID: uuid.New()},
		}
		var unitIDs []uuid.UUID
		pickLoc := func() uuid.UUID { return locations[rng.IntN(len(locations))] }
		pickUnit := func() uuid.UUID {
			if len(unitIDs) == 0 {
				return uuid.New()
			}
			return unitIDs[rng.IntN(len(unitIDs))]
		}

		for step := 0; step < 200; step++ {
			var err error
			switch rng.IntN(9) {
			case 0:
				_, err = alloc.Receive(ctx, &models.ReceiveRequest{ItemID: fungible.ID, LocationID: pickLoc(), Qty: 1 + rng.IntN(8)})
			case 1:
				_, err = alloc.Adjust(ctx, &models.AdjustRequest{ItemID: fungible.ID, LocationID: pickLoc(), Delta: rng.IntN(11) - 6})
			case 2:
				_, err = alloc.Transfer(ctx, &models.TransferRequest{ItemID: fungible.ID, FromLocationID: pickLoc(), ToLocationID: pickLoc(), Qty: 1 + rng.IntN(6)})
			case 3:
				_, err = alloc.Consume(ctx, &models.ConsumeRequest{ItemID: fungible.ID, LocationID: pickLoc(), Qty: 1 + rng.IntN(6)})
			case 4:
				var res *models.AllocationResult
				res, err = alloc.Receive(ctx, &models.ReceiveRequest{ItemID: serialized.ID, LocationID: pickLoc(), Qty: 1 + rng.IntN(2)})
				if err == nil {
					for _, u := range res.Units {
						unitIDs = append(unitIDs, u.ID)
					}
				}
			case 5:
				req := &models.AssignRequest{Consumer: consumers[rng.IntN(len(consumers))]}
				if rng.IntN(3) == 0 {
					replace := pickUnit()
					req.ReplaceUnitID = &replace
				}
				_, err = alloc.Assign(ctx, pickUnit(), req)
			case 6:
				to := pickLoc()
				statuses := []models.UnitStatus{models.UnitInStock, models.UnitInStock, models.UnitScrapped, models.UnitLost}
				_, err = alloc.Return(ctx, pickUnit(), &models.ReturnRequest{StatusAfter: statuses[rng.IntN(len(statuses))], ToLocationID: &to})
			case 7:
				_, err = alloc.TransferUnit(ctx, pickUnit(), &models.TransferUnitRequest{ToLocationID: pickLoc()})
			case 8:
				if rng.IntN(4) == 0 {
					_, err = alloc.Scrap(ctx, pickUnit(), &models.ScrapRequest{})
				}
			}
			if err != nil {
				var appErr *common.AppError
				require.True(t, errors.As(err, &appErr), "seed %d step %d: unexpected error %v", seed, step, err)
			}

			levels, err := reporting.StockLevels(ctx, nil)
			require.NoError(t, err)
			for _, l := range levels {
				require.GreaterOrEqual(t, l.Qty, 0, "seed %d step %d", seed, step)
			}
		}

		report, err := reporting.Reconcile(ctx)
		require.NoError(t, err)
		assert.True(t, report.Consistent(), "seed %d: %+v", seed, report.Discrepancies)

		units, err := reporting.Units(ctx, nil)
		require.NoError(t, err)
		for _, u := range units {
			assert.Equal(t, u.Status == models.UnitInStock, u.LocationID != nil, "seed %d unit %s", seed, u.ID)
			assert.Equal(t, u.Status == models.UnitAssigned, u.OpenAssignment != nil, "seed %d unit %s", seed, u.ID)
		}
	}
}

func TestReportingService_StockLevelUsesCache(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cache := &MockCacheService{}
	logger := zap.NewNop()
	reporting := NewReportingService(store, cache, logger)

	itemID, locationID := uuid.New(), uuid.New()
	cached := &models.StockLevel{ItemID: itemID, LocationID: locationID, Qty: 42}
	cache.On("GetStockLevel", mock.Anything, itemID, locationID).Return(cached, int64(0), nil).Once()

	level, err := reporting.StockLevel(ctx, itemID, locationID)
	require.NoError(t, err)
	assert.Equal(t, 42, level.Qty)

	catalog := NewCatalogService(store, logger)
	item, err := catalog.CreateItem(ctx, &models.CreateItemRequest{SKU: "BRK-1", Name: "Brake pad"})
	require.NoError(t, err)
	loc, err := catalog.CreateLocation(ctx, &models.CreateLocationRequest{Name: "Depot"})
	require.NoError(t, err)

	// a failed cache read falls back to the store and skips the fill
	cache.On("GetStockLevel", mock.Anything, item.ID, loc.ID).Return(nil, int64(0), errors.New("redis down")).Once()

	level, err = reporting.StockLevel(ctx, item.ID, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, level.Qty)

	// a miss fills with the generation it read
	cache.On("GetStockLevel", mock.Anything, item.ID, loc.ID).Return(nil, int64(3), nil).Once()
	cache.On("SetStockLevel", mock.Anything, mock.AnythingOfType("*models.StockLevel"), int64(3), caching.StockLevelTTL).Return(nil).Once()

	level, err = reporting.StockLevel(ctx, item.ID, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, level.Qty)
	cache.AssertExpectations(t)
	cache.AssertNumberOfCalls(t, "SetStockLevel", 1)
}

// generationCache keeps stock levels in memory with the same generation
// rules as the Redis cache. beforeSet runs ahead of each fill.
type generationCache struct {
	caching.CacheService
	mu          sync.Mutex
	levels      map[models.StockKey]models.StockLevel
	generations map[models.StockKey]int64
	beforeSet   func()
}

func newGenerationCache() *generationCache {
	return &generationCache{
		CacheService: caching.NewNoopCacheService(),
		levels:       make(map[models.StockKey]models.StockLevel),
		generations:  make(map[models.StockKey]int64),
	}
}

func (c *generationCache) GetStockLevel(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := models.StockKey{ItemID: itemID, LocationID: locationID}
	level, ok := c.levels[key]
	if !ok {
		return nil, c.generations[key], nil
	}
	return &level, c.generations[key], nil
}

func (c *generationCache) SetStockLevel(ctx context.Context, level *models.StockLevel, generation int64, ttl time.Duration) error {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[level.Key()] == generation {
		c.levels[level.Key()] = *level
	}
	return nil
}

func (c *generationCache) DeleteStockLevels(ctx context.Context, keys ...models.StockKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.generations[k]++
		delete(c.levels, k)
	}
	return nil
}

func TestReportingService_StockLevelDropsFillRacingConsume(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	cache := newGenerationCache()
	logger := zap.NewNop()
	catalog := NewCatalogService(store, logger)
	alloc := NewAllocationService(store, cache, logger)
	reporting := NewReportingService(store, cache, logger)

	item, err := catalog.CreateItem(ctx, &models.CreateItemRequest{SKU: "OIL-1", Name: "Engine oil"})
	require.NoError(t, err)
	loc, err := catalog.CreateLocation(ctx, &models.CreateLocationRequest{Name: "Depot"})
	require.NoError(t, err)
	_, err = alloc.Receive(ctx, &models.ReceiveRequest{ItemID: item.ID, LocationID: loc.ID, Qty: 10})
	require.NoError(t, err)

	// the consume commits after the reader loaded qty 10 but before it fills
	cache.beforeSet = func() {
		_, err := alloc.Consume(ctx, &models.ConsumeRequest{ItemID: item.ID, LocationID: loc.ID, Qty: 6})
		require.NoError(t, err)
	}
	level, err := reporting.StockLevel(ctx, item.ID, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, level.Qty)

	cached, _, err := cache.GetStockLevel(ctx, item.ID, loc.ID)
	require.NoError(t, err)
	assert.Nil(t, cached, "stale fill must be discarded")

	level, err = reporting.StockLevel(ctx, item.ID, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, level.Qty)
	cached, _, err = cache.GetStockLevel(ctx, item.ID, loc.ID)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 4, cached.Qty)
}
