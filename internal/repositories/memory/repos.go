package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"fleetstock/internal/common"
	"fleetstock/internal/models"

	"github.com/google/uuid"
)

type itemRepo struct{ data *dataset }

func (r *itemRepo) Create(ctx context.Context, item *models.Item) error {
	for _, existing := range r.data.items {
		if existing.SKU == item.SKU {
			return common.DuplicateIdentifier("sku", item.SKU)
		}
	}
	r.data.items[item.ID] = *item
	return nil
}

func (r *itemRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	item, ok := r.data.items[id]
	if !ok {
		return nil, common.NotFound("item", id)
	}
	return &item, nil
}

func (r *itemRepo) Update(ctx context.Context, item *models.Item) error {
	existing, ok := r.data.items[item.ID]
	if !ok {
		return common.NotFound("item", item.ID)
	}
	existing.Name = item.Name
	existing.UnitOfMeasure = item.UnitOfMeasure
	existing.UpdatedAt = item.UpdatedAt
	r.data.items[item.ID] = existing
	return nil
}

func (r *itemRepo) Search(ctx context.Context, filter *models.ItemSearchFilter) ([]*models.Item, error) {
	q := ""
	if filter != nil {
		q = strings.ToLower(strings.TrimSpace(filter.Query))
	}
	var items []*models.Item
	for _, item := range r.data.items {
		if q != "" && !strings.Contains(strings.ToLower(item.SKU), q) && !strings.Contains(strings.ToLower(item.Name), q) {
			continue
		}
		items = append(items, &item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })
	return items, nil
}

type locationRepo struct{ data *dataset }

func (r *locationRepo) Create(ctx context.Context, location *models.Location) error {
	for _, existing := range r.data.locations {
		if existing.Name == location.Name {
			return common.DuplicateIdentifier("name", location.Name)
		}
	}
	r.data.locations[location.ID] = *location
	return nil
}

func (r *locationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	location, ok := r.data.locations[id]
	if !ok {
		return nil, common.NotFound("location", id)
	}
	return &location, nil
}

func (r *locationRepo) List(ctx context.Context) ([]*models.Location, error) {
	var locations []*models.Location
	for _, location := range r.data.locations {
		locations = append(locations, &location)
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].Name < locations[j].Name })
	return locations, nil
}

type stockLevelRepo struct{ data *dataset }

func (r *stockLevelRepo) LockForUpdate(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, error) {
	key := models.StockKey{ItemID: itemID, LocationID: locationID}
	level, ok := r.data.levels[key]
	if !ok {
		// UpdatedAt is stamped by the caller's clock on SetQty
		level = models.StockLevel{ItemID: itemID, LocationID: locationID}
		r.data.levels[key] = level
	}
	return &level, nil
}

func (r *stockLevelRepo) Get(ctx context.Context, itemID, locationID uuid.UUID) (*models.StockLevel, error) {
	level, ok := r.data.levels[models.StockKey{ItemID: itemID, LocationID: locationID}]
	if !ok {
		return &models.StockLevel{ItemID: itemID, LocationID: locationID}, nil
	}
	return &level, nil
}

func (r *stockLevelRepo) SetQty(ctx context.Context, level *models.StockLevel) error {
	key := level.Key()
	if _, ok := r.data.levels[key]; !ok {
		return fmt.Errorf("stock level %s/%s was not locked before update", level.ItemID, level.LocationID)
	}
	if level.Qty < 0 {
		return fmt.Errorf("stock level %s/%s would go negative", level.ItemID, level.LocationID)
	}
	r.data.levels[key] = *level
	return nil
}

func (r *stockLevelRepo) List(ctx context.Context, filter *models.StockLevelFilter) ([]*models.StockLevelView, error) {
	var views []*models.StockLevelView
	for key, level := range r.data.levels {
		if filter != nil && filter.ItemID != nil && *filter.ItemID != key.ItemID {
			continue
		}
		if filter != nil && filter.LocationID != nil && *filter.LocationID != key.LocationID {
			continue
		}
		views = append(views, &models.StockLevelView{
			StockLevel: level,
			Item:       r.data.items[key.ItemID],
			Location:   r.data.locations[key.LocationID],
		})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Item.SKU != views[j].Item.SKU {
			return views[i].Item.SKU < views[j].Item.SKU
		}
		return views[i].Location.Name < views[j].Location.Name
	})
	return views, nil
}

type stockUnitRepo struct{ data *dataset }

func copyUnit(u models.StockUnit) *models.StockUnit {
	u.SerialNumber = clonePtr(u.SerialNumber)
	u.Barcode = clonePtr(u.Barcode)
	u.LocationID = clonePtr(u.LocationID)
	u.PurchasedAt = clonePtr(u.PurchasedAt)
	u.RetiredAt = clonePtr(u.RetiredAt)
	return &u
}

// checkIdentifiers mirrors the unique constraints on serial number and barcode.
func (r *stockUnitRepo) checkIdentifiers(unit *models.StockUnit) error {
	for id, existing := range r.data.units {
		if id == unit.ID {
			continue
		}
		if unit.SerialNumber != nil && existing.SerialNumber != nil && *existing.SerialNumber == *unit.SerialNumber {
			return common.DuplicateIdentifier("serial_number", *unit.SerialNumber)
		}
		if unit.Barcode != nil && existing.Barcode != nil && *existing.Barcode == *unit.Barcode {
			return common.DuplicateIdentifier("barcode", *unit.Barcode)
		}
	}
	return nil
}

func (r *stockUnitRepo) Create(ctx context.Context, unit *models.StockUnit) error {
	if err := r.checkIdentifiers(unit); err != nil {
		return err
	}
	r.data.units[unit.ID] = *copyUnit(*unit)
	return nil
}

func (r *stockUnitRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StockUnit, error) {
	unit, ok := r.data.units[id]
	if !ok {
		return nil, common.NotFound("stock unit", id)
	}
	return copyUnit(unit), nil
}

func (r *stockUnitRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.StockUnit, error) {
	return r.GetByID(ctx, id)
}

func (r *stockUnitRepo) Update(ctx context.Context, unit *models.StockUnit) error {
	existing, ok := r.data.units[unit.ID]
	if !ok {
		return common.NotFound("stock unit", unit.ID)
	}
	if err := r.checkIdentifiers(unit); err != nil {
		return err
	}
	if (unit.Status == models.UnitInStock) != (unit.LocationID != nil) {
		return fmt.Errorf("stock unit %s: location must be set exactly when in stock", unit.ID)
	}
	existing.Status = unit.Status
	existing.LocationID = clonePtr(unit.LocationID)
	existing.Barcode = clonePtr(unit.Barcode)
	existing.RetiredAt = clonePtr(unit.RetiredAt)
	existing.UpdatedAt = unit.UpdatedAt
	r.data.units[unit.ID] = existing
	return nil
}

func (r *stockUnitRepo) SerialExists(ctx context.Context, serial string) (bool, error) {
	for _, u := range r.data.units {
		if u.SerialNumber != nil && *u.SerialNumber == serial {
			return true, nil
		}
	}
	return false, nil
}

func (r *stockUnitRepo) BarcodeExists(ctx context.Context, barcode string, excludeID *uuid.UUID) (bool, error) {
	for id, u := range r.data.units {
		if excludeID != nil && id == *excludeID {
			continue
		}
		if u.Barcode != nil && *u.Barcode == barcode {
			return true, nil
		}
	}
	return false, nil
}

func containsFold(s *string, q string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), q)
}

func (r *stockUnitRepo) List(ctx context.Context, filter *models.StockUnitFilter) ([]*models.StockUnit, error) {
	if filter == nil {
		filter = &models.StockUnitFilter{}
	}
	q := strings.ToLower(strings.TrimSpace(filter.Query))

	var units []*models.StockUnit
	for _, u := range r.data.units {
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		if filter.ItemID != nil && u.ItemID != *filter.ItemID {
			continue
		}
		if filter.LocationID != nil && (u.LocationID == nil || *u.LocationID != *filter.LocationID) {
			continue
		}
		if q != "" && !containsFold(u.SerialNumber, q) && !containsFold(u.Barcode, q) {
			continue
		}
		units = append(units, copyUnit(u))
	}
	sort.Slice(units, func(i, j int) bool {
		if !units[i].CreatedAt.Equal(units[j].CreatedAt) {
			return units[i].CreatedAt.After(units[j].CreatedAt)
		}
		return units[i].ID.String() < units[j].ID.String()
	})
	return units, nil
}

func (r *stockUnitRepo) CountInStock(ctx context.Context) (map[models.StockKey]int, error) {
	counts := make(map[models.StockKey]int)
	for _, u := range r.data.units {
		if u.Status == models.UnitInStock && u.LocationID != nil {
			counts[models.StockKey{ItemID: u.ItemID, LocationID: *u.LocationID}]++
		}
	}
	return counts, nil
}

type assignmentRepo struct{ data *dataset }

func copyAssignment(a models.Assignment) *models.Assignment {
	a.RemovedAt = clonePtr(a.RemovedAt)
	a.Note = clonePtr(a.Note)
	a.ActorID = clonePtr(a.ActorID)
	return &a
}

func (r *assignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	if a.RemovedAt == nil {
		for _, existing := range r.data.assignments {
			if existing.StockUnitID == a.StockUnitID && existing.RemovedAt == nil {
				return common.AlreadyAssigned(a.StockUnitID)
			}
		}
	}
	r.data.assignments[a.ID] = *copyAssignment(*a)
	return nil
}

func (r *assignmentRepo) GetOpenForUpdate(ctx context.Context, unitID uuid.UUID) (*models.Assignment, error) {
	for _, a := range r.data.assignments {
		if a.StockUnitID == unitID && a.RemovedAt == nil {
			return copyAssignment(a), nil
		}
	}
	return nil, nil
}

func (r *assignmentRepo) Close(ctx context.Context, a *models.Assignment) error {
	existing, ok := r.data.assignments[a.ID]
	if !ok || existing.RemovedAt != nil {
		return common.InvalidState("assignment is already closed")
	}
	existing.RemovedAt = clonePtr(a.RemovedAt)
	existing.Note = clonePtr(a.Note)
	r.data.assignments[a.ID] = existing
	return nil
}

func sortByInstalledDesc(list []*models.Assignment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].InstalledAt.Equal(list[j].InstalledAt) {
			return list[i].InstalledAt.After(list[j].InstalledAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
}

func (r *assignmentRepo) ListByUnit(ctx context.Context, unitID uuid.UUID) ([]*models.Assignment, error) {
	var list []*models.Assignment
	for _, a := range r.data.assignments {
		if a.StockUnitID == unitID {
			list = append(list, copyAssignment(a))
		}
	}
	sortByInstalledDesc(list)
	return list, nil
}

func (r *assignmentRepo) OpenByUnits(ctx context.Context, unitIDs []uuid.UUID) (map[uuid.UUID]*models.Assignment, error) {
	wanted := make(map[uuid.UUID]bool, len(unitIDs))
	for _, id := range unitIDs {
		wanted[id] = true
	}
	open := make(map[uuid.UUID]*models.Assignment)
	for _, a := range r.data.assignments {
		if a.RemovedAt == nil && wanted[a.StockUnitID] {
			open[a.StockUnitID] = copyAssignment(a)
		}
	}
	return open, nil
}

func (r *assignmentRepo) ListByConsumer(ctx context.Context, consumer models.ConsumerRef, currentOnly bool) ([]*models.ConsumerPart, error) {
	var list []*models.Assignment
	for _, a := range r.data.assignments {
		if a.Consumer != consumer || (currentOnly && a.RemovedAt != nil) {
			continue
		}
		list = append(list, copyAssignment(a))
	}
	sortByInstalledDesc(list)

	parts := make([]*models.ConsumerPart, 0, len(list))
	for _, a := range list {
		unit := r.data.units[a.StockUnitID]
		parts = append(parts, &models.ConsumerPart{
			Assignment: *a,
			Unit:       *copyUnit(unit),
			Item:       r.data.items[unit.ItemID],
		})
	}
	return parts, nil
}

type movementRepo struct{ data *dataset }

func (r *movementRepo) Create(ctx context.Context, m *models.Movement) error {
	if m.Qty <= 0 {
		return fmt.Errorf("movement %s: qty must be positive", m.ID)
	}
	stored := *m
	stored.Consumer = clonePtr(m.Consumer)
	r.data.movements = append(r.data.movements, stored)
	return nil
}

func matchesMovement(m *models.Movement, f *models.MovementFilter) bool {
	if f.ItemID != nil && m.ItemID != *f.ItemID {
		return false
	}
	if f.Type != nil && m.Type != *f.Type {
		return false
	}
	if f.Consumer != nil && (m.Consumer == nil || *m.Consumer != *f.Consumer) {
		return false
	}
	if f.StockUnitID != nil && (m.StockUnitID == nil || *m.StockUnitID != *f.StockUnitID) {
		return false
	}
	if f.From != nil && m.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !m.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}

// List walks the ledger backwards so the newest movements come first.
func (r *movementRepo) List(ctx context.Context, filter *models.MovementFilter) ([]*models.Movement, error) {
	if filter == nil {
		filter = &models.MovementFilter{}
	}
	filter.Normalize()

	var out []*models.Movement
	for i := len(r.data.movements) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		m := r.data.movements[i]
		if matchesMovement(&m, filter) {
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r *movementRepo) ForEach(ctx context.Context, from, to time.Time, fn func(*models.Movement) error) error {
	for _, m := range r.data.movements {
		if m.CreatedAt.Before(from) || !m.CreatedAt.Before(to) {
			continue
		}
		if err := fn(&m); err != nil {
			return err
		}
	}
	return nil
}

func (r *movementRepo) NetEffects(ctx context.Context) (map[models.StockKey]int, int, error) {
	net := make(map[models.StockKey]int)
	for _, m := range r.data.movements {
		if m.ToLocationID != nil {
			net[models.StockKey{ItemID: m.ItemID, LocationID: *m.ToLocationID}] += m.Qty
		}
		if m.FromLocationID != nil {
			net[models.StockKey{ItemID: m.ItemID, LocationID: *m.FromLocationID}] -= m.Qty
		}
	}
	return net, len(r.data.movements), nil
}
