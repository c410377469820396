package services

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"time"

	"fleetstock/internal/common"
	"fleetstock/internal/models"
	"fleetstock/internal/repositories"

	"github.com/google/uuid"
)

// AssignmentTracker links serialized units to trucks and maintenance jobs.
type AssignmentTracker struct {
	ledger   *StockLedger
	registry *UnitRegistry
	now      func() time.Time
}

func NewAssignmentTracker(ledger *StockLedger, registry *UnitRegistry, now func() time.Time) *AssignmentTracker {
	return &AssignmentTracker{ledger: ledger, registry: registry, now: now}
}

// lockUnits takes unit row locks in ascending id order.
func lockUnits(ctx context.Context, uow repositories.UnitOfWork, ids ...uuid.UUID) (map[uuid.UUID]*models.StockUnit, error) {
	ordered := slices.Clone(ids)
	slices.SortFunc(ordered, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	units := make(map[uuid.UUID]*models.StockUnit, len(ordered))
	for _, id := range ordered {
		unit, err := uow.Units().GetForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		units[id] = unit
	}
	return units, nil
}

// closeOpenAssignment sets removedAt on the unit's open assignment. A
// non-nil note replaces the note recorded at install time.
func closeOpenAssignment(ctx context.Context, uow repositories.UnitOfWork, unitID uuid.UUID, removedAt time.Time, note *string) (*models.Assignment, error) {
	open, err := uow.Assignments().GetOpenForUpdate(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, common.NotFound("open assignment", unitID)
	}
	if removedAt.Before(open.InstalledAt) {
		return nil, common.Validation("removed_at", "removed_at must not be before installed_at")
	}
	open.RemovedAt = &removedAt
	if n := normalizeNote(note); n != nil {
		open.Note = n
	}
	if err := uow.Assignments().Close(ctx, open); err != nil {
		return nil, err
	}
	return open, nil
}

// Assign installs an IN_STOCK unit on a consumer. With replaceUnitID set,
// the unit currently installed is removed and scrapped in the same unit of
// work, so the consumer never holds zero or two of the part.
func (t *AssignmentTracker) Assign(ctx context.Context, uow repositories.UnitOfWork, unitID uuid.UUID, req *models.AssignRequest) (*models.AllocationResult, error) {
	consumer, err := normalizeConsumer(req.Consumer, true)
	if err != nil {
		return nil, err
	}
	now := t.now()
	installedAt := now
	if req.InstalledAt != nil {
		installedAt = req.InstalledAt.UTC()
		// removal is stamped with the current time and may not precede
		// installation, so a future install would pin the unit
		if installedAt.After(now) {
			return nil, common.Validation("installed_at", "installed_at must not be in the future")
		}
	}

	ids := []uuid.UUID{unitID}
	if req.ReplaceUnitID != nil {
		if *req.ReplaceUnitID == unitID {
			return nil, common.Validation("replace_unit_id", "a unit cannot replace itself")
		}
		ids = append(ids, *req.ReplaceUnitID)
	}

	units, err := lockUnits(ctx, uow, ids...)
	if err != nil {
		return nil, err
	}
	unit := units[unitID]
	if unit.Status != models.UnitInStock {
		return nil, common.InvalidState(fmt.Sprintf("unit is not available: status is %s", unit.Status))
	}
	existing, err := uow.Assignments().GetOpenForUpdate(ctx, unit.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, common.AlreadyAssigned(unit.ID)
	}

	res := &models.AllocationResult{}
	if req.ReplaceUnitID != nil {
		if err := t.replace(ctx, uow, unit, units[*req.ReplaceUnitID], consumer, res); err != nil {
			return nil, err
		}
	}

	fromID := *unit.LocationID
	level, err := t.ledger.Debit(ctx, uow, unit.ItemID, fromID, 1)
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ID:          uuid.New(),
		StockUnitID: unit.ID,
		Consumer:    consumer,
		InstalledAt: installedAt,
		Note:        normalizeNote(req.Note),
		ActorID:     common.ActorFromContext(ctx),
	}
	if err := uow.Assignments().Create(ctx, assignment); err != nil {
		return nil, err
	}

	unit.Status = models.UnitAssigned
	unit.LocationID = nil
	unit.UpdatedAt = t.now()
	if err := uow.Units().Update(ctx, unit); err != nil {
		return nil, err
	}

	m := &models.Movement{Type: models.MovementOut, ItemID: unit.ItemID, Qty: 1, FromLocationID: &fromID, StockUnitID: &unit.ID, Consumer: &consumer, Note: req.Note}
	if err := t.ledger.Record(ctx, uow, m); err != nil {
		return nil, err
	}

	res.AddStockLevel(level)
	res.AddUnit(unit)
	res.AddAssignment(assignment)
	res.AddMovement(m)
	return res, nil
}

func (t *AssignmentTracker) replace(ctx context.Context, uow repositories.UnitOfWork, unit, old *models.StockUnit, consumer models.ConsumerRef, res *models.AllocationResult) error {
	if old.ItemID != unit.ItemID {
		return common.InvalidState("replaced unit must be the same item")
	}
	if old.Status != models.UnitAssigned {
		return common.InvalidState(fmt.Sprintf("replaced unit is not installed: status is %s", old.Status))
	}
	open, err := uow.Assignments().GetOpenForUpdate(ctx, old.ID)
	if err != nil {
		return err
	}
	if open == nil || open.Consumer != consumer {
		return common.InvalidState("replaced unit is not installed on this consumer")
	}

	closed, err := closeOpenAssignment(ctx, uow, old.ID, t.now(), nil)
	if err != nil {
		return err
	}
	note := fmt.Sprintf("replaced by unit %s", unit.ID)
	m, err := t.registry.retireAssigned(ctx, uow, old, models.UnitScrapped, consumer, &note)
	if err != nil {
		return err
	}
	res.AddUnit(old)
	res.AddAssignment(closed)
	res.AddMovement(m)
	return nil
}

// ReturnOrRetire removes an installed unit. IN_STOCK puts it back on the
// shelf at ToLocationID; SCRAPPED and LOST retire it.
func (t *AssignmentTracker) ReturnOrRetire(ctx context.Context, uow repositories.UnitOfWork, unitID uuid.UUID, req *models.ReturnRequest) (*models.AllocationResult, error) {
	switch req.StatusAfter {
	case models.UnitInStock:
		if req.ToLocationID == nil {
			return nil, common.Validation("to_location_id", "to_location_id is required when returning to stock")
		}
		if _, err := uow.Locations().GetByID(ctx, *req.ToLocationID); err != nil {
			return nil, err
		}
	case models.UnitScrapped, models.UnitLost:
	default:
		return nil, common.Validation("status_after", "status_after must be IN_STOCK, SCRAPPED or LOST")
	}

	unit, err := uow.Units().GetForUpdate(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if unit.Status != models.UnitAssigned {
		return nil, common.InvalidState(fmt.Sprintf("unit is not assigned: status is %s", unit.Status))
	}

	removedAt := t.now()
	if req.RemovedAt != nil {
		removedAt = req.RemovedAt.UTC()
	}
	closed, err := closeOpenAssignment(ctx, uow, unit.ID, removedAt, req.Note)
	if err != nil {
		return nil, err
	}

	res := &models.AllocationResult{}
	res.AddAssignment(closed)

	if req.StatusAfter != models.UnitInStock {
		m, err := t.registry.retireAssigned(ctx, uow, unit, req.StatusAfter, closed.Consumer, req.Note)
		if err != nil {
			return nil, err
		}
		res.AddUnit(unit)
		res.AddMovement(m)
		return res, nil
	}

	toID := *req.ToLocationID
	level, err := t.ledger.Credit(ctx, uow, unit.ItemID, toID, 1)
	if err != nil {
		return nil, err
	}
	unit.Status = models.UnitInStock
	unit.LocationID = &toID
	unit.UpdatedAt = t.now()
	if err := uow.Units().Update(ctx, unit); err != nil {
		return nil, err
	}
	m := &models.Movement{Type: models.MovementIn, ItemID: unit.ItemID, Qty: 1, ToLocationID: &toID, StockUnitID: &unit.ID, Consumer: &closed.Consumer, Note: req.Note}
	if err := t.ledger.Record(ctx, uow, m); err != nil {
		return nil, err
	}

	res.AddStockLevel(level)
	res.AddUnit(unit)
	res.AddMovement(m)
	return res, nil
}

// History lists every assignment of the unit, most recent install first.
func (t *AssignmentTracker) History(ctx context.Context, uow repositories.UnitOfWork, unitID uuid.UUID) ([]*models.Assignment, error) {
	if _, err := uow.Units().GetByID(ctx, unitID); err != nil {
		return nil, err
	}
	return uow.Assignments().ListByUnit(ctx, unitID)
}
