package services

import (
	"bytes"
	"context"
	"strings"
	"time"

	"fleetstock/internal/common"
	"fleetstock/internal/models"
	"fleetstock/internal/repositories"

	"github.com/google/uuid"
)

// StockLedger owns StockLevel and the Movement log. Every method runs inside
// the caller's unit of work and never commits on its own.
type StockLedger struct {
	now func() time.Time
}

func NewStockLedger(now func() time.Time) *StockLedger {
	return &StockLedger{now: now}
}

// Credit locks the (item, location) row and adds qty.
func (l *StockLedger) Credit(ctx context.Context, uow repositories.UnitOfWork, itemID, locationID uuid.UUID, qty int) (*models.StockLevel, error) {
	level, err := uow.StockLevels().LockForUpdate(ctx, itemID, locationID)
	if err != nil {
		return nil, err
	}
	level.Qty += qty
	level.UpdatedAt = l.now()
	if err := uow.StockLevels().SetQty(ctx, level); err != nil {
		return nil, err
	}
	return level, nil
}

// Debit locks the row and removes qty. The check runs on the locked row, so
// two concurrent debits cannot both pass against a stale quantity.
func (l *StockLedger) Debit(ctx context.Context, uow repositories.UnitOfWork, itemID, locationID uuid.UUID, qty int) (*models.StockLevel, error) {
	level, err := uow.StockLevels().LockForUpdate(ctx, itemID, locationID)
	if err != nil {
		return nil, err
	}
	if level.Qty < qty {
		return nil, common.InsufficientStock(level.Qty, qty)
	}
	level.Qty -= qty
	level.UpdatedAt = l.now()
	if err := uow.StockLevels().SetQty(ctx, level); err != nil {
		return nil, err
	}
	return level, nil
}

// Record appends m to the ledger, stamping id, time and actor.
func (l *StockLedger) Record(ctx context.Context, uow repositories.UnitOfWork, m *models.Movement) error {
	m.ID = uuid.New()
	m.CreatedAt = l.now()
	m.ActorID = common.ActorFromContext(ctx)
	m.Note = normalizeNote(m.Note)
	return uow.Movements().Create(ctx, m)
}

// Receive adds fungible stock and appends an IN movement.
func (l *StockLedger) Receive(ctx context.Context, uow repositories.UnitOfWork, item *models.Item, locationID uuid.UUID, qty int, note *string) (*models.AllocationResult, error) {
	if qty <= 0 {
		return nil, common.Validation("qty", "qty must be greater than 0")
	}
	if item.IsSerialized {
		return nil, common.Validation("item_id", "serialized items are received as units")
	}

	level, err := l.Credit(ctx, uow, item.ID, locationID, qty)
	if err != nil {
		return nil, err
	}
	m := &models.Movement{Type: models.MovementIn, ItemID: item.ID, Qty: qty, ToLocationID: &locationID, Note: note}
	if err := l.Record(ctx, uow, m); err != nil {
		return nil, err
	}

	res := &models.AllocationResult{}
	res.AddStockLevel(level)
	res.AddMovement(m)
	return res, nil
}

// Adjust applies a signed correction. A negative delta is recorded as
// leaving the location, a positive one as entering it.
func (l *StockLedger) Adjust(ctx context.Context, uow repositories.UnitOfWork, item *models.Item, locationID uuid.UUID, delta int, note *string) (*models.AllocationResult, error) {
	if delta == 0 {
		return nil, common.Validation("delta", "delta must not be 0")
	}
	if item.IsSerialized {
		return nil, common.Validation("item_id", "serialized stock changes through unit receive and scrap")
	}

	m := &models.Movement{Type: models.MovementAdjust, ItemID: item.ID, Note: note}
	var level *models.StockLevel
	var err error
	if delta > 0 {
		level, err = l.Credit(ctx, uow, item.ID, locationID, delta)
		m.Qty, m.ToLocationID = delta, &locationID
	} else {
		level, err = l.Debit(ctx, uow, item.ID, locationID, -delta)
		m.Qty, m.FromLocationID = -delta, &locationID
	}
	if err != nil {
		return nil, err
	}
	if err := l.Record(ctx, uow, m); err != nil {
		return nil, err
	}

	res := &models.AllocationResult{}
	res.AddStockLevel(level)
	res.AddMovement(m)
	return res, nil
}

// Transfer moves fungible stock between two locations as one TRANSFER row.
func (l *StockLedger) Transfer(ctx context.Context, uow repositories.UnitOfWork, item *models.Item, fromID, toID uuid.UUID, qty int, note *string) (*models.AllocationResult, error) {
	if qty <= 0 {
		return nil, common.Validation("qty", "qty must be greater than 0")
	}
	if fromID == toID {
		return nil, common.Validation("to_location_id", "source and destination must differ")
	}
	if item.IsSerialized {
		return nil, common.Validation("item_id", "serialized items are transferred per unit")
	}

	from, to, err := l.move(ctx, uow, item.ID, fromID, toID, qty)
	if err != nil {
		return nil, err
	}
	m := &models.Movement{Type: models.MovementTransfer, ItemID: item.ID, Qty: qty, FromLocationID: &fromID, ToLocationID: &toID, Note: note}
	if err := l.Record(ctx, uow, m); err != nil {
		return nil, err
	}

	res := &models.AllocationResult{}
	res.AddStockLevel(from)
	res.AddStockLevel(to)
	res.AddMovement(m)
	return res, nil
}

// move debits fromID and credits toID, locking the two rows in id order so
// opposite transfers cannot deadlock.
func (l *StockLedger) move(ctx context.Context, uow repositories.UnitOfWork, itemID, fromID, toID uuid.UUID, qty int) (*models.StockLevel, *models.StockLevel, error) {
	first, second := fromID, toID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}
	if _, err := uow.StockLevels().LockForUpdate(ctx, itemID, first); err != nil {
		return nil, nil, err
	}
	if _, err := uow.StockLevels().LockForUpdate(ctx, itemID, second); err != nil {
		return nil, nil, err
	}

	from, err := l.Debit(ctx, uow, itemID, fromID, qty)
	if err != nil {
		return nil, nil, err
	}
	to, err := l.Credit(ctx, uow, itemID, toID, qty)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

// Consume removes fungible stock for a truck, job or trip. The OUT movement
// has no destination.
func (l *StockLedger) Consume(ctx context.Context, uow repositories.UnitOfWork, item *models.Item, locationID uuid.UUID, qty int, consumer *models.ConsumerRef, note *string) (*models.AllocationResult, error) {
	if qty <= 0 {
		return nil, common.Validation("qty", "qty must be greater than 0")
	}
	if item.IsSerialized {
		return nil, common.Validation("item_id", "serialized items are consumed by assigning a unit")
	}
	if consumer != nil {
		c, err := normalizeConsumer(*consumer, false)
		if err != nil {
			return nil, err
		}
		consumer = &c
	}

	level, err := l.Debit(ctx, uow, item.ID, locationID, qty)
	if err != nil {
		return nil, err
	}
	m := &models.Movement{Type: models.MovementOut, ItemID: item.ID, Qty: qty, FromLocationID: &locationID, Consumer: consumer, Note: note}
	if err := l.Record(ctx, uow, m); err != nil {
		return nil, err
	}

	res := &models.AllocationResult{}
	res.AddStockLevel(level)
	res.AddMovement(m)
	return res, nil
}

// normalizeConsumer canonicalizes the kind. Trips can consume stock but
// cannot hold units.
func normalizeConsumer(c models.ConsumerRef, forAssignment bool) (models.ConsumerRef, error) {
	kind, err := models.ParseConsumerKind(string(c.Kind))
	if err != nil {
		return c, common.Validation("consumer.kind", err.Error())
	}
	c.Kind = kind
	if c.ID == uuid.Nil {
		return c, common.Validation("consumer.id", "consumer id is required")
	}
	if forAssignment && !c.CanHoldUnits() {
		return c, common.Validation("consumer.kind", "units can only be assigned to a truck or maintenance job")
	}
	return c, nil
}

// normalizeNote trims a note and drops it when empty.
func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
