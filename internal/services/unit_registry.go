package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"fleetstock/internal/common"
	"fleetstock/internal/models"
	"fleetstock/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxBarcodeLength = 64

// UnitRegistry owns the StockUnit lifecycle. Every status change that moves
// a unit in or out of a location goes through the StockLedger as well, so
// unit history and quantity history stay in step.
type UnitRegistry struct {
	ledger *StockLedger
	now    func() time.Time
}

func NewUnitRegistry(ledger *StockLedger, now func() time.Time) *UnitRegistry {
	return &UnitRegistry{ledger: ledger, now: now}
}

func normalizeIdentifier(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ReceiveUnits creates one IN_STOCK unit per spec at locationID. Each unit
// is credited to the stock level individually and gets its own IN movement.
func (r *UnitRegistry) ReceiveUnits(ctx context.Context, uow repositories.UnitOfWork, item *models.Item, locationID uuid.UUID, specs []models.UnitSpec, note *string) (*models.AllocationResult, error) {
	if !item.IsSerialized {
		return nil, common.Validation("item_id", "item is not serialized")
	}
	if len(specs) == 0 {
		return nil, common.Validation("units", "at least one unit is required")
	}

	seenSerials := make(map[string]bool, len(specs))
	seenBarcodes := make(map[string]bool, len(specs))
	for i := range specs {
		specs[i].SerialNumber = normalizeIdentifier(specs[i].SerialNumber)
		specs[i].Barcode = normalizeIdentifier(specs[i].Barcode)

		if serial := specs[i].SerialNumber; serial != nil {
			if seenSerials[*serial] {
				return nil, common.DuplicateIdentifier("serial_number", *serial)
			}
			seenSerials[*serial] = true
			exists, err := uow.Units().SerialExists(ctx, *serial)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, common.DuplicateIdentifier("serial_number", *serial)
			}
		}
		if barcode := specs[i].Barcode; barcode != nil {
			if utf8.RuneCountInString(*barcode) > maxBarcodeLength {
				return nil, common.Validation("barcode", fmt.Sprintf("barcode must be at most %d characters", maxBarcodeLength))
			}
			if seenBarcodes[*barcode] {
				return nil, common.DuplicateIdentifier("barcode", *barcode)
			}
			seenBarcodes[*barcode] = true
			exists, err := uow.Units().BarcodeExists(ctx, *barcode, nil)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, common.DuplicateIdentifier("barcode", *barcode)
			}
		}
		if specs[i].PurchasePrice != nil && specs[i].PurchasePrice.IsNegative() {
			return nil, common.Validation("purchase_price", "purchase price must not be negative")
		}
	}

	res := &models.AllocationResult{}
	for _, spec := range specs {
		now := r.now()
		unit := &models.StockUnit{
			ID:           uuid.New(),
			ItemID:       item.ID,
			SerialNumber: spec.SerialNumber,
			Barcode:      spec.Barcode,
			Status:       models.UnitInStock,
			LocationID:   &locationID,
			PurchasedAt:  spec.PurchasedAt,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if spec.PurchasePrice != nil {
			unit.PurchasePrice = decimal.NewNullDecimal(*spec.PurchasePrice)
		}
		if err := uow.Units().Create(ctx, unit); err != nil {
			return nil, err
		}

		level, err := r.ledger.Credit(ctx, uow, item.ID, locationID, 1)
		if err != nil {
			return nil, err
		}
		m := &models.Movement{Type: models.MovementIn, ItemID: item.ID, Qty: 1, ToLocationID: &locationID, StockUnitID: &unit.ID, Note: note}
		if err := r.ledger.Record(ctx, uow, m); err != nil {
			return nil, err
		}

		res.AddStockLevel(level)
		res.AddUnit(unit)
		res.AddMovement(m)
	}
	return res, nil
}

// TransferUnit moves an IN_STOCK unit to another location.
func (r *UnitRegistry) TransferUnit(ctx context.Context, uow repositories.UnitOfWork, unitID, toID uuid.UUID, note *string) (*models.AllocationResult, error) {
	unit, err := uow.Units().GetForUpdate(ctx, unitID)
	if err != nil {
		return nil, err
	}
	if unit.Status != models.UnitInStock {
		return nil, common.InvalidState(fmt.Sprintf("unit is %s, only IN_STOCK units can be transferred", unit.Status))
	}
	fromID := *unit.LocationID
	if fromID == toID {
		return nil, common.Validation("to_location_id", "unit is already at this location")
	}
	if _, err := uow.Locations().GetByID(ctx, toID); err != nil {
		return nil, err
	}

	from, to, err := r.ledger.move(ctx, uow, unit.ItemID, fromID, toID, 1)
	if err != nil {
		return nil, err
	}
	unit.LocationID = &toID
	unit.UpdatedAt = r.now()
	if err := uow.Units().Update(ctx, unit); err != nil {
		return nil, err
	}
	m := &models.Movement{Type: models.MovementTransfer, ItemID: unit.ItemID, Qty: 1, FromLocationID: &fromID, ToLocationID: &toID, StockUnitID: &unit.ID, Note: note}
	if err := r.ledger.Record(ctx, uow, m); err != nil {
		return nil, err
	}

	res := &models.AllocationResult{}
	res.AddStockLevel(from)
	res.AddStockLevel(to)
	res.AddUnit(unit)
	res.AddMovement(m)
	return res, nil
}

func retireStatus(status models.UnitStatus) (models.UnitStatus, error) {
	if status == "" {
		return models.UnitScrapped, nil
	}
	if status != models.UnitScrapped && status != models.UnitLost {
		return "", common.Validation("status_after", "status_after must be SCRAPPED or LOST")
	}
	return status, nil
}

// retireNote prefixes the movement note with SCRAP or LOST.
func retireNote(status models.UnitStatus, note *string) *string {
	text := "SCRAP"
	if status == models.UnitLost {
		text = "LOST"
	}
	if n := normalizeNote(note); n != nil {
		text += ": " + *n
	}
	return &text
}

// Scrap retires a unit as SCRAPPED or LOST. An IN_STOCK unit leaves its
// location; an ASSIGNED unit first has its assignment closed and was not
// counted in any stock level.
func (r *UnitRegistry) Scrap(ctx context.Context, uow repositories.UnitOfWork, unitID uuid.UUID, statusAfter models.UnitStatus, note *string) (*models.AllocationResult, error) {
	statusAfter, err := retireStatus(statusAfter)
	if err != nil {
		return nil, err
	}
	unit, err := uow.Units().GetForUpdate(ctx, unitID)
	if err != nil {
		return nil, err
	}
	return r.scrapLocked(ctx, uow, unit, statusAfter, note)
}

func (r *UnitRegistry) scrapLocked(ctx context.Context, uow repositories.UnitOfWork, unit *models.StockUnit, statusAfter models.UnitStatus, note *string) (*models.AllocationResult, error) {
	if unit.Status.IsTerminal() {
		return nil, common.InvalidState(fmt.Sprintf("unit is already %s", unit.Status))
	}

	res := &models.AllocationResult{}
	switch unit.Status {
	case models.UnitInStock:
		fromID := *unit.LocationID
		level, err := r.ledger.Debit(ctx, uow, unit.ItemID, fromID, 1)
		if err != nil {
			return nil, err
		}
		r.markRetired(unit, statusAfter)
		if err := uow.Units().Update(ctx, unit); err != nil {
			return nil, err
		}
		m := &models.Movement{Type: models.MovementOut, ItemID: unit.ItemID, Qty: 1, FromLocationID: &fromID, StockUnitID: &unit.ID, Note: retireNote(statusAfter, note)}
		if err := r.ledger.Record(ctx, uow, m); err != nil {
			return nil, err
		}
		res.AddStockLevel(level)
		res.AddUnit(unit)
		res.AddMovement(m)

	case models.UnitAssigned:
		closed, err := closeOpenAssignment(ctx, uow, unit.ID, r.now(), nil)
		if err != nil {
			return nil, err
		}
		m, err := r.retireAssigned(ctx, uow, unit, statusAfter, closed.Consumer, note)
		if err != nil {
			return nil, err
		}
		res.AddUnit(unit)
		res.AddAssignment(closed)
		res.AddMovement(m)
	}
	return res, nil
}

// retireAssigned marks an ASSIGNED unit terminal after its assignment has
// been closed. The OUT movement carries no location: it is an audit row and
// changes no stock level.
func (r *UnitRegistry) retireAssigned(ctx context.Context, uow repositories.UnitOfWork, unit *models.StockUnit, statusAfter models.UnitStatus, consumer models.ConsumerRef, note *string) (*models.Movement, error) {
	r.markRetired(unit, statusAfter)
	if err := uow.Units().Update(ctx, unit); err != nil {
		return nil, err
	}
	m := &models.Movement{Type: models.MovementOut, ItemID: unit.ItemID, Qty: 1, StockUnitID: &unit.ID, Consumer: &consumer, Note: retireNote(statusAfter, note)}
	if err := r.ledger.Record(ctx, uow, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *UnitRegistry) markRetired(unit *models.StockUnit, status models.UnitStatus) {
	now := r.now()
	unit.Status = status
	unit.LocationID = nil
	unit.RetiredAt = &now
	unit.UpdatedAt = now
}

// UpdateBarcode edits unit metadata. It is allowed in every status,
// terminal ones included.
func (r *UnitRegistry) UpdateBarcode(ctx context.Context, uow repositories.UnitOfWork, unitID uuid.UUID, barcode string) (*models.AllocationResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, common.Validation("barcode", "barcode is required")
	}
	if utf8.RuneCountInString(barcode) > maxBarcodeLength {
		return nil, common.Validation("barcode", fmt.Sprintf("barcode must be at most %d characters", maxBarcodeLength))
	}

	unit, err := uow.Units().GetForUpdate(ctx, unitID)
	if err != nil {
		return nil, err
	}
	exists, err := uow.Units().BarcodeExists(ctx, barcode, &unit.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.DuplicateIdentifier("barcode", barcode)
	}

	unit.Barcode = &barcode
	unit.UpdatedAt = r.now()
	if err := uow.Units().Update(ctx, unit); err != nil {
		return nil, err
	}
	res := &models.AllocationResult{}
	res.AddUnit(unit)
	return res, nil
}
