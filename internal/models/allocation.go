package models

import (
	"time"

	"github.com/google/uuid"
)

// Request payloads for the allocation operations. Handlers validate the
// struct tags; the services re-check every rule themselves.

type CreateItemRequest struct {
	SKU           string `json:"sku" validate:"required,max=64"`
	Name          string `json:"name" validate:"required,max=255"`
	UnitOfMeasure string `json:"unit_of_measure,omitempty" validate:"omitempty,max=32"`
	IsSerialized  bool   `json:"is_serialized"`
}

type CreateLocationRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// ReceiveRequest covers fungible receipts and serialized receipts. For a
// serialized item either Units lists one spec per unit, or Qty anonymous
// units are created.
type ReceiveRequest struct {
	ItemID     uuid.UUID  `json:"item_id" validate:"required"`
	LocationID uuid.UUID  `json:"location_id" validate:"required"`
	Qty        int        `json:"qty" validate:"gte=0"`
	Units      []UnitSpec `json:"units,omitempty" validate:"dive"`
	Note       *string    `json:"note,omitempty"`
}

type AdjustRequest struct {
	ItemID     uuid.UUID `json:"item_id" validate:"required"`
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	Delta      int       `json:"delta" validate:"required"`
	Note       *string   `json:"note,omitempty"`
}

type TransferRequest struct {
	ItemID         uuid.UUID `json:"item_id" validate:"required"`
	FromLocationID uuid.UUID `json:"from_location_id" validate:"required"`
	ToLocationID   uuid.UUID `json:"to_location_id" validate:"required"`
	Qty            int       `json:"qty" validate:"gt=0"`
	Note           *string   `json:"note,omitempty"`
}

type ConsumeRequest struct {
	ItemID     uuid.UUID    `json:"item_id" validate:"required"`
	LocationID uuid.UUID    `json:"location_id" validate:"required"`
	Qty        int          `json:"qty" validate:"gt=0"`
	Consumer   *ConsumerRef `json:"consumer,omitempty"`
	Note       *string      `json:"note,omitempty"`
}

type TransferUnitRequest struct {
	ToLocationID uuid.UUID `json:"to_location_id" validate:"required"`
	Note         *string   `json:"note,omitempty"`
}

type AssignRequest struct {
	Consumer      ConsumerRef `json:"consumer"`
	Note          *string     `json:"note,omitempty"`
	ReplaceUnitID *uuid.UUID  `json:"replace_unit_id,omitempty"`
	InstalledAt   *time.Time  `json:"installed_at,omitempty"`
}

// ReturnRequest closes the open assignment. StatusAfter IN_STOCK needs
// ToLocationID; SCRAPPED and LOST retire the unit.
type ReturnRequest struct {
	StatusAfter  UnitStatus `json:"status_after" validate:"required"`
	ToLocationID *uuid.UUID `json:"to_location_id,omitempty"`
	RemovedAt    *time.Time `json:"removed_at,omitempty"`
	Note         *string    `json:"note,omitempty"`
}

type ScrapRequest struct {
	StatusAfter UnitStatus `json:"status_after,omitempty"`
	Note        *string    `json:"note,omitempty"`
}

type UpdateUnitRequest struct {
	Barcode string `json:"barcode" validate:"required,max=64"`
}

// AllocationResult carries every row an operation wrote.
type AllocationResult struct {
	StockLevels []*StockLevel `json:"stock_levels,omitempty"`
	Units       []*StockUnit  `json:"units,omitempty"`
	Assignments []*Assignment `json:"assignments,omitempty"`
	Movements   []*Movement   `json:"movements,omitempty"`
}

// AddStockLevel keeps the latest version of a level touched more than once.
func (r *AllocationResult) AddStockLevel(l *StockLevel) {
	for i, existing := range r.StockLevels {
		if existing.Key() == l.Key() {
			r.StockLevels[i] = l
			return
		}
	}
	r.StockLevels = append(r.StockLevels, l)
}

func (r *AllocationResult) AddUnit(u *StockUnit) {
	for i, existing := range r.Units {
		if existing.ID == u.ID {
			r.Units[i] = u
			return
		}
	}
	r.Units = append(r.Units, u)
}

func (r *AllocationResult) AddAssignment(a *Assignment) {
	r.Assignments = append(r.Assignments, a)
}

func (r *AllocationResult) AddMovement(m *Movement) {
	r.Movements = append(r.Movements, m)
}

// TouchedKeys lists the stock levels the operation changed.
func (r *AllocationResult) TouchedKeys() []StockKey {
	keys := make([]StockKey, 0, len(r.StockLevels))
	for _, l := range r.StockLevels {
		keys = append(keys, l.Key())
	}
	return keys
}
