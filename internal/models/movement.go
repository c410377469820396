package models

import (
	"time"

	"github.com/google/uuid"
)

type MovementType string

const (
	MovementIn       MovementType = "IN"
	MovementOut      MovementType = "OUT"
	MovementTransfer MovementType = "TRANSFER"
	MovementAdjust   MovementType = "ADJUST"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementIn, MovementOut, MovementTransfer, MovementAdjust:
		return true
	}
	return false
}

// Movement is one append-only ledger row. Qty is always a positive
// magnitude; direction comes from FromLocationID and ToLocationID.
type Movement struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	Type           MovementType `json:"type" db:"type"`
	ItemID         uuid.UUID    `json:"item_id" db:"item_id"`
	Qty            int          `json:"qty" db:"qty"`
	FromLocationID *uuid.UUID   `json:"from_location_id,omitempty" db:"from_location_id"`
	ToLocationID   *uuid.UUID   `json:"to_location_id,omitempty" db:"to_location_id"`
	StockUnitID    *uuid.UUID   `json:"stock_unit_id,omitempty" db:"stock_unit_id"`
	Consumer       *ConsumerRef `json:"consumer,omitempty"`
	Note           *string      `json:"note,omitempty" db:"note"`
	ActorID        *uuid.UUID   `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
}

// EffectOn returns the signed quantity change this movement applies to the
// given location. Audit-only movements carry no location and return 0.
func (m Movement) EffectOn(locationID uuid.UUID) int {
	effect := 0
	if m.ToLocationID != nil && *m.ToLocationID == locationID {
		effect += m.Qty
	}
	if m.FromLocationID != nil && *m.FromLocationID == locationID {
		effect -= m.Qty
	}
	return effect
}

// MovementFilter holds criteria for the movement log. Results are newest first.
type MovementFilter struct {
	ItemID      *uuid.UUID    `json:"item_id,omitempty"`
	Type        *MovementType `json:"type,omitempty"`
	Consumer    *ConsumerRef  `json:"consumer,omitempty"`
	StockUnitID *uuid.UUID    `json:"stock_unit_id,omitempty"`
	From        *time.Time    `json:"from,omitempty"`
	To          *time.Time    `json:"to,omitempty"`
	Limit       int           `json:"limit,omitempty"`
}

const (
	DefaultMovementLimit = 50
	MaxMovementLimit     = 500
)

// Normalize clamps Limit into [1, MaxMovementLimit]
func (f *MovementFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultMovementLimit
	}
	if f.Limit > MaxMovementLimit {
		f.Limit = MaxMovementLimit
	}
}
