package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type UnitStatus string

const (
	UnitInStock  UnitStatus = "IN_STOCK"
	UnitAssigned UnitStatus = "ASSIGNED"
	UnitScrapped UnitStatus = "SCRAPPED"
	UnitLost     UnitStatus = "LOST"
)

// IsTerminal reports whether no further transition can leave this status
func (s UnitStatus) IsTerminal() bool {
	return s == UnitScrapped || s == UnitLost
}

func (s UnitStatus) Valid() bool {
	switch s {
	case UnitInStock, UnitAssigned, UnitScrapped, UnitLost:
		return true
	}
	return false
}

// CanTransitionTo encodes the unit lifecycle:
// IN_STOCK -> ASSIGNED | SCRAPPED | LOST, ASSIGNED -> IN_STOCK | SCRAPPED | LOST.
func (s UnitStatus) CanTransitionTo(next UnitStatus) bool {
	switch s {
	case UnitInStock:
		return next == UnitAssigned || next == UnitScrapped || next == UnitLost
	case UnitAssigned:
		return next == UnitInStock || next == UnitScrapped || next == UnitLost
	}
	return false
}

// StockUnit is one individually identified physical instance of a serialized
// item. LocationID is set if and only if Status is IN_STOCK.
type StockUnit struct {
	ID            uuid.UUID           `json:"id" db:"id"`
	ItemID        uuid.UUID           `json:"item_id" db:"item_id"`
	SerialNumber  *string             `json:"serial_number,omitempty" db:"serial_number"`
	Barcode       *string             `json:"barcode,omitempty" db:"barcode"`
	Status        UnitStatus          `json:"status" db:"status"`
	LocationID    *uuid.UUID          `json:"location_id,omitempty" db:"location_id"`
	PurchasePrice decimal.NullDecimal `json:"purchase_price" db:"purchase_price"`
	PurchasedAt   *time.Time          `json:"purchased_at,omitempty" db:"purchased_at"`
	RetiredAt     *time.Time          `json:"retired_at,omitempty" db:"retired_at"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at" db:"updated_at"`
}

// UnitSpec describes one unit in a serialized receive
type UnitSpec struct {
	SerialNumber  *string          `json:"serial_number,omitempty" validate:"omitempty,max=128"`
	Barcode       *string          `json:"barcode,omitempty" validate:"omitempty,max=64"`
	PurchasePrice *decimal.Decimal `json:"purchase_price,omitempty"`
	PurchasedAt   *time.Time       `json:"purchased_at,omitempty"`
}

// StockUnitFilter holds search criteria for unit queries. Query matches
// serial number or barcode, case-insensitively.
type StockUnitFilter struct {
	Status     *UnitStatus `json:"status,omitempty"`
	ItemID     *uuid.UUID  `json:"item_id,omitempty"`
	LocationID *uuid.UUID  `json:"location_id,omitempty"`
	Query      string      `json:"query,omitempty"`
}

// StockUnitView is a unit with its open assignment, if any
type StockUnitView struct {
	StockUnit
	OpenAssignment *Assignment `json:"open_assignment,omitempty"`
}
