package models

import (
	"time"

	"github.com/google/uuid"
)

const DefaultUnitOfMeasure = "pcs"

// Item is a catalog entry for a spare part or consumable. IsSerialized is
// fixed at creation.
type Item struct {
	ID            uuid.UUID `json:"id" db:"id"`
	SKU           string    `json:"sku" db:"sku"`
	Name          string    `json:"name" db:"name"`
	UnitOfMeasure string    `json:"unit_of_measure" db:"unit_of_measure"`
	IsSerialized  bool      `json:"is_serialized" db:"is_serialized"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ItemUpdate holds the editable fields of an Item. IsSerialized is accepted
// only so a change attempt can be rejected explicitly.
type ItemUpdate struct {
	Name          *string `json:"name,omitempty"`
	UnitOfMeasure *string `json:"unit_of_measure,omitempty"`
	IsSerialized  *bool   `json:"is_serialized,omitempty"`
}

// ItemSearchFilter matches SKU or name, case-insensitively
type ItemSearchFilter struct {
	Query string `json:"query,omitempty"`
}

// ItemWithTotal is an item plus its quantity summed over all locations
type ItemWithTotal struct {
	Item
	QtyTotal int          `json:"qty_total"`
	Stocks   []StockLevel `json:"stocks"`
}
