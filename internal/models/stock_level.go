package models

import (
	"time"

	"github.com/google/uuid"
)

// StockLevel is the on-hand quantity of one item at one location. For
// serialized items Qty equals the number of IN_STOCK units there.
type StockLevel struct {
	ItemID     uuid.UUID `json:"item_id" db:"item_id"`
	LocationID uuid.UUID `json:"location_id" db:"location_id"`
	Qty        int       `json:"qty" db:"qty"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// StockKey identifies a StockLevel row
type StockKey struct {
	ItemID     uuid.UUID
	LocationID uuid.UUID
}

func (s StockLevel) Key() StockKey {
	return StockKey{ItemID: s.ItemID, LocationID: s.LocationID}
}

// StockLevelFilter holds search criteria for stock level queries
type StockLevelFilter struct {
	ItemID     *uuid.UUID `json:"item_id,omitempty"`
	LocationID *uuid.UUID `json:"location_id,omitempty"`
}

// StockLevelView is a stock level joined with its item and location
type StockLevelView struct {
	StockLevel
	Item     Item     `json:"item"`
	Location Location `json:"location"`
}
