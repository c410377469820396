package models

import (
	"time"

	"github.com/google/uuid"
)

// Assignment links a serialized unit to a consumer for a bounded time.
// RemovedAt is nil while the assignment is open.
type Assignment struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	StockUnitID uuid.UUID   `json:"stock_unit_id" db:"stock_unit_id"`
	Consumer    ConsumerRef `json:"consumer"`
	InstalledAt time.Time   `json:"installed_at" db:"installed_at"`
	RemovedAt   *time.Time  `json:"removed_at,omitempty" db:"removed_at"`
	Note        *string     `json:"note,omitempty" db:"note"`
	ActorID     *uuid.UUID  `json:"actor_id,omitempty" db:"actor_id"`
}

func (a Assignment) IsOpen() bool {
	return a.RemovedAt == nil
}

// ConsumerPart is an assignment joined with its unit and item, used for
// "what is installed on this truck" reporting.
type ConsumerPart struct {
	Assignment
	Unit StockUnit `json:"unit"`
	Item Item      `json:"item"`
}
