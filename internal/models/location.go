package models

import (
	"time"

	"github.com/google/uuid"
)

// Location is a named storage point (warehouse, yard, workshop shelf)
type Location struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
