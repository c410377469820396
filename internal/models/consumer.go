package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ConsumerKind tags what a unit is installed into or what stock was used for
type ConsumerKind string

const (
	ConsumerTruck          ConsumerKind = "TRUCK"
	ConsumerMaintenanceJob ConsumerKind = "MAINTENANCE_JOB"
	ConsumerTrip           ConsumerKind = "TRIP"
)

// ParseConsumerKind accepts the canonical names and the lower-case path forms
// ("truck", "maintenance-job", "trip").
func ParseConsumerKind(s string) (ConsumerKind, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch ConsumerKind(normalized) {
	case ConsumerTruck, ConsumerMaintenanceJob, ConsumerTrip:
		return ConsumerKind(normalized), nil
	}
	return "", fmt.Errorf("unknown consumer kind %q", s)
}

// ConsumerRef is a tagged reference to an external consumer. The core never
// resolves it; it only stores and filters on it.
type ConsumerRef struct {
	Kind ConsumerKind `json:"kind" validate:"required"`
	ID   uuid.UUID    `json:"id" validate:"required"`
}

// CanHoldUnits reports whether a serialized unit may be assigned to this consumer
func (c ConsumerRef) CanHoldUnits() bool {
	return c.Kind == ConsumerTruck || c.Kind == ConsumerMaintenanceJob
}

func (c ConsumerRef) IsZero() bool {
	return c.Kind == "" && c.ID == uuid.Nil
}

func (c ConsumerRef) String() string {
	return fmt.Sprintf("%s:%s", c.Kind, c.ID)
}
