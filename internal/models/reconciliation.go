package models

import (
	"time"

	"github.com/google/uuid"
)

// Discrepancy kinds reported by ledger reconciliation
const (
	DiscrepancyLedger   = "LEDGER_MISMATCH"
	DiscrepancyUnits    = "UNIT_COUNT_MISMATCH"
	DiscrepancyNegative = "NEGATIVE_QTY"
)

// Discrepancy describes one (item, location) pair whose recorded quantity
// disagrees with what the ledger or the unit registry implies.
type Discrepancy struct {
	Kind        string    `json:"kind"`
	ItemID      uuid.UUID `json:"item_id"`
	LocationID  uuid.UUID `json:"location_id"`
	RecordedQty int       `json:"recorded_qty"`
	ExpectedQty int       `json:"expected_qty"`
}

// ReconciliationReport is the result of replaying the movement ledger
type ReconciliationReport struct {
	CheckedAt     time.Time     `json:"checked_at"`
	PairsChecked  int           `json:"pairs_checked"`
	Movements     int           `json:"movements"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}

func (r ReconciliationReport) Consistent() bool {
	return len(r.Discrepancies) == 0
}
