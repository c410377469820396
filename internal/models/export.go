package models

import "time"

// ExportRequest bounds a ledger export to [From, To). A nil From starts at
// the first movement; a nil To ends now.
type ExportRequest struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// LedgerExport describes one CSV file written to the export bucket
type LedgerExport struct {
	Bucket    string    `json:"bucket"`
	Object    string    `json:"object"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Rows      int       `json:"rows"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
