// Package ledger implements the client-side append-only event ledger and
// the derived-state calculation over it. Three logical logs share one
// durable log: opening counts, received deliveries and sales. Entries are
// immutable once written; the opening count is the single logical-replace
// exception, resolved at replay time by last-write-wins.
package ledger

import "context"

// Kind discriminates the three event logs.
type Kind string

const (
	KindOpening Kind = "opening"
	KindReceipt Kind = "receipt"
	KindSale    Kind = "sale"
)

// Record is one durable ledger row. Payload is a sealed blob; the barcode
// column is kept in the clear only to key replay, mirroring how row ids
// stay plaintext next to ciphertext columns.
type Record struct {
	Seq     int64
	Kind    Kind
	Barcode string
	Payload []byte
}

// Repository is the durable append-only store for ledger records.
type Repository interface {
	// Append durably writes one record. It must not return before the
	// write is committed, so a crash immediately after a successful call
	// never loses the event.
	Append(ctx context.Context, shiftID string, kind Kind, barcode string, payload []byte) error

	// All returns every record for the shift in append (seq) order.
	All(ctx context.Context, shiftID string) ([]Record, error)

	// HasOpening reports whether any opening entries exist for the shift.
	HasOpening(ctx context.Context, shiftID string) (bool, error)

	// Purge removes all records for the shift. Only called after the
	// server has acknowledged the closing report.
	Purge(ctx context.Context, shiftID string) error
}
