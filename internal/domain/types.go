package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CatalogItem is one sellable product from the per-shift reference snapshot.
// The snapshot is fetched once at shift open and is immutable for the shift.
type CatalogItem struct {
	SrNo        int             `json:"sr_no"`
	Barcode     string          `json:"barcode"`
	ArticleCode string          `json:"article_code"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SizeKg      decimal.Decimal `json:"size_kg"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// DerivedStock is the computed on-hand summary for one barcode. It is never
// persisted; it is recomputed from the event logs on every query.
type DerivedStock struct {
	Barcode  string
	Opening  int64
	Received int64
	Sold     int64
	OnHand   int64
}

// StockReportLine is one line of the closing snapshot submitted at sync.
type StockReportLine struct {
	Barcode  string `json:"barcode"`
	Opening  int64  `json:"opening"`
	Received int64  `json:"received"`
	Sold     int64  `json:"sold"`
	Closing  int64  `json:"closing"`
}

// ClosingReport is the decrypted sync payload: the close coordinates plus
// the full stock report, in first-appearance order.
type ClosingReport struct {
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Lines       []StockReportLine `json:"stock_report"`
}

// ShiftStatus is the lifecycle state of a shift. Transitions only move
// forward: open → closing → closed, or open → abandoned.
type ShiftStatus string

const (
	ShiftOpen      ShiftStatus = "open"
	ShiftClosing   ShiftStatus = "closing"
	ShiftClosed    ShiftStatus = "closed"
	ShiftAbandoned ShiftStatus = "abandoned"
)

// ResponseCode classifies the outcome of a sync submission on the wire.
type ResponseCode string

const (
	// CodeCommitted: the report was validated and durably committed.
	CodeCommitted ResponseCode = "committed"
	// CodeAlreadyClosed: idempotent success. The shift was closed earlier,
	// typically by a submission whose acknowledgment was lost.
	CodeAlreadyClosed ResponseCode = "already_closed"
	// CodeUnauthorized: bad or expired credential, or foreign shift.
	CodeUnauthorized ResponseCode = "unauthorized"
	// CodeValidationRejected: one or more report lines failed validation;
	// nothing was committed.
	CodeValidationRejected ResponseCode = "validation_rejected"
	// CodeCorrupted: the sealed payload failed authentication against the
	// shift's session key. Data loss for that blob; never retried against
	// the same bytes.
	CodeCorrupted ResponseCode = "corrupted"
	// CodeTransientError: retry-eligible server-side failure.
	CodeTransientError ResponseCode = "transient_error"
)
