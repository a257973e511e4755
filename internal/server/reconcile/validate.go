// Package reconcile implements the server side of shift sync: idempotent
// opening, validation of submitted stock reports and the atomic close.
package reconcile

import (
	"fmt"

	"github.com/fieldstock/shiftledger/internal/domain"
)

// ValidateLines checks every report line against the catalog and the
// stock arithmetic. It returns one LineError per failing line; an empty
// result means the report is acceptable. Acceptance is all-or-nothing,
// the caller rejects the whole report on any error.
func ValidateLines(lines []domain.StockReportLine, knownBarcode func(string) bool) []domain.LineError {
	var errs []domain.LineError
	seen := make(map[string]struct{}, len(lines))

	for _, l := range lines {
		if reason := validateLine(l, knownBarcode, seen); reason != "" {
			errs = append(errs, domain.LineError{Barcode: l.Barcode, Reason: reason})
		}
		seen[l.Barcode] = struct{}{}
	}
	return errs
}

func validateLine(l domain.StockReportLine, knownBarcode func(string) bool, seen map[string]struct{}) string {
	if _, dup := seen[l.Barcode]; dup {
		return "duplicate line for barcode"
	}
	if !knownBarcode(l.Barcode) {
		return "barcode not in catalog"
	}
	if l.Opening < 0 || l.Received < 0 || l.Sold < 0 || l.Closing < 0 {
		return "negative quantity"
	}
	if l.Sold > l.Opening+l.Received {
		return fmt.Sprintf("sold %d exceeds available %d", l.Sold, l.Opening+l.Received)
	}
	if l.Closing != l.Opening+l.Received-l.Sold {
		return fmt.Sprintf("closing %d does not equal %d + %d - %d", l.Closing, l.Opening, l.Received, l.Sold)
	}
	return ""
}
