// Package domain defines the data shapes and sentinel errors shared by the
// client ledger and the sync server. Callers match sentinels with errors.Is.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// Ledger validation errors.
	ErrUnknownItem       = errors.New("unknown item")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")

	// Sync errors.
	ErrEmptyReport  = errors.New("empty report")
	ErrUnauthorized = errors.New("unauthorized")
	ErrShiftClosed  = errors.New("shift already closed")
	ErrTransient    = errors.New("transient error")

	// Generic.
	ErrNotFound      = errors.New("not found")
	ErrNoActiveShift = errors.New("no active shift")
)

// LineError identifies one failing report line and why it failed.
type LineError struct {
	Barcode string `json:"barcode"`
	Reason  string `json:"reason"`
}

// ValidationError rejects a whole report with the list of failing lines.
// Partial acceptance is disallowed: one bad line fails everything.
type ValidationError struct {
	Lines []LineError
}

func (e *ValidationError) Error() string {
	if len(e.Lines) == 0 {
		return "report validation failed"
	}
	parts := make([]string, len(e.Lines))
	for i, l := range e.Lines {
		parts[i] = fmt.Sprintf("%s: %s", l.Barcode, l.Reason)
	}
	return "report validation failed: " + strings.Join(parts, "; ")
}
