// Package store provides PostgreSQL-backed repositories for the sync
// server: shifts, the product catalog, committed stock lines and wrapped
// session keys. Repositories are bound to a dbx.DBTX so the same code runs
// against *sql.DB or inside a transaction.
package store

import (
	"time"

	"github.com/fieldstock/shiftledger/internal/domain"
)

// Shift is the server-side shift row.
type Shift struct {
	ID        string
	SubjectID string
	Status    domain.ShiftStatus
	OpenedAt  time.Time
	ClosedAt  *time.Time
	OpenLat   float64
	OpenLng   float64
	CloseLat  *float64
	CloseLng  *float64
	OpenSite  string
	CloseSite string
}

// Closed reports whether the shift has reached a terminal state.
func (s *Shift) Closed() bool {
	return s.Status == domain.ShiftClosed || s.Status == domain.ShiftAbandoned
}
