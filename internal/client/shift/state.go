// Package shift owns the client-side shift lifecycle: opening a session
// against the server, resuming a crash-interrupted one from durable state,
// and tearing everything down after a successful sync. Every component
// hangs off the session and dies with it.
package shift

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldstock/shiftledger/internal/dbx"
	"github.com/fieldstock/shiftledger/internal/domain"
)

// State is the durable local record of the current shift.
type State struct {
	ShiftID  string
	Status   domain.ShiftStatus
	OpenedAt time.Time
	Site     string
}

// StateRepository persists the shift state row.
type StateRepository interface {
	Save(ctx context.Context, s *State) error
	// Current returns the open or closing shift, or domain.ErrNoActiveShift.
	Current(ctx context.Context) (*State, error)
	SetStatus(ctx context.Context, shiftID string, status domain.ShiftStatus) error
	Delete(ctx context.Context, shiftID string) error
}

// SQLiteStateRepository implements StateRepository over a DBTX.
type SQLiteStateRepository struct {
	db dbx.DBTX
}

func NewSQLiteStateRepository(db dbx.DBTX) *SQLiteStateRepository {
	return &SQLiteStateRepository{db: db}
}

func (r *SQLiteStateRepository) Save(ctx context.Context, s *State) error {
	query := `INSERT INTO shift_state (shift_id, status, opened_at, site)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(shift_id) DO UPDATE SET status = excluded.status, site = excluded.site`
	_, err := r.db.ExecContext(ctx, query, s.ShiftID, string(s.Status), s.OpenedAt.UTC(), s.Site)
	if err != nil {
		return fmt.Errorf("failed to save shift state: %w", err)
	}
	return nil
}

func (r *SQLiteStateRepository) Current(ctx context.Context) (*State, error) {
	query := `SELECT shift_id, status, opened_at, site FROM shift_state
			WHERE status IN ('open', 'closing') ORDER BY opened_at DESC LIMIT 1`
	row := r.db.QueryRowContext(ctx, query)

	s := &State{}
	var status string
	if err := row.Scan(&s.ShiftID, &status, &s.OpenedAt, &s.Site); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoActiveShift
		}
		return nil, fmt.Errorf("failed to read shift state: %w", err)
	}
	s.Status = domain.ShiftStatus(status)
	return s, nil
}

func (r *SQLiteStateRepository) SetStatus(ctx context.Context, shiftID string, status domain.ShiftStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE shift_state SET status = ? WHERE shift_id = ?`, string(status), shiftID)
	if err != nil {
		return fmt.Errorf("failed to update shift status: %w", err)
	}
	return nil
}

func (r *SQLiteStateRepository) Delete(ctx context.Context, shiftID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shift_state WHERE shift_id = ?`, shiftID); err != nil {
		return fmt.Errorf("failed to delete shift state: %w", err)
	}
	return nil
}

var _ StateRepository = (*SQLiteStateRepository)(nil)
