package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldstock/shiftledger/internal/dbx"
	"github.com/fieldstock/shiftledger/internal/domain"
)

// ShiftRepository persists shift rows.
type ShiftRepository interface {
	Create(ctx context.Context, s *Shift) error
	// Get returns the shift by id, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*Shift, error)
	// GetForUpdate locks the shift row for the duration of the enclosing
	// transaction. Meaningful only on a tx-bound repository.
	GetForUpdate(ctx context.Context, id string) (*Shift, error)
	// CurrentForSubject returns the subject's open or closing shift
	// opened at or after dayStart, or domain.ErrNotFound.
	CurrentForSubject(ctx context.Context, subjectID string, dayStart time.Time) (*Shift, error)
	// Close flips the shift to closed with the closing time and position.
	Close(ctx context.Context, id string, closedAt time.Time, lat, lng float64) error
	SetOpenSite(ctx context.Context, id, site string) error
	SetCloseSite(ctx context.Context, id, site string) error
}

// PostgresShiftRepository implements ShiftRepository over a dbx.DBTX.
type PostgresShiftRepository struct {
	db dbx.DBTX
}

func NewPostgresShiftRepository(db dbx.DBTX) *PostgresShiftRepository {
	return &PostgresShiftRepository{db: db}
}

const shiftColumns = `id, subject_id, status, opened_at, closed_at,
	open_lat, open_lng, close_lat, close_lng, open_site, close_site`

func (r *PostgresShiftRepository) Create(ctx context.Context, s *Shift) error {
	query := `INSERT INTO shifts (id, subject_id, status, opened_at, open_lat, open_lng)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.SubjectID, string(s.Status), s.OpenedAt, s.OpenLat, s.OpenLng)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresShiftRepository) Get(ctx context.Context, id string) (*Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresShiftRepository) GetForUpdate(ctx context.Context, id string) (*Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresShiftRepository) CurrentForSubject(ctx context.Context, subjectID string, dayStart time.Time) (*Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts
		WHERE subject_id = $1 AND opened_at >= $2 AND status IN ('open', 'closing')
		ORDER BY opened_at DESC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, subjectID, dayStart))
}

func (r *PostgresShiftRepository) Close(ctx context.Context, id string, closedAt time.Time, lat, lng float64) error {
	query := `UPDATE shifts SET status = 'closed', closed_at = $2, close_lat = $3, close_lng = $4
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, closedAt, lat, lng)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return oneRowAffected(res)
}

func (r *PostgresShiftRepository) SetOpenSite(ctx context.Context, id, site string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE shifts SET open_site = $2 WHERE id = $1`, id, site)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresShiftRepository) SetCloseSite(ctx context.Context, id, site string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE shifts SET close_site = $2 WHERE id = $1`, id, site)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresShiftRepository) scanOne(row *sql.Row) (*Shift, error) {
	s := &Shift{}
	var status string
	err := row.Scan(&s.ID, &s.SubjectID, &status, &s.OpenedAt, &s.ClosedAt,
		&s.OpenLat, &s.OpenLng, &s.CloseLat, &s.CloseLng, &s.OpenSite, &s.CloseSite)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	s.Status = domain.ShiftStatus(status)
	return s, nil
}

func oneRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

var _ ShiftRepository = (*PostgresShiftRepository)(nil)
