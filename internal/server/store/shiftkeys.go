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

// ShiftKeyRepository persists wrapped session keys. Only wrapped blobs
// ever reach this layer.
type ShiftKeyRepository interface {
	Save(ctx context.Context, shiftID string, wrapped []byte, issuedAt time.Time) error
	// Get returns the wrapped key, or domain.ErrNotFound.
	Get(ctx context.Context, shiftID string) ([]byte, error)
	Delete(ctx context.Context, shiftID string) error
}

// PostgresShiftKeyRepository implements ShiftKeyRepository over a dbx.DBTX.
type PostgresShiftKeyRepository struct {
	db dbx.DBTX
}

func NewPostgresShiftKeyRepository(db dbx.DBTX) *PostgresShiftKeyRepository {
	return &PostgresShiftKeyRepository{db: db}
}

func (r *PostgresShiftKeyRepository) Save(ctx context.Context, shiftID string, wrapped []byte, issuedAt time.Time) error {
	query := `INSERT INTO shift_keys (shift_id, wrapped_key, issued_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, shiftID, wrapped, issuedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresShiftKeyRepository) Get(ctx context.Context, shiftID string) ([]byte, error) {
	var wrapped []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT wrapped_key FROM shift_keys WHERE shift_id = $1`, shiftID).Scan(&wrapped)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return wrapped, nil
}

func (r *PostgresShiftKeyRepository) Delete(ctx context.Context, shiftID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM shift_keys WHERE shift_id = $1`, shiftID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

var _ ShiftKeyRepository = (*PostgresShiftKeyRepository)(nil)
