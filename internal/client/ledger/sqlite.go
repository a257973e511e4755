package ledger

import (
	"context"
	"fmt"

	"github.com/fieldstock/shiftledger/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or
// *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, shiftID string, kind Kind, barcode string, payload []byte) error {
	query := `INSERT INTO ledger_events (shift_id, kind, barcode, payload) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, shiftID, string(kind), barcode, payload); err != nil {
		return fmt.Errorf("failed to append ledger event: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) All(ctx context.Context, shiftID string) ([]Record, error) {
	query := `SELECT seq, kind, barcode, payload FROM ledger_events WHERE shift_id = ? ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to select ledger events: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		var rec Record
		var kind string
		if err := rows.Scan(&rec.Seq, &kind, &rec.Barcode, &rec.Payload); err != nil {
			return nil, err
		}
		rec.Kind = Kind(kind)
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) HasOpening(ctx context.Context, shiftID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM ledger_events WHERE shift_id = ? AND kind = 'opening')`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, shiftID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check opening entries: %w", err)
	}
	return exists, nil
}

func (r *SQLiteRepository) Purge(ctx context.Context, shiftID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM ledger_events WHERE shift_id = ?`, shiftID); err != nil {
		return fmt.Errorf("failed to purge ledger events: %w", err)
	}
	return nil
}
