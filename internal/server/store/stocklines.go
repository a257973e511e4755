package store

import (
	"context"
	"fmt"

	"github.com/fieldstock/shiftledger/internal/dbx"
	"github.com/fieldstock/shiftledger/internal/domain"
)

// StockLineRepository persists the committed per-item stock summaries of a
// closed shift.
type StockLineRepository interface {
	// Insert writes all lines for the shift. It is expected to run inside
	// the closing transaction.
	Insert(ctx context.Context, shiftID string, lines []domain.StockReportLine) error
	ListByShift(ctx context.Context, shiftID string) ([]domain.StockReportLine, error)
}

// PostgresStockLineRepository implements StockLineRepository over a
// dbx.DBTX.
type PostgresStockLineRepository struct {
	db dbx.DBTX
}

func NewPostgresStockLineRepository(db dbx.DBTX) *PostgresStockLineRepository {
	return &PostgresStockLineRepository{db: db}
}

func (r *PostgresStockLineRepository) Insert(ctx context.Context, shiftID string, lines []domain.StockReportLine) error {
	query := `INSERT INTO stock_lines (shift_id, ean, opening_qty, qty_received, qty_sold, closing_stock)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, l := range lines {
		_, err := r.db.ExecContext(ctx, query,
			shiftID, l.Barcode, l.Opening, l.Received, l.Sold, l.Closing)
		if err != nil {
			return fmt.Errorf("insert stock line %s: %w", l.Barcode, err)
		}
	}
	return nil
}

func (r *PostgresStockLineRepository) ListByShift(ctx context.Context, shiftID string) ([]domain.StockReportLine, error) {
	query := `SELECT ean, opening_qty, qty_received, qty_sold, closing_stock
		FROM stock_lines WHERE shift_id = $1 ORDER BY ean`
	rows, err := r.db.QueryContext(ctx, query, shiftID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var lines []domain.StockReportLine
	for rows.Next() {
		var l domain.StockReportLine
		if err := rows.Scan(&l.Barcode, &l.Opening, &l.Received, &l.Sold, &l.Closing); err != nil {
			return nil, fmt.Errorf("scan stock line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return lines, nil
}

var _ StockLineRepository = (*PostgresStockLineRepository)(nil)
