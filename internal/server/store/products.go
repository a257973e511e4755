package store

import (
	"context"
	"fmt"

	"github.com/fieldstock/shiftledger/internal/dbx"
	"github.com/fieldstock/shiftledger/internal/domain"
)

// ProductRepository reads the product catalog.
type ProductRepository interface {
	// List returns the whole catalog in sr_no order.
	List(ctx context.Context) ([]domain.CatalogItem, error)
}

// PostgresProductRepository implements ProductRepository over a dbx.DBTX.
type PostgresProductRepository struct {
	db dbx.DBTX
}

func NewPostgresProductRepository(db dbx.DBTX) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

func (r *PostgresProductRepository) List(ctx context.Context) ([]domain.CatalogItem, error) {
	query := `SELECT sr_no, ean, article_code, description, mrp, size_kg, gst_rate
		FROM products ORDER BY sr_no`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		var it domain.CatalogItem
		if err := rows.Scan(&it.SrNo, &it.Barcode, &it.ArticleCode, &it.Description,
			&it.Price, &it.SizeKg, &it.TaxRate); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

var _ ProductRepository = (*PostgresProductRepository)(nil)
