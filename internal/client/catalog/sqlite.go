package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/fieldstock/shiftledger/internal/dbx"
	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/sealbox"
)

// SQLiteStore persists the catalog snapshot in the local database, one
// sealed row per item, keyed by the session key.
type SQLiteStore struct {
	db dbx.DBTX
}

func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save replaces any previous snapshot for the shift.
func (s *SQLiteStore) Save(ctx context.Context, shiftID string, items []domain.CatalogItem, key []byte) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE shift_id = ?`, shiftID); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}

	for _, it := range items {
		blob, err := sealbox.SealJSON(it, key)
		if err != nil {
			return fmt.Errorf("seal catalog item: %w", err)
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO catalog_items (barcode, shift_id, payload) VALUES (?, ?, ?)`,
			it.Barcode, shiftID, blob)
		if err != nil {
			return fmt.Errorf("insert catalog item: %w", err)
		}
	}
	return nil
}

// Load reads and unseals the snapshot for the shift, restoring catalog
// (sr_no) order.
func (s *SQLiteStore) Load(ctx context.Context, shiftID string, key []byte) (*Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM catalog_items WHERE shift_id = ?`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("select catalog: %w", err)
	}
	defer rows.Close()

	var items []domain.CatalogItem
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var it domain.CatalogItem
		if err := sealbox.OpenJSON(blob, key, &it); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].SrNo < items[j].SrNo })
	return NewSnapshot(items), nil
}

// Purge removes the snapshot for the shift.
func (s *SQLiteStore) Purge(ctx context.Context, shiftID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM catalog_items WHERE shift_id = ?`, shiftID); err != nil {
		return fmt.Errorf("purge catalog: %w", err)
	}
	return nil
}
