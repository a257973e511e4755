// Package catalog holds the read-only reference-data snapshot fetched once
// per shift. All barcode lookups during the shift go against this snapshot,
// so recording stays fully usable without network access.
package catalog

import "github.com/fieldstock/shiftledger/internal/domain"

// Snapshot is an immutable, in-memory view of the shift's catalog.
type Snapshot struct {
	items     []domain.CatalogItem
	byBarcode map[string]domain.CatalogItem
}

// NewSnapshot builds a snapshot from items, preserving their order.
func NewSnapshot(items []domain.CatalogItem) *Snapshot {
	byBarcode := make(map[string]domain.CatalogItem, len(items))
	for _, it := range items {
		byBarcode[it.Barcode] = it
	}
	return &Snapshot{items: items, byBarcode: byBarcode}
}

// Exists reports whether barcode is part of the snapshot.
func (s *Snapshot) Exists(barcode string) bool {
	_, ok := s.byBarcode[barcode]
	return ok
}

// Get returns the item for barcode, or domain.ErrUnknownItem.
func (s *Snapshot) Get(barcode string) (domain.CatalogItem, error) {
	it, ok := s.byBarcode[barcode]
	if !ok {
		return domain.CatalogItem{}, domain.ErrUnknownItem
	}
	return it, nil
}

// Items returns all items in catalog order.
func (s *Snapshot) Items() []domain.CatalogItem {
	return s.items
}

// Len returns the number of items.
func (s *Snapshot) Len() int {
	return len(s.items)
}
