package ledger

import "github.com/fieldstock/shiftledger/internal/domain"

// Event is one decrypted ledger entry.
type Event struct {
	Kind    Kind
	Barcode string
	Qty     int64
}

// Replay recomputes per-barcode stock summaries from the raw event
// sequence. It is a pure function: derived state is never cached to
// persistent storage, so it cannot silently diverge from the event
// history.
//
// Opening is last-write-wins per barcode; receipts and sales are summed.
// Barcodes that appear only in receipt or sale events are treated as
// opening = 0. The result is ordered by first appearance across the logs.
func Replay(events []Event) []domain.DerivedStock {
	var order []string
	summaries := make(map[string]*domain.DerivedStock)

	for _, ev := range events {
		s, ok := summaries[ev.Barcode]
		if !ok {
			s = &domain.DerivedStock{Barcode: ev.Barcode}
			summaries[ev.Barcode] = s
			order = append(order, ev.Barcode)
		}

		switch ev.Kind {
		case KindOpening:
			s.Opening = ev.Qty
		case KindReceipt:
			s.Received += ev.Qty
		case KindSale:
			s.Sold += ev.Qty
		}
	}

	result := make([]domain.DerivedStock, 0, len(order))
	for _, barcode := range order {
		s := summaries[barcode]
		s.OnHand = s.Opening + s.Received - s.Sold
		result = append(result, *s)
	}
	return result
}
