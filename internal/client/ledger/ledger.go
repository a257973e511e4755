package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fieldstock/shiftledger/internal/client/catalog"
	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/sealbox"
)

// entry is the sealed per-record payload.
type entry struct {
	Barcode    string    `json:"barcode"`
	Qty        int64     `json:"qty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Ledger owns the shift's event logs. All mutating calls are serialized:
// each write validates against current derived state, so interleaving two
// writers could admit a sale the stock cannot cover.
type Ledger struct {
	mu      sync.Mutex
	repo    Repository
	catalog *catalog.Snapshot
	shiftID string
	key     []byte
	now     func() time.Time
	log     logging.Logger
}

func New(repo Repository, cat *catalog.Snapshot, shiftID string, key []byte, log logging.Logger) *Ledger {
	return &Ledger{
		repo:    repo,
		catalog: cat,
		shiftID: shiftID,
		key:     key,
		now:     time.Now,
		log:     log.With("module", "ledger", "shift_id", shiftID),
	}
}

// RecordOpening records the shelf count for a barcode at shift start.
// A later call for the same barcode replaces the value; replay resolves
// the replacement, the log itself stays append-only.
func (l *Ledger) RecordOpening(ctx context.Context, barcode string, qty int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.catalog.Exists(barcode) {
		return fmt.Errorf("record opening %q: %w", barcode, domain.ErrUnknownItem)
	}
	if qty < 0 {
		return fmt.Errorf("record opening %q: %w", barcode, domain.ErrInvalidQuantity)
	}

	return l.append(ctx, KindOpening, barcode, qty)
}

// RecordReceipt records one delivery event. Deliveries are independent
// events: multiple receipts for the same barcode are summed at replay.
func (l *Ledger) RecordReceipt(ctx context.Context, barcode string, qty int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.catalog.Exists(barcode) {
		return fmt.Errorf("record receipt %q: %w", barcode, domain.ErrUnknownItem)
	}
	if qty <= 0 {
		return fmt.Errorf("record receipt %q: %w", barcode, domain.ErrInvalidQuantity)
	}

	return l.append(ctx, KindReceipt, barcode, qty)
}

// RecordSale records one sale event, guarded by current on-hand stock.
// On failure no entry is written and derived state is unchanged.
func (l *Ledger) RecordSale(ctx context.Context, barcode string, qty int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.catalog.Exists(barcode) {
		return fmt.Errorf("record sale %q: %w", barcode, domain.ErrUnknownItem)
	}
	if qty <= 0 {
		return fmt.Errorf("record sale %q: %w", barcode, domain.ErrInvalidQuantity)
	}

	onHand, err := l.onHand(ctx, barcode)
	if err != nil {
		return err
	}
	if qty > onHand {
		return fmt.Errorf("record sale %q (on hand %d, want %d): %w",
			barcode, onHand, qty, domain.ErrInsufficientStock)
	}

	return l.append(ctx, KindSale, barcode, qty)
}

// Snapshot returns the derived per-barcode summaries in first-appearance
// order, recomputed from the raw logs.
func (l *Ledger) Snapshot(ctx context.Context) ([]domain.DerivedStock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot(ctx)
}

// OnHand returns the current on-hand quantity for one barcode.
func (l *Ledger) OnHand(ctx context.Context, barcode string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.onHand(ctx, barcode)
}

// HasOpeningData reports whether any opening entries exist. Used on restart
// to detect a crash-interrupted shift and resume instead of restarting.
func (l *Ledger) HasOpeningData(ctx context.Context) (bool, error) {
	return l.repo.HasOpening(ctx, l.shiftID)
}

// Purge deletes all local logs for the shift. Called only after the server
// acknowledged the closing report.
func (l *Ledger) Purge(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Info(ctx, "purging local ledger")
	return l.repo.Purge(ctx, l.shiftID)
}

func (l *Ledger) append(ctx context.Context, kind Kind, barcode string, qty int64) error {
	blob, err := sealbox.SealJSON(entry{Barcode: barcode, Qty: qty, RecordedAt: l.now().UTC()}, l.key)
	if err != nil {
		return fmt.Errorf("seal ledger entry: %w", err)
	}
	return l.repo.Append(ctx, l.shiftID, kind, barcode, blob)
}

func (l *Ledger) snapshot(ctx context.Context) ([]domain.DerivedStock, error) {
	records, err := l.repo.All(ctx, l.shiftID)
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(records))
	for _, rec := range records {
		var e entry
		if err := sealbox.OpenJSON(rec.Payload, l.key, &e); err != nil {
			return nil, fmt.Errorf("ledger record seq %d: %w", rec.Seq, err)
		}
		events = append(events, Event{Kind: rec.Kind, Barcode: e.Barcode, Qty: e.Qty})
	}

	return Replay(events), nil
}

func (l *Ledger) onHand(ctx context.Context, barcode string) (int64, error) {
	summaries, err := l.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range summaries {
		if s.Barcode == barcode {
			return s.OnHand, nil
		}
	}
	return 0, nil
}
