package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fieldstock/shiftledger/internal/domain"
)

// getCoords is an indirection used to facilitate testing.
var getCoords = getCoordinates

// Open starts today's shift, or resumes one already open locally or on the
// server.
func (a *App) Open(ctx context.Context) error {
	if a.session != nil {
		fmt.Fprintf(a.out, "Shift %s is already open\n", a.session.ID)
		return nil
	}

	lat, lng, err := getCoords(a.reader, a.out)
	if err != nil {
		return err
	}

	s, err := a.manager.Open(ctx, lat, lng)
	if err != nil {
		return err
	}
	a.session = s

	if s.Resumed {
		fmt.Fprintf(a.out, "Resumed shift %s, %d catalog items\n", s.ID, s.Catalog.Len())
	} else {
		fmt.Fprintf(a.out, "Shift %s opened at %s, %d catalog items\n", s.ID, s.Site, s.Catalog.Len())
	}
	return nil
}

// Opening records the counted shelf stock for one item. Repeating the
// command for the same barcode replaces the earlier count.
func (a *App) Opening(ctx context.Context, args []string) error {
	barcode, qty, err := a.parseLine("opening", args)
	if err != nil {
		return err
	}
	if err := a.session.Ledger.RecordOpening(ctx, barcode, qty); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Opening stock for %s set to %d\n", barcode, qty)
	return nil
}

// Receive records one delivery.
func (a *App) Receive(ctx context.Context, args []string) error {
	barcode, qty, err := a.parseLine("receive", args)
	if err != nil {
		return err
	}
	if err := a.session.Ledger.RecordReceipt(ctx, barcode, qty); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Received %d x %s\n", qty, barcode)
	return nil
}

// Sale records one sale, rejected when on-hand stock cannot cover it.
func (a *App) Sale(ctx context.Context, args []string) error {
	barcode, qty, err := a.parseLine("sale", args)
	if err != nil {
		return err
	}
	if err := a.session.Ledger.RecordSale(ctx, barcode, qty); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sold %d x %s\n", qty, barcode)
	return nil
}

// Stock prints the derived per-item summary for the current shift.
func (a *App) Stock(ctx context.Context) error {
	if a.session == nil {
		return domain.ErrNoActiveShift
	}

	summaries, err := a.session.Ledger.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(a.out, "No stock recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BARCODE\tITEM\tOPENING\tRECEIVED\tSOLD\tON HAND")
	for _, s := range summaries {
		desc := ""
		if it, err := a.session.Catalog.Get(s.Barcode); err == nil {
			desc = it.Description
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			s.Barcode, desc, s.Opening, s.Received, s.Sold, s.OnHand)
	}
	return w.Flush()
}

// Close durably marks the shift closing and hands the sealed report to
// the sync machine on a background goroutine: the terminal stays usable
// through the retry backoff. The outcome is printed by poll; progress
// shows in the prompt. On success all local shift data is purged; on
// validation rejection the local logs stay intact for correction.
func (a *App) Close(ctx context.Context) error {
	if a.session == nil {
		return domain.ErrNoActiveShift
	}
	if a.closePending {
		fmt.Fprintln(a.out, "Closing already in progress; the prompt shows sync state")
		return nil
	}

	lat, lng, err := getCoords(a.reader, a.out)
	if err != nil {
		return err
	}

	if err := a.manager.BeginClose(ctx, a.session); err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Submitting closing report in the background")
	a.startSubmit(ctx, lat, lng)
	return nil
}

// Status asks the server about today's shift for this account.
func (a *App) Status(ctx context.Context) error {
	st, err := a.api.Status(ctx)
	if err != nil {
		return err
	}
	if !st.Active {
		fmt.Fprintln(a.out, "No active shift on the server")
		return nil
	}
	fmt.Fprintf(a.out, "Shift %s is %s at %s", st.ShiftID, st.Status, st.Site)
	if st.OpenedAt != nil {
		fmt.Fprintf(a.out, ", opened %s", st.OpenedAt.Local().Format("15:04"))
	}
	fmt.Fprintln(a.out)
	return nil
}

func (a *App) parseLine(cmd string, args []string) (string, int64, error) {
	if a.session == nil {
		return "", 0, domain.ErrNoActiveShift
	}
	if len(args) != 2 {
		return "", 0, fmt.Errorf("usage: %s <barcode> <qty>", cmd)
	}
	qty, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("quantity %q: %w", args[1], domain.ErrInvalidQuantity)
	}
	return args[0], qty, nil
}
