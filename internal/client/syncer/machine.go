// Package syncer drives shift close: it snapshots the ledger into a stock
// report, seals it with the session key and submits it with bounded retry.
// The flow is an explicit state machine:
//
//	Idle → Building → Submitting → (Succeeded | Retrying → Submitting | Failed)
//
// Local logs are never deleted while in Retrying or Failed; purge happens
// only on acknowledged success (committed or already_closed).
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/sealbox"
)

// State is the sync client's current position in the close flow.
type State string

const (
	StateIdle       State = "idle"
	StateBuilding   State = "building"
	StateSubmitting State = "submitting"
	StateRetrying   State = "retrying"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// DefaultSchedule is the fixed backoff schedule: five retries after the
// initial attempt, then the machine parks in Failed for manual re-trigger.
var DefaultSchedule = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	45 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// ErrInFlight rejects a second concurrent submission for the same shift,
// e.g. shift close triggered from two UI paths at once.
var ErrInFlight = errors.New("submission already in flight")

// Submitter sends a sealed report to the server.
type Submitter interface {
	CloseShift(ctx context.Context, shiftID string, sealed []byte) (*domain.CloseShiftResponse, error)
}

// Ledger is the slice of the event ledger the machine needs.
type Ledger interface {
	Snapshot(ctx context.Context) ([]domain.DerivedStock, error)
	HasOpeningData(ctx context.Context) (bool, error)
	Purge(ctx context.Context) error
}

// Machine runs the close flow for one shift.
type Machine struct {
	mu       sync.Mutex
	state    State
	inFlight bool

	shiftID  string
	key      []byte
	ledger   Ledger
	submit   Submitter
	clock    Clock
	schedule []time.Duration
	log      logging.Logger

	// onSuccess tears down session state (catalog, keyring, state row)
	// after the ledger purge. Optional.
	onSuccess func(ctx context.Context) error
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock injects a clock; tests use a fake to step through the schedule.
func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithSchedule overrides the backoff schedule.
func WithSchedule(s []time.Duration) Option {
	return func(m *Machine) { m.schedule = s }
}

// WithOnSuccess registers the post-purge teardown hook.
func WithOnSuccess(fn func(ctx context.Context) error) Option {
	return func(m *Machine) { m.onSuccess = fn }
}

func New(shiftID string, key []byte, l Ledger, s Submitter, log logging.Logger, opts ...Option) *Machine {
	m := &Machine{
		state:    StateIdle,
		shiftID:  shiftID,
		key:      key,
		ledger:   l,
		submit:   s,
		clock:    realClock{},
		schedule: DefaultSchedule,
		log:      log.With("module", "syncer", "shift_id", shiftID),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the machine's current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Submit runs the close flow to completion: build, seal, submit, retry on
// transient failures per the schedule. It blocks through backoff waits;
// cancel ctx to abandon automatic retries without losing local data (the
// shift stays syncable and Submit may be called again later). Calling
// Submit while Failed re-triggers the whole flow from Building.
func (m *Machine) Submit(ctx context.Context, lat, lng float64) (*domain.CloseShiftResponse, error) {
	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, ErrInFlight
	}
	m.inFlight = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
	}()

	sealed, err := m.build(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		m.setState(StateSubmitting)

		resp, err := m.submit.CloseShift(ctx, m.shiftID, sealed)
		switch {
		case err == nil && (resp.Code == domain.CodeCommitted || resp.Code == domain.CodeAlreadyClosed):
			// already_closed is the idempotent success signal: a prior
			// submission landed but its acknowledgment was lost.
			if err := m.finish(ctx); err != nil {
				return resp, err
			}
			m.setState(StateSucceeded)
			m.log.Info(ctx, "shift synced", "code", string(resp.Code), "attempt", attempt+1)
			return resp, nil

		case errors.Is(err, domain.ErrUnauthorized) || (err == nil && resp.Code == domain.CodeUnauthorized):
			// Surfaced to the caller for credential refresh; no purge, no
			// automatic retry.
			m.setState(StateIdle)
			return nil, domain.ErrUnauthorized

		case err == nil && resp.Code == domain.CodeValidationRejected:
			m.setState(StateFailed)
			m.log.Error(ctx, "report rejected by server", "lines", len(resp.Lines))
			return resp, &domain.ValidationError{Lines: resp.Lines}

		case err == nil && resp.Code == domain.CodeCorrupted:
			// Integrity failure is data loss for those bytes; retrying the
			// same blob cannot succeed. No purge, no automatic retry.
			m.setState(StateFailed)
			m.log.Error(ctx, "server could not authenticate the sealed report")
			return resp, fmt.Errorf("server rejected report: %w", sealbox.ErrTamperedOrCorrupted)

		default:
			if err == nil {
				err = fmt.Errorf("%w: unexpected response code %q", domain.ErrTransient, resp.Code)
			}
			if attempt >= len(m.schedule) {
				m.setState(StateFailed)
				m.log.Error(ctx, "sync failed, manual re-trigger required",
					"attempts", attempt+1, "error", err.Error())
				return nil, fmt.Errorf("sync failed after %d attempts: %w", attempt+1, err)
			}

			delay := m.schedule[attempt]
			m.setState(StateRetrying)
			m.log.Warn(ctx, "submission failed, backing off",
				"attempt", attempt+1, "delay", delay.String(), "error", err.Error())

			select {
			case <-m.clock.After(delay):
			case <-ctx.Done():
				// Abandoning automatic retries loses nothing: local logs
				// are intact and the shift remains syncable.
				return nil, ctx.Err()
			}
		}
	}
}

func (m *Machine) build(ctx context.Context, lat, lng float64) ([]byte, error) {
	m.setState(StateBuilding)

	has, err := m.ledger.HasOpeningData(ctx)
	if err != nil {
		return nil, err
	}
	if !has {
		m.setState(StateIdle)
		return nil, domain.ErrEmptyReport
	}

	summaries, err := m.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.StockReportLine, 0, len(summaries))
	for _, s := range summaries {
		lines = append(lines, domain.StockReportLine{
			Barcode:  s.Barcode,
			Opening:  s.Opening,
			Received: s.Received,
			Sold:     s.Sold,
			Closing:  s.Opening + s.Received - s.Sold,
		})
	}

	report := domain.ClosingReport{
		Latitude:    lat,
		Longitude:   lng,
		SubmittedAt: m.clock.Now().UTC(),
		Lines:       lines,
	}

	sealed, err := sealbox.SealJSON(report, m.key)
	if err != nil {
		return nil, fmt.Errorf("seal report: %w", err)
	}
	return sealed, nil
}

func (m *Machine) finish(ctx context.Context) error {
	if err := m.ledger.Purge(ctx); err != nil {
		return fmt.Errorf("purge ledger: %w", err)
	}
	if m.onSuccess != nil {
		if err := m.onSuccess(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
