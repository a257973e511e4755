package shift

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fieldstock/shiftledger/internal/client/catalog"
	"github.com/fieldstock/shiftledger/internal/client/keyring"
	"github.com/fieldstock/shiftledger/internal/client/ledger"
	"github.com/fieldstock/shiftledger/internal/client/syncer"
	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/sealbox"
)

// Server is the slice of the sync API the lifecycle needs.
type Server interface {
	OpenShift(ctx context.Context, lat, lng float64) (*domain.OpenShiftResponse, []byte, error)
	CloseShift(ctx context.Context, shiftID string, sealed []byte) (*domain.CloseShiftResponse, error)
}

// Session is the per-shift context object. It is constructed once at shift
// open (or resume) and torn down after a successful sync; nothing in it
// survives across shifts.
type Session struct {
	ID      string
	Status  domain.ShiftStatus
	Site    string
	Catalog *catalog.Snapshot
	Ledger  *ledger.Ledger
	Sync    *syncer.Machine
	Resumed bool

	key []byte
}

// Manager opens, resumes and closes sessions against local storage and the
// sync server.
type Manager struct {
	db       *sql.DB
	states   StateRepository
	keys     keyring.Store
	catalogs *catalog.SQLiteStore
	server   Server
	log      logging.Logger
	syncOpts []syncer.Option
}

func NewManager(db *sql.DB, keys keyring.Store, server Server, log logging.Logger, syncOpts ...syncer.Option) *Manager {
	return &Manager{
		db:       db,
		states:   NewSQLiteStateRepository(db),
		keys:     keys,
		catalogs: catalog.NewSQLiteStore(db),
		server:   server,
		log:      log.With("module", "shift"),
		syncOpts: syncOpts,
	}
}

// Open starts today's shift. If local durable state already holds an open
// shift (crash-interrupted), it resumes instead of restarting. Otherwise
// it bootstraps against the server: session key, catalog snapshot, state
// row.
func (m *Manager) Open(ctx context.Context, lat, lng float64) (*Session, error) {
	if cur, err := m.states.Current(ctx); err == nil {
		m.log.Info(ctx, "resuming interrupted shift", "shift_id", cur.ShiftID)
		return m.resume(ctx, cur)
	}

	resp, key, err := m.server.OpenShift(ctx, lat, lng)
	if err != nil {
		return nil, fmt.Errorf("open shift: %w", err)
	}

	if key == nil {
		// The server re-acknowledged an existing shift without re-issuing
		// the key; only the local keyring can still have it.
		key, err = m.keys.Get(resp.ShiftID)
		if err != nil {
			return nil, fmt.Errorf("shift %s is open on the server but its session key is gone locally: %w",
				resp.ShiftID, err)
		}
	} else if err := m.keys.Put(resp.ShiftID, key); err != nil {
		return nil, fmt.Errorf("store session key: %w", err)
	}

	if err := m.catalogs.Save(ctx, resp.ShiftID, resp.Catalog, key); err != nil {
		return nil, err
	}

	state := &State{
		ShiftID:  resp.ShiftID,
		Status:   domain.ShiftOpen,
		OpenedAt: resp.OpenedAt,
		Site:     resp.Site,
	}
	if err := m.states.Save(ctx, state); err != nil {
		return nil, err
	}

	m.log.Info(ctx, "shift opened", "shift_id", resp.ShiftID, "already_open", resp.AlreadyOpen)
	return m.build(resp.ShiftID, domain.ShiftOpen, resp.Site, catalog.NewSnapshot(resp.Catalog), key, false), nil
}

// Resume rebuilds the session for a shift recorded in durable local state.
// It never contacts the server: key retrieval is deferred entirely to sync
// time so a restarted client keeps working fully offline.
func (m *Manager) Resume(ctx context.Context) (*Session, error) {
	cur, err := m.states.Current(ctx)
	if err != nil {
		return nil, err
	}
	return m.resume(ctx, cur)
}

func (m *Manager) resume(ctx context.Context, cur *State) (*Session, error) {
	key, err := m.keys.Get(cur.ShiftID)
	if err != nil {
		return nil, fmt.Errorf("session key for shift %s: %w", cur.ShiftID, err)
	}

	snap, err := m.catalogs.Load(ctx, cur.ShiftID, key)
	if err != nil {
		return nil, fmt.Errorf("catalog snapshot for shift %s: %w", cur.ShiftID, err)
	}

	s := m.build(cur.ShiftID, cur.Status, cur.Site, snap, key, true)
	return s, nil
}

func (m *Manager) build(shiftID string, status domain.ShiftStatus, site string, snap *catalog.Snapshot, key []byte, resumed bool) *Session {
	led := ledger.New(ledger.NewSQLiteRepository(m.db), snap, shiftID, key, m.log)

	s := &Session{
		ID:      shiftID,
		Status:  status,
		Site:    site,
		Catalog: snap,
		Ledger:  led,
		Resumed: resumed,
		key:     key,
	}

	opts := append([]syncer.Option{syncer.WithOnSuccess(func(ctx context.Context) error {
		return m.teardown(ctx, s)
	})}, m.syncOpts...)

	s.Sync = syncer.New(shiftID, key, led, m.server, m.log, opts...)
	return s
}

// BeginClose durably flips the shift to closing before submission starts,
// so a restart mid-sync resumes into the close flow. Repeating it for a
// shift already closing is a no-op.
func (m *Manager) BeginClose(ctx context.Context, s *Session) error {
	if err := m.states.SetStatus(ctx, s.ID, domain.ShiftClosing); err != nil {
		return err
	}
	s.Status = domain.ShiftClosing
	return nil
}

// Close marks the shift as closing and runs the sync machine to
// completion, blocking through backoff waits. On success the local ledger,
// catalog snapshot, state row and session key are gone. Callers that must
// stay responsive run BeginClose themselves and Submit on their own
// goroutine.
func (m *Manager) Close(ctx context.Context, s *Session, lat, lng float64) (*domain.CloseShiftResponse, error) {
	if err := m.BeginClose(ctx, s); err != nil {
		return nil, err
	}

	resp, err := s.Sync.Submit(ctx, lat, lng)
	if err != nil {
		return resp, err
	}

	s.Status = domain.ShiftClosed
	return resp, nil
}

// teardown runs after the server acknowledged the report: purge everything
// local and destroy the session key. Key deletion is strictly post-success.
func (m *Manager) teardown(ctx context.Context, s *Session) error {
	if err := m.catalogs.Purge(ctx, s.ID); err != nil {
		return err
	}
	if err := m.states.Delete(ctx, s.ID); err != nil {
		return err
	}
	if err := m.keys.Delete(s.ID); err != nil {
		return err
	}
	sealbox.Wipe(s.key)
	m.log.Info(ctx, "shift torn down", "shift_id", s.ID)
	return nil
}
