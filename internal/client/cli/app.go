// Package cli is the interactive shift terminal: a small REPL over the
// local ledger and the sync client. Every command works offline except
// open (first time), close and status.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fieldstock/shiftledger/internal/client/api"
	"github.com/fieldstock/shiftledger/internal/client/config"
	"github.com/fieldstock/shiftledger/internal/client/keyring"
	"github.com/fieldstock/shiftledger/internal/client/shift"
	"github.com/fieldstock/shiftledger/internal/client/storage"
	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/sealbox"
)

// closeOutcome is the result of one background submission, handed from
// the submit goroutine to the REPL thread.
type closeOutcome struct {
	resp *domain.CloseShiftResponse
	err  error
}

type App struct {
	config  *config.Config
	log     logging.Logger
	db      *sql.DB
	api     *api.Client
	manager *shift.Manager
	session *shift.Session
	reader  *bufio.Reader
	out     io.Writer

	// Background close submission. closePending is touched only on the
	// REPL thread; closeRes crosses from the submit goroutine under
	// closeMu.
	closeMu      sync.Mutex
	closeRes     *closeOutcome
	closePending bool
}

// NewApp wires local storage, the keyring and the sync API into a ready
// App. The access token is read from the terminal without echo.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	token, err := getToken(os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	defer sealbox.Wipe(token)

	db, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	keys, err := keyring.NewFile(cfg.KeyringDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	server := api.NewClient(cfg.ServerAddr, string(token))
	manager := shift.NewManager(db, keys, server, log)

	a := &App{
		config:  cfg,
		log:     log.With("module", "cli"),
		db:      db,
		api:     server,
		manager: manager,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}

	if err := a.bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return a, nil
}

// bootstrap resumes a crash-interrupted shift from durable local state
// without contacting the server. A shift that died mid-sync (durable
// status closing) re-enters the submission flow immediately; the idempotent
// server close makes the re-submission safe.
func (a *App) bootstrap(ctx context.Context) error {
	s, err := a.manager.Resume(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveShift) {
			return nil
		}
		return err
	}

	a.session = s
	fmt.Fprintf(a.out, "Resumed shift %s (%s)\n", s.ID, s.Status)

	if s.Status == domain.ShiftClosing {
		fmt.Fprintln(a.out, "Sync was interrupted; resubmitting in the background")
		a.startSubmit(ctx, 0, 0)
	}
	return nil
}

// startSubmit launches the sync machine on its own goroutine so the REPL
// stays usable through backoff waits. Call only from the REPL thread.
func (a *App) startSubmit(ctx context.Context, lat, lng float64) {
	a.closePending = true
	s := a.session
	go func() {
		resp, err := s.Sync.Submit(ctx, lat, lng)
		a.closeMu.Lock()
		a.closeRes = &closeOutcome{resp: resp, err: err}
		a.closeMu.Unlock()
	}()
}

// poll surfaces the outcome of a finished background submission. It runs
// on the REPL thread, so session changes never race command handlers.
func (a *App) poll(ctx context.Context) {
	a.closeMu.Lock()
	res := a.closeRes
	a.closeRes = nil
	a.closeMu.Unlock()
	if res == nil {
		return
	}
	a.closePending = false

	var verr *domain.ValidationError
	switch {
	case res.err == nil:
		fmt.Fprintf(a.out, "Shift %s closed (%s)\n", a.session.ID, res.resp.Code)
		a.session = nil

	case errors.As(res.err, &verr):
		fmt.Fprintln(a.out, "Report rejected by the server:")
		for _, l := range verr.Lines {
			fmt.Fprintf(a.out, "  %s: %s\n", l.Barcode, l.Reason)
		}
		fmt.Fprintln(a.out, "Local records kept; fix the lines and close again")

	case errors.Is(res.err, domain.ErrEmptyReport):
		fmt.Fprintln(a.out, "No opening stock recorded, nothing to submit")

	default:
		fmt.Fprintln(a.out, "Sync error:", res.err)
		fmt.Fprintln(a.out, "Local records kept; 'close' re-triggers submission")
	}
}

func (a *App) Run(ctx context.Context) {
	defer func() { _ = a.db.Close() }()
	fmt.Fprintln(a.out, "shiftledger (type 'help' for commands)")
	runREPL(ctx, a, a.statusLine, bufio.NewScanner(os.Stdin), a.out)
}

func (a *App) hasSession() bool {
	return a.session != nil
}

func (a *App) statusLine() string {
	if a.session == nil {
		return "no shift"
	}
	if a.closePending {
		return fmt.Sprintf("%s sync:%s", a.session.ID, a.session.Sync.State())
	}
	return fmt.Sprintf("%s %s", a.session.ID, a.session.Status)
}
