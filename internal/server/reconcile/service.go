package reconcile

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldstock/shiftledger/internal/dbx"
	"github.com/fieldstock/shiftledger/internal/domain"
	"github.com/fieldstock/shiftledger/internal/logging"
	"github.com/fieldstock/shiftledger/internal/sealbox"
	"github.com/fieldstock/shiftledger/internal/server/store"
)

// Keystore is the slice of session key custody the service needs.
type Keystore interface {
	Issue(ctx context.Context, shiftID string) ([]byte, error)
	Get(ctx context.Context, shiftID string) ([]byte, error)
	Destroy(ctx context.Context, shiftID string) error
}

// Enricher resolves shift coordinates to a site name out of band. Both
// calls are fire-and-forget.
type Enricher interface {
	EnqueueOpen(shiftID string, lat, lng float64)
	EnqueueClose(shiftID string, lat, lng float64)
}

// Archiver stores the sealed report blob after the close committed.
type Archiver interface {
	Store(ctx context.Context, shiftID string, closedAt time.Time, sealed []byte) error
}

// Service owns shift open, status and the atomic close.
type Service struct {
	stores  store.Manager
	runner  TxRunner
	keys    Keystore
	enrich  Enricher
	archive Archiver
	log     logging.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Service.
type Option func(*Service)

func WithEnricher(e Enricher) Option {
	return func(s *Service) { s.enrich = e }
}

func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithNow injects the clock, tests pin it.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides shift id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(stores store.Manager, runner TxRunner, keys Keystore, log logging.Logger, opts ...Option) *Service {
	s := &Service{
		stores: stores,
		runner: runner,
		keys:   keys,
		log:    log.With("module", "reconcile"),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenShift starts the subject's shift for the current day, or returns the
// one already open. The session key travels in the response exactly once,
// when the shift is created; a re-acknowledged shift carries no key.
func (s *Service) OpenShift(ctx context.Context, subjectID string, lat, lng float64) (*domain.OpenShiftResponse, error) {
	conn := s.stores.Conn()
	shifts := s.stores.Shifts(conn)

	catalog, err := s.stores.Products(conn).List(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := shifts.CurrentForSubject(ctx, subjectID, s.dayStart())
	if err == nil {
		resp := &domain.OpenShiftResponse{
			ShiftID:     cur.ID,
			AlreadyOpen: true,
			OpenedAt:    cur.OpenedAt,
			Site:        cur.OpenSite,
			Catalog:     catalog,
		}
		// A shift without a stored key never delivered one to the client,
		// so issuing now is safe and unsticks the earlier failed open.
		if _, kerr := s.keys.Get(ctx, cur.ID); errors.Is(kerr, domain.ErrNotFound) {
			key, ierr := s.keys.Issue(ctx, cur.ID)
			if ierr != nil {
				return nil, ierr
			}
			resp.SessionKey = base64.StdEncoding.EncodeToString(key)
		}
		s.log.Info(ctx, "shift re-acknowledged", "shift_id", cur.ID, "subject_id", subjectID)
		return resp, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	shift := &store.Shift{
		ID:        s.newID(),
		SubjectID: subjectID,
		Status:    domain.ShiftOpen,
		OpenedAt:  s.now().UTC(),
		OpenLat:   lat,
		OpenLng:   lng,
	}
	if err := shifts.Create(ctx, shift); err != nil {
		return nil, err
	}

	key, err := s.keys.Issue(ctx, shift.ID)
	if err != nil {
		return nil, err
	}

	if s.enrich != nil {
		s.enrich.EnqueueOpen(shift.ID, lat, lng)
	}

	s.log.Info(ctx, "shift opened", "shift_id", shift.ID, "subject_id", subjectID)
	return &domain.OpenShiftResponse{
		ShiftID:    shift.ID,
		OpenedAt:   shift.OpenedAt,
		Site:       "Resolving...",
		SessionKey: base64.StdEncoding.EncodeToString(key),
		Catalog:    catalog,
	}, nil
}

// CloseShift validates and commits the sealed closing report. Every
// business outcome is expressed in the response code; a non-nil error
// means infrastructure failure that the client may retry.
//
// Order of checks: ownership, idempotent short-circuit, decrypt,
// validation, then the single committing transaction. Repeating the call
// after a lost acknowledgment returns already_closed with no state change.
func (s *Service) CloseShift(ctx context.Context, subjectID, shiftID string, sealed []byte) (*domain.CloseShiftResponse, error) {
	conn := s.stores.Conn()

	shift, err := s.stores.Shifts(conn).Get(ctx, shiftID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if shift.SubjectID != subjectID {
		return nil, domain.ErrUnauthorized
	}

	if shift.Closed() {
		return alreadyClosed(shift), nil
	}

	key, err := s.keys.Get(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("session key for shift %s: %w", shiftID, err)
	}

	var report domain.ClosingReport
	if err := sealbox.OpenJSON(sealed, key, &report); err != nil {
		s.log.Warn(ctx, "report payload cannot be opened", "shift_id", shiftID, "error", err.Error())
		return &domain.CloseShiftResponse{
			Code:    domain.CodeCorrupted,
			Message: "payload cannot be decrypted",
			ShiftID: shiftID,
		}, nil
	}

	if len(report.Lines) == 0 {
		return &domain.CloseShiftResponse{
			Code:    domain.CodeValidationRejected,
			Message: "empty stock report",
			ShiftID: shiftID,
		}, nil
	}

	catalog, err := s.stores.Products(conn).List(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(catalog))
	for _, it := range catalog {
		known[it.Barcode] = struct{}{}
	}
	knownFn := func(barcode string) bool {
		_, ok := known[barcode]
		return ok
	}

	if lineErrs := ValidateLines(report.Lines, knownFn); len(lineErrs) > 0 {
		s.log.Warn(ctx, "report rejected", "shift_id", shiftID, "lines", len(lineErrs))
		return &domain.CloseShiftResponse{
			Code:    domain.CodeValidationRejected,
			Message: "stock report validation failed",
			ShiftID: shiftID,
			Lines:   lineErrs,
		}, nil
	}

	closedAt := s.now().UTC()
	var raced *domain.CloseShiftResponse
	err = s.runner.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		locked, err := s.stores.Shifts(tx).GetForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if locked.Closed() {
			raced = alreadyClosed(locked)
			return nil
		}
		if err := s.stores.StockLines(tx).Insert(ctx, shiftID, report.Lines); err != nil {
			return err
		}
		return s.stores.Shifts(tx).Close(ctx, shiftID, closedAt, report.Latitude, report.Longitude)
	})
	if err != nil {
		return nil, err
	}
	if raced != nil {
		return raced, nil
	}

	// Post-commit effects never change the outcome: the report is durable,
	// losing an enrichment or archive upload only costs metadata.
	if s.enrich != nil {
		s.enrich.EnqueueClose(shiftID, report.Latitude, report.Longitude)
	}
	if s.archive != nil {
		if err := s.archive.Store(ctx, shiftID, closedAt, sealed); err != nil {
			s.log.Error(ctx, "report archive failed", "shift_id", shiftID, "error", err.Error())
		}
	}
	if err := s.keys.Destroy(ctx, shiftID); err != nil {
		s.log.Error(ctx, "session key destroy failed", "shift_id", shiftID, "error", err.Error())
	}

	s.log.Info(ctx, "shift closed", "shift_id", shiftID, "lines", len(report.Lines))
	return &domain.CloseShiftResponse{
		Code:     domain.CodeCommitted,
		ShiftID:  shiftID,
		ClosedAt: &closedAt,
	}, nil
}

// Status reports the subject's current-day shift.
func (s *Service) Status(ctx context.Context, subjectID string) (*domain.ShiftStatusResponse, error) {
	cur, err := s.stores.Shifts(s.stores.Conn()).CurrentForSubject(ctx, subjectID, s.dayStart())
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.ShiftStatusResponse{Active: false}, nil
	}
	if err != nil {
		return nil, err
	}
	openedAt := cur.OpenedAt
	return &domain.ShiftStatusResponse{
		Active:   true,
		ShiftID:  cur.ID,
		Status:   cur.Status,
		OpenedAt: &openedAt,
		Site:     cur.OpenSite,
	}, nil
}

func (s *Service) dayStart() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

func alreadyClosed(shift *store.Shift) *domain.CloseShiftResponse {
	return &domain.CloseShiftResponse{
		Code:     domain.CodeAlreadyClosed,
		ShiftID:  shift.ID,
		ClosedAt: shift.ClosedAt,
	}
}
