package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstock/shiftledger/internal/domain"
)

func newShiftRepoWithMock(t *testing.T) (*PostgresShiftRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresShiftRepository(db), mock, db
}

func shiftRows(s *Shift) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "subject_id", "status", "opened_at", "closed_at",
		"open_lat", "open_lng", "close_lat", "close_lng", "open_site", "close_site",
	}).AddRow(s.ID, s.SubjectID, string(s.Status), s.OpenedAt, s.ClosedAt,
		s.OpenLat, s.OpenLng, s.CloseLat, s.CloseLng, s.OpenSite, s.CloseSite)
}

func TestShiftRepository_Create(t *testing.T) {
	repo, mock, _ := newShiftRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO shifts`).
		WithArgs("shift-1", "subject-1", "open", sqlmock.AnyArg(), 28.6139, 77.2090).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &Shift{
		ID: "shift-1", SubjectID: "subject-1", Status: domain.ShiftOpen,
		OpenedAt: time.Now(), OpenLat: 28.6139, OpenLng: 77.2090,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftRepository_Create_DBError(t *testing.T) {
	repo, mock, _ := newShiftRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO shifts`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &Shift{ID: "shift-1", Status: domain.ShiftOpen})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestShiftRepository_Get(t *testing.T) {
	repo, mock, _ := newShiftRepoWithMock(t)

	want := &Shift{
		ID: "shift-1", SubjectID: "subject-1", Status: domain.ShiftOpen,
		OpenedAt: time.Now().UTC(), OpenSite: "Resolving...", CloseSite: "Resolving...",
	}
	mock.ExpectQuery(`SELECT .+ FROM shifts WHERE id = \$1$`).
		WithArgs("shift-1").WillReturnRows(shiftRows(want))

	got, err := repo.Get(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, domain.ShiftOpen, got.Status)
	assert.Nil(t, got.ClosedAt)
}

func TestShiftRepository_Get_NotFound(t *testing.T) {
	repo, mock, _ := newShiftRepoWithMock(t)

	mock.ExpectQuery(`SELECT .+ FROM shifts WHERE id = \$1`).
		WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShiftRepository_GetForUpdate_LocksRow(t *testing.T) {
	repo, mock, _ := newShiftRepoWithMock(t)

	want := &Shift{ID: "shift-1", Status: domain.ShiftClosing, OpenedAt: time.Now()}
	mock.ExpectQuery(`SELECT .+ FROM shifts WHERE id = \$1 FOR UPDATE`).
		WithArgs("shift-1").WillReturnRows(shiftRows(want))

	got, err := repo.GetForUpdate(context.Background(), "shift-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ShiftClosing, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftRepository_CurrentForSubject_NotFound(t *testing.T) {
	repo, mock, _ := newShiftRepoWithMock(t)

	mock.ExpectQuery(`SELECT .+ FROM shifts`).
		WithArgs("subject-1", sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.CurrentForSubject(context.Background(), "subject-1", time.Now().Truncate(24*time.Hour))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShiftRepository_Close(t *testing.T) {
	repo, mock, _ := newShiftRepoWithMock(t)

	mock.ExpectExec(`UPDATE shifts SET status = 'closed'`).
		WithArgs("shift-1", sqlmock.AnyArg(), 28.0, 77.0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Close(context.Background(), "shift-1", time.Now(), 28.0, 77.0)
	require.NoError(t, err)
}

func TestShiftRepository_Close_MissingRow(t *testing.T) {
	repo, mock, _ := newShiftRepoWithMock(t)

	mock.ExpectExec(`UPDATE shifts SET status = 'closed'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Close(context.Background(), "missing", time.Now(), 0, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
