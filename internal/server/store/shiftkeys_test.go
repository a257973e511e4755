package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldstock/shiftledger/internal/domain"
)

func newKeyRepoWithMock(t *testing.T) (*PostgresShiftKeyRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresShiftKeyRepository(db), mock
}

func TestShiftKeyRepository_SaveAndGet(t *testing.T) {
	repo, mock := newKeyRepoWithMock(t)
	wrapped := []byte("wrapped-key-blob")

	mock.ExpectExec(`INSERT INTO shift_keys`).
		WithArgs("shift-1", wrapped, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT wrapped_key FROM shift_keys WHERE shift_id = \$1`).
		WithArgs("shift-1").
		WillReturnRows(sqlmock.NewRows([]string{"wrapped_key"}).AddRow(wrapped))

	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "shift-1", wrapped, time.Now()))

	got, err := repo.Get(ctx, "shift-1")
	require.NoError(t, err)
	assert.Equal(t, wrapped, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftKeyRepository_Get_NotFound(t *testing.T) {
	repo, mock := newKeyRepoWithMock(t)

	mock.ExpectQuery(`SELECT wrapped_key FROM shift_keys`).
		WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestShiftKeyRepository_Delete(t *testing.T) {
	repo, mock := newKeyRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM shift_keys WHERE shift_id = \$1`).
		WithArgs("shift-1").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "shift-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
