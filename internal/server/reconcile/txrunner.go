package reconcile

import (
	"context"
	"database/sql"

	"github.com/fieldstock/shiftledger/internal/dbx"
)

// TxRunner runs a function inside a database transaction. It exists as an
// interface so service tests can run the close path without a database.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
}

type sqlTxRunner struct {
	db *sql.DB
}

// NewTxRunner returns the production TxRunner over db.
func NewTxRunner(db *sql.DB) TxRunner {
	return &sqlTxRunner{db: db}
}

func (r *sqlTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, r.db, nil, fn)
}
