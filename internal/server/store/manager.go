package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/fieldstock/shiftledger/internal/dbx"
	"github.com/fieldstock/shiftledger/internal/server/store/migrations"
)

// Manager hands out repositories bound to an arbitrary DBTX, so callers
// can run several repositories inside one transaction.
type Manager interface {
	Conn() *sql.DB
	Shifts(db dbx.DBTX) ShiftRepository
	Products(db dbx.DBTX) ProductRepository
	StockLines(db dbx.DBTX) StockLineRepository
	ShiftKeys(db dbx.DBTX) ShiftKeyRepository
}

// PostgresManager is the production Manager over a pgx stdlib connection.
type PostgresManager struct {
	db *sql.DB
}

// NewPostgresManager opens the database and applies pending migrations.
func NewPostgresManager(ctx context.Context, dsn string) (*PostgresManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := &PostgresManager{db: db}
	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return m, nil
}

func (m *PostgresManager) Conn() *sql.DB {
	return m.db
}

func (m *PostgresManager) Close() error {
	return m.db.Close()
}

func (m *PostgresManager) Shifts(db dbx.DBTX) ShiftRepository {
	return NewPostgresShiftRepository(db)
}

func (m *PostgresManager) Products(db dbx.DBTX) ProductRepository {
	return NewPostgresProductRepository(db)
}

func (m *PostgresManager) StockLines(db dbx.DBTX) StockLineRepository {
	return NewPostgresStockLineRepository(db)
}

func (m *PostgresManager) ShiftKeys(db dbx.DBTX) ShiftKeyRepository {
	return NewPostgresShiftKeyRepository(db)
}

func (m *PostgresManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

var _ Manager = (*PostgresManager)(nil)
