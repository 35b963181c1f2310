package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/scamgi/inventory-service/internal/core/domain"
	"github.com/scamgi/inventory-service/internal/port"
)

const movementsTable = "stock_movements"

//go:embed migrations/*.sql
var migrationFS embed.FS

var movementColumns = []string{
	"id", "product_id", "kind", "amount", "stock_after", "request_id", "occurred_at",
}

var _ port.JournalRepository = (*MySQLAdapter)(nil)

// MySQLAdapter stores the movement journal. It is never consulted for stock
// decisions; Redis stays the only source of truth for stock.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// JournalDSN returns dsn with parseTime enabled and times read as UTC, so
// occurred_at scans into time.Time whatever the caller configured.
func JournalDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Migrate applies the embedded schema migrations.
func (m *MySQLAdapter) Migrate() error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	driver, err := migratemysql.WithInstance(m.db, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	mig, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) RecordMovement(ctx context.Context, mv domain.Movement) error {
	query, args, err := sq.Insert(movementsTable).
		Columns(movementColumns...).
		Values(mv.ID, mv.ProductID, string(mv.Kind), mv.Amount, mv.StockAfter, mv.RequestID, mv.OccurredAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert movement: %w", err)
	}

	if _, err := m.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) ListMovements(ctx context.Context, productID string, limit int) ([]domain.Movement, error) {
	query, args, err := sq.Select(movementColumns...).
		From(movementsTable).
		Where(sq.Eq{"product_id": productID}).
		OrderBy("occurred_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list movements: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query movements: %w", err)
	}
	defer rows.Close()

	movements := make([]domain.Movement, 0, limit)
	for rows.Next() {
		var (
			mv   domain.Movement
			kind string
		)
		if err := rows.Scan(&mv.ID, &mv.ProductID, &kind, &mv.Amount, &mv.StockAfter, &mv.RequestID, &mv.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		mv.Kind = domain.MovementKind(kind)
		movements = append(movements, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movements: %w", err)
	}

	return movements, nil
}
