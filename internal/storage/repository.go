// Package storage persists bills and income in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"fincal/internal/core"
	"fincal/internal/log"
)

type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it to the latest schema.
func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// A single connection keeps writes serialized and lets migrations share it.
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db, logger: logger}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// LoadAll returns every stored bill and income entry in insertion order.
func (r *SQLiteRepository) LoadAll(ctx context.Context) ([]core.Bill, []core.Income, error) {
	bills, err := r.loadBills(ctx)
	if err != nil {
		return nil, nil, err
	}
	income, err := r.loadIncome(ctx)
	if err != nil {
		return nil, nil, err
	}
	r.logger.InfoContext(ctx, "Ledger loaded from SQLite", "bills", len(bills), "income", len(income))
	return bills, income, nil
}

func (r *SQLiteRepository) loadBills(ctx context.Context) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, amount_cents, description, is_paid FROM bills ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer rows.Close()

	bills := make([]core.Bill, 0)
	for rows.Next() {
		var (
			b    core.Bill
			date string
		)
		if err := rows.Scan(&b.ID, &date, &b.Amount.Cents, &b.Description, &b.IsPaid); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		if b.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("bill %s: %w", b.ID, err)
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return bills, nil
}

func (r *SQLiteRepository) loadIncome(ctx context.Context) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, amount_cents, description FROM income ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query income: %w", err)
	}
	defer rows.Close()

	income := make([]core.Income, 0)
	for rows.Next() {
		var (
			inc  core.Income
			date string
		)
		if err := rows.Scan(&inc.ID, &date, &inc.Amount.Cents, &inc.Description); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		if inc.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("income %s: %w", inc.ID, err)
		}
		income = append(income, inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate income: %w", err)
	}
	return income, nil
}

// SaveBill inserts or updates b. New rows are appended after existing ones.
func (r *SQLiteRepository) SaveBill(ctx context.Context, b core.Bill) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bills (id, date, amount_cents, description, is_paid, position)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM bills))
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			amount_cents = excluded.amount_cents,
			description = excluded.description,
			is_paid = excluded.is_paid,
			updated_at = CURRENT_TIMESTAMP`,
		b.ID, b.Date.String(), b.Amount.Cents, b.Description, b.IsPaid)
	if err != nil {
		return fmt.Errorf("save bill %s: %w", b.ID, err)
	}
	r.logger.DebugContext(ctx, "Bill saved", log.FieldID, b.ID, log.FieldDate, b.Date.String(), log.FieldAmountCents, b.Amount.Cents, log.FieldPaid, b.IsPaid)
	return nil
}

func (r *SQLiteRepository) DeleteBill(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete bill %s: %w", id, err)
	}
	return nil
}

// SaveIncome inserts or updates inc.
func (r *SQLiteRepository) SaveIncome(ctx context.Context, inc core.Income) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO income (id, date, amount_cents, description, position)
		VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM income))
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			amount_cents = excluded.amount_cents,
			description = excluded.description,
			updated_at = CURRENT_TIMESTAMP`,
		inc.ID, inc.Date.String(), inc.Amount.Cents, inc.Description)
	if err != nil {
		return fmt.Errorf("save income %s: %w", inc.ID, err)
	}
	r.logger.DebugContext(ctx, "Income saved", log.FieldID, inc.ID, log.FieldDate, inc.Date.String(), log.FieldAmountCents, inc.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM income WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete income %s: %w", id, err)
	}
	return nil
}
