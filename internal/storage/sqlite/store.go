// Package sqlite implements storage.Store on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

const timeLayout = time.RFC3339Nano

type Store struct {
	db *sql.DB
}

// Open creates the database file if needed, applies migrations and returns a
// ready store.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY under
	// concurrent materialization.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath)
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// mapError translates driver errors into storage sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
			(code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")) {
			return fmt.Errorf("%w: %v", storage.ErrConflict, err)
		}
	}
	return err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, expense_date, category, amount, currency, description, recurring_expense_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date, string(e.Category), e.Amount, string(e.Currency), e.Description,
		nullable(e.RecurringRuleID), e.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", mapError(err))
	}
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var (
		ruleID  sql.NullString
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET expense_date = ?, category = ?, amount = ?, currency = ?, description = ?
		WHERE id = ?
		RETURNING recurring_expense_id, created_at`,
		e.Date, string(e.Category), e.Amount, string(e.Currency), e.Description, e.ID,
	).Scan(&ruleID, &created)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", e.ID, mapError(err))
	}
	e.RecurringRuleID = ruleID.String
	e.CreatedAt, _ = time.Parse(timeLayout, created)
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, mapError(err))
	}
	return requireAffected(res, "delete expense "+id)
}

func (s *Store) DeleteExpensesByRule(ctx context.Context, ruleID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE recurring_expense_id = ?`, ruleID)
	if err != nil {
		return 0, fmt.Errorf("delete expenses of rule %s: %w", ruleID, mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expenses of rule %s: %w", ruleID, err)
	}
	return int(n), nil
}

func (s *Store) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, expense_date, category, amount, currency, description, recurring_expense_id, created_at
		FROM expenses
		ORDER BY expense_date, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e       core.Expense
			ruleID  sql.NullString
			created string
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.Category, &e.Amount, &e.Currency, &e.Description, &ruleID, &created); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.RecurringRuleID = ruleID.String
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return out, nil
}

func (s *Store) InsertRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recurring_expenses (id, name, category, amount, currency, frequency, next_due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, string(r.Category), r.Amount, string(r.Currency), string(r.Frequency),
		r.NextDueDate, r.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("insert rule: %w", mapError(err))
	}
	return r, nil
}

func (s *Store) UpdateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	var created string
	err := s.db.QueryRowContext(ctx, `
		UPDATE recurring_expenses
		SET name = ?, category = ?, amount = ?, currency = ?, frequency = ?, next_due_date = ?
		WHERE id = ?
		RETURNING created_at`,
		r.Name, string(r.Category), r.Amount, string(r.Currency), string(r.Frequency), r.NextDueDate, r.ID,
	).Scan(&created)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("update rule %s: %w", r.ID, mapError(err))
	}
	r.CreatedAt, _ = time.Parse(timeLayout, created)
	return r, nil
}

func (s *Store) AdvanceRule(ctx context.Context, id string, next core.Date) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recurring_expenses SET next_due_date = ? WHERE id = ?`, next, id)
	if err != nil {
		return fmt.Errorf("advance rule %s: %w", id, mapError(err))
	}
	return requireAffected(res, "advance rule "+id)
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, mapError(err))
	}
	return requireAffected(res, "delete rule "+id)
}

func (s *Store) ListRules(ctx context.Context) ([]core.RecurringRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, amount, currency, frequency, next_due_date, created_at
		FROM recurring_expenses
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		var (
			r       core.RecurringRule
			created string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.Amount, &r.Currency, &r.Frequency, &r.NextDueDate, &created); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.CreatedAt, _ = time.Parse(timeLayout, created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return out, nil
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

var _ storage.Store = (*Store)(nil)
