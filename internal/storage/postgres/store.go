// Package postgres implements storage.Store on PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

type Store struct {
	db *sql.DB
}

// Open connects to dsn, applies migrations and returns a ready store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	slog.InfoContext(ctx, "PostgreSQL store ready")
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

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == storage.ConflictCode {
		return fmt.Errorf("%w: %s", storage.ErrConflict, pgErr.ConstraintName)
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
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO expenses (id, expense_date, category, amount, currency, description, recurring_expense_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		e.ID, e.Date, string(e.Category), e.Amount, string(e.Currency), e.Description, nullable(e.RecurringRuleID),
	).Scan(&e.CreatedAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", mapError(err))
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var ruleID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET expense_date = $1, category = $2, amount = $3, currency = $4, description = $5
		WHERE id = $6
		RETURNING recurring_expense_id, created_at`,
		e.Date, string(e.Category), e.Amount, string(e.Currency), e.Description, e.ID,
	).Scan(&ruleID, &e.CreatedAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", e.ID, mapError(err))
	}
	e.RecurringRuleID = ruleID.String
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, mapError(err))
	}
	return requireAffected(res, "delete expense "+id)
}

func (s *Store) DeleteExpensesByRule(ctx context.Context, ruleID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE recurring_expense_id = $1`, ruleID)
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
		ORDER BY expense_date, seq`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var (
			e      core.Expense
			ruleID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.Category, &e.Amount, &e.Currency, &e.Description, &ruleID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.RecurringRuleID = ruleID.String
		e.CreatedAt = e.CreatedAt.UTC()
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
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO recurring_expenses (id, name, category, amount, currency, frequency, next_due_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		r.ID, r.Name, string(r.Category), r.Amount, string(r.Currency), string(r.Frequency), r.NextDueDate,
	).Scan(&r.CreatedAt)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("insert rule: %w", mapError(err))
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (s *Store) UpdateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	err := s.db.QueryRowContext(ctx, `
		UPDATE recurring_expenses
		SET name = $1, category = $2, amount = $3, currency = $4, frequency = $5, next_due_date = $6
		WHERE id = $7
		RETURNING created_at`,
		r.Name, string(r.Category), r.Amount, string(r.Currency), string(r.Frequency), r.NextDueDate, r.ID,
	).Scan(&r.CreatedAt)
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("update rule %s: %w", r.ID, mapError(err))
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func (s *Store) AdvanceRule(ctx context.Context, id string, next core.Date) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recurring_expenses SET next_due_date = $1 WHERE id = $2`, next, id)
	if err != nil {
		return fmt.Errorf("advance rule %s: %w", id, mapError(err))
	}
	return requireAffected(res, "advance rule "+id)
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recurring_expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, mapError(err))
	}
	return requireAffected(res, "delete rule "+id)
}

func (s *Store) ListRules(ctx context.Context) ([]core.RecurringRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, amount, currency, frequency, next_due_date, created_at
		FROM recurring_expenses
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		var r core.RecurringRule
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.Amount, &r.Currency, &r.Frequency, &r.NextDueDate, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
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
