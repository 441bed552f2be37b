// Package memory provides an in-process Store. It enforces the same
// uniqueness rule as the SQL adapters and is used by tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	expenses map[string]core.Expense
	rules    map[string]core.RecurringRule
	occupied map[string]string // rule|date -> expense id
	seq      int64
	order    map[string]int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		expenses: make(map[string]core.Expense),
		rules:    make(map[string]core.RecurringRule),
		occupied: make(map[string]string),
		order:    make(map[string]int64),
		now:      time.Now,
	}
}

func occurrenceKey(ruleID string, d core.Date) string {
	return ruleID + "|" + d.String()
}

func (s *Store) nextSeq(id string) {
	s.seq++
	s.order[id] = s.seq
}

func (s *Store) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.RecurringRuleID != "" {
		key := occurrenceKey(e.RecurringRuleID, e.Date)
		if _, taken := s.occupied[key]; taken {
			return core.Expense{}, fmt.Errorf("insert expense for rule %s on %s: %w", e.RecurringRuleID, e.Date, storage.ErrConflict)
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, exists := s.expenses[e.ID]; exists {
		return core.Expense{}, fmt.Errorf("insert expense %s: %w", e.ID, storage.ErrConflict)
	}
	e.CreatedAt = s.now().UTC()
	s.expenses[e.ID] = e
	if e.RecurringRuleID != "" {
		s.occupied[occurrenceKey(e.RecurringRuleID, e.Date)] = e.ID
	}
	s.nextSeq(e.ID)
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.expenses[e.ID]
	if !ok {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", e.ID, storage.ErrNotFound)
	}
	if cur.RecurringRuleID != "" {
		oldKey := occurrenceKey(cur.RecurringRuleID, cur.Date)
		newKey := occurrenceKey(cur.RecurringRuleID, e.Date)
		if newKey != oldKey {
			if _, taken := s.occupied[newKey]; taken {
				return core.Expense{}, fmt.Errorf("update expense %s: %w", e.ID, storage.ErrConflict)
			}
			delete(s.occupied, oldKey)
			s.occupied[newKey] = e.ID
		}
	}
	e.RecurringRuleID = cur.RecurringRuleID
	e.CreatedAt = cur.CreatedAt
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.expenses[id]
	if !ok {
		return fmt.Errorf("delete expense %s: %w", id, storage.ErrNotFound)
	}
	s.removeExpenseLocked(e)
	return nil
}

func (s *Store) removeExpenseLocked(e core.Expense) {
	delete(s.expenses, e.ID)
	delete(s.order, e.ID)
	if e.RecurringRuleID != "" {
		delete(s.occupied, occurrenceKey(e.RecurringRuleID, e.Date))
	}
}

func (s *Store) DeleteExpensesByRule(ctx context.Context, ruleID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.expenses {
		if e.RecurringRuleID == ruleID {
			s.removeExpenseLocked(e)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return s.order[out[i].ID] < s.order[out[j].ID]
	})
	return out, nil
}

func (s *Store) InsertRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if err := ctx.Err(); err != nil {
		return core.RecurringRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := s.rules[r.ID]; exists {
		return core.RecurringRule{}, fmt.Errorf("insert rule %s: %w", r.ID, storage.ErrConflict)
	}
	r.CreatedAt = s.now().UTC()
	s.rules[r.ID] = r
	s.nextSeq(r.ID)
	return r, nil
}

func (s *Store) UpdateRule(ctx context.Context, r core.RecurringRule) (core.RecurringRule, error) {
	if err := ctx.Err(); err != nil {
		return core.RecurringRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.rules[r.ID]
	if !ok {
		return core.RecurringRule{}, fmt.Errorf("update rule %s: %w", r.ID, storage.ErrNotFound)
	}
	r.CreatedAt = cur.CreatedAt
	s.rules[r.ID] = r
	return r, nil
}

func (s *Store) AdvanceRule(ctx context.Context, id string, next core.Date) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("advance rule %s: %w", id, storage.ErrNotFound)
	}
	r.NextDueDate = next
	s.rules[id] = r
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("delete rule %s: %w", id, storage.ErrNotFound)
	}
	delete(s.rules, id)
	delete(s.order, id)
	return nil
}

func (s *Store) ListRules(ctx context.Context) ([]core.RecurringRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.RecurringRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return s.order[out[i].ID] < s.order[out[j].ID]
	})
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
