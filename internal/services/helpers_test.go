package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/storage/memory"
)

var errStoreDown = errors.New("store unavailable")

// faultyStore wraps the memory store and fails selected operations.
type faultyStore struct {
	*memory.Store

	mu            sync.Mutex
	failRule      string // InsertExpense fails for occurrences of this rule
	failList      bool
	advanceCalls  int
	insertedRules []string
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.New()}
}

func (f *faultyStore) InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	f.mu.Lock()
	fail := f.failRule != "" && e.RecurringRuleID == f.failRule
	if !fail && e.RecurringRuleID != "" {
		f.insertedRules = append(f.insertedRules, e.RecurringRuleID)
	}
	f.mu.Unlock()
	if fail {
		return core.Expense{}, errStoreDown
	}
	return f.Store.InsertExpense(ctx, e)
}

func (f *faultyStore) AdvanceRule(ctx context.Context, id string, next core.Date) error {
	f.mu.Lock()
	f.advanceCalls++
	f.mu.Unlock()
	return f.Store.AdvanceRule(ctx, id, next)
}

func (f *faultyStore) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	if f.failList {
		return nil, errStoreDown
	}
	return f.Store.ListExpenses(ctx)
}

func (f *faultyStore) advances() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.advanceCalls
}

type recordingPublisher struct {
	mu   sync.Mutex
	seen []core.Expense
	err  error
}

func (p *recordingPublisher) PublishExpenseCreated(_ context.Context, e core.Expense) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, e)
	return p.err
}

func fixedClock(y, m, d int) func() time.Time {
	return func() time.Time { return time.Date(y, time.Month(m), d, 15, 4, 5, 0, time.UTC) }
}

func rule(name string, freq core.Frequency, due core.Date) core.RecurringRule {
	return core.RecurringRule{
		Name:        name,
		Category:    core.Other,
		Amount:      100,
		Currency:    core.EUR,
		Frequency:   freq,
		NextDueDate: due,
	}
}

func datesOf(expenses []core.Expense) []string {
	out := make([]string, len(expenses))
	for i, e := range expenses {
		out[i] = e.Date.String()
	}
	return out
}
