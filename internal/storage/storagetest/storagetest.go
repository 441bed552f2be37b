// Package storagetest holds the behavioral tests every storage.Store adapter
// must pass.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// Run exercises newStore with the shared adapter contract. newStore must
// return an empty store; cleanup is the caller's job.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("InsertAndListExpenses", func(t *testing.T) { testInsertAndList(t, newStore(t)) })
	t.Run("RecurringUniqueness", func(t *testing.T) { testUniqueness(t, newStore(t)) })
	t.Run("UpdateAndDeleteExpense", func(t *testing.T) { testUpdateDelete(t, newStore(t)) })
	t.Run("DeleteExpensesByRule", func(t *testing.T) { testDeleteByRule(t, newStore(t)) })
	t.Run("Rules", func(t *testing.T) { testRules(t, newStore(t)) })
}

func expense(date core.Date, amount float64) core.Expense {
	return core.Expense{Date: date, Category: core.Food, Amount: amount, Currency: core.MKD, Description: "lunch"}
}

func testInsertAndList(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	second, err := s.InsertExpense(ctx, expense(core.NewDate(2024, 3, 2), 20))
	require.NoError(t, err)
	first, err := s.InsertExpense(ctx, expense(core.NewDate(2024, 3, 1), 10))
	require.NoError(t, err)
	third, err := s.InsertExpense(ctx, expense(core.NewDate(2024, 3, 2), 30))
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	list, err := s.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	got := list[0]
	assert.Equal(t, "2024-03-01", got.Date.String())
	assert.Equal(t, core.Food, got.Category)
	assert.Equal(t, 10.0, got.Amount)
	assert.Equal(t, core.MKD, got.Currency)
	assert.Equal(t, "lunch", got.Description)
	assert.Empty(t, got.RecurringRuleID)
}

func testUniqueness(t *testing.T, s storage.Store) {
	ctx := context.Background()
	rule, err := s.InsertRule(ctx, core.RecurringRule{
		Name: "Rent", Category: core.Other, Amount: 100, Currency: core.EUR,
		Frequency: core.Monthly, NextDueDate: core.NewDate(2024, 1, 1),
	})
	require.NoError(t, err)
	other, err := s.InsertRule(ctx, core.RecurringRule{
		Name: "Gym", Category: core.Other, Amount: 30, Currency: core.EUR,
		Frequency: core.Monthly, NextDueDate: core.NewDate(2024, 1, 1),
	})
	require.NoError(t, err)

	day := core.NewDate(2024, 1, 1)
	_, err = s.InsertExpense(ctx, rule.Occurrence(day))
	require.NoError(t, err)

	_, err = s.InsertExpense(ctx, rule.Occurrence(day))
	require.Error(t, err)
	assert.True(t, storage.IsConflict(err), "expected conflict, got %v", err)
	assert.Equal(t, storage.ConflictCode, storage.Code(err))

	_, err = s.InsertExpense(ctx, other.Occurrence(day))
	require.NoError(t, err, "different rule on the same date")

	_, err = s.InsertExpense(ctx, expense(day, 5))
	require.NoError(t, err)
	_, err = s.InsertExpense(ctx, expense(day, 5))
	require.NoError(t, err, "manual expenses never conflict")

	list, err := s.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)
}

func testUpdateDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	e, err := s.InsertExpense(ctx, expense(core.NewDate(2024, 5, 5), 12))
	require.NoError(t, err)

	e.Amount = 15
	e.Category = core.Transport
	e.Description = "bus"
	e.Date = core.NewDate(2024, 5, 6)
	updated, err := s.UpdateExpense(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, e.CreatedAt.Unix(), updated.CreatedAt.Unix())

	list, err := s.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 15.0, list[0].Amount)
	assert.Equal(t, core.Transport, list[0].Category)
	assert.Equal(t, "2024-05-06", list[0].Date.String())

	_, err = s.UpdateExpense(ctx, core.Expense{ID: "missing", Date: e.Date, Amount: 1})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.DeleteExpense(ctx, e.ID))
	assert.ErrorIs(t, s.DeleteExpense(ctx, e.ID), storage.ErrNotFound)

	list, err = s.ListExpenses(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testDeleteByRule(t *testing.T, s storage.Store) {
	ctx := context.Background()
	rule, err := s.InsertRule(ctx, core.RecurringRule{
		Name: "Bus pass", Category: core.Transport, Amount: 50, Currency: core.MKD,
		Frequency: core.Weekly, NextDueDate: core.NewDate(2024, 1, 1),
	})
	require.NoError(t, err)

	for d := core.NewDate(2024, 1, 1); d.Before(core.NewDate(2024, 1, 22)); d = core.AddDays(d, 7) {
		_, err := s.InsertExpense(ctx, rule.Occurrence(d))
		require.NoError(t, err)
	}
	_, err = s.InsertExpense(ctx, expense(core.NewDate(2024, 1, 2), 3))
	require.NoError(t, err)

	n, err := s.DeleteExpensesByRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	list, err := s.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRecurring())

	_, err = s.InsertExpense(ctx, rule.Occurrence(core.NewDate(2024, 1, 1)))
	assert.NoError(t, err, "slot is free again after deletion")
}

func testRules(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a, err := s.InsertRule(ctx, core.RecurringRule{
		Name: "Rent", Category: core.Other, Amount: 500, Currency: core.EUR,
		Frequency: core.Monthly, NextDueDate: core.NewDate(2024, 1, 31),
	})
	require.NoError(t, err)
	b, err := s.InsertRule(ctx, core.RecurringRule{
		Name: "Insurance", Category: core.Other, Amount: 300, Currency: core.USD,
		Frequency: core.Yearly, NextDueDate: core.NewDate(2024, 2, 29),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)

	require.NoError(t, s.AdvanceRule(ctx, a.ID, core.NewDate(2024, 2, 29)))
	assert.ErrorIs(t, s.AdvanceRule(ctx, "missing", core.NewDate(2024, 2, 29)), storage.ErrNotFound)

	b.Amount = 320
	b.Name = "Car insurance"
	_, err = s.UpdateRule(ctx, b)
	require.NoError(t, err)

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, a.ID, rules[0].ID)
	assert.Equal(t, "2024-02-29", rules[0].NextDueDate.String())
	assert.Equal(t, core.Monthly, rules[0].Frequency)
	assert.Equal(t, "Car insurance", rules[1].Name)
	assert.Equal(t, 320.0, rules[1].Amount)
	assert.Equal(t, core.Yearly, rules[1].Frequency)

	require.NoError(t, s.DeleteRule(ctx, a.ID))
	assert.ErrorIs(t, s.DeleteRule(ctx, a.ID), storage.ErrNotFound)

	rules, err = s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, b.ID, rules[0].ID)
}
