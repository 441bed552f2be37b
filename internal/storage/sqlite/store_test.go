package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
	"expensetracker/internal/storage/storagetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return openTemp(t) })
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.InsertRule(context.Background(), core.RecurringRule{
		Name: "Rent", Category: core.Other, Amount: 10, Currency: core.MKD,
		Frequency: core.Monthly, NextDueDate: core.NewDate(2024, 1, 1),
	})
	assert.NoError(t, err)
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	s, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = s.InsertExpense(ctx, core.Expense{
		Date: core.NewDate(2024, 2, 29), Category: core.Food, Amount: 12.5, Currency: core.EUR,
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	list, err := s.ListExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2024-02-29", list[0].Date.String())
	assert.Equal(t, 12.5, list[0].Amount)
	assert.Equal(t, core.EUR, list[0].Currency)
}
