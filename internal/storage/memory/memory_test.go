package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
	"expensetracker/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New()
	_, err := s.InsertExpense(ctx, core.Expense{Date: core.NewDate(2024, 1, 1), Amount: 1})
	assert.ErrorIs(t, err, context.Canceled)

	list, err := s.ListExpenses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
