package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/sheets"
)

type fakeExporter struct {
	got []core.Expense
	err error
}

func (f *fakeExporter) Export(_ context.Context, e core.Expense) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	f.got = append(f.got, e)
	return "Sheet!A1:G1", nil
}

type fakeConsumer struct {
	msgs    []*amqp.ExpenseCreatedMessage
	results []error
	err     error
}

func (f *fakeConsumer) ConsumeExpenseCreated(ctx context.Context, h amqp.Handler) error {
	for _, m := range f.msgs {
		f.results = append(f.results, h(ctx, m))
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func msg(e core.Expense) *amqp.ExpenseCreatedMessage { return amqp.NewExpenseCreatedMessage(e) }

func TestExportWorker_Run(t *testing.T) {
	good := core.Expense{ID: "a", Date: core.NewDate(2024, 1, 1), Amount: 5, Category: core.Food, Currency: core.MKD}
	bad := core.Expense{ID: "b", Amount: 5}

	exp := &fakeExporter{}
	cons := &fakeConsumer{msgs: []*amqp.ExpenseCreatedMessage{msg(good), msg(bad)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, NewExportWorker(cons, exp).Run(ctx))
	require.Len(t, exp.got, 1)
	assert.Equal(t, "a", exp.got[0].ID)
	assert.Equal(t, []error{nil, nil}, cons.results, "invalid expenses are acked, not requeued")
}

func TestExportWorker_ExportErrorRequeues(t *testing.T) {
	boom := errors.New("quota exceeded")
	w := NewExportWorker(nil, &fakeExporter{err: boom})
	err := w.HandleMessage(context.Background(), msg(core.Expense{ID: "x"}))
	assert.ErrorIs(t, err, boom)
}

func TestExportWorker_ConsumerFailure(t *testing.T) {
	cons := &fakeConsumer{err: errors.New("bad credentials")}
	err := NewExportWorker(cons, &fakeExporter{}).Run(context.Background())
	assert.ErrorContains(t, err, "bad credentials")
}

func TestExportWorker_DropsPermanentFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		drop bool
	}{
		{"rejected by spreadsheet", fmt.Errorf("read 2023 Expenses!F:F: %w", sheets.ErrRejected), true},
		{"missing id", core.ErrMissingID, true},
		{"validation", &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}, true},
		{"transient", errors.New("503 backend error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewExportWorker(nil, &fakeExporter{err: tt.err})
			err := w.HandleMessage(context.Background(), msg(core.Expense{ID: "x", Date: core.NewDate(2023, 12, 1)}))
			if tt.drop {
				assert.NoError(t, err, "acked so the queue moves on")
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}
