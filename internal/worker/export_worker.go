package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/sheets"
)

// Consumer delivers expense created messages until ctx is done.
type Consumer interface {
	ConsumeExpenseCreated(ctx context.Context, handler amqp.Handler) error
}

// ExportWorker copies every newly created expense into the spreadsheet.
type ExportWorker struct {
	consumer Consumer
	exporter sheets.Exporter
}

func NewExportWorker(consumer Consumer, exporter sheets.Exporter) *ExportWorker {
	return &ExportWorker{consumer: consumer, exporter: exporter}
}

// Run blocks until ctx is canceled. Cancellation is a clean stop.
func (w *ExportWorker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Export worker started")
	err := w.consumer.ConsumeExpenseCreated(ctx, w.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume expense created: %w", err)
	}
	slog.InfoContext(ctx, "Export worker stopped")
	return nil
}

// HandleMessage exports one expense. Invalid expenses and exports the
// spreadsheet rejects outright are dropped with a log line instead of an
// error so they are not requeued forever.
func (w *ExportWorker) HandleMessage(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	e := msg.Expense
	fields := log.NewFields().
		WithComponent(log.ComponentSheets).
		WithOperation(log.OpExport).
		WithExpense(e)

	ref, err := w.exporter.Export(ctx, e)
	if err != nil {
		if core.IsValidation(err) || errors.Is(err, core.ErrMissingID) || errors.Is(err, sheets.ErrRejected) {
			slog.WarnContext(ctx, "Dropping expense the spreadsheet cannot take",
				fields.WithError(err).ToSlice()...)
			return nil
		}
		return fmt.Errorf("export expense %s: %w", e.ID, err)
	}

	slog.InfoContext(ctx, "Exported expense", append(fields.ToSlice(), "ref", ref)...)
	return nil
}
