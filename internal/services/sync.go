package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// Snapshot is an immutable view of the store taken after a sync. A new sync
// produces a new snapshot; existing ones are never modified.
type Snapshot struct {
	Expenses       []core.Expense
	Rules          []core.RecurringRule
	FetchedAt      time.Time
	Materialized   MaterializeResult
	MaterializeErr error
}

// SyncService runs the session-start sequence: materialize due rules, then
// load expenses and rules.
type SyncService struct {
	store        storage.Store
	materializer *Materializer
}

func NewSyncService(store storage.Store, materializer *Materializer) *SyncService {
	return &SyncService{store: store, materializer: materializer}
}

// Sync always fetches, even when materialization failed; that failure is
// reported on the snapshot. A fetch failure fails the sync.
func (s *SyncService) Sync(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	if s.materializer != nil {
		snap.Materialized, snap.MaterializeErr = s.materializer.Run(ctx)
		if snap.MaterializeErr != nil {
			slog.WarnContext(ctx, "Materialization failed, loading current data anyway",
				"error", snap.MaterializeErr)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		expenses, err := s.store.ListExpenses(gctx)
		if err != nil {
			return fmt.Errorf("fetch expenses: %w", err)
		}
		snap.Expenses = expenses
		return nil
	})
	g.Go(func() error {
		rules, err := s.store.ListRules(gctx)
		if err != nil {
			return fmt.Errorf("fetch recurring rules: %w", err)
		}
		snap.Rules = rules
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.FetchedAt = time.Now().UTC()

	slog.InfoContext(ctx, "Sync complete",
		"expenses", len(snap.Expenses),
		"rules", len(snap.Rules),
		"created", snap.Materialized.Created)
	return snap, nil
}
