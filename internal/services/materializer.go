package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// RecurringStore is the part of the store the materializer needs.
type RecurringStore interface {
	InsertExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	ListRules(ctx context.Context) ([]core.RecurringRule, error)
	AdvanceRule(ctx context.Context, id string, next core.Date) error
}

// EventPublisher receives expenses after they are stored. Publishing is best
// effort; failures are logged by the caller.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, e core.Expense) error
}

// MaterializeResult counts what a pass did.
type MaterializeResult struct {
	RulesChecked  int `json:"rules_checked"`
	RulesAdvanced int `json:"rules_advanced"`
	Created       int `json:"created"`
	Duplicates    int `json:"duplicates"`
}

func (r *MaterializeResult) add(o MaterializeResult) {
	r.RulesChecked += o.RulesChecked
	r.RulesAdvanced += o.RulesAdvanced
	r.Created += o.Created
	r.Duplicates += o.Duplicates
}

// Materializer turns due recurring rules into concrete expenses. Each pass
// walks every rule's due date forward to the first date after today,
// inserting one expense per elapsed period. Duplicate inserts are treated as
// already done, so a pass can be repeated or resumed after a failure.
type Materializer struct {
	store       RecurringStore
	catalog     core.Catalog
	events      EventPublisher
	concurrency int
	now         func() time.Time
}

type MaterializerOption func(*Materializer)

// WithPublisher publishes every newly created expense.
func WithPublisher(p EventPublisher) MaterializerOption {
	return func(m *Materializer) { m.events = p }
}

// WithConcurrency processes up to n rules at once. The default of 1 handles
// rules one after the other in list order.
func WithConcurrency(n int) MaterializerOption {
	return func(m *Materializer) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithClock overrides the time source used by Run.
func WithClock(now func() time.Time) MaterializerOption {
	return func(m *Materializer) { m.now = now }
}

func NewMaterializer(store RecurringStore, catalog core.Catalog, opts ...MaterializerOption) *Materializer {
	m := &Materializer{
		store:       store,
		catalog:     catalog,
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run loads every rule and materializes what is due as of the current UTC date.
func (m *Materializer) Run(ctx context.Context) (MaterializeResult, error) {
	rules, err := m.store.ListRules(ctx)
	if err != nil {
		return MaterializeResult{}, fmt.Errorf("list recurring rules: %w", err)
	}
	return m.Apply(ctx, rules, core.Today(m.now()))
}

// Apply materializes the given rules up to and including today. The first
// store error other than a uniqueness conflict aborts the pass and is
// returned together with the counts reached so far.
func (m *Materializer) Apply(ctx context.Context, rules []core.RecurringRule, today core.Date) (MaterializeResult, error) {
	slog.InfoContext(ctx, "Materializing recurring expenses",
		"rules", len(rules),
		"today", today.String(),
		"concurrency", m.concurrency)

	var (
		total MaterializeResult
		err   error
	)
	if m.concurrency <= 1 || len(rules) <= 1 {
		total, err = m.applySequential(ctx, rules, today)
	} else {
		total, err = m.applyConcurrent(ctx, rules, today)
	}
	if err != nil {
		slog.ErrorContext(ctx, "Recurring materialization aborted",
			"error", err,
			"created", total.Created,
			"duplicates", total.Duplicates)
		return total, err
	}

	slog.InfoContext(ctx, "Recurring materialization complete",
		"rules_checked", total.RulesChecked,
		"rules_advanced", total.RulesAdvanced,
		"created", total.Created,
		"duplicates", total.Duplicates)
	return total, nil
}

func (m *Materializer) applySequential(ctx context.Context, rules []core.RecurringRule, today core.Date) (MaterializeResult, error) {
	var total MaterializeResult
	for _, rule := range rules {
		res, err := m.materializeRule(ctx, rule, today)
		total.add(res)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (m *Materializer) applyConcurrent(ctx context.Context, rules []core.RecurringRule, today core.Date) (MaterializeResult, error) {
	var (
		mu    sync.Mutex
		total MaterializeResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, rule := range rules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := m.materializeRule(gctx, rule, today)
			mu.Lock()
			total.add(res)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	return total, err
}

// materializeRule inserts every occurrence of rule due on or before today and
// persists the advanced due date when it moved.
func (m *Materializer) materializeRule(ctx context.Context, rule core.RecurringRule, today core.Date) (MaterializeResult, error) {
	res := MaterializeResult{RulesChecked: 1}
	if rule.NextDueDate.IsZero() {
		slog.WarnContext(ctx, "Skipping recurring rule without due date", "rule_id", rule.ID)
		return res, nil
	}
	freq := core.NormalizeFrequency(rule.Frequency)
	rule.Currency = m.catalog.NormalizeCurrency(rule.Currency)

	cursor := rule.NextDueDate
	for !cursor.After(today) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		created, err := m.store.InsertExpense(ctx, rule.Occurrence(cursor))
		switch {
		case storage.IsConflict(err):
			res.Duplicates++
		case err != nil:
			return res, fmt.Errorf("materialize rule %s on %s: %w", rule.ID, cursor, err)
		default:
			res.Created++
			m.publish(ctx, created)
		}

		cursor = core.Advance(cursor, freq)
	}

	if cursor.Equal(rule.NextDueDate) {
		return res, nil
	}
	if err := m.store.AdvanceRule(ctx, rule.ID, cursor); err != nil {
		return res, fmt.Errorf("advance rule %s to %s: %w", rule.ID, cursor, err)
	}
	res.RulesAdvanced++

	slog.InfoContext(ctx, "Recurring rule advanced",
		"rule_id", rule.ID,
		"name", rule.Name,
		"frequency", string(freq),
		"created", res.Created,
		"duplicates", res.Duplicates,
		"next_due_date", cursor.String())
	return res, nil
}

func (m *Materializer) publish(ctx context.Context, e core.Expense) {
	if m.events == nil {
		return
	}
	if err := m.events.PublishExpenseCreated(ctx, e); err != nil {
		slog.WarnContext(ctx, "Failed to publish expense event",
			"expense_id", e.ID,
			"error", err)
	}
}
