package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/stats"
)

const snapshotKey = "snapshot"

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the API serves from.
type Deps struct {
	Expenses     *services.ExpenseService
	Sync         *services.SyncService
	Store        Pinger
	Catalog      core.Catalog
	BaseCurrency core.Currency
	SnapshotTTL  time.Duration
	// WriteLimit is the number of writes allowed per client per minute;
	// zero disables limiting.
	WriteLimit int
	Logger     *log.Logger
	Now        func() time.Time
}

type Server struct {
	http.Server
	deps Deps

	snapshots  *cache.LRUCache[*services.Snapshot]
	dashboards *cache.LRUCache[stats.Dashboard]
	caches     *cache.Manager
	limiter    *rateLimiter

	// refreshMu serializes snapshot refreshes so concurrent cache misses
	// run one sync.
	refreshMu    sync.Mutex
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.BaseCurrency == "" {
		deps.BaseCurrency = deps.Catalog.DefaultCurrency
	}

	s := &Server{
		deps:       deps,
		snapshots:  cache.NewLRUCache[*services.Snapshot](1, deps.SnapshotTTL),
		dashboards: cache.NewLRUCache[stats.Dashboard](128, deps.SnapshotTTL),
		caches:     cache.NewManager(),
		limiter:    newRateLimiter(deps.WriteLimit, time.Minute),
		started:    deps.Now(),
	}
	s.caches.Register(s.snapshots)
	s.caches.Register(s.dashboards)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/session", s.handleSession)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/recurring", s.handleListRules)
	mux.HandleFunc("POST /api/recurring", s.handleCreateRule)
	mux.HandleFunc("PUT /api/recurring/{id}", s.handleUpdateRule)
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteRule)

	var handler http.Handler = mux
	handler = s.withSecurity(handler)
	handler = log.AccessLogMiddleware()(handler)
	handler = log.RequestIDMiddleware()(handler)
	handler = log.Middleware(deps.Logger.WithComponent(log.ComponentHTTP))(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// StartBackground launches cache expiry and rate limiter cleanup.
func (s *Server) StartBackground() {
	s.caches.StartCleanup(time.Minute)
	go s.limiter.startCleanup(5 * time.Minute)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) today() core.Date {
	return core.Today(s.deps.Now())
}

// snapshot returns the cached snapshot or starts a new session.
func (s *Server) snapshot(ctx context.Context) (*services.Snapshot, error) {
	if snap, ok := s.snapshots.Get(snapshotKey); ok {
		return snap, nil
	}
	return s.refresh(ctx, false)
}

// refresh runs a sync and replaces the cached snapshot wholesale. Unless
// forced, a snapshot stored by a concurrent caller is reused.
func (s *Server) refresh(ctx context.Context, force bool) (*services.Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if !force {
		if snap, ok := s.snapshots.Get(snapshotKey); ok {
			return snap, nil
		}
	}
	snap, err := s.deps.Sync.Sync(ctx)
	if err != nil {
		return nil, err
	}
	s.dashboards.Purge()
	s.snapshots.Set(snapshotKey, snap)
	return snap, nil
}

// invalidate drops cached views after a write.
func (s *Server) invalidate() {
	s.snapshots.Purge()
	s.dashboards.Purge()
}
