// Package http exposes the aggregation engine as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"grana/internal/amqp"
	"grana/internal/cache"
	"grana/internal/core"
	"grana/internal/middleware/ratelimit"
	"grana/internal/middleware/trace"
)

// Store is the slice of the storage layer the handlers use. Defined
// here so tests can substitute a fake without a database.
type Store interface {
	Snapshot(ctx context.Context) (core.Snapshot, error)

	CreateCard(ctx context.Context, c core.Card) error
	UpdateCard(ctx context.Context, c core.Card) error
	DeleteCard(ctx context.Context, id string) error
	GetCard(ctx context.Context, id string) (core.Card, error)

	CreateExpense(ctx context.Context, e core.Expense) error
	UpdateExpense(ctx context.Context, e core.Expense, regenerate bool) error
	DeleteExpense(ctx context.Context, id string) error
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	SetInstallmentPaid(ctx context.Context, id string, paid bool, paidDate core.Date) (core.Installment, error)
	GetInstallment(ctx context.Context, id string) (core.Installment, error)

	CreateIncome(ctx context.Context, i core.Income) error
	UpdateIncome(ctx context.Context, i core.Income) error
	DeleteIncome(ctx context.Context, id string) error
	GetIncome(ctx context.Context, id string) (core.Income, error)

	CreatePlanCategory(ctx context.Context, p core.PlanCategory) error
	UpdatePlanCategory(ctx context.Context, p core.PlanCategory) error
	DeletePlanCategory(ctx context.Context, id string) error
	GetPlanCategory(ctx context.Context, id string) (core.PlanCategory, error)
}

// Publisher is the optional AMQP side of the server. A nil Publisher
// means the server runs standalone and exports are skipped.
type Publisher interface {
	PublishEntityChange(ctx context.Context, msg *amqp.EntityChangeMessage) error
}

type Options struct {
	Addr            string
	CommittedPolicy bool
	AlertWindowDays int
}

type Server struct {
	http.Server

	store     Store
	publisher Publisher

	committedPolicy bool
	alertWindowDays int

	limiter *ratelimit.Limiter
	tracer  *trace.Middleware

	// Derived views are memoized between mutations. Keys are prefixed
	// per view ("summary:", "report:", ...) so a mutation can drop a
	// whole family at once.
	summaryCache  *cache.LRUCache[core.MonthSummary]
	reportCache   *cache.LRUCache[core.AnnualReport]
	progressCache *cache.LRUCache[[]core.CategoryProgress]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once

	now func() time.Time
}

func NewServer(store Store, publisher Publisher, opts Options) *Server {
	if opts.AlertWindowDays <= 0 {
		opts.AlertWindowDays = 7
	}

	s := &Server{
		store:            store,
		publisher:        publisher,
		committedPolicy:  opts.CommittedPolicy,
		alertWindowDays:  opts.AlertWindowDays,
		limiter:          ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:           trace.NewMiddleware(clientIP),
		summaryCache:     cache.NewLRUCache[core.MonthSummary](200, 5*time.Minute),
		reportCache:      cache.NewLRUCache[core.AnnualReport](20, 5*time.Minute),
		progressCache:    cache.NewLRUCache[[]core.CategoryProgress](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
		now:              time.Now,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/summary", s.handleMonthlySummary)
	mux.HandleFunc("GET /api/report/annual", s.handleAnnualReport)
	mux.HandleFunc("GET /api/plans/progress", s.handlePlanProgress)
	mux.HandleFunc("GET /api/alerts/due", s.handleDueAlerts)

	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/installments/{id}/pay", s.handlePayInstallment)
	mux.HandleFunc("POST /api/installments/{id}/unpay", s.handleUnpayInstallment)

	mux.HandleFunc("POST /api/incomes", s.handleCreateIncome)
	mux.HandleFunc("GET /api/incomes", s.handleListIncomes)
	mux.HandleFunc("PUT /api/incomes/{id}", s.handleUpdateIncome)
	mux.HandleFunc("DELETE /api/incomes/{id}", s.handleDeleteIncome)

	mux.HandleFunc("POST /api/plans", s.handleCreatePlan)
	mux.HandleFunc("GET /api/plans", s.handleListPlans)
	mux.HandleFunc("PUT /api/plans/{id}", s.handleUpdatePlan)
	mux.HandleFunc("DELETE /api/plans/{id}", s.handleDeletePlan)

	mux.HandleFunc("POST /api/cards", s.handleCreateCard)
	mux.HandleFunc("GET /api/cards", s.handleListCards)
	mux.HandleFunc("GET /api/cards/{id}/usage", s.handleCardUsage)
	mux.HandleFunc("PUT /api/cards/{id}", s.handleUpdateCard)
	mux.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard)

	limited := s.limiter.Middleware(clientIP, nil)
	handler := s.tracer.Middleware(withAPIHeaders(limitMutations(limited, mux)))

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go s.startCacheCleanup()

	return s
}

// limitMutations applies the rate limiter to non-GET traffic only;
// reads stay unthrottled because they are cache-backed.
func limitMutations(limited func(http.Handler) http.Handler, next http.Handler) http.Handler {
	guarded := limited(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		guarded.ServeHTTP(w, r)
	})
}

func withAPIHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cleaned := 0
			for _, c := range []cache.Cleaner{s.summaryCache, s.reportCache, s.progressCache} {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the background goroutines before draining the HTTP
// server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Snapshot(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		http.Error(w, "storage not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// invalidateDerived drops every memoized view touching the given year
// and notifies the export worker. Called after every mutation.
func (s *Server) invalidateDerived(ctx context.Context, kind, id, action string, year int) {
	s.summaryCache.DeletePrefix("summary:" + strconv.Itoa(year) + ":")
	s.reportCache.DeletePrefix("report:" + strconv.Itoa(year) + ":")
	s.progressCache.DeletePrefix("progress:" + strconv.Itoa(year) + ":")

	if s.publisher == nil {
		return
	}
	msg := amqp.NewEntityChangeMessage(kind, id, action, year)
	if err := s.publisher.PublishEntityChange(ctx, msg); err != nil {
		// A lost event only delays the export; the API response already
		// reflects storage.
		slog.ErrorContext(ctx, "Failed to publish entity change",
			"kind", kind, "id", id, "action", action, "error", err)
	}
}
