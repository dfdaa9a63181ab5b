package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grana/internal/amqp"
	"grana/internal/core"
	"grana/internal/storage"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	cards    map[string]core.Card
	expenses map[string]core.Expense
	incomes  map[string]core.Income
	plans    map[string]core.PlanCategory
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cards:    make(map[string]core.Card),
		expenses: make(map[string]core.Expense),
		incomes:  make(map[string]core.Income),
		plans:    make(map[string]core.PlanCategory),
	}
}

func (f *fakeStore) Snapshot(context.Context) (core.Snapshot, error) {
	var snap core.Snapshot
	for _, c := range f.cards {
		snap.Cards = append(snap.Cards, c)
	}
	for _, e := range f.expenses {
		snap.Expenses = append(snap.Expenses, e)
	}
	for _, i := range f.incomes {
		snap.Incomes = append(snap.Incomes, i)
	}
	for _, p := range f.plans {
		snap.Categories = append(snap.Categories, p)
	}
	return snap, nil
}

func (f *fakeStore) CreateCard(_ context.Context, c core.Card) error { f.cards[c.ID] = c; return nil }
func (f *fakeStore) UpdateCard(_ context.Context, c core.Card) error {
	if _, ok := f.cards[c.ID]; !ok {
		return storage.ErrNotFound
	}
	f.cards[c.ID] = c
	return nil
}
func (f *fakeStore) DeleteCard(_ context.Context, id string) error {
	if _, ok := f.cards[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.cards, id)
	return nil
}
func (f *fakeStore) GetCard(_ context.Context, id string) (core.Card, error) {
	c, ok := f.cards[id]
	if !ok {
		return core.Card{}, storage.ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) CreateExpense(_ context.Context, e core.Expense) error {
	f.expenses[e.ID] = e
	return nil
}
func (f *fakeStore) UpdateExpense(_ context.Context, e core.Expense, _ bool) error {
	if _, ok := f.expenses[e.ID]; !ok {
		return storage.ErrNotFound
	}
	f.expenses[e.ID] = e
	return nil
}
func (f *fakeStore) DeleteExpense(_ context.Context, id string) error {
	if _, ok := f.expenses[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.expenses, id)
	return nil
}
func (f *fakeStore) GetExpense(_ context.Context, id string) (core.Expense, error) {
	e, ok := f.expenses[id]
	if !ok {
		return core.Expense{}, storage.ErrNotFound
	}
	return e, nil
}
func (f *fakeStore) GetInstallment(_ context.Context, id string) (core.Installment, error) {
	for _, e := range f.expenses {
		for _, inst := range e.Installments {
			if inst.ID == id {
				return inst, nil
			}
		}
	}
	return core.Installment{}, storage.ErrNotFound
}
func (f *fakeStore) SetInstallmentPaid(_ context.Context, id string, paid bool, paidDate core.Date) (core.Installment, error) {
	for eid, e := range f.expenses {
		for i, inst := range e.Installments {
			if inst.ID == id {
				inst.Paid = paid
				if paid {
					inst.PaidDate = paidDate
				} else {
					inst.PaidDate = core.Date{}
				}
				e.Installments[i] = inst
				f.expenses[eid] = e
				return inst, nil
			}
		}
	}
	return core.Installment{}, storage.ErrNotFound
}

func (f *fakeStore) CreateIncome(_ context.Context, i core.Income) error {
	f.incomes[i.ID] = i
	return nil
}
func (f *fakeStore) UpdateIncome(_ context.Context, i core.Income) error {
	if _, ok := f.incomes[i.ID]; !ok {
		return storage.ErrNotFound
	}
	f.incomes[i.ID] = i
	return nil
}
func (f *fakeStore) DeleteIncome(_ context.Context, id string) error {
	if _, ok := f.incomes[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.incomes, id)
	return nil
}
func (f *fakeStore) GetIncome(_ context.Context, id string) (core.Income, error) {
	i, ok := f.incomes[id]
	if !ok {
		return core.Income{}, storage.ErrNotFound
	}
	return i, nil
}

func (f *fakeStore) CreatePlanCategory(_ context.Context, p core.PlanCategory) error {
	f.plans[p.ID] = p
	return nil
}
func (f *fakeStore) UpdatePlanCategory(_ context.Context, p core.PlanCategory) error {
	if _, ok := f.plans[p.ID]; !ok {
		return storage.ErrNotFound
	}
	f.plans[p.ID] = p
	return nil
}
func (f *fakeStore) DeletePlanCategory(_ context.Context, id string) error {
	if _, ok := f.plans[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.plans, id)
	return nil
}
func (f *fakeStore) GetPlanCategory(_ context.Context, id string) (core.PlanCategory, error) {
	p, ok := f.plans[id]
	if !ok {
		return core.PlanCategory{}, storage.ErrNotFound
	}
	return p, nil
}

type fakePublisher struct {
	messages []*amqp.EntityChangeMessage
}

func (f *fakePublisher) PublishEntityChange(_ context.Context, msg *amqp.EntityChangeMessage) error {
	f.messages = append(f.messages, msg)
	return nil
}

func newTestServer(t *testing.T, store Store) *Server {
	t.Helper()
	s := NewServer(store, nil, Options{Addr: ":0", AlertWindowDays: 7})
	s.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateExpenseGeneratesInstallments(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)

	rec := doJSON(t, s, http.MethodPost, "/api/expenses", map[string]any{
		"name":          "Notebook",
		"total":         "2400.00",
		"category":      "eletronicos",
		"purchase_date": "2025-01-10",
		"installments":  6,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var exp core.Expense
	if err := json.Unmarshal(rec.Body.Bytes(), &exp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(exp.Installments) != 6 {
		t.Fatalf("installments = %d, want 6", len(exp.Installments))
	}
	for i, inst := range exp.Installments {
		if inst.Amount.Cents != 40000 {
			t.Errorf("installment %d amount = %d, want 40000", i+1, inst.Amount.Cents)
		}
		if inst.ID == "" {
			t.Errorf("installment %d has no ID", i+1)
		}
	}
	if exp.Installments[5].DueMonth != 6 || exp.Installments[5].DueYear != 2025 {
		t.Errorf("last installment bucket = %d/%d, want 6/2025",
			exp.Installments[5].DueMonth, exp.Installments[5].DueYear)
	}
	if len(store.expenses) != 1 {
		t.Errorf("stored expenses = %d, want 1", len(store.expenses))
	}
}

func TestUpdateExpenseKeepsScheduleOnRename(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)

	rec := doJSON(t, s, http.MethodPost, "/api/expenses", map[string]any{
		"name":          "Sofa",
		"total":         "1000.00",
		"category":      "casa",
		"purchase_date": "2025-01-15",
		"installments":  2,
	})
	var exp core.Expense
	_ = json.Unmarshal(rec.Body.Bytes(), &exp)

	// Pay the first installment, then rename the expense.
	payRec := doJSON(t, s, http.MethodPost, "/api/installments/"+exp.Installments[0].ID+"/pay", nil)
	if payRec.Code != http.StatusOK {
		t.Fatalf("pay status = %d, body = %s", payRec.Code, payRec.Body.String())
	}

	updRec := doJSON(t, s, http.MethodPut, "/api/expenses/"+exp.ID, map[string]any{
		"name":          "Sofa novo",
		"total":         "1000.00",
		"category":      "casa",
		"purchase_date": "2025-01-15",
		"installments":  2,
	})
	if updRec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", updRec.Code, updRec.Body.String())
	}

	stored := store.expenses[exp.ID]
	if !stored.Installments[0].Paid {
		t.Error("rename must not wipe the paid mark")
	}
	if stored.Installments[0].ID != exp.Installments[0].ID {
		t.Error("rename must keep the installment identities")
	}
}

func TestUpdateExpenseRegeneratesOnTotalChange(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)

	rec := doJSON(t, s, http.MethodPost, "/api/expenses", map[string]any{
		"name":          "Sofa",
		"total":         "1000.00",
		"category":      "casa",
		"purchase_date": "2025-01-15",
		"installments":  2,
	})
	var exp core.Expense
	_ = json.Unmarshal(rec.Body.Bytes(), &exp)

	updRec := doJSON(t, s, http.MethodPut, "/api/expenses/"+exp.ID, map[string]any{
		"name":          "Sofa",
		"total":         "1200.00",
		"category":      "casa",
		"purchase_date": "2025-01-15",
		"installments":  3,
	})
	if updRec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", updRec.Code, updRec.Body.String())
	}

	stored := store.expenses[exp.ID]
	if len(stored.Installments) != 3 {
		t.Fatalf("installments after regeneration = %d, want 3", len(stored.Installments))
	}
	if stored.Installments[0].Amount.Cents != 40000 {
		t.Errorf("installment amount = %d, want 40000", stored.Installments[0].Amount.Cents)
	}
	if stored.Installments[0].ID == exp.Installments[0].ID {
		t.Error("regeneration must mint fresh installment identities")
	}
}

func TestMonthlySummaryEndpoint(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)

	// One plan category and one single-installment expense in March 2025.
	planRec := doJSON(t, s, http.MethodPost, "/api/plans", map[string]any{
		"name":   "mercado",
		"type":   "expense",
		"year":   2025,
		"annual": "9600.00",
	})
	if planRec.Code != http.StatusCreated {
		t.Fatalf("plan status = %d, body = %s", planRec.Code, planRec.Body.String())
	}
	doJSON(t, s, http.MethodPost, "/api/expenses", map[string]any{
		"name":          "Compra do mes",
		"total":         "450.00",
		"category":      "mercado",
		"purchase_date": "2025-03-10",
	})

	rec := doJSON(t, s, http.MethodGet, "/api/summary?year=2025&month=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var summary core.MonthSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.ExpensePlanned.Cents != 80000 {
		t.Errorf("expense planned = %d, want 80000", summary.ExpensePlanned.Cents)
	}
	if summary.ExpenseCommitted.Cents != 45000 {
		t.Errorf("expense committed = %d, want 45000", summary.ExpenseCommitted.Cents)
	}
	if summary.ExpenseRealized.Cents != 0 {
		t.Errorf("expense realized = %d, want 0 before payment", summary.ExpenseRealized.Cents)
	}
}

func TestSummaryCacheInvalidatedByMutation(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)

	rec := doJSON(t, s, http.MethodGet, "/api/summary?year=2025&month=3", nil)
	var before core.MonthSummary
	_ = json.Unmarshal(rec.Body.Bytes(), &before)
	if before.ExpenseCommitted.Cents != 0 {
		t.Fatalf("empty store committed = %d", before.ExpenseCommitted.Cents)
	}

	doJSON(t, s, http.MethodPost, "/api/expenses", map[string]any{
		"name":          "Compra",
		"total":         "100.00",
		"category":      "mercado",
		"purchase_date": "2025-03-10",
	})

	rec = doJSON(t, s, http.MethodGet, "/api/summary?year=2025&month=3", nil)
	var after core.MonthSummary
	_ = json.Unmarshal(rec.Body.Bytes(), &after)
	if after.ExpenseCommitted.Cents != 10000 {
		t.Errorf("committed after mutation = %d, want 10000 (stale cache?)", after.ExpenseCommitted.Cents)
	}
}

func TestAnnualReportEndpoint(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)

	rec := doJSON(t, s, http.MethodGet, "/api/report/annual?year=2025", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report core.AnnualReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Rows) != core.MonthsPerYear {
		t.Errorf("rows = %d, want %d", len(report.Rows), core.MonthsPerYear)
	}
	if report.CommittedPolicy {
		t.Error("default policy should be off")
	}

	rec = doJSON(t, s, http.MethodGet, "/api/report/annual?year=2025&committed=true", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.CommittedPolicy {
		t.Error("committed=true must override the default policy")
	}
}

func TestCreatePlanRejectsDistributionMismatch(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)

	monthly := make([]string, 12)
	for i := range monthly {
		monthly[i] = "100.00"
	}
	// 12 x 100 = 1200, annual says 1500.
	rec := doJSON(t, s, http.MethodPost, "/api/plans", map[string]any{
		"name":    "viagem",
		"type":    "expense",
		"year":    2025,
		"annual":  "1500.00",
		"monthly": monthly,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body = %s", rec.Code, rec.Body.String())
	}
	if len(store.plans) != 0 {
		t.Error("mismatched plan must not be stored")
	}
}

func TestDueAlertsEndpoint(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)
	s.now = func() time.Time { return time.Date(2025, 1, 20, 8, 0, 0, 0, time.UTC) }

	doJSON(t, s, http.MethodPost, "/api/expenses", map[string]any{
		"name":          "Conta de luz",
		"total":         "180.00",
		"category":      "contas",
		"purchase_date": "2025-01-22",
	})

	rec := doJSON(t, s, http.MethodGet, "/api/alerts/due?window=7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report core.DueReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(report.Items))
	}
	if report.Items[0].DaysRemaining != 2 || report.Items[0].Urgency != core.UrgencyCritical {
		t.Errorf("item = %+v", report.Items[0])
	}
}

func TestCardUsageNotFound(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)

	rec := doJSON(t, s, http.MethodGet, "/api/cards/nope/usage?year=2025&month=3", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMutationPublishesEntityChange(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	s := NewServer(store, pub, Options{Addr: ":0"})
	s.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	rec := doJSON(t, s, http.MethodPost, "/api/incomes", map[string]any{
		"name":       "Salario",
		"amount":     "8000.00",
		"entry_date": "2025-03-05",
		"category":   "salario",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(pub.messages) != 1 {
		t.Fatalf("published = %d, want 1", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Kind != amqp.KindIncome || msg.Action != amqp.ActionCreated || msg.Year != 2025 {
		t.Errorf("message = %+v", msg)
	}
}

func TestHealthEndpoints(t *testing.T) {
	store := newFakeStore()
	s := newTestServer(t, store)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, s, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
