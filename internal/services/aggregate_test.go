package services

import (
	"testing"

	"grana/internal/core"
)

func planCat(name string, typ core.CategoryType, year int, monthlyCents int64) core.PlanCategory {
	cat := core.PlanCategory{
		ID:     "cat-" + name,
		Name:   name,
		Type:   typ,
		Year:   year,
		Annual: core.Money{Cents: monthlyCents * core.MonthsPerYear},
	}
	for i := range cat.Monthly {
		cat.Monthly[i] = core.Money{Cents: monthlyCents}
	}
	return cat
}

func expenseWithInstallments(t *testing.T, id string, totalCents int64, purchase core.Date, count int) core.Expense {
	t.Helper()
	e := core.Expense{
		ID:               id,
		Name:             id,
		Total:            core.Money{Cents: totalCents},
		Category:         "Mercado",
		PurchaseDate:     purchase,
		InstallmentCount: count,
	}
	insts, err := GenerateInstallments(e)
	if err != nil {
		t.Fatalf("generate installments: %v", err)
	}
	e.Installments = insts
	return e
}

func TestMonthlySummary_EmptySnapshot(t *testing.T) {
	s := MonthlySummary(core.Snapshot{}, 2025, 3)
	if s.IncomePlanned.Cents != 0 || s.IncomeRealized.Cents != 0 ||
		s.ExpensePlanned.Cents != 0 || s.ExpenseRealized.Cents != 0 ||
		s.ExpenseCommitted.Cents != 0 || s.Balance.Cents != 0 {
		t.Fatalf("expected all-zero summary, got %+v", s)
	}
}

func TestMonthlySummary_PlannedFromCategories(t *testing.T) {
	snap := core.Snapshot{
		Categories: []core.PlanCategory{
			planCat("Salario", core.CategoryIncome, 2025, 500000),
			planCat("Mercado", core.CategoryExpense, 2025, 80000),
			planCat("Aluguel", core.CategoryExpense, 2025, 150000),
			planCat("Outro ano", core.CategoryExpense, 2024, 999999),
		},
	}
	s := MonthlySummary(snap, 2025, 3)
	if s.IncomePlanned.Cents != 500000 {
		t.Errorf("income planned = %d", s.IncomePlanned.Cents)
	}
	if s.ExpensePlanned.Cents != 230000 {
		t.Errorf("expense planned = %d, other-year category must not count", s.ExpensePlanned.Cents)
	}
}

func TestMonthlySummary_RealizedIncome(t *testing.T) {
	snap := core.Snapshot{
		Incomes: []core.Income{
			{Name: "salario", Amount: core.Money{Cents: 500000}, EntryDate: core.NewDate(2025, 3, 5), Received: true},
			{Name: "freela", Amount: core.Money{Cents: 120000}, EntryDate: core.NewDate(2025, 3, 20), Received: false},
			{Name: "salario fev", Amount: core.Money{Cents: 500000}, EntryDate: core.NewDate(2025, 2, 5), Received: true},
		},
	}
	s := MonthlySummary(snap, 2025, 3)
	if s.IncomeRealized.Cents != 500000 {
		t.Fatalf("income realized = %d: only received incomes of the month count", s.IncomeRealized.Cents)
	}
}

func TestMonthlySummary_PaidInstallmentMovesIntoRealized(t *testing.T) {
	// Single-installment purchase in January; paying it must add it to
	// realized while it already counted as committed.
	exp := expenseWithInstallments(t, "exp-1", 45000, core.NewDate(2025, 1, 15), 1)
	snap := core.Snapshot{Expenses: []core.Expense{exp}}

	before := MonthlySummary(snap, 2025, 1)
	if before.ExpenseCommitted.Cents != 45000 || before.ExpenseRealized.Cents != 0 {
		t.Fatalf("before payment: committed=%d realized=%d", before.ExpenseCommitted.Cents, before.ExpenseRealized.Cents)
	}

	exp.Installments[0].Paid = true
	exp.Installments[0].PaidDate = core.NewDate(2025, 1, 20)
	snap = core.Snapshot{Expenses: []core.Expense{exp}}

	after := MonthlySummary(snap, 2025, 1)
	if after.ExpenseCommitted.Cents != 45000 || after.ExpenseRealized.Cents != 45000 {
		t.Fatalf("after payment: committed=%d realized=%d", after.ExpenseCommitted.Cents, after.ExpenseRealized.Cents)
	}
}

func TestMonthlySummary_CommittedNeverBelowRealized(t *testing.T) {
	exp1 := expenseWithInstallments(t, "exp-1", 240000, core.NewDate(2025, 1, 10), 6)
	exp2 := expenseWithInstallments(t, "exp-2", 90000, core.NewDate(2025, 2, 5), 3)
	// Pay a scattering of installments.
	exp1.Installments[0].Paid = true
	exp1.Installments[2].Paid = true
	exp2.Installments[1].Paid = true

	snap := core.Snapshot{Expenses: []core.Expense{exp1, exp2}}
	for year := 2024; year <= 2026; year++ {
		for month := 1; month <= 12; month++ {
			s := MonthlySummary(snap, year, month)
			if s.ExpenseCommitted.Cents < s.ExpenseRealized.Cents {
				t.Fatalf("%d-%02d: committed %d < realized %d", year, month, s.ExpenseCommitted.Cents, s.ExpenseRealized.Cents)
			}
		}
	}
}

func TestMonthlySummary_BalanceUsesPlannedIncomeAgainstRealizedExpense(t *testing.T) {
	exp := expenseWithInstallments(t, "exp-1", 80000, core.NewDate(2025, 3, 1), 1)
	exp.Installments[0].Paid = true
	snap := core.Snapshot{
		Categories: []core.PlanCategory{planCat("Salario", core.CategoryIncome, 2025, 500000)},
		Incomes: []core.Income{
			{Name: "salario", Amount: core.Money{Cents: 480000}, EntryDate: core.NewDate(2025, 3, 5), Received: true},
		},
		Expenses: []core.Expense{exp},
	}
	s := MonthlySummary(snap, 2025, 3)
	// Balance is planned income minus realized expense, not realized
	// income minus realized expense.
	if s.Balance.Cents != 500000-80000 {
		t.Fatalf("balance = %d, want %d", s.Balance.Cents, 500000-80000)
	}
}

func TestMonthlySummary_MarchScenario(t *testing.T) {
	// All-unpaid March: planned=800.00, realized=0, committed=sum of
	// March-due installments.
	exp := expenseWithInstallments(t, "exp-1", 240000, core.NewDate(2025, 1, 10), 6)
	snap := core.Snapshot{
		Categories: []core.PlanCategory{planCat("Mercado", core.CategoryExpense, 2025, 80000)},
		Expenses:   []core.Expense{exp},
	}
	s := MonthlySummary(snap, 2025, 3)
	if s.ExpensePlanned.Cents != 80000 {
		t.Errorf("expense planned = %d", s.ExpensePlanned.Cents)
	}
	if s.ExpenseRealized.Cents != 0 {
		t.Errorf("expense realized = %d", s.ExpenseRealized.Cents)
	}
	if s.ExpenseCommitted.Cents != 40000 {
		t.Errorf("expense committed = %d, want the March installment", s.ExpenseCommitted.Cents)
	}
	if s.Balance.Cents != s.IncomePlanned.Cents {
		t.Errorf("balance = %d, want planned income with nothing realized", s.Balance.Cents)
	}
}

func TestCardMonthUsage(t *testing.T) {
	card := core.Card{ID: "card-1", Name: "Nubank", ClosingDay: 28, DueDay: 5, Limit: core.Money{Cents: 800000}}
	onCard := expenseWithInstallments(t, "exp-1", 120000, core.NewDate(2025, 1, 10), 3)
	onCard.CardID = "card-1"
	onCard.Installments[0].Paid = true
	onCard.Installments[1].Paid = true
	offCard := expenseWithInstallments(t, "exp-2", 50000, core.NewDate(2025, 1, 12), 1)
	offCard.Installments[0].Paid = true

	snap := core.Snapshot{
		Cards:    []core.Card{card},
		Expenses: []core.Expense{onCard, offCard},
	}

	u := CardMonthUsage(snap, "card-1", 2025, 1)
	if u.Used.Cents != 40000 {
		t.Errorf("january usage = %d, want only the card's paid installment", u.Used.Cents)
	}
	if u.Limit.Cents != 800000 {
		t.Errorf("limit = %d", u.Limit.Cents)
	}

	u = CardMonthUsage(snap, "card-1", 2025, 3)
	if u.Used.Cents != 0 {
		t.Errorf("march usage = %d, unpaid installment must not count", u.Used.Cents)
	}
}
