package services

import (
	"grana/internal/core"
)

// MonthlySummary computes the planned/realized/committed totals for one
// calendar month over the full entity snapshot.
//
// Rules, in the product's terms:
//   - planned income/expense come from plan categories of the target
//     year, taking the monthly value of the target month;
//   - realized income is the sum of received incomes entered in the
//     month; realized expense is the sum of paid installments due in
//     the month;
//   - committed expense counts every installment due in the month,
//     paid or not, so committed >= realized always holds;
//   - balance = planned income - realized expense. The asymmetric
//     pairing is intentional (see core.MonthSummary).
//
// Missing entities simply contribute zero; there is no failure mode.
func MonthlySummary(snap core.Snapshot, year, month int) core.MonthSummary {
	s := core.MonthSummary{Year: year, Month: month}
	if month < 1 || month > core.MonthsPerYear {
		return s
	}

	for _, cat := range snap.Categories {
		if cat.Year != year {
			continue
		}
		v := cat.Monthly[month-1]
		switch cat.Type {
		case core.CategoryIncome:
			s.IncomePlanned.Cents += v.Cents
		case core.CategoryExpense:
			s.ExpensePlanned.Cents += v.Cents
		}
	}

	for _, inc := range snap.Incomes {
		if !inc.Received {
			continue
		}
		if inc.EntryDate.Year() == year && inc.EntryDate.Month() == month {
			s.IncomeRealized.Cents += inc.Amount.Cents
		}
	}

	for _, exp := range snap.Expenses {
		for _, inst := range exp.Installments {
			if inst.DueYear != year || inst.DueMonth != month {
				continue
			}
			s.ExpenseCommitted.Cents += inst.Amount.Cents
			if inst.Paid {
				s.ExpenseRealized.Cents += inst.Amount.Cents
			}
		}
	}

	s.Balance.Cents = s.IncomePlanned.Cents - s.ExpenseRealized.Cents
	return s
}

// CardMonthUsage sums the paid installments charged to a card and due
// in the given month. Derived on demand, never stored.
func CardMonthUsage(snap core.Snapshot, cardID string, year, month int) core.CardUsage {
	u := core.CardUsage{CardID: cardID, Year: year, Month: month}
	for _, c := range snap.Cards {
		if c.ID == cardID {
			u.Limit = c.Limit
			break
		}
	}
	for _, exp := range snap.Expenses {
		if exp.CardID != cardID {
			continue
		}
		for _, inst := range exp.Installments {
			if inst.Paid && inst.DueYear == year && inst.DueMonth == month {
				u.Used.Cents += inst.Amount.Cents
			}
		}
	}
	return u
}
