// Package services implements the derived calculations of grana: the
// installment generator, the monthly aggregator, the annual rollup,
// plan category progress and the due-soon scan.
//
// Everything in this package is a pure function over a core.Snapshot
// plus explicit parameters. Callers own the re-invocation policy; the
// functions never mutate their inputs and carry no state.
package services

import (
	"time"

	"grana/internal/core"
)

// GenerateInstallments expands an expense into its ordered installment
// sequence from (Total, PurchaseDate, InstallmentCount).
//
// Every installment gets round(total/count) cents; the rounding
// remainder is not redistributed, so the sum may drift from the total
// by under a cent per installment. The drift is kept deliberately for
// compatibility with persisted data.
//
// The calendar bucket is arithmetic: installment i lands in purchase
// month + i with year carry. The due day is the purchase day, clamped
// to the end of shorter months (a purchase on the 31st is due on
// Feb 28 in February, not rolled into March).
//
// Installments come back unpaid and without identities; the caller
// assigns IDs before persisting.
func GenerateInstallments(e core.Expense) ([]core.Installment, error) {
	if e.InstallmentCount < 1 {
		return nil, core.ErrInvalidInstallments
	}

	per := core.DivideCents(e.Total.Cents, e.InstallmentCount)
	out := make([]core.Installment, e.InstallmentCount)
	for i := 0; i < e.InstallmentCount; i++ {
		idx := e.PurchaseDate.Month() - 1 + i
		year := e.PurchaseDate.Year() + idx/core.MonthsPerYear
		month := idx%core.MonthsPerYear + 1

		day := e.PurchaseDate.Day()
		if last := lastDayOfMonth(year, month); day > last {
			day = last
		}

		out[i] = core.Installment{
			ExpenseID: e.ID,
			Number:    i + 1,
			Amount:    core.Money{Cents: per},
			DueYear:   year,
			DueMonth:  month,
			DueDate:   core.NewDate(year, month, day),
		}
	}
	return out, nil
}

// NeedsRegeneration reports whether an edit to an expense invalidates
// its installment set. Only the three generator inputs matter; renames,
// category moves and flag changes keep the schedule.
func NeedsRegeneration(old, edited core.Expense) bool {
	return old.Total != edited.Total ||
		!old.PurchaseDate.Equal(edited.PurchaseDate.Time) ||
		old.InstallmentCount != edited.InstallmentCount
}

func lastDayOfMonth(year, month int) int {
	// Day zero of the next month.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
