package services

import (
	"grana/internal/core"
)

// CategoryProgress measures a plan category against actual activity:
// month-to-date and year-to-date realized amounts and their percentage
// of plan. The month parameter is 1-12.
//
// Realized amounts are scoped to the category's year and matched by
// category name: received incomes for income categories, paid
// installments of matching expenses for expense categories.
//
// A zero planned amount yields exactly 0% progress. The guard is
// explicit; percentages must never be NaN or infinite.
func CategoryProgress(snap core.Snapshot, cat core.PlanCategory, month int) core.CategoryProgress {
	p := core.CategoryProgress{
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Type:         cat.Type,
	}
	if month >= 1 && month <= core.MonthsPerYear {
		p.PlannedMonth = cat.Monthly[month-1]
	}
	for _, v := range cat.Monthly {
		p.PlannedYear.Cents += v.Cents
	}

	switch cat.Type {
	case core.CategoryIncome:
		for _, inc := range snap.Incomes {
			if !inc.Received || inc.Category != cat.Name || inc.EntryDate.Year() != cat.Year {
				continue
			}
			p.RealizedYear.Cents += inc.Amount.Cents
			if inc.EntryDate.Month() == month {
				p.RealizedMonth.Cents += inc.Amount.Cents
			}
		}
	case core.CategoryExpense:
		for _, exp := range snap.Expenses {
			if exp.Category != cat.Name {
				continue
			}
			for _, inst := range exp.Installments {
				if !inst.Paid || inst.DueYear != cat.Year {
					continue
				}
				p.RealizedYear.Cents += inst.Amount.Cents
				if inst.DueMonth == month {
					p.RealizedMonth.Cents += inst.Amount.Cents
				}
			}
		}
	}

	p.ProgressMonth = percentage(p.RealizedMonth.Cents, p.PlannedMonth.Cents)
	p.ProgressYear = percentage(p.RealizedYear.Cents, p.PlannedYear.Cents)
	return p
}

// AllCategoryProgress computes progress for every plan category of a
// year, in snapshot order.
func AllCategoryProgress(snap core.Snapshot, year, month int) []core.CategoryProgress {
	var out []core.CategoryProgress
	for _, cat := range snap.Categories {
		if cat.Year != year {
			continue
		}
		out = append(out, CategoryProgress(snap, cat, month))
	}
	return out
}

func percentage(realized, planned int64) float64 {
	if planned <= 0 {
		return 0
	}
	return float64(realized) / float64(planned) * 100
}
