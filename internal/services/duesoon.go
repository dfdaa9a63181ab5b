package services

import (
	"sort"
	"time"

	"grana/internal/core"
)

// Urgency thresholds in days. These are fixed product constants, not
// per-call parameters; only the window size varies.
const (
	criticalWithinDays = 3
	highWithinDays     = 7
)

// ScanDueSoon collects the unpaid installments due inside
// [today, today+windowDays], each annotated with whole days remaining
// (0 = due today) and an urgency tier. Items come back ascending by
// days remaining; overdue installments are not part of the window.
//
// The report aggregates the total pending value inside the window and
// the share of it sitting in the critical tier.
func ScanDueSoon(snap core.Snapshot, today core.Date, windowDays int) core.DueReport {
	report := core.DueReport{WindowDays: windowDays}
	day := truncateToDay(today.Time)

	for _, exp := range snap.Expenses {
		for _, inst := range exp.Installments {
			if inst.Paid {
				continue
			}
			days := daysUntil(day, inst.DueDate.Time)
			if days < 0 || days > windowDays {
				continue
			}
			item := core.DueInstallment{
				Installment:   inst,
				ExpenseName:   exp.Name,
				DaysRemaining: days,
				Urgency:       urgencyFor(days),
			}
			report.Items = append(report.Items, item)
			report.TotalPending.Cents += inst.Amount.Cents
			if item.Urgency == core.UrgencyCritical {
				report.CriticalPending.Cents += inst.Amount.Cents
			}
		}
	}

	sort.SliceStable(report.Items, func(i, j int) bool {
		return report.Items[i].DaysRemaining < report.Items[j].DaysRemaining
	})
	return report
}

func urgencyFor(daysRemaining int) core.Urgency {
	switch {
	case daysRemaining <= criticalWithinDays:
		return core.UrgencyCritical
	case daysRemaining <= highWithinDays:
		return core.UrgencyHigh
	default:
		return core.UrgencyMedium
	}
}

// daysUntil counts whole days from today to due, rounding partial days
// up so an installment due later today still reads as 0 days away.
func daysUntil(today, due time.Time) int {
	diff := truncateToDay(due).Sub(today)
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return days
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
