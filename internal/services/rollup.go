package services

import (
	"grana/internal/core"
)

// AnnualReportInput carries the rollup parameters. NowMonth (1-12)
// decides which rows count as future; CommittedPolicy switches on the
// committed-balance projection for those rows.
type AnnualReportInput struct {
	Year            int
	NowMonth        int
	CommittedPolicy bool
}

// BuildAnnualReport applies the monthly aggregator across all twelve
// months of a year and threads a cumulative balance through the rows.
//
// Row balance selection: a future month (index past NowMonth) with
// nothing realized yet projects incomePlanned - expenseCommitted when
// the committed policy is on; every other row keeps the aggregator's
// default incomePlanned - expenseRealized. The cumulative column starts
// at zero before January and adds each row's balance in calendar order.
//
// The report always has exactly twelve rows, January through December,
// never filtered or reordered.
func BuildAnnualReport(snap core.Snapshot, in AnnualReportInput) core.AnnualReport {
	report := core.AnnualReport{
		Year:            in.Year,
		CommittedPolicy: in.CommittedPolicy,
		Rows:            make([]core.AnnualRow, 0, core.MonthsPerYear),
	}

	var cumulative int64
	for month := 1; month <= core.MonthsPerYear; month++ {
		summary := MonthlySummary(snap, in.Year, month)

		row := core.AnnualRow{
			MonthSummary:     summary,
			IsFuture:         month > in.NowMonth,
			HasRealizedValue: summary.ExpenseRealized.Cents > 0,
		}

		balance := summary.Balance.Cents
		if in.CommittedPolicy && row.IsFuture && !row.HasRealizedValue {
			balance = summary.IncomePlanned.Cents - summary.ExpenseCommitted.Cents
		}

		cumulative += balance
		row.RowBalance = core.Money{Cents: balance}
		row.CumulativeBalance = core.Money{Cents: cumulative}
		report.Rows = append(report.Rows, row)
	}

	return report
}
