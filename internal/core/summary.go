package core

// Urgency classifies how soon an unpaid installment falls due. The
// tier names are fixed product vocabulary and travel as-is into
// messages and API responses.
type Urgency string

const (
	UrgencyCritical Urgency = "critica"
	UrgencyHigh     Urgency = "alta"
	UrgencyMedium   Urgency = "media"
)

// MonthSummary is the derived view for one calendar month.
//
// Balance pairs planned income against realized expense. The pairing is
// asymmetric on purpose: it answers "how much of what I expected to
// earn is left after what I actually paid", which is the number the
// product shows everywhere. Do not symmetrize it.
type MonthSummary struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12

	IncomePlanned    Money `json:"income_planned"`
	IncomeRealized   Money `json:"income_realized"`
	ExpensePlanned   Money `json:"expense_planned"`
	ExpenseRealized  Money `json:"expense_realized"`
	ExpenseCommitted Money `json:"expense_committed"`
	Balance          Money `json:"balance"`
}

// AnnualRow is one month of the annual report: the month summary plus
// the balance selected by the rollup policy and the running cumulative.
type AnnualRow struct {
	MonthSummary

	// Balance here may differ from MonthSummary.Balance: for future
	// months with nothing realized yet the committed-balance policy
	// substitutes committed expense for realized expense.
	RowBalance        Money `json:"row_balance"`
	CumulativeBalance Money `json:"cumulative_balance"`
	IsFuture          bool  `json:"is_future"`
	HasRealizedValue  bool  `json:"has_realized_value"`
}

// AnnualReport always carries exactly twelve rows, January to December.
type AnnualReport struct {
	Year            int         `json:"year"`
	CommittedPolicy bool        `json:"committed_policy"`
	Rows            []AnnualRow `json:"rows"`
}

// CategoryProgress tracks a plan category against actual activity.
// Percentages are plain numbers (42.5 means 42.5%) and are exactly 0
// when the planned amount is 0.
type CategoryProgress struct {
	CategoryID   string       `json:"category_id"`
	CategoryName string       `json:"category_name"`
	Type         CategoryType `json:"type"`

	PlannedMonth  Money   `json:"planned_month"`
	PlannedYear   Money   `json:"planned_year"`
	RealizedMonth Money   `json:"realized_month"`
	RealizedYear  Money   `json:"realized_year"`
	ProgressMonth float64 `json:"progress_month"`
	ProgressYear  float64 `json:"progress_year"`
}

// DueInstallment is an unpaid installment inside the alert window.
type DueInstallment struct {
	Installment

	ExpenseName   string  `json:"expense_name"`
	DaysRemaining int     `json:"days_remaining"` // 0 = due today
	Urgency       Urgency `json:"urgency"`
}

// DueReport is the due-soon scan result, ascending by DaysRemaining.
type DueReport struct {
	WindowDays      int              `json:"window_days"`
	Items           []DueInstallment `json:"items"`
	TotalPending    Money            `json:"total_pending"`
	CriticalPending Money            `json:"critical_pending"`
}

// CardUsage is the derived per-card view: paid installment volume due
// in one month. It is computed on demand and never stored.
type CardUsage struct {
	CardID string `json:"card_id"`
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Used   Money  `json:"used"`
	Limit  Money  `json:"limit"`
}
