package core

import (
	"errors"
	"strings"
	"time"
)

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

// MonthsPerYear is the length of every monthly plan distribution.
const MonthsPerYear = 12

type (
	CategoryType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Card is a credit card whose installments are tracked against it.
	Card struct {
		ID         string
		Name       string
		ClosingDay int
		DueDay     int
		Limit      Money
	}

	// Expense is a purchase split into one or more installments.
	// The expense exclusively owns its installments: whenever Total,
	// PurchaseDate or InstallmentCount changes the whole set is
	// regenerated, never patched.
	Expense struct {
		ID               string
		Name             string
		Total            Money
		CostCenter       string
		Category         string
		PurchaseDate     Date
		InstallmentCount int
		CardID           string
		Notes            string
		Essential        bool
		Installments     []Installment
	}

	// Installment is one scheduled payment portion of an expense.
	// Number is 1-based. DueYear/DueMonth are the calendar bucket the
	// installment is aggregated under; DueDate carries the full date.
	Installment struct {
		ID        string
		ExpenseID string
		Number    int
		Amount    Money
		DueYear   int
		DueMonth  int // 1-12
		DueDate   Date
		Paid      bool
		PaidDate  Date // zero when unpaid
	}

	Income struct {
		ID           string
		Name         string
		Amount       Money
		EntryDate    Date
		CostCenter   string
		Category     string
		Received     bool
		ReceivedDate Date // zero when not yet received
	}

	// PlanCategory is one line of the annual budget plan: an annual
	// amount distributed over twelve monthly values (index 0 = January).
	PlanCategory struct {
		ID         string
		Name       string
		Type       CategoryType
		CostCenter string
		Year       int
		Annual     Money
		Monthly    [MonthsPerYear]Money
	}

	// Snapshot is an immutable view of every entity collection the
	// aggregation functions consume. Callers rebuild it after mutations;
	// nothing in this package ever modifies it.
	Snapshot struct {
		Cards      []Card
		Expenses   []Expense
		Incomes    []Income
		Categories []PlanCategory
	}
)

var (
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidMonth          = errors.New("invalid month")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrEmptyName             = errors.New("empty name")
	ErrEmptyCategory         = errors.New("empty category")
	ErrInvalidCategoryType   = errors.New("invalid category type")
	ErrInvalidInstallments   = errors.New("installment count must be at least 1")
	ErrInvalidClosingDay     = errors.New("closing day must be within 1-31")
	ErrInvalidDueDay         = errors.New("due day must be within 1-31")
	ErrMonthlyPlanOutOfRange = errors.New("monthly plan values must be non-negative")
)

// NewDate creates a Date at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month.
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the calendar month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return ErrInvalidClosingDay
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

// Validate checks the fields supplied at the creation/edit boundary.
// It deliberately does not check the installment set: that is owned by
// the generator and the storage layer.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := e.Total.Validate(); err != nil {
		return err
	}
	if err := e.PurchaseDate.Validate(); err != nil {
		return err
	}
	if e.InstallmentCount < 1 {
		return ErrInvalidInstallments
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (i Income) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return ErrEmptyName
	}
	if len(i.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if err := i.EntryDate.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(i.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (t CategoryType) Validate() error {
	switch t {
	case CategoryIncome, CategoryExpense:
		return nil
	default:
		return ErrInvalidCategoryType
	}
}

// Validate checks the shape of a plan category. The stricter rule that
// the monthly values must sum to the annual amount applies only on
// manual edits and lives in the services package; persisted drift is
// tolerated here.
func (p PlanCategory) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if err := p.Type.Validate(); err != nil {
		return err
	}
	if p.Year < 1 {
		return ErrInvalidDate
	}
	if err := p.Annual.Validate(); err != nil {
		return err
	}
	for _, m := range p.Monthly {
		if m.Cents < 0 {
			return ErrMonthlyPlanOutOfRange
		}
	}
	return nil
}
