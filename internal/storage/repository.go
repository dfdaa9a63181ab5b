// Package storage persists grana's entities in SQLite and hands out
// full snapshots for the aggregation services.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"grana/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("entity not found")

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Snapshot loads every entity collection. The result is a detached
// value: callers may hold it across requests without touching the
// database again.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot
	var err error

	if snap.Cards, err = r.ListCards(ctx); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Expenses, err = r.ListExpenses(ctx); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Incomes, err = r.ListIncomes(ctx); err != nil {
		return core.Snapshot{}, err
	}
	if snap.Categories, err = r.ListPlanCategories(ctx); err != nil {
		return core.Snapshot{}, err
	}
	return snap, nil
}

// --- cards ---

func (r *SQLiteRepository) CreateCard(ctx context.Context, c core.Card) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cards (id, name, closing_day, due_day, limit_cents) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.ClosingDay, c.DueDay, c.Limit.Cents)
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	slog.InfoContext(ctx, "Card saved", "card_id", c.ID, "name", c.Name)
	return nil
}

func (r *SQLiteRepository) UpdateCard(ctx context.Context, c core.Card) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cards SET name = ?, closing_day = ?, due_day = ?, limit_cents = ? WHERE id = ?`,
		c.Name, c.ClosingDay, c.DueDay, c.Limit.Cents, c.ID)
	if err != nil {
		return fmt.Errorf("update card: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteCard(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) GetCard(ctx context.Context, id string) (core.Card, error) {
	var c core.Card
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, closing_day, due_day, limit_cents FROM cards WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.ClosingDay, &c.DueDay, &c.Limit.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, ErrNotFound
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.Card, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, closing_day, due_day, limit_cents FROM cards ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []core.Card
	for rows.Next() {
		var c core.Card
		if err := rows.Scan(&c.ID, &c.Name, &c.ClosingDay, &c.DueDay, &c.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// --- expenses & installments ---

// CreateExpense persists an expense together with its installment set
// in one transaction.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, name, total_cents, cost_center, category, purchase_date,
			                       installment_count, card_id, notes, essential)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Name, e.Total.Cents, e.CostCenter, e.Category,
			e.PurchaseDate.Format(dateLayout), e.InstallmentCount, e.CardID, e.Notes, boolToInt(e.Essential))
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
		if err := insertInstallments(ctx, tx, e.Installments); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Expense saved",
			"expense_id", e.ID,
			"name", e.Name,
			"total_cents", e.Total.Cents,
			"installments", len(e.Installments))
		return nil
	})
}

// UpdateExpense replaces the expense row. When regenerate is set the
// old installment set is dropped and the one carried on the expense is
// inserted in its place; otherwise installments are left untouched.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense, regenerate bool) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE expenses SET name = ?, total_cents = ?, cost_center = ?, category = ?,
			        purchase_date = ?, installment_count = ?, card_id = ?, notes = ?, essential = ?,
			        updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			e.Name, e.Total.Cents, e.CostCenter, e.Category,
			e.PurchaseDate.Format(dateLayout), e.InstallmentCount, e.CardID, e.Notes, boolToInt(e.Essential),
			e.ID)
		if err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		if err := requireRow(res); err != nil {
			return err
		}
		if !regenerate {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE expense_id = ?`, e.ID); err != nil {
			return fmt.Errorf("drop old installments: %w", err)
		}
		if err := insertInstallments(ctx, tx, e.Installments); err != nil {
			return err
		}
		slog.InfoContext(ctx, "Expense installments regenerated",
			"expense_id", e.ID,
			"installments", len(e.Installments))
		return nil
	})
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := r.scanExpense(r.db.QueryRowContext(ctx,
		`SELECT id, name, total_cents, cost_center, category, purchase_date,
		        installment_count, card_id, notes, essential
		 FROM expenses WHERE id = ?`, id))
	if err != nil {
		return core.Expense{}, err
	}
	insts, err := r.listInstallments(ctx, `WHERE expense_id = ?`, id)
	if err != nil {
		return core.Expense{}, err
	}
	e.Installments = insts
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, total_cents, cost_center, category, purchase_date,
		        installment_count, card_id, notes, essential
		 FROM expenses ORDER BY purchase_date DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	byID := make(map[string]int)
	for rows.Next() {
		e, err := r.scanExpense(rows)
		if err != nil {
			return nil, err
		}
		byID[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	insts, err := r.listInstallments(ctx, ``)
	if err != nil {
		return nil, err
	}
	for _, inst := range insts {
		if idx, ok := byID[inst.ExpenseID]; ok {
			expenses[idx].Installments = append(expenses[idx].Installments, inst)
		}
	}
	return expenses, nil
}

// GetInstallment returns one installment by ID.
func (r *SQLiteRepository) GetInstallment(ctx context.Context, id string) (core.Installment, error) {
	insts, err := r.listInstallments(ctx, `WHERE id = ?`, id)
	if err != nil {
		return core.Installment{}, err
	}
	if len(insts) == 0 {
		return core.Installment{}, ErrNotFound
	}
	return insts[0], nil
}

// SetInstallmentPaid flips the paid flag. Paying stamps the paid date;
// unpaying clears it. Nothing else on the installment ever mutates
// outside regeneration.
func (r *SQLiteRepository) SetInstallmentPaid(ctx context.Context, id string, paid bool, paidDate core.Date) (core.Installment, error) {
	paidStr := ""
	if paid && !paidDate.IsZero() {
		paidStr = paidDate.Format(dateLayout)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE installments SET paid = ?, paid_date = ? WHERE id = ?`,
		boolToInt(paid), paidStr, id)
	if err != nil {
		return core.Installment{}, fmt.Errorf("set installment paid: %w", err)
	}
	if err := requireRow(res); err != nil {
		return core.Installment{}, err
	}
	inst, err := r.GetInstallment(ctx, id)
	if err != nil {
		return core.Installment{}, err
	}
	slog.InfoContext(ctx, "Installment payment state changed",
		"installment_id", id,
		"expense_id", inst.ExpenseID,
		"paid", paid)
	return inst, nil
}

// --- incomes ---

func (r *SQLiteRepository) CreateIncome(ctx context.Context, i core.Income) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO incomes (id, name, amount_cents, entry_date, cost_center, category, received, received_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Name, i.Amount.Cents, i.EntryDate.Format(dateLayout),
		i.CostCenter, i.Category, boolToInt(i.Received), formatOptionalDate(i.ReceivedDate))
	if err != nil {
		return fmt.Errorf("create income: %w", err)
	}
	slog.InfoContext(ctx, "Income saved", "income_id", i.ID, "name", i.Name, "amount_cents", i.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, i core.Income) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE incomes SET name = ?, amount_cents = ?, entry_date = ?, cost_center = ?,
		        category = ?, received = ?, received_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		i.Name, i.Amount.Cents, i.EntryDate.Format(dateLayout), i.CostCenter,
		i.Category, boolToInt(i.Received), formatOptionalDate(i.ReceivedDate), i.ID)
	if err != nil {
		return fmt.Errorf("update income: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incomes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) GetIncome(ctx context.Context, id string) (core.Income, error) {
	var i core.Income
	var entry, received string
	var receivedFlag int
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, amount_cents, entry_date, cost_center, category, received, received_date
		 FROM incomes WHERE id = ?`, id).
		Scan(&i.ID, &i.Name, &i.Amount.Cents, &entry, &i.CostCenter, &i.Category, &receivedFlag, &received)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Income{}, ErrNotFound
	}
	if err != nil {
		return core.Income{}, fmt.Errorf("get income: %w", err)
	}
	i.Received = receivedFlag != 0
	if i.EntryDate, err = parseDate(entry); err != nil {
		return core.Income{}, err
	}
	if i.ReceivedDate, err = parseOptionalDate(received); err != nil {
		return core.Income{}, err
	}
	return i, nil
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, amount_cents, entry_date, cost_center, category, received, received_date
		 FROM incomes ORDER BY entry_date DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	var incomes []core.Income
	for rows.Next() {
		var i core.Income
		var entry, received string
		var receivedFlag int
		if err := rows.Scan(&i.ID, &i.Name, &i.Amount.Cents, &entry, &i.CostCenter, &i.Category, &receivedFlag, &received); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		i.Received = receivedFlag != 0
		if i.EntryDate, err = parseDate(entry); err != nil {
			return nil, err
		}
		if i.ReceivedDate, err = parseOptionalDate(received); err != nil {
			return nil, err
		}
		incomes = append(incomes, i)
	}
	return incomes, rows.Err()
}

// --- plan categories ---

func (r *SQLiteRepository) CreatePlanCategory(ctx context.Context, p core.PlanCategory) error {
	monthly, err := marshalMonthly(p.Monthly)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO plan_categories (id, name, type, cost_center, year, annual_cents, monthly_cents)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, string(p.Type), p.CostCenter, p.Year, p.Annual.Cents, monthly)
	if err != nil {
		return fmt.Errorf("create plan category: %w", err)
	}
	slog.InfoContext(ctx, "Plan category saved",
		"category_id", p.ID, "name", p.Name, "type", string(p.Type), "year", p.Year)
	return nil
}

func (r *SQLiteRepository) UpdatePlanCategory(ctx context.Context, p core.PlanCategory) error {
	monthly, err := marshalMonthly(p.Monthly)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE plan_categories SET name = ?, type = ?, cost_center = ?, year = ?,
		        annual_cents = ?, monthly_cents = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		p.Name, string(p.Type), p.CostCenter, p.Year, p.Annual.Cents, monthly, p.ID)
	if err != nil {
		return fmt.Errorf("update plan category: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeletePlanCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plan_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plan category: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) GetPlanCategory(ctx context.Context, id string) (core.PlanCategory, error) {
	var p core.PlanCategory
	var typ, monthly string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, cost_center, year, annual_cents, monthly_cents
		 FROM plan_categories WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &typ, &p.CostCenter, &p.Year, &p.Annual.Cents, &monthly)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PlanCategory{}, ErrNotFound
	}
	if err != nil {
		return core.PlanCategory{}, fmt.Errorf("get plan category: %w", err)
	}
	p.Type = core.CategoryType(typ)
	if p.Monthly, err = unmarshalMonthly(monthly); err != nil {
		return core.PlanCategory{}, err
	}
	return p, nil
}

func (r *SQLiteRepository) ListPlanCategories(ctx context.Context) ([]core.PlanCategory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, cost_center, year, annual_cents, monthly_cents
		 FROM plan_categories ORDER BY year, type, name`)
	if err != nil {
		return nil, fmt.Errorf("list plan categories: %w", err)
	}
	defer rows.Close()

	var cats []core.PlanCategory
	for rows.Next() {
		var p core.PlanCategory
		var typ, monthly string
		if err := rows.Scan(&p.ID, &p.Name, &typ, &p.CostCenter, &p.Year, &p.Annual.Cents, &monthly); err != nil {
			return nil, fmt.Errorf("scan plan category: %w", err)
		}
		p.Type = core.CategoryType(typ)
		if p.Monthly, err = unmarshalMonthly(monthly); err != nil {
			return nil, err
		}
		cats = append(cats, p)
	}
	return cats, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var purchase string
	var essential int
	err := row.Scan(&e.ID, &e.Name, &e.Total.Cents, &e.CostCenter, &e.Category,
		&purchase, &e.InstallmentCount, &e.CardID, &e.Notes, &essential)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}
	e.Essential = essential != 0
	if e.PurchaseDate, err = parseDate(purchase); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (r *SQLiteRepository) listInstallments(ctx context.Context, where string, args ...any) ([]core.Installment, error) {
	query := `SELECT id, expense_id, seq, amount_cents, due_year, due_month, due_date, paid, paid_date
	          FROM installments ` + where + ` ORDER BY expense_id, seq`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()

	var insts []core.Installment
	for rows.Next() {
		var inst core.Installment
		var due, paidDate string
		var paid int
		if err := rows.Scan(&inst.ID, &inst.ExpenseID, &inst.Number, &inst.Amount.Cents,
			&inst.DueYear, &inst.DueMonth, &due, &paid, &paidDate); err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		inst.Paid = paid != 0
		if inst.DueDate, err = parseDate(due); err != nil {
			return nil, err
		}
		if inst.PaidDate, err = parseOptionalDate(paidDate); err != nil {
			return nil, err
		}
		insts = append(insts, inst)
	}
	return insts, rows.Err()
}

func insertInstallments(ctx context.Context, tx *sql.Tx, insts []core.Installment) error {
	for _, inst := range insts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO installments (id, expense_id, seq, amount_cents, due_year, due_month, due_date, paid, paid_date)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inst.ID, inst.ExpenseID, inst.Number, inst.Amount.Cents,
			inst.DueYear, inst.DueMonth, inst.DueDate.Format(dateLayout),
			boolToInt(inst.Paid), formatOptionalDate(inst.PaidDate))
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", inst.Number, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func parseOptionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return parseDate(s)
}

func formatOptionalDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func marshalMonthly(monthly [core.MonthsPerYear]core.Money) (string, error) {
	cents := make([]int64, core.MonthsPerYear)
	for i, m := range monthly {
		cents[i] = m.Cents
	}
	b, err := json.Marshal(cents)
	if err != nil {
		return "", fmt.Errorf("marshal monthly values: %w", err)
	}
	return string(b), nil
}

func unmarshalMonthly(s string) ([core.MonthsPerYear]core.Money, error) {
	var monthly [core.MonthsPerYear]core.Money
	var cents []int64
	if err := json.Unmarshal([]byte(s), &cents); err != nil {
		return monthly, fmt.Errorf("unmarshal monthly values: %w", err)
	}
	for i := 0; i < len(cents) && i < core.MonthsPerYear; i++ {
		monthly[i] = core.Money{Cents: cents[i]}
	}
	return monthly, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
