package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"grana/internal/amqp"
	"grana/internal/core"
	"grana/internal/services"
	"grana/internal/storage"
)

// expenseRequest is the JSON creation/edit payload. Total is a decimal
// string ("2400.00" or "2400,00"), never a float.
type expenseRequest struct {
	Name         string `json:"name"`
	Total        string `json:"total"`
	CostCenter   string `json:"cost_center"`
	Category     string `json:"category"`
	PurchaseDate string `json:"purchase_date"` // YYYY-MM-DD
	Installments int    `json:"installments"`
	CardID       string `json:"card_id"`
	Notes        string `json:"notes"`
	Essential    bool   `json:"essential"`
}

func (req expenseRequest) toExpense(id string) (core.Expense, error) {
	cents, err := core.ParseDecimalToCents(req.Total)
	if err != nil {
		return core.Expense{}, err
	}
	purchase, err := parseDate(req.PurchaseDate)
	if err != nil {
		return core.Expense{}, err
	}
	installments := req.Installments
	if installments == 0 {
		installments = 1
	}
	e := core.Expense{
		ID:               id,
		Name:             sanitizeInput(req.Name),
		Total:            core.Money{Cents: cents},
		CostCenter:       sanitizeInput(req.CostCenter),
		Category:         sanitizeInput(req.Category),
		PurchaseDate:     purchase,
		InstallmentCount: installments,
		CardID:           sanitizeInput(req.CardID),
		Notes:            sanitizeInput(req.Notes),
		Essential:        req.Essential,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	exp, err := req.toExpense(uuid.New().String())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	installments, err := services.GenerateInstallments(exp)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	for i := range installments {
		installments[i].ID = uuid.New().String()
	}
	exp.Installments = installments

	if err := s.store.CreateExpense(r.Context(), exp); err != nil {
		slog.ErrorContext(r.Context(), "Expense create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save expense")
		return
	}

	s.invalidateExpenseYears(r.Context(), exp, amqp.ActionCreated)
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	writeJSON(w, http.StatusOK, snap.Expenses)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	exp, err := s.store.GetExpense(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load expense")
		return
	}
	writeJSON(w, http.StatusOK, exp)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	old, err := s.store.GetExpense(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load expense")
		return
	}

	var req expenseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	edited, err := req.toExpense(id)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	// Edits to the generator inputs rebuild the schedule from scratch,
	// wiping paid marks; cosmetic edits keep it.
	regenerate := services.NeedsRegeneration(old, edited)
	if regenerate {
		installments, err := services.GenerateInstallments(edited)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		for i := range installments {
			installments[i].ID = uuid.New().String()
		}
		edited.Installments = installments
	} else {
		edited.Installments = old.Installments
	}

	if err := s.store.UpdateExpense(r.Context(), edited, regenerate); err != nil {
		slog.ErrorContext(r.Context(), "Expense update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update expense")
		return
	}

	s.invalidateExpenseYears(r.Context(), old, amqp.ActionUpdated)
	s.invalidateExpenseYears(r.Context(), edited, amqp.ActionUpdated)
	writeJSON(w, http.StatusOK, edited)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	old, err := s.store.GetExpense(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Expense load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load expense")
		return
	}

	if err := s.store.DeleteExpense(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Expense delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete expense")
		return
	}

	s.invalidateExpenseYears(r.Context(), old, amqp.ActionDeleted)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	s.setInstallmentPaid(w, r, true)
}

func (s *Server) handleUnpayInstallment(w http.ResponseWriter, r *http.Request) {
	s.setInstallmentPaid(w, r, false)
}

type payRequest struct {
	PaidDate string `json:"paid_date"` // optional, defaults to today
}

func (s *Server) setInstallmentPaid(w http.ResponseWriter, r *http.Request, paid bool) {
	id := r.PathValue("id")

	paidDate := core.Date{}
	if paid {
		now := s.now()
		paidDate = core.NewDate(now.Year(), int(now.Month()), now.Day())
		if r.ContentLength > 0 {
			var req payRequest
			if !decodeBody(w, r, &req) {
				return
			}
			if req.PaidDate != "" {
				d, err := parseDate(req.PaidDate)
				if err != nil {
					writeError(w, http.StatusUnprocessableEntity, "invalid paid_date")
					return
				}
				paidDate = d
			}
		}
	}

	inst, err := s.store.SetInstallmentPaid(r.Context(), id, paid, paidDate)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "installment not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Installment payment change failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update installment")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindExpense, inst.ExpenseID, amqp.ActionPaid, inst.DueYear)
	writeJSON(w, http.StatusOK, inst)
}

// invalidateExpenseYears drops derived views for every year the
// expense's installments touch; multi-year schedules stale more than
// one report.
func (s *Server) invalidateExpenseYears(ctx context.Context, e core.Expense, action string) {
	years := map[int]bool{e.PurchaseDate.Year(): true}
	for _, inst := range e.Installments {
		years[inst.DueYear] = true
	}
	for year := range years {
		s.invalidateDerived(ctx, amqp.KindExpense, e.ID, action, year)
	}
}
