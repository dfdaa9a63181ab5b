package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"grana/internal/amqp"
	"grana/internal/core"
	"grana/internal/storage"
)

type incomeRequest struct {
	Name         string `json:"name"`
	Amount       string `json:"amount"` // decimal string
	EntryDate    string `json:"entry_date"`
	CostCenter   string `json:"cost_center"`
	Category     string `json:"category"`
	Received     bool   `json:"received"`
	ReceivedDate string `json:"received_date"` // optional
}

func (req incomeRequest) toIncome(id string) (core.Income, error) {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return core.Income{}, err
	}
	entry, err := parseDate(req.EntryDate)
	if err != nil {
		return core.Income{}, err
	}
	inc := core.Income{
		ID:         id,
		Name:       sanitizeInput(req.Name),
		Amount:     core.Money{Cents: cents},
		EntryDate:  entry,
		CostCenter: sanitizeInput(req.CostCenter),
		Category:   sanitizeInput(req.Category),
		Received:   req.Received,
	}
	if req.Received && req.ReceivedDate != "" {
		received, err := parseDate(req.ReceivedDate)
		if err != nil {
			return core.Income{}, err
		}
		inc.ReceivedDate = received
	}
	if req.Received && inc.ReceivedDate.IsZero() {
		inc.ReceivedDate = entry
	}
	if err := inc.Validate(); err != nil {
		return core.Income{}, err
	}
	return inc, nil
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	inc, err := req.toIncome(uuid.New().String())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.CreateIncome(r.Context(), inc); err != nil {
		slog.ErrorContext(r.Context(), "Income create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save income")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindIncome, inc.ID, amqp.ActionCreated, inc.EntryDate.Year())
	writeJSON(w, http.StatusCreated, inc)
}

func (s *Server) handleListIncomes(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	writeJSON(w, http.StatusOK, snap.Incomes)
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	old, err := s.store.GetIncome(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "income not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Income load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load income")
		return
	}

	var req incomeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	inc, err := req.toIncome(id)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.UpdateIncome(r.Context(), inc); err != nil {
		slog.ErrorContext(r.Context(), "Income update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update income")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindIncome, id, amqp.ActionUpdated, old.EntryDate.Year())
	if inc.EntryDate.Year() != old.EntryDate.Year() {
		s.invalidateDerived(r.Context(), amqp.KindIncome, id, amqp.ActionUpdated, inc.EntryDate.Year())
	}
	writeJSON(w, http.StatusOK, inc)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	old, err := s.store.GetIncome(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "income not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Income load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load income")
		return
	}

	if err := s.store.DeleteIncome(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Income delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete income")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindIncome, id, amqp.ActionDeleted, old.EntryDate.Year())
	writeJSON(w, http.StatusNoContent, nil)
}
