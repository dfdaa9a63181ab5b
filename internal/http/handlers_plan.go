package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"grana/internal/amqp"
	"grana/internal/core"
	"grana/internal/services"
	"grana/internal/storage"
)

// planRequest carries amounts as decimal strings. Monthly is optional:
// when absent the annual amount is distributed evenly, when present the
// twelve values must sum to the annual amount within one cent.
type planRequest struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"` // income | expense
	CostCenter string   `json:"cost_center"`
	Year       int      `json:"year"`
	Annual     string   `json:"annual"`
	Monthly    []string `json:"monthly,omitempty"`
}

func (req planRequest) toPlanCategory(id string) (core.PlanCategory, error) {
	annualCents, err := core.ParseDecimalToCents(req.Annual)
	if err != nil {
		return core.PlanCategory{}, err
	}

	p := core.PlanCategory{
		ID:         id,
		Name:       sanitizeInput(req.Name),
		Type:       core.CategoryType(req.Type),
		CostCenter: sanitizeInput(req.CostCenter),
		Year:       req.Year,
		Annual:     core.Money{Cents: annualCents},
	}

	switch len(req.Monthly) {
	case 0:
		p.Monthly = services.DistributeAnnual(p.Annual)
	case core.MonthsPerYear:
		for i, v := range req.Monthly {
			cents, err := core.ParseDecimalToCents(v)
			if err != nil {
				return core.PlanCategory{}, err
			}
			p.Monthly[i] = core.Money{Cents: cents}
		}
		if err := services.CheckDistribution(p); err != nil {
			return core.PlanCategory{}, err
		}
	default:
		return core.PlanCategory{}, errors.New("monthly must have exactly 12 values")
	}

	if err := p.Validate(); err != nil {
		return core.PlanCategory{}, err
	}
	return p, nil
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if !decodeBody(w, r, &req) {
		return
	}

	plan, err := req.toPlanCategory(uuid.New().String())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.CreatePlanCategory(r.Context(), plan); err != nil {
		slog.ErrorContext(r.Context(), "Plan category create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save plan category")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindPlan, plan.ID, amqp.ActionCreated, plan.Year)
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	writeJSON(w, http.StatusOK, snap.Categories)
}

func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	old, err := s.store.GetPlanCategory(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "plan category not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Plan category load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load plan category")
		return
	}

	var req planRequest
	if !decodeBody(w, r, &req) {
		return
	}
	plan, err := req.toPlanCategory(id)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.UpdatePlanCategory(r.Context(), plan); err != nil {
		slog.ErrorContext(r.Context(), "Plan category update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update plan category")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindPlan, id, amqp.ActionUpdated, old.Year)
	if plan.Year != old.Year {
		s.invalidateDerived(r.Context(), amqp.KindPlan, id, amqp.ActionUpdated, plan.Year)
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	old, err := s.store.GetPlanCategory(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "plan category not found")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Plan category load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load plan category")
		return
	}

	if err := s.store.DeletePlanCategory(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Plan category delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete plan category")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindPlan, id, amqp.ActionDeleted, old.Year)
	writeJSON(w, http.StatusNoContent, nil)
}
