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

type cardRequest struct {
	Name       string `json:"name"`
	ClosingDay int    `json:"closing_day"`
	DueDay     int    `json:"due_day"`
	Limit      string `json:"limit"` // decimal string, optional
}

func (req cardRequest) toCard(id string) (core.Card, error) {
	c := core.Card{
		ID:         id,
		Name:       sanitizeInput(req.Name),
		ClosingDay: req.ClosingDay,
		DueDay:     req.DueDay,
	}
	if req.Limit != "" {
		cents, err := core.ParseDecimalToCents(req.Limit)
		if err != nil {
			return core.Card{}, err
		}
		c.Limit = core.Money{Cents: cents}
	}
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	return c, nil
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decodeBody(w, r, &req) {
		return
	}

	card, err := req.toCard(uuid.New().String())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.CreateCard(r.Context(), card); err != nil {
		slog.ErrorContext(r.Context(), "Card create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save card")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindCard, card.ID, amqp.ActionCreated, s.now().Year())
	writeJSON(w, http.StatusCreated, card)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	writeJSON(w, http.StatusOK, snap.Cards)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := s.store.GetCard(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		slog.ErrorContext(r.Context(), "Card load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load card")
		return
	}

	var req cardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	card, err := req.toCard(id)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.store.UpdateCard(r.Context(), card); err != nil {
		slog.ErrorContext(r.Context(), "Card update failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update card")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindCard, id, amqp.ActionUpdated, s.now().Year())
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := s.store.DeleteCard(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "card not found")
			return
		}
		slog.ErrorContext(r.Context(), "Card delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete card")
		return
	}

	s.invalidateDerived(r.Context(), amqp.KindCard, id, amqp.ActionDeleted, s.now().Year())
	writeJSON(w, http.StatusNoContent, nil)
}
