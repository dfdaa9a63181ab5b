package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"grana/internal/core"
	"grana/internal/services"
)

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	year, month := s.parseYearMonth(r)
	key := "summary:" + strconv.Itoa(year) + ":" + strconv.Itoa(month)

	if summary, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	summary := services.MonthlySummary(snap, year, month)
	s.summaryCache.Set(key, summary)
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAnnualReport(w http.ResponseWriter, r *http.Request) {
	year := s.parseYear(r)

	policy := s.committedPolicy
	if v := strings.TrimSpace(r.URL.Query().Get("committed")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			policy = b
		}
	}
	key := "report:" + strconv.Itoa(year) + ":" + strconv.FormatBool(policy)

	if report, ok := s.reportCache.Get(key); ok {
		writeJSON(w, http.StatusOK, report)
		return
	}

	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	report := services.BuildAnnualReport(snap, services.AnnualReportInput{
		Year:            year,
		NowMonth:        s.nowMonthFor(year),
		CommittedPolicy: policy,
	})
	s.reportCache.Set(key, report)
	writeJSON(w, http.StatusOK, report)
}

// nowMonthFor places "now" inside the reported year so past years show
// as fully realized and future years as fully projected.
func (s *Server) nowMonthFor(year int) int {
	now := s.now()
	switch {
	case year < now.Year():
		return core.MonthsPerYear
	case year > now.Year():
		return 0
	default:
		return int(now.Month())
	}
}

func (s *Server) handlePlanProgress(w http.ResponseWriter, r *http.Request) {
	year, month := s.parseYearMonth(r)
	key := "progress:" + strconv.Itoa(year) + ":" + strconv.Itoa(month)

	if progress, ok := s.progressCache.Get(key); ok {
		writeJSON(w, http.StatusOK, progress)
		return
	}

	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	progress := services.AllCategoryProgress(snap, year, month)
	s.progressCache.Set(key, progress)
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleDueAlerts(w http.ResponseWriter, r *http.Request) {
	windowDays := s.alertWindowDays
	if v := strings.TrimSpace(r.URL.Query().Get("window")); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 && d <= 365 {
			windowDays = d
		}
	}

	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	now := s.now()
	today := core.NewDate(now.Year(), int(now.Month()), now.Day())
	writeJSON(w, http.StatusOK, services.ScanDueSoon(snap, today, windowDays))
}

func (s *Server) handleCardUsage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	year, month := s.parseYearMonth(r)

	snap, err := s.store.Snapshot(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Snapshot load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	found := false
	for _, c := range snap.Cards {
		if c.ID == id {
			found = true
			break
		}
	}
	if !found {
		writeError(w, http.StatusNotFound, "card not found")
		return
	}

	writeJSON(w, http.StatusOK, services.CardMonthUsage(snap, id, year, month))
}
