// Package memory provides an in-memory ReportWriter for tests and for
// running without Google Sheets configured.
package memory

import (
	"context"
	"sync"

	"grana/internal/core"
	"grana/internal/export"
)

type Store struct {
	mu      sync.Mutex
	reports map[int]core.AnnualReport
}

var _ export.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{reports: make(map[int]core.AnnualReport)}
}

// WriteAnnualReport keeps only the latest report per year, matching the
// replace semantics of the real exporter.
func (s *Store) WriteAnnualReport(_ context.Context, report core.AnnualReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.Year] = report
	return nil
}

// Report returns the last written report for the year, if any.
func (s *Store) Report(year int) (core.AnnualReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[year]
	return r, ok
}
