// Package worker holds the background processes: the report exporter
// driven by entity change messages and the due-date alert scanner.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"grana/internal/amqp"
	"grana/internal/core"
	"grana/internal/export"
	"grana/internal/services"
)

// Snapshotter is the slice of the storage layer the workers need.
type Snapshotter interface {
	Snapshot(ctx context.Context) (core.Snapshot, error)
}

// ExportWorker rebuilds and publishes the annual report whenever an
// entity change message arrives.
type ExportWorker struct {
	storage         Snapshotter
	writer          export.ReportWriter
	committedPolicy bool
	now             func() time.Time
}

func NewExportWorker(storage Snapshotter, writer export.ReportWriter, committedPolicy bool) *ExportWorker {
	return &ExportWorker{
		storage:         storage,
		writer:          writer,
		committedPolicy: committedPolicy,
		now:             time.Now,
	}
}

// HandleChange processes one entity change message. The message names
// the year whose derived views went stale; a zero year means the
// current one.
func (w *ExportWorker) HandleChange(ctx context.Context, msg *amqp.EntityChangeMessage) error {
	year := msg.Year
	if year == 0 {
		year = w.now().Year()
	}

	slog.InfoContext(ctx, "Processing entity change",
		"kind", msg.Kind,
		"id", msg.ID,
		"action", msg.Action,
		"year", year)

	snap, err := w.storage.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	report := services.BuildAnnualReport(snap, services.AnnualReportInput{
		Year:            year,
		NowMonth:        w.currentMonthFor(year),
		CommittedPolicy: w.committedPolicy,
	})

	if err := w.writer.WriteAnnualReport(ctx, report); err != nil {
		return fmt.Errorf("write annual report: %w", err)
	}

	slog.InfoContext(ctx, "Annual report exported", "year", year, "rows", len(report.Rows))
	return nil
}

// currentMonthFor places "now" inside the reported year: past years are
// entirely realized, future years entirely projected.
func (w *ExportWorker) currentMonthFor(year int) int {
	now := w.now()
	switch {
	case year < now.Year():
		return core.MonthsPerYear
	case year > now.Year():
		return 0
	default:
		return int(now.Month())
	}
}
