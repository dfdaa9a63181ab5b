package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"grana/internal/amqp"
	"grana/internal/core"
	"grana/internal/services"
)

// AlertPublisher is the slice of the AMQP client the alert worker uses.
type AlertPublisher interface {
	PublishDueAlert(ctx context.Context, msg *amqp.DueAlertMessage) error
}

// AlertWorker periodically scans for unpaid installments approaching
// their due date and publishes one alert message per installment.
type AlertWorker struct {
	storage    Snapshotter
	publisher  AlertPublisher
	windowDays int
	now        func() time.Time

	// alerted tracks which installment+day pairs were already published
	// so a restart-free run never duplicates an alert within a day.
	alerted map[string]string
}

func NewAlertWorker(storage Snapshotter, publisher AlertPublisher, windowDays int) *AlertWorker {
	return &AlertWorker{
		storage:    storage,
		publisher:  publisher,
		windowDays: windowDays,
		now:        time.Now,
		alerted:    make(map[string]string),
	}
}

// Run scans immediately and then on every tick until the context ends.
func (w *AlertWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.ScanOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial due-date scan failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ScanOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "Due-date scan failed", "error", err)
			}
		}
	}
}

// ScanOnce runs one due-soon scan and publishes alerts for every item
// not already alerted today.
func (w *AlertWorker) ScanOnce(ctx context.Context) error {
	snap, err := w.storage.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	now := w.now()
	today := core.NewDate(now.Year(), int(now.Month()), now.Day())
	report := services.ScanDueSoon(snap, today, w.windowDays)

	published := 0
	dayKey := today.Format("2006-01-02")
	for _, item := range report.Items {
		if w.alerted[item.ID] == dayKey {
			continue
		}
		msg := amqp.NewDueAlertMessage(item)
		if err := w.publisher.PublishDueAlert(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish due alert",
				"installment_id", item.ID,
				"error", err)
			continue
		}
		w.alerted[item.ID] = dayKey
		published++
	}

	slog.InfoContext(ctx, "Due-date scan completed",
		"window_days", w.windowDays,
		"in_window", len(report.Items),
		"published", published,
		"total_pending_cents", report.TotalPending.Cents)
	return nil
}
