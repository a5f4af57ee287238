// Package worker consumes ledger change events: it drops cached balances of
// the touched months and re-exports their consolidated report to Google
// Sheets.
package worker

import (
	"context"
	"errors"
	"fmt"

	"livrocaixa/internal/amqp"
	"livrocaixa/internal/core"
	applog "livrocaixa/internal/log"
	"livrocaixa/internal/report"
)

// SheetWriter receives a month's consolidated report.
type SheetWriter interface {
	WriteConsolidated(ctx context.Context, month core.MonthKey, r report.Report) (string, error)
}

// Invalidator drops cached figures of the given months.
type Invalidator interface {
	Invalidate(months []core.MonthKey)
}

type LedgerWorker struct {
	source      report.Source
	sheets      SheetWriter
	invalidator Invalidator
	logger      *applog.Logger
}

// NewLedgerWorker builds the worker; sheets and invalidator may be nil.
func NewLedgerWorker(source report.Source, sheets SheetWriter, invalidator Invalidator, logger *applog.Logger) *LedgerWorker {
	if logger == nil {
		logger = applog.Default()
	}
	return &LedgerWorker{
		source:      source,
		sheets:      sheets,
		invalidator: invalidator,
		logger:      logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleLedgerChanged processes one message. Every month is attempted; the
// joined error makes the consumer requeue the message.
func (w *LedgerWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	months := msg.MonthKeys()
	w.logger.InfoContext(ctx, "Processing ledger change",
		"id", msg.ID,
		applog.FieldOperation, msg.Operation,
		"months", len(months))

	if w.invalidator != nil {
		w.invalidator.Invalidate(months)
	}

	var errs []error
	for _, m := range months {
		if err := w.ExportMonth(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExportMonth writes the consolidated report of month to the spreadsheet.
func (w *LedgerWorker) ExportMonth(ctx context.Context, month core.MonthKey) error {
	if w.sheets == nil {
		w.logger.DebugContext(ctx, "No sheet writer configured, skipping export", applog.FieldMonth, month.String())
		return nil
	}
	r, err := report.Run(ctx, w.source, report.MonthFilter(month))
	if err != nil {
		return fmt.Errorf("build report %s: %w", month, err)
	}
	rng, err := w.sheets.WriteConsolidated(ctx, month, r)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to export month",
			applog.FieldMonth, month.String(), applog.FieldError, err)
		return fmt.Errorf("export %s: %w", month, err)
	}
	w.logger.InfoContext(ctx, "Month exported",
		applog.FieldMonth, month.String(),
		applog.FieldSheetsRange, rng,
		"groups", len(r.Groups))
	return nil
}

// ExportRecent re-exports the last n months ending at last. It runs at
// startup to catch up with events lost while the worker was down.
func (w *LedgerWorker) ExportRecent(ctx context.Context, last core.MonthKey, n int) error {
	var errs []error
	for i := n - 1; i >= 0; i-- {
		if err := w.ExportMonth(ctx, last.Add(-i)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
