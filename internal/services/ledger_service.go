// Package services orchestrates ledger operations across SQLite and AMQP.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"lojista/internal/amqp"
	"lojista/internal/core"
	applog "lojista/internal/log"
	"lojista/internal/report"
	"lojista/internal/storage"
)

// EventPublisher publishes ledger write events for the sync worker.
// *amqp.Client satisfies it.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, transactionID, storeID, action string) error
}

// LedgerService is the application core behind the HTTP handlers: writes go
// to SQLite first and publish an event best-effort, reads aggregate over
// calendar-date windows.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	publisher  EventPublisher
	structured *applog.StructuredLogger
}

func NewLedgerService(storage *storage.SQLiteRepository, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		storage:   storage,
		publisher: publisher,
		structured: applog.NewStructuredLogger(applog.New(applog.Config{
			Component: applog.ComponentLedger,
			Handler:   slog.Default().Handler(),
		})),
	}
}

// CreateTransaction validates, persists and announces a new transaction.
// The event publish is best-effort: a broker outage never fails the write.
func (s *LedgerService) CreateTransaction(ctx context.Context, storeID string, kind core.Kind, amount core.Money, occurredOn core.Date, description, category string) (core.Transaction, error) {
	tx, err := core.NewTransaction(storeID, kind, amount, occurredOn, description, category)
	if err != nil {
		return core.Transaction{}, err
	}

	// The schema alone does not reject orphan transactions.
	if _, err := s.storage.GetStore(ctx, tx.StoreID); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.storage.InsertTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publishEvent(ctx, saved.ID, saved.StoreID, amqp.ActionCreated)
	s.structured.LogTransactionCreated(ctx, saved.ID, saved.StoreID, string(saved.Kind), saved.Amount.Cents)
	return saved, nil
}

// DeleteTransaction removes a transaction and announces the deletion.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publishEvent(ctx, tx.ID, tx.StoreID, amqp.ActionDeleted)
	s.structured.LogTransactionDeleted(ctx, tx.ID, tx.StoreID)
	return nil
}

func (s *LedgerService) publishEvent(ctx context.Context, transactionID, storeID, action string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping event",
			"transaction_id", transactionID, "action", action)
		return
	}
	if err := s.publisher.PublishTransactionEvent(ctx, transactionID, storeID, action); err != nil {
		// Local write already succeeded; the worker's pending scan
		// covers the missed event.
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", transactionID, "action", action, "error", err)
	}
}

// GetTransaction looks a transaction up by ID.
func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

// CreateStore registers a new store.
func (s *LedgerService) CreateStore(ctx context.Context, name string) (core.Store, error) {
	return s.storage.CreateStore(ctx, name)
}

// GetStore looks a store up by ID.
func (s *LedgerService) GetStore(ctx context.Context, id string) (core.Store, error) {
	return s.storage.GetStore(ctx, id)
}

// windowTransactions fetches both kinds for a window, one range query per
// kind, concurrently.
func (s *LedgerService) windowTransactions(ctx context.Context, storeID string, w core.DateWindow) ([]core.Transaction, error) {
	var inflows, outflows []core.Transaction

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inflows, err = s.storage.ListTransactions(gctx, storeID, core.Inflow, w.Start, w.End)
		return err
	})
	g.Go(func() error {
		var err error
		outflows, err = s.storage.ListTransactions(gctx, storeID, core.Outflow, w.Start, w.End)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch window transactions: %w", err)
	}

	return append(inflows, outflows...), nil
}

// DailySummary returns the inflow/outflow/balance of a single calendar day.
func (s *LedgerService) DailySummary(ctx context.Context, storeID string, day core.Date) (core.WindowSummary, error) {
	txs, err := s.windowTransactions(ctx, storeID, core.SingleDay(day))
	if err != nil {
		return core.WindowSummary{}, err
	}
	return core.SummarizeTransactions(txs), nil
}

// Series returns the dense per-day buckets of a window, zero-filled on days
// without movement.
func (s *LedgerService) Series(ctx context.Context, storeID string, w core.DateWindow) ([]core.DailyBucket, error) {
	txs, err := s.windowTransactions(ctx, storeID, w)
	if err != nil {
		return nil, err
	}
	return core.BuildSeries(w, core.Aggregate(txs, w.Dates)), nil
}

// WindowSummary totals a window without materializing per-day buckets.
func (s *LedgerService) WindowSummary(ctx context.Context, storeID string, w core.DateWindow) (core.WindowSummary, error) {
	txs, err := s.windowTransactions(ctx, storeID, w)
	if err != nil {
		return core.WindowSummary{}, err
	}
	return core.SummarizeTransactions(txs), nil
}

// MonthSummary totals one calendar month.
func (s *LedgerService) MonthSummary(ctx context.Context, storeID string, year, month int) (core.WindowSummary, error) {
	w, err := core.CalendarMonth(year, month)
	if err != nil {
		return core.WindowSummary{}, err
	}
	return s.WindowSummary(ctx, storeID, w)
}

// Recent returns the latest recorded transactions of one kind.
func (s *LedgerService) Recent(ctx context.Context, storeID string, kind core.Kind, limit int) ([]core.Transaction, error) {
	return s.storage.RecentTransactions(ctx, storeID, kind, limit)
}

// Export renders the CSV report of a window and returns its suggested
// filename alongside the bytes.
func (s *LedgerService) Export(ctx context.Context, storeID string, w core.DateWindow, requireRows bool) (string, []byte, error) {
	store, err := s.storage.GetStore(ctx, storeID)
	if err != nil {
		return "", nil, err
	}

	txs, err := s.windowTransactions(ctx, storeID, w)
	if err != nil {
		return "", nil, err
	}

	rep := report.Report{
		StoreName:    store.Name,
		Window:       w,
		Transactions: txs,
		Summary:      core.SummarizeTransactions(txs),
		RequireRows:  requireRows,
	}
	out, err := report.Render(rep, report.DefaultLabels())
	if err != nil {
		return "", nil, err
	}

	s.structured.LogReportExported(ctx, storeID, w.Start.String(), w.End.String(), len(txs))

	return report.Filename(w), []byte(out), nil
}

// Dashboard composes the landing-page view for a store, fetching its parts
// concurrently.
type Dashboard struct {
	Store          core.Store
	Today          core.WindowSummary
	TrailingWeek   []core.DailyBucket
	Month          core.WindowSummary
	RecentInflows  []core.Transaction
	RecentOutflows []core.Transaction
	Totals         core.WindowSummary
}

const recentListSize = 10

func (s *LedgerService) Dashboard(ctx context.Context, storeID string, today core.Date) (Dashboard, error) {
	week, err := core.TrailingDays(today, 7)
	if err != nil {
		return Dashboard{}, err
	}

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Store, err = s.storage.GetStore(gctx, storeID)
		return err
	})
	g.Go(func() error {
		var err error
		d.Today, err = s.DailySummary(gctx, storeID, today)
		return err
	})
	g.Go(func() error {
		var err error
		d.TrailingWeek, err = s.Series(gctx, storeID, week)
		return err
	})
	g.Go(func() error {
		var err error
		d.Month, err = s.MonthSummary(gctx, storeID, today.Year, today.Month)
		return err
	})
	g.Go(func() error {
		var err error
		d.RecentInflows, err = s.Recent(gctx, storeID, core.Inflow, recentListSize)
		return err
	})
	g.Go(func() error {
		var err error
		d.RecentOutflows, err = s.Recent(gctx, storeID, core.Outflow, recentListSize)
		return err
	})
	g.Go(func() error {
		var err error
		d.Totals, err = s.storage.StoreTotals(gctx, storeID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("compose dashboard: %w", err)
	}

	return d, nil
}

// Close closes both storage and AMQP connections.
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if closer, ok := s.publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
