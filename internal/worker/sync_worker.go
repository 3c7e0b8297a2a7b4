// Package worker keeps the backup ledger in step with SQLite: it consumes
// transaction events, sweeps rows that missed their event, and reconciles
// the store_totals view against full aggregation.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lojista/internal/amqp"
	"lojista/internal/core"
	"lojista/internal/sheets"
	"lojista/internal/storage"
)

type SyncWorker struct {
	storage   *storage.SQLiteRepository
	backup    sheets.LedgerWriter
	batchSize int
}

func NewSyncWorker(storage *storage.SQLiteRepository, backup sheets.LedgerWriter, batchSize int) *SyncWorker {
	return &SyncWorker{
		storage:   storage,
		backup:    backup,
		batchSize: batchSize,
	}
}

// HandleEvent processes one transaction event from AMQP.
func (w *SyncWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"transaction_id", msg.TransactionID,
		"action", msg.Action)

	switch msg.Action {
	case amqp.ActionCreated:
		tx, err := w.storage.GetTransaction(ctx, msg.TransactionID)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted before the event arrived; the delete event will
			// clean the backup if a row ever made it there.
			slog.WarnContext(ctx, "Transaction gone before sync, skipping",
				"transaction_id", msg.TransactionID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}
		return w.syncTransaction(ctx, tx)

	case amqp.ActionDeleted:
		if err := w.backup.Remove(ctx, msg.TransactionID); err != nil {
			return fmt.Errorf("remove backup row: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown event action %q", msg.Action)
	}
}

func (w *SyncWorker) syncTransaction(ctx context.Context, tx core.Transaction) error {
	ref, err := w.backup.Append(ctx, tx)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, tx.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error",
				"transaction_id", tx.ID, "error", markErr)
		}
		return fmt.Errorf("append to backup ledger: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, tx.ID); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}

	slog.InfoContext(ctx, "Transaction synced to backup ledger",
		"transaction_id", tx.ID,
		"row_ref", ref)
	return nil
}

// ProcessPending sweeps transactions that never got synced, the safety net
// for lost events.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.PendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, tx := range pending {
		if err := w.syncTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending transaction",
				"transaction_id", tx.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck syncs a larger pending batch once on worker startup, to
// recover from downtime.
func (w *SyncWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.PendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(pending))

	synced := 0
	failed := 0
	for _, tx := range pending {
		if err := w.syncTransaction(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction during startup",
				"transaction_id", tx.ID, "error", err)
			failed++
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", synced,
		"errors", failed)

	return nil
}

// Reconcile compares the store_totals view against full aggregation over
// each store's transactions. The two must always agree; drift means a
// corrupted view or a write that bypassed the schema, and is logged loudly
// rather than silently repaired.
func (w *SyncWorker) Reconcile(ctx context.Context) error {
	storeIDs, err := w.storage.ListStoreIDs(ctx)
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}

	drifted := 0
	for _, storeID := range storeIDs {
		viewTotals, err := w.storage.StoreTotals(ctx, storeID)
		if err != nil {
			return fmt.Errorf("store totals for %s: %w", storeID, err)
		}

		txs, err := w.storage.ListStoreTransactions(ctx, storeID)
		if err != nil {
			return fmt.Errorf("list transactions for %s: %w", storeID, err)
		}

		if computed := core.SummarizeTransactions(txs); computed != viewTotals {
			drifted++
			slog.ErrorContext(ctx, "Store totals drift detected",
				"store_id", storeID,
				"view_inflow_cents", viewTotals.Inflow.Cents,
				"view_outflow_cents", viewTotals.Outflow.Cents,
				"computed_inflow_cents", computed.Inflow.Cents,
				"computed_outflow_cents", computed.Outflow.Cents)
		}
	}

	slog.InfoContext(ctx, "Reconciliation completed",
		"stores", len(storeIDs),
		"drifted", drifted)

	return nil
}
