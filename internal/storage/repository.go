// Package storage is the SQLite-backed transaction repository: the durable
// store of transactions and stores, queryable by store and date range.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lojista/internal/core"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateStore registers a new store and assigns its ID.
func (r *SQLiteRepository) CreateStore(ctx context.Context, name string) (core.Store, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Store{}, core.ErrEmptyName
	}

	store := core.Store{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stores (id, name, created_at) VALUES (?, ?, ?)`,
		store.ID, store.Name, store.CreatedAt)
	if err != nil {
		return core.Store{}, fmt.Errorf("insert store: %w", err)
	}

	slog.InfoContext(ctx, "Store created", "store_id", store.ID, "name", store.Name)
	return store, nil
}

// GetStore looks a store up by ID.
func (r *SQLiteRepository) GetStore(ctx context.Context, id string) (core.Store, error) {
	var store core.Store
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM stores WHERE id = ?`, id).
		Scan(&store.ID, &store.Name, &store.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Store{}, fmt.Errorf("store %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Store{}, fmt.Errorf("get store: %w", err)
	}
	return store, nil
}

// ListStoreIDs returns every registered store ID, for reconciliation runs.
func (r *SQLiteRepository) ListStoreIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM stores ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list store ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan store id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertTransaction validates and persists a transaction, assigning its ID
// and recording timestamp.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.RecordedAt.IsZero() {
		t.RecordedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, store_id, kind, amount_cents, occurred_on, recorded_at, description, category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.StoreID, string(t.Kind), t.Amount.Cents, t.OccurredOn.String(),
		t.RecordedAt, t.Description, t.Category)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"store_id", t.StoreID,
		"kind", string(t.Kind),
		"amount_cents", t.Amount.Cents,
		"occurred_on", t.OccurredOn.String())

	return t, nil
}

// DeleteTransaction removes a transaction by ID.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}

// GetTransaction fetches a single transaction by ID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, store_id, kind, amount_cents, occurred_on, recorded_at, description, category
		 FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions fetches every transaction of a store for one kind inside
// an inclusive occurrence-date range, in a single query. Windows of any
// length cost one round trip per kind; nothing caps or truncates the
// result set.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, storeID string, kind core.Kind, from, to core.Date) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, store_id, kind, amount_cents, occurred_on, recorded_at, description, category
		 FROM transactions
		 WHERE store_id = ? AND kind = ? AND occurred_on >= ? AND occurred_on <= ?
		 ORDER BY occurred_on, recorded_at`,
		storeID, string(kind), from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListStoreTransactions fetches a store's full history, oldest first.
func (r *SQLiteRepository) ListStoreTransactions(ctx context.Context, storeID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, store_id, kind, amount_cents, occurred_on, recorded_at, description, category
		 FROM transactions WHERE store_id = ?
		 ORDER BY occurred_on, recorded_at`, storeID)
	if err != nil {
		return nil, fmt.Errorf("list store transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// RecentTransactions returns the latest records of one kind for display
// listings, newest first by recording time.
func (r *SQLiteRepository) RecentTransactions(ctx context.Context, storeID string, kind core.Kind, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, store_id, kind, amount_cents, occurred_on, recorded_at, description, category
		 FROM transactions
		 WHERE store_id = ? AND kind = ?
		 ORDER BY recorded_at DESC LIMIT ?`,
		storeID, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// StoreTotals reads the running per-store totals view. A store with no
// transactions yet has zero totals, not an error.
func (r *SQLiteRepository) StoreTotals(ctx context.Context, storeID string) (core.WindowSummary, error) {
	var s core.WindowSummary
	err := r.db.QueryRowContext(ctx,
		`SELECT inflow_cents, outflow_cents, balance_cents FROM store_totals WHERE store_id = ?`,
		storeID).Scan(&s.Inflow.Cents, &s.Outflow.Cents, &s.Balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WindowSummary{}, nil
	}
	if err != nil {
		return core.WindowSummary{}, fmt.Errorf("store totals: %w", err)
	}
	return s, nil
}

// RangeTotals is the repository-side aggregate over an inclusive date
// range, equivalent to fetching the rows and summarizing client-side.
func (r *SQLiteRepository) RangeTotals(ctx context.Context, storeID string, from, to core.Date) (core.WindowSummary, error) {
	var s core.WindowSummary
	err := r.db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN kind = 'venda' THEN amount_cents END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'despesa' THEN amount_cents END), 0)
		 FROM transactions
		 WHERE store_id = ? AND occurred_on >= ? AND occurred_on <= ?`,
		storeID, from.String(), to.String()).Scan(&s.Inflow.Cents, &s.Outflow.Cents)
	if err != nil {
		return core.WindowSummary{}, fmt.Errorf("range totals: %w", err)
	}
	s.Balance = s.Inflow.Sub(s.Outflow)
	return s, nil
}

// PendingSync returns transactions not yet mirrored to the backup ledger.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, store_id, kind, amount_cents, occurred_on, recorded_at, description, category
		 FROM transactions WHERE synced = 0
		 ORDER BY recorded_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending sync transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// MarkSynced records that a transaction reached the backup ledger.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET synced = 1, sync_error = 0 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	return nil
}

// MarkSyncError flags a transaction whose backup append failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_error = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t        core.Transaction
		kind     string
		occurred string
	)
	if err := row.Scan(&t.ID, &t.StoreID, &kind, &t.Amount.Cents, &occurred,
		&t.RecordedAt, &t.Description, &t.Category); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)

	d, err := core.ParseDate(occurred)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_on %q: %w", occurred, err)
	}
	t.OccurredOn = d
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}
