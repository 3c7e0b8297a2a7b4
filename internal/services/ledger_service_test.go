package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"lojista/internal/core"
	"lojista/internal/storage"
)

type fakePublisher struct {
	events []string
	err    error
}

func (f *fakePublisher) PublishTransactionEvent(_ context.Context, transactionID, storeID, action string) error {
	f.events = append(f.events, action+":"+transactionID+"@"+storeID)
	return f.err
}

func newTestService(t *testing.T) (*LedgerService, *fakePublisher) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "lojista.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	pub := &fakePublisher{}
	return NewLedgerService(repo, pub), pub
}

func mustCreate(t *testing.T, svc *LedgerService, storeID string, kind core.Kind, cents int64, day core.Date) core.Transaction {
	t.Helper()
	tx, err := svc.CreateTransaction(context.Background(), storeID, kind, core.Money{Cents: cents}, day, "teste", "mercadoria")
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	return tx
}

func TestCreateTransactionPublishesEvent(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	store, err := svc.CreateStore(ctx, "Padaria")
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}

	tx := mustCreate(t, svc, store.ID, core.Inflow, 1000, core.NewDate(2024, 3, 1))

	if len(pub.events) != 1 {
		t.Fatalf("got %d events, want 1", len(pub.events))
	}
	want := "created:" + tx.ID + "@" + store.ID
	if pub.events[0] != want {
		t.Errorf("event = %q, want %q", pub.events[0], want)
	}
}

func TestCreateTransactionSurvivesPublishFailure(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	store, err := svc.CreateStore(ctx, "Padaria")
	if err != nil {
		t.Fatalf("CreateStore() error = %v", err)
	}

	pub.err = errors.New("broker down")
	tx, err := svc.CreateTransaction(ctx, store.ID, core.Outflow, core.Money{Cents: 500},
		core.NewDate(2024, 3, 2), "aluguel", "fixo")
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v, want nil on publish failure", err)
	}

	// The write must be durable regardless of the broker.
	sum, err := svc.DailySummary(ctx, store.ID, core.NewDate(2024, 3, 2))
	if err != nil {
		t.Fatalf("DailySummary() error = %v", err)
	}
	if sum.Outflow.Cents != 500 {
		t.Errorf("outflow = %d, want 500 (transaction %s lost)", sum.Outflow.Cents, tx.ID)
	}
}

func TestDeleteTransactionPublishesEvent(t *testing.T) {
	svc, pub := newTestService(t)
	ctx := context.Background()

	store, _ := svc.CreateStore(ctx, "Loja")
	tx := mustCreate(t, svc, store.ID, core.Inflow, 100, core.NewDate(2024, 3, 1))
	pub.events = nil

	if err := svc.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if len(pub.events) != 1 || !strings.HasPrefix(pub.events[0], "deleted:") {
		t.Errorf("events = %v, want one deleted event", pub.events)
	}

	if err := svc.DeleteTransaction(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteTransaction(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSeriesZeroFillsQuietDays(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	store, _ := svc.CreateStore(ctx, "Loja")
	mustCreate(t, svc, store.ID, core.Inflow, 1000, core.NewDate(2024, 3, 1))
	mustCreate(t, svc, store.ID, core.Outflow, 300, core.NewDate(2024, 3, 5))

	week, err := core.TrailingDays(core.NewDate(2024, 3, 7), 7)
	if err != nil {
		t.Fatalf("TrailingDays() error = %v", err)
	}

	series, err := svc.Series(ctx, store.ID, week)
	if err != nil {
		t.Fatalf("Series() error = %v", err)
	}
	if len(series) != 7 {
		t.Fatalf("series length = %d, want 7", len(series))
	}
	if series[0].Date != core.NewDate(2024, 3, 1) {
		t.Errorf("series starts at %v, want 2024-03-01", series[0].Date)
	}
	if series[0].Inflow.Cents != 1000 {
		t.Errorf("day 1 inflow = %d, want 1000", series[0].Inflow.Cents)
	}
	if series[4].Outflow.Cents != 300 {
		t.Errorf("day 5 outflow = %d, want 300", series[4].Outflow.Cents)
	}
	for _, i := range []int{1, 2, 3, 5, 6} {
		if series[i].Inflow.Cents != 0 || series[i].Outflow.Cents != 0 {
			t.Errorf("quiet day %v has movement: %+v", series[i].Date, series[i])
		}
	}
}

func TestMonthSummary(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	store, _ := svc.CreateStore(ctx, "Loja")
	mustCreate(t, svc, store.ID, core.Inflow, 10000, core.NewDate(2024, 2, 1))
	mustCreate(t, svc, store.ID, core.Inflow, 5000, core.NewDate(2024, 2, 29))
	mustCreate(t, svc, store.ID, core.Outflow, 20000, core.NewDate(2024, 2, 15))
	mustCreate(t, svc, store.ID, core.Inflow, 999, core.NewDate(2024, 3, 1))

	sum, err := svc.MonthSummary(ctx, store.ID, 2024, 2)
	if err != nil {
		t.Fatalf("MonthSummary() error = %v", err)
	}
	if sum.Inflow.Cents != 15000 || sum.Outflow.Cents != 20000 {
		t.Errorf("summary = %+v, want inflow 15000, outflow 20000", sum)
	}
	if sum.Balance.Cents != -5000 {
		t.Errorf("balance = %d, want -5000 (never clamped)", sum.Balance.Cents)
	}

	if _, err := svc.MonthSummary(ctx, store.ID, 2024, 13); !errors.Is(err, core.ErrInvalidWindow) {
		t.Errorf("MonthSummary(month 13) error = %v, want ErrInvalidWindow", err)
	}
}

func TestExport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	store, _ := svc.CreateStore(ctx, "Padaria Central")
	mustCreate(t, svc, store.ID, core.Inflow, 12345, core.NewDate(2024, 3, 3))

	month, err := core.CalendarMonth(2024, 3)
	if err != nil {
		t.Fatalf("CalendarMonth() error = %v", err)
	}

	name, data, err := svc.Export(ctx, store.ID, month, false)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if name != "relatorio_2024-03-01_2024-03-31.csv" {
		t.Errorf("filename = %q", name)
	}
	out := string(data)
	if !strings.Contains(out, "Padaria Central") {
		t.Errorf("report missing store name:\n%s", out)
	}
	if !strings.Contains(out, "venda;03/03/2024;123.45") {
		t.Errorf("report missing transaction row:\n%s", out)
	}

	if _, _, err := svc.Export(ctx, "missing", month, false); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Export(missing store) error = %v, want ErrNotFound", err)
	}
}

func TestDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	store, _ := svc.CreateStore(ctx, "Loja")
	mustCreate(t, svc, store.ID, core.Inflow, 7000, core.NewDate(2024, 3, 10))
	mustCreate(t, svc, store.ID, core.Outflow, 2000, core.NewDate(2024, 3, 9))

	d, err := svc.Dashboard(ctx, store.ID, core.NewDate(2024, 3, 10))
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if d.Store.Name != "Loja" {
		t.Errorf("store name = %q", d.Store.Name)
	}
	if d.Today.Inflow.Cents != 7000 {
		t.Errorf("today inflow = %d, want 7000", d.Today.Inflow.Cents)
	}
	if len(d.TrailingWeek) != 7 {
		t.Errorf("trailing week length = %d, want 7", len(d.TrailingWeek))
	}
	if d.Month.Balance.Cents != 5000 {
		t.Errorf("month balance = %d, want 5000", d.Month.Balance.Cents)
	}
	if d.Totals.Balance.Cents != 5000 {
		t.Errorf("lifetime balance = %d, want 5000", d.Totals.Balance.Cents)
	}
	if len(d.RecentInflows) != 1 || len(d.RecentOutflows) != 1 {
		t.Errorf("recent listings = %d inflows, %d outflows, want 1 each",
			len(d.RecentInflows), len(d.RecentOutflows))
	}
}
