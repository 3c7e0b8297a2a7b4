package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"lojista/internal/services"
	"lojista/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "lojista.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}

	srv := NewServer(":0", services.NewLedgerService(repo, nil))
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		repo.Close()
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func createStore(t *testing.T, srv *Server, name string) string {
	t.Helper()
	rec := doJSON(t, srv, "POST", "/api/stores", map[string]string{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create store status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[map[string]any](t, rec)["id"].(string)
}

func createTransaction(t *testing.T, srv *Server, storeID, kind, amount, day string) map[string]any {
	t.Helper()
	rec := doJSON(t, srv, "POST", "/api/stores/"+storeID+"/transactions", map[string]string{
		"kind":        kind,
		"amount":      amount,
		"occurred_on": day,
		"description": "teste",
		"category":    "mercadoria",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[map[string]any](t, rec)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		srv.Server.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestCreateTransactionEndpoint(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Padaria Central")

	tx := createTransaction(t, srv, storeID, "venda", "10,50", "2024-03-05")
	if tx["kind"] != "venda" {
		t.Errorf("kind = %v, want venda", tx["kind"])
	}
	if tx["amount_cents"].(float64) != 1050 {
		t.Errorf("amount_cents = %v, want 1050", tx["amount_cents"])
	}
	if tx["occurred_on"] != "2024-03-05" {
		t.Errorf("occurred_on = %v", tx["occurred_on"])
	}
	// Inflows never carry a category.
	if _, ok := tx["category"]; ok {
		t.Errorf("category should be omitted for venda, got %v", tx["category"])
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Loja")

	tests := []struct {
		name string
		body map[string]string
	}{
		{"bad kind", map[string]string{"kind": "transferencia", "amount": "10,00", "occurred_on": "2024-03-05"}},
		{"negative amount", map[string]string{"kind": "venda", "amount": "-5,00", "occurred_on": "2024-03-05"}},
		{"bad amount", map[string]string{"kind": "venda", "amount": "dez", "occurred_on": "2024-03-05"}},
		{"bad date", map[string]string{"kind": "venda", "amount": "10,00", "occurred_on": "05/03/2024"}},
		{"impossible date", map[string]string{"kind": "venda", "amount": "10,00", "occurred_on": "2024-02-30"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, "POST", "/api/stores/"+storeID+"/transactions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}

	// Unknown store is a 404, not a silent write.
	rec := doJSON(t, srv, "POST", "/api/stores/missing/transactions", map[string]string{
		"kind": "venda", "amount": "10,00", "occurred_on": "2024-03-05",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown store (body %s)", rec.Code, rec.Body.String())
	}
}

func TestDailySummaryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Loja")

	createTransaction(t, srv, storeID, "venda", "100,00", "2024-03-05")
	createTransaction(t, srv, storeID, "venda", "50,00", "2024-03-05")
	createTransaction(t, srv, storeID, "despesa", "30,00", "2024-03-05")
	createTransaction(t, srv, storeID, "venda", "999,99", "2024-03-06")

	rec := doJSON(t, srv, "GET", "/api/stores/"+storeID+"/summary/day?date=2024-03-05", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	sum := decode[summaryResponse](t, rec)
	if sum.InflowCents != 15000 || sum.OutflowCents != 3000 || sum.BalanceCents != 12000 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Balance != "R$ 120,00" {
		t.Errorf("balance formatted = %q, want R$ 120,00", sum.Balance)
	}
}

func TestSummaryCacheInvalidatedByWrite(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Loja")
	createTransaction(t, srv, storeID, "venda", "10,00", "2024-03-05")

	// Prime the cache.
	rec := doJSON(t, srv, "GET", "/api/stores/"+storeID+"/summary/day?date=2024-03-05", nil)
	if got := decode[summaryResponse](t, rec).InflowCents; got != 1000 {
		t.Fatalf("inflow = %d, want 1000", got)
	}

	// A new write must be visible immediately.
	createTransaction(t, srv, storeID, "venda", "5,00", "2024-03-05")
	rec = doJSON(t, srv, "GET", "/api/stores/"+storeID+"/summary/day?date=2024-03-05", nil)
	if got := decode[summaryResponse](t, rec).InflowCents; got != 1500 {
		t.Errorf("inflow after write = %d, want 1500 (stale cache)", got)
	}
}

func TestMonthSummaryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Loja")

	createTransaction(t, srv, storeID, "venda", "100,00", "2024-02-01")
	createTransaction(t, srv, storeID, "despesa", "250,00", "2024-02-29")
	createTransaction(t, srv, storeID, "venda", "77,00", "2024-03-01")

	rec := doJSON(t, srv, "GET", "/api/stores/"+storeID+"/summary/month?year=2024&month=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	sum := decode[summaryResponse](t, rec)
	if sum.InflowCents != 10000 || sum.OutflowCents != 25000 || sum.BalanceCents != -15000 {
		t.Errorf("summary = %+v, want inflow 10000, outflow 25000, balance -15000", sum)
	}

	rec = doJSON(t, srv, "GET", "/api/stores/"+storeID+"/summary/month?year=2024&month=13", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("month 13 status = %d, want 400", rec.Code)
	}
}

func TestSeriesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Loja")

	createTransaction(t, srv, storeID, "venda", "10,00", "2024-03-01")
	createTransaction(t, srv, storeID, "despesa", "4,00", "2024-03-07")

	rec := doJSON(t, srv, "GET", "/api/stores/"+storeID+"/series?window=week&date=2024-03-07", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[map[string][]bucketResponse](t, rec)
	series := resp["series"]
	if len(series) != 7 {
		t.Fatalf("series length = %d, want 7", len(series))
	}
	if series[0].Date != "2024-03-01" || series[6].Date != "2024-03-07" {
		t.Errorf("series bounds = %s..%s", series[0].Date, series[6].Date)
	}
	if series[0].InflowCents != 1000 {
		t.Errorf("first day inflow = %d, want 1000", series[0].InflowCents)
	}
	if series[6].OutflowCents != 400 {
		t.Errorf("last day outflow = %d, want 400", series[6].OutflowCents)
	}
	for i := 1; i < 6; i++ {
		if series[i].InflowCents != 0 || series[i].OutflowCents != 0 {
			t.Errorf("day %s should be zero-filled: %+v", series[i].Date, series[i])
		}
	}
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Padaria Central")

	createTransaction(t, srv, storeID, "venda", "123,45", "2024-03-03")
	createTransaction(t, srv, storeID, "despesa", "45,00", "2024-03-10")

	rec := doJSON(t, srv, "GET", "/api/stores/"+storeID+"/export?window=month&year=2024&month=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	cd := rec.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "relatorio_2024-03-01_2024-03-31.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Padaria Central") {
		t.Errorf("report missing store name:\n%s", body)
	}
	if !strings.Contains(body, "venda;03/03/2024;123.45") {
		t.Errorf("report missing sale row:\n%s", body)
	}
	if !strings.Contains(body, "despesa;10/03/2024;45.00;teste;mercadoria") {
		t.Errorf("report missing expense row:\n%s", body)
	}
}

func TestExportRequireRowsOnEmptyWindow(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Loja")

	rec := doJSON(t, srv, "GET", "/api/stores/"+storeID+"/export?window=month&year=2024&month=3&require_rows=true", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}

	// Without require_rows an empty window still yields a header-only report.
	rec = doJSON(t, srv, "GET", "/api/stores/"+storeID+"/export?window=month&year=2024&month=3", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestDeleteTransactionEndpoint(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Loja")
	tx := createTransaction(t, srv, storeID, "venda", "10,00", "2024-03-05")
	id := tx["id"].(string)

	rec := doJSON(t, srv, "DELETE", "/api/transactions/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, "DELETE", "/api/transactions/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, srv, "GET", "/api/stores/"+storeID+"/summary/day?date=2024-03-05", nil)
	if got := decode[summaryResponse](t, rec).InflowCents; got != 0 {
		t.Errorf("inflow after delete = %d, want 0", got)
	}
}

func TestListTransactionsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Loja")

	for i := 1; i <= 3; i++ {
		createTransaction(t, srv, storeID, "despesa", "10,00", fmt.Sprintf("2024-03-%02d", i))
	}

	rec := doJSON(t, srv, "GET", "/api/stores/"+storeID+"/transactions?kind=despesa&limit=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[map[string][]transactionResponse](t, rec)
	if len(resp["transactions"]) != 2 {
		t.Errorf("got %d transactions, want 2", len(resp["transactions"]))
	}

	rec = doJSON(t, srv, "GET", "/api/stores/"+storeID+"/transactions?kind=cartao", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad kind status = %d, want 400", rec.Code)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	srv := newTestServer(t)
	storeID := createStore(t, srv, "Padaria")

	createTransaction(t, srv, storeID, "venda", "70,00", "2024-03-10")
	createTransaction(t, srv, storeID, "despesa", "20,00", "2024-03-09")

	rec := doJSON(t, srv, "GET", "/api/stores/"+storeID+"/dashboard?date=2024-03-10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	d := decode[dashboardResponse](t, rec)
	if d.Store.Name != "Padaria" {
		t.Errorf("store name = %q", d.Store.Name)
	}
	if d.Today.InflowCents != 7000 {
		t.Errorf("today inflow = %d, want 7000", d.Today.InflowCents)
	}
	if len(d.TrailingWeek) != 7 {
		t.Errorf("trailing week = %d days, want 7", len(d.TrailingWeek))
	}
	if d.Month.BalanceCents != 5000 {
		t.Errorf("month balance = %d, want 5000", d.Month.BalanceCents)
	}
	if d.Totals.BalanceCents != 5000 {
		t.Errorf("lifetime balance = %d, want 5000", d.Totals.BalanceCents)
	}
}
