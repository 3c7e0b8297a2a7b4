package http

import (
	"errors"
	"log/slog"
	"net/http"

	"lojista/internal/core"
	"lojista/internal/report"
)

type summaryResponse struct {
	InflowCents  int64  `json:"inflow_cents"`
	OutflowCents int64  `json:"outflow_cents"`
	BalanceCents int64  `json:"balance_cents"`
	Inflow       string `json:"inflow"`
	Outflow      string `json:"outflow"`
	Balance      string `json:"balance"`
}

func toSummaryResponse(s core.WindowSummary) summaryResponse {
	return summaryResponse{
		InflowCents:  s.Inflow.Cents,
		OutflowCents: s.Outflow.Cents,
		BalanceCents: s.Balance.Cents,
		Inflow:       formatReais(s.Inflow.Cents),
		Outflow:      formatReais(s.Outflow.Cents),
		Balance:      formatReais(s.Balance.Cents),
	}
}

type bucketResponse struct {
	Date         string `json:"date"`
	InflowCents  int64  `json:"inflow_cents"`
	OutflowCents int64  `json:"outflow_cents"`
}

func toBucketResponses(buckets []core.DailyBucket) []bucketResponse {
	out := make([]bucketResponse, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketResponse{
			Date:         b.Date.String(),
			InflowCents:  b.Inflow.Cents,
			OutflowCents: b.Outflow.Cents,
		})
	}
	return out
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store")

	day, err := referenceDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := "summary:" + storeID + ":day:" + day.String()
	if cached, ok := s.summaryCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, toSummaryResponse(cached))
		return
	}

	sum, err := s.ledger.DailySummary(r.Context(), storeID, day)
	if err != nil {
		slog.ErrorContext(r.Context(), "Daily summary failed",
			"store_id", storeID, "date", day.String(), "error", err)
		writeError(w, statusForError(err), "failed to compute summary")
		return
	}

	s.summaryCache.Set(cacheKey, sum)
	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store")

	ref, err := referenceDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	year, month, err := parseYearMonth(r, ref)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := "summary:" + storeID + ":month:" + monthKey(year, month)
	if cached, ok := s.summaryCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, toSummaryResponse(cached))
		return
	}

	sum, err := s.ledger.MonthSummary(r.Context(), storeID, year, month)
	if err != nil {
		if errors.Is(err, core.ErrInvalidWindow) {
			writeError(w, http.StatusBadRequest, "invalid year/month")
			return
		}
		slog.ErrorContext(r.Context(), "Month summary failed",
			"store_id", storeID, "year", year, "month", month, "error", err)
		writeError(w, statusForError(err), "failed to compute summary")
		return
	}

	s.summaryCache.Set(cacheKey, sum)
	writeJSON(w, http.StatusOK, toSummaryResponse(sum))
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store")

	window, err := requestWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := "series:" + storeID + ":" + window.Start.String() + ":" + window.End.String()
	if cached, ok := s.seriesCache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, map[string]any{"series": toBucketResponses(cached)})
		return
	}

	series, err := s.ledger.Series(r.Context(), storeID, window)
	if err != nil {
		slog.ErrorContext(r.Context(), "Series failed",
			"store_id", storeID,
			"start", window.Start.String(),
			"end", window.End.String(),
			"error", err)
		writeError(w, statusForError(err), "failed to compute series")
		return
	}

	s.seriesCache.Set(cacheKey, series)
	writeJSON(w, http.StatusOK, map[string]any{"series": toBucketResponses(series)})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store")

	window, err := requestWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	requireRows := r.URL.Query().Get("require_rows") == "true"

	filename, data, err := s.ledger.Export(r.Context(), storeID, window, requireRows)
	if err != nil {
		if errors.Is(err, report.ErrEmptyWindow) {
			writeError(w, http.StatusUnprocessableEntity, "no transactions in the requested window")
			return
		}
		slog.ErrorContext(r.Context(), "Export failed",
			"store_id", storeID,
			"start", window.Start.String(),
			"end", window.End.String(),
			"error", err)
		writeError(w, statusForError(err), "failed to export report")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type dashboardResponse struct {
	Store struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"store"`
	Today          summaryResponse       `json:"today"`
	TrailingWeek   []bucketResponse      `json:"trailing_week"`
	Month          summaryResponse       `json:"month"`
	Totals         summaryResponse       `json:"totals"`
	RecentInflows  []transactionResponse `json:"recent_inflows"`
	RecentOutflows []transactionResponse `json:"recent_outflows"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store")

	today, err := referenceDate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := s.ledger.Dashboard(r.Context(), storeID, today)
	if err != nil {
		slog.ErrorContext(r.Context(), "Dashboard failed",
			"store_id", storeID, "date", today.String(), "error", err)
		writeError(w, statusForError(err), "failed to compose dashboard")
		return
	}

	var resp dashboardResponse
	resp.Store.ID = d.Store.ID
	resp.Store.Name = d.Store.Name
	resp.Today = toSummaryResponse(d.Today)
	resp.TrailingWeek = toBucketResponses(d.TrailingWeek)
	resp.Month = toSummaryResponse(d.Month)
	resp.Totals = toSummaryResponse(d.Totals)
	resp.RecentInflows = make([]transactionResponse, 0, len(d.RecentInflows))
	for _, t := range d.RecentInflows {
		resp.RecentInflows = append(resp.RecentInflows, toTransactionResponse(t))
	}
	resp.RecentOutflows = make([]transactionResponse, 0, len(d.RecentOutflows))
	for _, t := range d.RecentOutflows {
		resp.RecentOutflows = append(resp.RecentOutflows, toTransactionResponse(t))
	}

	writeJSON(w, http.StatusOK, resp)
}
