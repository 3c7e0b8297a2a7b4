package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lojista/internal/core"
)

type transactionResponse struct {
	ID          string    `json:"id"`
	StoreID     string    `json:"store_id"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amount_cents"`
	Amount      string    `json:"amount"`
	OccurredOn  string    `json:"occurred_on"`
	RecordedAt  time.Time `json:"recorded_at"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		StoreID:     t.StoreID,
		Kind:        string(t.Kind),
		AmountCents: t.Amount.Cents,
		Amount:      formatReais(t.Amount.Cents),
		OccurredOn:  t.OccurredOn.String(),
		RecordedAt:  t.RecordedAt,
		Description: t.Description,
		Category:    t.Category,
	}
}

type createStoreRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store, err := s.ledger.CreateStore(r.Context(), sanitizeInput(req.Name))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         store.ID,
		"name":       store.Name,
		"created_at": store.CreatedAt,
	})
}

type createTransactionRequest struct {
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	OccurredOn  string `json:"occurred_on"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store")

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "kind must be 'venda' or 'despesa'")
		return
	}

	cents, err := core.ParseCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount: "+req.Amount)
		return
	}
	amount := core.Money{Cents: cents}

	occurredOn, err := core.ParseDate(strings.TrimSpace(req.OccurredOn))
	if err != nil {
		writeError(w, http.StatusBadRequest, "occurred_on must be YYYY-MM-DD")
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), storeID, kind, amount, occurredOn,
		sanitizeInput(req.Description), sanitizeInput(req.Category))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.invalidateStore(storeID)
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Look the transaction up first so the right store's caches get
	// dropped.
	tx, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	s.invalidateStore(tx.StoreID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	storeID := r.PathValue("store")

	kind, err := core.ParseKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "kind must be 'venda' or 'despesa'")
		return
	}

	limit := 10
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
	}

	txs, err := s.ledger.Recent(r.Context(), storeID, kind, limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transactions",
			"store_id", storeID, "error", err)
		writeError(w, statusForError(err), "failed to list transactions")
		return
	}

	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}
