// Package memory is an in-memory backup ledger for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"lojista/internal/core"
)

type Store struct {
	mu    sync.Mutex
	items map[string]core.Transaction
	order []string
}

func New() *Store {
	return &Store{items: make(map[string]core.Transaction)}
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.items[t.ID] = t
	return fmt.Sprintf("mem:%d", len(s.order)), nil
}

// Remove drops the transaction's row. Unknown IDs are a no-op.
func (s *Store) Remove(_ context.Context, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, transactionID)
	return nil
}

// Transactions returns the stored rows in append order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.order))
	for _, id := range s.order {
		if t, ok := s.items[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
