package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// Inflow is a sale ("venda"); it adds to a store's balance.
	Inflow Kind = "venda"
	// Outflow is an expense ("despesa"); it subtracts from the balance.
	Outflow Kind = "despesa"
)

type (
	Kind string

	// Transaction is a single recorded sale or expense. OccurredOn is the
	// date the amount is attributed to for every window and bucket;
	// RecordedAt only orders listings and never influences bucketing.
	Transaction struct {
		ID          string
		StoreID     string
		Kind        Kind
		Amount      Money
		OccurredOn  Date
		RecordedAt  time.Time
		Description string
		Category    string // meaningful for Outflow only
	}
)

var (
	ErrInvalidKind = errors.New("invalid transaction kind")
	ErrEmptyStore  = errors.New("empty store id")
	ErrNotFound    = errors.New("not found")
	ErrEmptyName   = errors.New("empty name")
)

func (k Kind) Validate() error {
	switch k {
	case Inflow, Outflow:
		return nil
	default:
		return ErrInvalidKind
	}
}

// ParseKind maps the wire/storage form ("venda"/"despesa") to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// NewTransaction builds a validated transaction. The repository assigns the
// ID and RecordedAt on insert; callers supply everything else. Category is
// dropped for inflows, which carry no category in this ledger.
func NewTransaction(storeID string, kind Kind, amount Money, occurredOn Date, description, category string) (Transaction, error) {
	t := Transaction{
		StoreID:     strings.TrimSpace(storeID),
		Kind:        kind,
		Amount:      amount,
		OccurredOn:  occurredOn,
		Description: strings.TrimSpace(description),
		Category:    strings.TrimSpace(category),
	}
	if t.Kind == Inflow {
		t.Category = ""
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (t Transaction) Validate() error {
	if t.StoreID == "" {
		return ErrEmptyStore
	}
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.OccurredOn.Validate(); err != nil {
		return err
	}
	return nil
}

// Store is the owner of a ledger; every transaction belongs to exactly one.
type Store struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
