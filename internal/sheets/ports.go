package sheets

import (
	"context"

	"lojista/internal/core"
)

// Ports for outbound backup-ledger adapters.
type (
	// LedgerWriter mirrors transactions into an external backup ledger.
	LedgerWriter interface {
		// Append writes one transaction and returns an opaque row
		// reference.
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)

		// Remove deletes the backup row of a transaction, if present.
		Remove(ctx context.Context, transactionID string) error
	}
)
