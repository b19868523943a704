// internal/repository/ledger_repo.go
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"circlepool/internal/domain"
)

// LedgerTotals summarizes a circle's audit trail. Contributions minus
// allocations must equal the circle's pool balance at all times.
type LedgerTotals struct {
	Contributions decimal.Decimal
	Allocations   decimal.Decimal
	Expenses      decimal.Decimal
}

// LedgerRepository defines the interface for the append-only audit trail.
type LedgerRepository interface {
	// CreateEntry appends an audit record; entry.ID is populated.
	CreateEntry(ctx context.Context, q DBExecutor, entry *domain.LedgerEntry) error
	// TotalsByCircle sums the circle's entries per kind.
	TotalsByCircle(ctx context.Context, q DBExecutor, circleID int64) (*LedgerTotals, error)
}
