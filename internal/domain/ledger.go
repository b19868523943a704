// internal/domain/ledger.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// LedgerKind identifies what moved money in a circle.
type LedgerKind string

const (
	// LedgerKindContribution is money entering the pool from personal balances.
	LedgerKindContribution LedgerKind = "CONTRIBUTION"
	// LedgerKindAllocation is money leaving the pool into a member quota.
	LedgerKindAllocation LedgerKind = "ALLOCATION"
	// LedgerKindExpense is quota consumed by a recorded expense. It does not
	// touch the pool.
	LedgerKindExpense LedgerKind = "EXPENSE"
)

// LedgerEntry is an append-only audit record written inside the same
// transaction as every money-moving operation. The running invariant: a
// circle's pool balance equals the sum of its CONTRIBUTION amounts minus the
// sum of its ALLOCATION amounts.
type LedgerEntry struct {
	ID        int64           `db:"id" json:"id"`                 // Primary key, BIGSERIAL in DB
	CircleID  int64           `db:"circle_id" json:"circle_id"`   // Circle the entry belongs to
	UserID    *int64          `db:"user_id" json:"user_id"`       // Member involved, if any
	Kind      LedgerKind      `db:"kind" json:"kind"`             // What moved
	Amount    decimal.Decimal `db:"amount" json:"amount"`         // Positive amount, NUMERIC(20, 4)
	CreatedAt time.Time       `db:"created_at" json:"created_at"` // Timestamp of record creation
}

// NewLedgerEntry creates a ledger entry for a circle operation.
func NewLedgerEntry(circleID int64, userID *int64, kind LedgerKind, amount decimal.Decimal) *LedgerEntry {
	return &LedgerEntry{
		CircleID:  circleID,
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}
