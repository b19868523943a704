// internal/repository/postgres/ledger_pg.go
package postgres

import (
	"context"
	"fmt"

	"circlepool/internal/domain"
	"circlepool/internal/repository"
)

// LedgerRepository implements repository.LedgerRepository for PostgreSQL.
type LedgerRepository struct{}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository() repository.LedgerRepository {
	return &LedgerRepository{}
}

// CreateEntry appends an audit record using the provided DBExecutor.
func (r *LedgerRepository) CreateEntry(ctx context.Context, q repository.DBExecutor, entry *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (circle_id, user_id, kind, amount, created_at)
              VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		entry.CircleID, entry.UserID, entry.Kind, entry.Amount, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry for circle %d: %w", entry.CircleID, err)
	}
	return nil
}

// TotalsByCircle sums the circle's entries per kind using the provided DBExecutor.
func (r *LedgerRepository) TotalsByCircle(ctx context.Context, q repository.DBExecutor, circleID int64) (*repository.LedgerTotals, error) {
	var totals repository.LedgerTotals
	query := `SELECT
                COALESCE(SUM(amount) FILTER (WHERE kind = 'CONTRIBUTION'), 0) AS contributions,
                COALESCE(SUM(amount) FILTER (WHERE kind = 'ALLOCATION'), 0) AS allocations,
                COALESCE(SUM(amount) FILTER (WHERE kind = 'EXPENSE'), 0) AS expenses
              FROM ledger_entries WHERE circle_id = $1`
	if err := q.GetContext(ctx, &totals, query, circleID); err != nil {
		return nil, fmt.Errorf("failed to sum ledger entries for circle %d: %w", circleID, err)
	}
	return &totals, nil
}
