// internal/repository/postgres/expense_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"circlepool/internal/domain"
	"circlepool/internal/repository"
	"circlepool/internal/util"
)

// ExpenseRepository implements repository.ExpenseRepository for PostgreSQL.
type ExpenseRepository struct{}

// NewExpenseRepository creates a new ExpenseRepository.
func NewExpenseRepository() repository.ExpenseRepository {
	return &ExpenseRepository{}
}

const expenseColumns = `id, reference, circle_id, payer_user_id, category, description, amount, receiver_upi, productivity, spent_at, created_at`

// CreateExpense inserts a new expense record using the provided DBExecutor.
func (r *ExpenseRepository) CreateExpense(ctx context.Context, q repository.DBExecutor, expense *domain.Expense) error {
	query := `INSERT INTO expenses (reference, circle_id, payer_user_id, category, description, amount, receiver_upi, productivity, spent_at, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		expense.Reference, expense.CircleID, expense.PayerUserID, expense.Category,
		expense.Description, expense.Amount, expense.ReceiverUpi, expense.Productivity,
		expense.SpentAt, expense.CreatedAt,
	).Scan(&expense.ID)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetExpenseByID retrieves a single expense using the provided DBExecutor.
func (r *ExpenseRepository) GetExpenseByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Expense, error) {
	var expense domain.Expense
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`
	if err := q.GetContext(ctx, &expense, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get expense by ID %d: %w", id, err)
	}
	return &expense, nil
}

// UpdateClassification patches the productivity verdict using the provided DBExecutor.
func (r *ExpenseRepository) UpdateClassification(ctx context.Context, q repository.DBExecutor, id int64, p domain.Productivity) error {
	result, err := q.ExecContext(ctx, `UPDATE expenses SET productivity = $1 WHERE id = $2`, p, id)
	if err != nil {
		return fmt.Errorf("failed to update classification for expense %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected updating expense %d: %w", id, err)
	} else if n == 0 {
		return util.ErrNotFound
	}
	return nil
}

// ListByPayer retrieves the payer's expenses newest first using the provided
// DBExecutor. A limit of 0 or less means no limit.
func (r *ExpenseRepository) ListByPayer(ctx context.Context, q repository.DBExecutor, payerUserID int64, limit int) ([]domain.Expense, error) {
	var expenses []domain.Expense
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE payer_user_id = $1 ORDER BY spent_at DESC`
	if limit > 0 {
		query += ` LIMIT $2`
		if err := q.SelectContext(ctx, &expenses, query, payerUserID, limit); err != nil {
			return nil, fmt.Errorf("failed to list expenses for payer %d: %w", payerUserID, err)
		}
		return expenses, nil
	}
	if err := q.SelectContext(ctx, &expenses, query, payerUserID); err != nil {
		return nil, fmt.Errorf("failed to list expenses for payer %d: %w", payerUserID, err)
	}
	return expenses, nil
}

// ListByPayerSince retrieves the payer's expenses since an instant using the provided DBExecutor.
func (r *ExpenseRepository) ListByPayerSince(ctx context.Context, q repository.DBExecutor, payerUserID int64, since time.Time) ([]domain.Expense, error) {
	var expenses []domain.Expense
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE payer_user_id = $1 AND spent_at >= $2 ORDER BY spent_at DESC`
	if err := q.SelectContext(ctx, &expenses, query, payerUserID, since); err != nil {
		return nil, fmt.Errorf("failed to list expenses for payer %d since %s: %w", payerUserID, since, err)
	}
	return expenses, nil
}
