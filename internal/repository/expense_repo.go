// internal/repository/expense_repo.go
package repository

import (
	"context"
	"time"

	"circlepool/internal/domain"
)

// ExpenseRepository defines the interface for expense data operations.
type ExpenseRepository interface {
	// CreateExpense adds a new expense record. expense.ID is populated.
	CreateExpense(ctx context.Context, q DBExecutor, expense *domain.Expense) error
	// GetExpenseByID retrieves a single expense.
	GetExpenseByID(ctx context.Context, q DBExecutor, id int64) (*domain.Expense, error)
	// UpdateClassification patches the productivity verdict of an expense.
	// This is the only mutation an expense ever receives.
	UpdateClassification(ctx context.Context, q DBExecutor, id int64, p domain.Productivity) error
	// ListByPayer retrieves the payer's expenses, newest spend first.
	ListByPayer(ctx context.Context, q DBExecutor, payerUserID int64, limit int) ([]domain.Expense, error)
	// ListByPayerSince retrieves the payer's expenses spent at or after the
	// given instant, newest first.
	ListByPayerSince(ctx context.Context, q DBExecutor, payerUserID int64, since time.Time) ([]domain.Expense, error)
}
