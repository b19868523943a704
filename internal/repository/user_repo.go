// internal/repository/user_repo.go
package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"circlepool/internal/domain"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// CreateUser adds a new user to the database using the provided DBExecutor.
	CreateUser(ctx context.Context, q DBExecutor, user *domain.User) error
	// GetUserByID retrieves a user by their ID using the provided DBExecutor.
	GetUserByID(ctx context.Context, q DBExecutor, id int64) (*domain.User, error)
	// GetUserByUpiID retrieves a user by their external UPI identifier.
	GetUserByUpiID(ctx context.Context, q DBExecutor, upiID string) (*domain.User, error)
	// GetUsersByUpiIDs resolves a batch of UPI identifiers. Unknown IDs are
	// simply absent from the result; the caller decides whether that is fatal.
	GetUsersByUpiIDs(ctx context.Context, q DBExecutor, upiIDs []string) ([]domain.User, error)
	// GetUsersByIDs retrieves a batch of users by primary key.
	GetUsersByIDs(ctx context.Context, q DBExecutor, ids []int64) ([]domain.User, error)
	// AdjustBalance atomically applies a signed delta to a user's balance.
	// The update is guarded so the balance can never go negative; a debit
	// beyond the current balance returns util.ErrInsufficientFunds without
	// mutating the row.
	AdjustBalance(ctx context.Context, q DBExecutor, userID int64, delta decimal.Decimal) error
}
