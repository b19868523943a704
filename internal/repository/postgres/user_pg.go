// internal/repository/postgres/user_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"circlepool/internal/domain"
	"circlepool/internal/repository"
	"circlepool/internal/util"
)

// UserRepository implements repository.UserRepository for PostgreSQL.
type UserRepository struct{}

// NewUserRepository creates a new UserRepository. Methods receive their
// DBExecutor per call so one repository serves both pooled and transactional
// access.
func NewUserRepository() repository.UserRepository {
	return &UserRepository{}
}

// CreateUser inserts a new user into the database using the provided DBExecutor.
func (r *UserRepository) CreateUser(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	query := `INSERT INTO users (name, upi_id, email, balance, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := q.QueryRowContext(ctx, query, user.Name, user.UpiID, user.Email, user.Balance, user.CreatedAt, user.UpdatedAt).Scan(&user.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return util.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by their ID using the provided DBExecutor.
func (r *UserRepository) GetUserByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, name, upi_id, email, balance, created_at, updated_at FROM users WHERE id = $1`
	err := q.GetContext(ctx, &user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID %d: %w", id, err)
	}
	return &user, nil
}

// GetUserByUpiID retrieves a user by their UPI identifier using the provided DBExecutor.
func (r *UserRepository) GetUserByUpiID(ctx context.Context, q repository.DBExecutor, upiID string) (*domain.User, error) {
	var user domain.User
	query := `SELECT id, name, upi_id, email, balance, created_at, updated_at FROM users WHERE upi_id = $1`
	err := q.GetContext(ctx, &user, query, upiID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by UPI ID '%s': %w", upiID, err)
	}
	return &user, nil
}

// GetUsersByUpiIDs resolves a batch of UPI identifiers using the provided DBExecutor.
func (r *UserRepository) GetUsersByUpiIDs(ctx context.Context, q repository.DBExecutor, upiIDs []string) ([]domain.User, error) {
	if len(upiIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, upi_id, email, balance, created_at, updated_at FROM users WHERE upi_id IN (?)`, upiIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build UPI batch query: %w", err)
	}
	var users []domain.User
	if err := q.SelectContext(ctx, &users, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get users by UPI IDs: %w", err)
	}
	return users, nil
}

// GetUsersByIDs retrieves a batch of users by primary key using the provided DBExecutor.
func (r *UserRepository) GetUsersByIDs(ctx context.Context, q repository.DBExecutor, ids []int64) ([]domain.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, upi_id, email, balance, created_at, updated_at FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build ID batch query: %w", err)
	}
	var users []domain.User
	if err := q.SelectContext(ctx, &users, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	return users, nil
}

// AdjustBalance atomically applies a signed delta to a user's balance using
// the provided DBExecutor. The WHERE guard rejects debits that would drive
// the balance negative, so the invariant holds even against writers outside
// the caller's circle lock.
func (r *UserRepository) AdjustBalance(ctx context.Context, q repository.DBExecutor, userID int64, delta decimal.Decimal) error {
	query := `UPDATE users SET balance = balance + $1, updated_at = $2 WHERE id = $3 AND balance + $1 >= 0`
	result, err := q.ExecContext(ctx, query, delta, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to adjust balance for user %d: %w", userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected adjusting balance for user %d: %w", userID, err)
	}
	if rowsAffected == 0 {
		// Either the user does not exist or the guard refused the debit.
		var exists bool
		if err := q.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID); err != nil {
			return fmt.Errorf("failed to check user %d after refused balance adjustment: %w", userID, err)
		}
		if !exists {
			return util.ErrUserNotFound
		}
		return util.ErrInsufficientFunds
	}
	return nil
}
