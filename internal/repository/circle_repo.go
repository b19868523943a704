// internal/repository/circle_repo.go
package repository

import (
	"context"

	"circlepool/internal/domain"
)

// CircleRepository defines the interface for circle data operations.
type CircleRepository interface {
	// CreateCircle inserts the circle together with its initial member list.
	// The circle.ID and member IDs are populated by the store.
	CreateCircle(ctx context.Context, q DBExecutor, circle *domain.Circle) error
	// GetCircleByID retrieves a circle and its members in join order.
	GetCircleByID(ctx context.Context, q DBExecutor, id int64) (*domain.Circle, error)
	// GetCircleForUpdate retrieves a circle like GetCircleByID but takes a
	// row lock on the circle, serializing every money-moving operation on the
	// same circle for the lifetime of the enclosing transaction. Must be
	// called inside a transaction.
	GetCircleForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.Circle, error)
	// ListCirclesByUser retrieves all circles the user is a member of,
	// newest first. Member lists are loaded for each circle.
	ListCirclesByUser(ctx context.Context, q DBExecutor, userID int64) ([]domain.Circle, error)
	// AddMember appends a membership row; member.ID is populated.
	AddMember(ctx context.Context, q DBExecutor, member *domain.Membership) error
	// SaveBalances writes back the circle's mutable money fields: the pool
	// balance and every member's contribution and allocated balance. It is
	// the whole-document write the settlement engine commits after mutating
	// an in-memory circle under the row lock.
	SaveBalances(ctx context.Context, q DBExecutor, circle *domain.Circle) error
}
