// internal/repository/postgres/circle_pg.go
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

// CircleRepository implements repository.CircleRepository for PostgreSQL.
type CircleRepository struct{}

// NewCircleRepository creates a new CircleRepository.
func NewCircleRepository() repository.CircleRepository {
	return &CircleRepository{}
}

const circleColumns = `id, name, description, host_id, required_amount, pool_balance, auto_split, created_at, updated_at`
const memberColumns = `id, circle_id, user_id, contribution, allocated_balance, joined_at`

// CreateCircle inserts the circle and its initial members using the provided DBExecutor.
func (r *CircleRepository) CreateCircle(ctx context.Context, q repository.DBExecutor, circle *domain.Circle) error {
	query := `INSERT INTO circles (name, description, host_id, required_amount, pool_balance, auto_split, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		circle.Name, circle.Description, circle.HostID, circle.RequiredAmount,
		circle.PoolBalance, circle.AutoSplit, circle.CreatedAt, circle.UpdatedAt,
	).Scan(&circle.ID)
	if err != nil {
		return fmt.Errorf("failed to create circle: %w", err)
	}

	for i := range circle.Members {
		circle.Members[i].CircleID = circle.ID
		if err := r.AddMember(ctx, q, &circle.Members[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetCircleByID retrieves a circle and its members using the provided DBExecutor.
func (r *CircleRepository) GetCircleByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Circle, error) {
	return r.getCircle(ctx, q, id, false)
}

// GetCircleForUpdate retrieves a circle holding a row lock on it. The lock is
// what serializes contributions, allocations and settlements per circle; it
// is released when the enclosing transaction ends.
func (r *CircleRepository) GetCircleForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Circle, error) {
	return r.getCircle(ctx, q, id, true)
}

func (r *CircleRepository) getCircle(ctx context.Context, q repository.DBExecutor, id int64, forUpdate bool) (*domain.Circle, error) {
	query := `SELECT ` + circleColumns + ` FROM circles WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var circle domain.Circle
	if err := q.GetContext(ctx, &circle, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrCircleNotFound
		}
		return nil, fmt.Errorf("failed to get circle by ID %d: %w", id, err)
	}

	members, err := r.loadMembers(ctx, q, id)
	if err != nil {
		return nil, err
	}
	circle.Members = members
	return &circle, nil
}

func (r *CircleRepository) loadMembers(ctx context.Context, q repository.DBExecutor, circleID int64) ([]domain.Membership, error) {
	var members []domain.Membership
	query := `SELECT ` + memberColumns + ` FROM circle_members WHERE circle_id = $1 ORDER BY id`
	if err := q.SelectContext(ctx, &members, query, circleID); err != nil {
		return nil, fmt.Errorf("failed to load members for circle %d: %w", circleID, err)
	}
	return members, nil
}

// ListCirclesByUser retrieves the user's circles newest first using the provided DBExecutor.
func (r *CircleRepository) ListCirclesByUser(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Circle, error) {
	var circles []domain.Circle
	query := `SELECT c.id, c.name, c.description, c.host_id, c.required_amount, c.pool_balance, c.auto_split, c.created_at, c.updated_at
              FROM circles c
              JOIN circle_members m ON m.circle_id = c.id
              WHERE m.user_id = $1
              ORDER BY c.created_at DESC`
	if err := q.SelectContext(ctx, &circles, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list circles for user %d: %w", userID, err)
	}

	for i := range circles {
		members, err := r.loadMembers(ctx, q, circles[i].ID)
		if err != nil {
			return nil, err
		}
		circles[i].Members = members
	}
	return circles, nil
}

// AddMember appends one membership row using the provided DBExecutor.
func (r *CircleRepository) AddMember(ctx context.Context, q repository.DBExecutor, member *domain.Membership) error {
	query := `INSERT INTO circle_members (circle_id, user_id, contribution, allocated_balance, joined_at)
              VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		member.CircleID, member.UserID, member.Contribution, member.AllocatedBalance, member.JoinedAt,
	).Scan(&member.ID)
	if err != nil {
		return fmt.Errorf("failed to add member %d to circle %d: %w", member.UserID, member.CircleID, err)
	}
	return nil
}

// SaveBalances writes back the pool balance and every member's money fields
// using the provided DBExecutor. Callers hold the circle row lock, so the
// member updates commit or roll back as one unit with it.
func (r *CircleRepository) SaveBalances(ctx context.Context, q repository.DBExecutor, circle *domain.Circle) error {
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx,
		`UPDATE circles SET pool_balance = $1, updated_at = $2 WHERE id = $3`,
		circle.PoolBalance, now, circle.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pool balance for circle %d: %w", circle.ID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to get rows affected updating circle %d: %w", circle.ID, err)
	} else if n == 0 {
		return util.ErrCircleNotFound
	}

	for i := range circle.Members {
		m := &circle.Members[i]
		_, err := q.ExecContext(ctx,
			`UPDATE circle_members SET contribution = $1, allocated_balance = $2 WHERE id = $3`,
			m.Contribution, m.AllocatedBalance, m.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update member %d in circle %d: %w", m.UserID, circle.ID, err)
		}
	}
	return nil
}
