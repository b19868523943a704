// internal/domain/circle.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Circle represents a group pooling simulated money towards a shared target.
// Exactly one member is the host; the host reference is immutable after
// creation. Members are kept in join order.
type Circle struct {
	ID             int64           `db:"id" json:"id"`                           // Primary key, BIGSERIAL in DB
	Name           string          `db:"name" json:"name"`                       // Display name
	Description    string          `db:"description" json:"description"`         // Optional description
	HostID         int64           `db:"host_id" json:"host_id"`                 // Creating user, immutable
	RequiredAmount decimal.Decimal `db:"required_amount" json:"required_amount"` // Savings target, NUMERIC(20, 4)
	PoolBalance    decimal.Decimal `db:"pool_balance" json:"pool_balance"`       // Contributed but unallocated money, never negative
	AutoSplit      bool            `db:"auto_split" json:"auto_split"`           // true: equal-share mode, false: manual allocation mode
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`           // Timestamp of creation
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`           // Timestamp of last update

	// Members in join order. Loaded and persisted with the circle; the circle
	// exclusively owns each membership's mutable fields.
	Members []Membership `db:"-" json:"members"`
}

// Membership is one user's stake inside a circle: how much they have paid
// into the pool over time and how much of the pool is currently theirs to
// spend.
type Membership struct {
	ID               int64           `db:"id" json:"-"`                                  // Primary key, preserves join order
	CircleID         int64           `db:"circle_id" json:"circle_id"`                   // Owning circle
	UserID           int64           `db:"user_id" json:"user_id"`                       // Member user, unique within the circle
	Contribution     decimal.Decimal `db:"contribution" json:"contribution"`             // Cumulative amount paid into the pool
	AllocatedBalance decimal.Decimal `db:"allocated_balance" json:"allocated_balance"`   // Spendable quota, never negative
	JoinedAt         time.Time       `db:"joined_at" json:"joined_at"`                   // Timestamp of joining
}

// NewCircle creates a circle with the host as its first member.
func NewCircle(name, description string, hostID int64, requiredAmount decimal.Decimal, autoSplit bool) *Circle {
	now := time.Now().UTC()
	c := &Circle{
		Name:           name,
		Description:    description,
		HostID:         hostID,
		RequiredAmount: requiredAmount,
		PoolBalance:    decimal.Zero,
		AutoSplit:      autoSplit,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	c.Members = append(c.Members, NewMembership(0, hostID))
	return c
}

// NewMembership creates a zeroed membership record for a user.
func NewMembership(circleID, userID int64) Membership {
	return Membership{
		CircleID:         circleID,
		UserID:           userID,
		Contribution:     decimal.Zero,
		AllocatedBalance: decimal.Zero,
		JoinedAt:         time.Now().UTC(),
	}
}

// MemberIndex returns the position of userID in the member list, or -1.
func (c *Circle) MemberIndex(userID int64) int {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return i
		}
	}
	return -1
}

// IsMember reports whether userID belongs to the circle.
func (c *Circle) IsMember(userID int64) bool {
	return c.MemberIndex(userID) >= 0
}

// FreeMoney is the part of the pool exceeding the savings target. In
// auto-split mode it is what gets divided into member quotas after each
// group contribution.
func (c *Circle) FreeMoney() decimal.Decimal {
	free := c.PoolBalance.Sub(c.RequiredAmount)
	if free.IsNegative() {
		return decimal.Zero
	}
	return free
}
