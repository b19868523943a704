// internal/domain/user.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// User represents a registered account holding a simulated personal balance.
// The UPI ID is the opaque external identifier other members use to invite
// this user into circles; it is resolved once at creation/join time and never
// parsed.
type User struct {
	ID        int64           `db:"id" json:"id"`                 // Primary key, BIGSERIAL in DB
	Name      string          `db:"name" json:"name"`             // Display name
	UpiID     string          `db:"upi_id" json:"upi_id"`         // Unique external payment identifier
	Email     string          `db:"email" json:"email"`           // Unique email address
	Balance   decimal.Decimal `db:"balance" json:"balance"`       // Personal simulated balance, NUMERIC(20, 4), never negative
	CreatedAt time.Time       `db:"created_at" json:"created_at"` // Timestamp of creation
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"` // Timestamp of last update
}

// NewUser creates a new User instance with a zero starting balance.
func NewUser(name, upiID, email string) *User {
	now := time.Now().UTC()
	return &User{
		Name:      name,
		UpiID:     upiID,
		Email:     email,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
