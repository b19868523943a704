// internal/domain/expense.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Productivity labels an expense as advised by the external classifier.
type Productivity string

const (
	ProductivityUnclassified  Productivity = "Unclassified"
	ProductivityProductive    Productivity = "Productive"
	ProductivityNonProductive Productivity = "Non-Productive"
)

// Expense is an immutable spending fact debited from a member's allocated
// balance. It is created Unclassified and patched exactly once by the
// asynchronous classifier; a failed classification leaves it Unclassified.
type Expense struct {
	ID           int64           `db:"id" json:"id"`                       // Primary key, BIGSERIAL in DB
	Reference    string          `db:"reference" json:"reference"`         // External reference (UUID), stable across systems
	CircleID     int64           `db:"circle_id" json:"circle_id"`         // Circle whose allocation was debited
	PayerUserID  int64           `db:"payer_user_id" json:"payer_user_id"` // Member who spent
	Category     string          `db:"category" json:"category"`           // Category label, opaque to the ledger
	Description  string          `db:"description" json:"description"`     // Free-form description
	Amount       decimal.Decimal `db:"amount" json:"amount"`               // Positive amount, NUMERIC(20, 4)
	ReceiverUpi  string          `db:"receiver_upi" json:"receiver_upi"`   // Optional payee identifier
	Productivity Productivity    `db:"productivity" json:"productivity"`   // Classifier verdict, defaults to Unclassified
	SpentAt      time.Time       `db:"spent_at" json:"spent_at"`           // When the expense happened
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`       // Timestamp of record creation
}

// NewExpense creates an Unclassified expense fact.
func NewExpense(circleID, payerUserID int64, amount decimal.Decimal, category, description, receiverUpi string, spentAt time.Time) *Expense {
	return &Expense{
		Reference:    uuid.NewString(),
		CircleID:     circleID,
		PayerUserID:  payerUserID,
		Category:     category,
		Description:  description,
		Amount:       amount,
		ReceiverUpi:  receiverUpi,
		Productivity: ProductivityUnclassified,
		SpentAt:      spentAt,
		CreatedAt:    time.Now().UTC(),
	}
}
