// internal/classifier/classifier.go

// Package classifier wraps the external capability that labels expenses as
// Productive or Non-Productive and generates spending insights. The ledger
// treats it as advisory: a failed or absent classifier leaves expenses
// Unclassified and never fails the operation that consulted it.
package classifier

import (
	"context"

	"github.com/shopspring/decimal"

	"circlepool/internal/domain"
	"circlepool/internal/util"
)

// ExpenseInput carries the fields the classifier sees. It deliberately omits
// ledger identifiers; the capability is stateless per call.
type ExpenseInput struct {
	Category    string
	Description string
	Amount      decimal.Decimal
}

// Classifier is the external classification capability.
type Classifier interface {
	// Classify labels one expense. Returning ProductivityUnclassified with a
	// nil error means the model answered but was inconclusive.
	Classify(ctx context.Context, in ExpenseInput) (domain.Productivity, error)
	// Insights generates short spending tips from recent transaction
	// summaries. May return util.ErrRateLimited.
	Insights(ctx context.Context, summaries []string, totalSpent decimal.Decimal) ([]string, error)
}

// Disabled is the Classifier used when no endpoint is configured. Every call
// reports the capability as unavailable.
type Disabled struct{}

func (Disabled) Classify(ctx context.Context, in ExpenseInput) (domain.Productivity, error) {
	return domain.ProductivityUnclassified, util.ErrClassificationUnavailable
}

func (Disabled) Insights(ctx context.Context, summaries []string, totalSpent decimal.Decimal) ([]string, error) {
	return nil, util.ErrClassificationUnavailable
}
