// internal/util/errors.go
package util

import "errors"

// Common application-specific errors. Every rejected ledger operation maps to
// one of these so callers can re-prompt with a specific reason.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrCircleNotFound = errors.New("circle not found")
	ErrUserNotFound   = errors.New("user not found")

	ErrInvalidAmount = errors.New("amount must be a positive number")
	ErrInvalidInput  = errors.New("invalid input provided")

	ErrNotMember       = errors.New("user is not a member of this circle")
	ErrTargetNotMember = errors.New("target user is not a member of this circle")
	ErrNotHost         = errors.New("only the host can allocate circle funds")
	ErrWrongMode       = errors.New("operation not available in this split mode")
	ErrNoMembers       = errors.New("circle has no members")
	ErrAlreadyMember   = errors.New("user is already a member of this circle")

	ErrInsufficientFunds            = errors.New("insufficient personal balance")
	ErrInsufficientPool             = errors.New("insufficient pool balance")
	ErrInsufficientAllocatedBalance = errors.New("insufficient allocated balance")

	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrClassificationUnavailable means the external classifier is
	// unreachable or unconfigured. It never fails the operation that created
	// the expense; the expense just stays Unclassified.
	ErrClassificationUnavailable = errors.New("classifier unavailable")

	// ErrRateLimited signals the classifier refused the call; insight reads
	// fall back to cached results.
	ErrRateLimited = errors.New("classifier rate limit exceeded")

	// ErrOperationFailed is the generic store-level failure surfaced to
	// callers when a write could not complete.
	ErrOperationFailed = errors.New("operation failed")
)

// IsError reports whether err matches target in its wrap chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
