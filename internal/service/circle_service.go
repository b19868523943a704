// internal/service/circle_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"circlepool/internal/domain"
	"circlepool/internal/metrics"
	"circlepool/internal/repository"
	"circlepool/internal/split"
	"circlepool/internal/util"
	"circlepool/pkg/db"
)

// CreateCircleParams carries the inputs for circle creation.
type CreateCircleParams struct {
	Name           string
	Description    string
	RequiredAmount decimal.Decimal
	AutoSplit      bool
	// MemberUpiIDs are the invited members' external identifiers. All must
	// resolve to registered users or creation fails entirely.
	MemberUpiIDs []string
}

// CircleService defines the business logic for circles: lifecycle plus the
// contribution and allocation engines.
type CircleService interface {
	CreateCircle(ctx context.Context, hostID int64, params CreateCircleParams) (*domain.Circle, error)
	JoinCircle(ctx context.Context, circleID, userID int64) (*domain.Circle, error)
	GetCircle(ctx context.Context, circleID, userID int64) (*domain.Circle, error)
	ListCircles(ctx context.Context, userID int64) ([]domain.Circle, error)

	// Contribute moves money from personal balances into the pool. In
	// auto-split mode the amount is a group contribution debited equally
	// from every member (all-or-nothing), after which each member's
	// allocated balance is overwritten with an equal share of the pool's
	// free money. In manual mode only the initiator is debited and no
	// allocation changes.
	Contribute(ctx context.Context, circleID, initiatorID int64, amount decimal.Decimal) (*domain.Circle, error)

	// SetAllocationLimit moves amount from the pool into member allocations
	// as equal additive shares. Host-only, auto-split mode only.
	SetAllocationLimit(ctx context.Context, circleID, hostID int64, amount decimal.Decimal) (*domain.Circle, error)

	// AllocateManual moves amount from the pool into one member's
	// allocation. Host-only, manual mode only.
	AllocateManual(ctx context.Context, circleID, hostID, targetUserID int64, amount decimal.Decimal) (*domain.Circle, error)
}

// circleService implements the CircleService interface.
type circleService struct {
	dbBeginner db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	userRepo   repository.UserRepository
	circleRepo repository.CircleRepository
	ledgerRepo repository.LedgerRepository
	beginTx    db.BeginTxFunc    // Injected dependency for beginning transactions
	commitTx   db.CommitTxFunc   // Injected dependency for committing transactions
	rollbackTx db.RollbackTxFunc // Injected dependency for rolling back transactions
}

// NewCircleService creates a new instance of CircleService.
func NewCircleService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	circleRepo repository.CircleRepository,
	ledgerRepo repository.LedgerRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) CircleService {
	return &circleService{
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		userRepo:   userRepo,
		circleRepo: circleRepo,
		ledgerRepo: ledgerRepo,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
	}
}

// CreateCircle validates every invited UPI ID, then creates the circle with
// the host as its first member. Any unresolvable identifier fails the whole
// creation.
func (s *circleService) CreateCircle(ctx context.Context, hostID int64, params CreateCircleParams) (*domain.Circle, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("%w: circle name is required", util.ErrInvalidInput)
	}
	if params.RequiredAmount.IsNegative() {
		return nil, fmt.Errorf("%w: required amount must be zero or more", util.ErrInvalidInput)
	}
	if len(params.MemberUpiIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one member UPI ID is required", util.ErrInvalidInput)
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("create circle: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("create circle: transaction controller does not implement DBExecutor")
	}

	host, err := s.userRepo.GetUserByID(ctx, txExecutor, hostID)
	if err != nil {
		return nil, fmt.Errorf("create circle: failed to get host %d: %w", hostID, err)
	}

	// UPI IDs are matched case-insensitively and deduplicated before lookup.
	seen := make(map[string]struct{}, len(params.MemberUpiIDs))
	upiIDs := make([]string, 0, len(params.MemberUpiIDs))
	for _, raw := range params.MemberUpiIDs {
		id := strings.ToLower(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		upiIDs = append(upiIDs, id)
	}
	if len(upiIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one member UPI ID is required", util.ErrInvalidInput)
	}

	invited, err := s.userRepo.GetUsersByUpiIDs(ctx, txExecutor, upiIDs)
	if err != nil {
		return nil, fmt.Errorf("create circle: failed to resolve member UPI IDs: %w", err)
	}
	found := make(map[string]struct{}, len(invited))
	for _, u := range invited {
		found[strings.ToLower(u.UpiID)] = struct{}{}
	}
	var unknown []string
	for _, id := range upiIDs {
		if _, ok := found[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: no registered users for UPI IDs: %s", util.ErrUserNotFound, strings.Join(unknown, ", "))
	}

	circle := domain.NewCircle(params.Name, strings.TrimSpace(params.Description), host.ID, params.RequiredAmount, params.AutoSplit)
	for _, u := range invited {
		if u.ID == host.ID {
			// The host is already first in the member list.
			continue
		}
		circle.Members = append(circle.Members, domain.NewMembership(0, u.ID))
	}

	if err := s.circleRepo.CreateCircle(ctx, txExecutor, circle); err != nil {
		return nil, fmt.Errorf("create circle: failed to save circle: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("create circle: failed to commit transaction: %w", err)
	}

	slog.Info("Circle created", "circle_id", circle.ID, "host_id", host.ID, "members", len(circle.Members), "auto_split", circle.AutoSplit)
	return circle, nil
}

// JoinCircle appends the user to the circle's member list with zeroed money
// fields. Double joins are rejected.
func (s *circleService) JoinCircle(ctx context.Context, circleID, userID int64) (*domain.Circle, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("join circle: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("join circle: transaction controller does not implement DBExecutor")
	}

	if _, err := s.userRepo.GetUserByID(ctx, txExecutor, userID); err != nil {
		return nil, fmt.Errorf("join circle: failed to get user %d: %w", userID, err)
	}

	circle, err := s.circleRepo.GetCircleForUpdate(ctx, txExecutor, circleID)
	if err != nil {
		return nil, fmt.Errorf("join circle: failed to get circle %d: %w", circleID, err)
	}
	if circle.IsMember(userID) {
		return nil, util.ErrAlreadyMember
	}

	member := domain.NewMembership(circleID, userID)
	if err := s.circleRepo.AddMember(ctx, txExecutor, &member); err != nil {
		return nil, fmt.Errorf("join circle: failed to add member: %w", err)
	}
	circle.Members = append(circle.Members, member)

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("join circle: failed to commit transaction: %w", err)
	}

	slog.Info("User joined circle", "circle_id", circleID, "user_id", userID)
	return circle, nil
}

// GetCircle returns the circle if userID is one of its members.
func (s *circleService) GetCircle(ctx context.Context, circleID, userID int64) (*domain.Circle, error) {
	circle, err := s.circleRepo.GetCircleByID(ctx, s.dbExecutor, circleID)
	if err != nil {
		return nil, fmt.Errorf("get circle: failed to get circle %d: %w", circleID, err)
	}
	if !circle.IsMember(userID) {
		return nil, util.ErrNotMember
	}
	return circle, nil
}

// ListCircles returns all circles the user belongs to, newest first.
func (s *circleService) ListCircles(ctx context.Context, userID int64) ([]domain.Circle, error) {
	circles, err := s.circleRepo.ListCirclesByUser(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("list circles: failed to list circles for user %d: %w", userID, err)
	}
	return circles, nil
}

// Contribute executes a pool contribution. See the interface doc for the
// two modes. The circle row lock taken here serializes the operation against
// every other money movement on the same circle.
func (s *circleService) Contribute(ctx context.Context, circleID, initiatorID int64, amount decimal.Decimal) (circle *domain.Circle, err error) {
	defer func() { metrics.ObserveOperation("contribute", err) }()

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmount
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("contribute: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("contribute: transaction controller does not implement DBExecutor")
	}

	circle, err = s.circleRepo.GetCircleForUpdate(ctx, txExecutor, circleID)
	if err != nil {
		return nil, fmt.Errorf("contribute: failed to get circle %d: %w", circleID, err)
	}
	if !circle.IsMember(initiatorID) {
		return nil, util.ErrNotMember
	}
	if len(circle.Members) == 0 {
		return nil, util.ErrNoMembers
	}

	if circle.AutoSplit {
		err = s.contributeGroup(ctx, txExecutor, circle, amount)
	} else {
		err = s.contributeIndividual(ctx, txExecutor, circle, initiatorID, amount)
	}
	if err != nil {
		return nil, err
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("contribute: failed to commit transaction: %w", err)
	}

	slog.Info("Contribution recorded",
		"circle_id", circle.ID,
		"initiator_id", initiatorID,
		"amount", amount,
		"auto_split", circle.AutoSplit,
		"pool_balance", circle.PoolBalance,
	)
	return circle, nil
}

// contributeGroup debits every member's personal balance by an equal share
// of amount and credits the pool, then overwrites each member's allocated
// balance with an equal share of the new free money. The overwrite discards
// any earlier allocations on purpose: in auto-split mode the allocated
// balance is a quota over the pool's surplus, recomputed after every group
// contribution, not a cumulative grant.
func (s *circleService) contributeGroup(ctx context.Context, q repository.DBExecutor, circle *domain.Circle, amount decimal.Decimal) error {
	n := len(circle.Members)
	shares, err := split.Equal(amount, n)
	if err != nil {
		return fmt.Errorf("contribute: failed to split amount: %w", err)
	}

	// Check every member's balance before touching anything so a shortage
	// anywhere rejects the whole group debit with zero side effects.
	memberIDs := make([]int64, n)
	for i, m := range circle.Members {
		memberIDs[i] = m.UserID
	}
	users, err := s.userRepo.GetUsersByIDs(ctx, q, memberIDs)
	if err != nil {
		return fmt.Errorf("contribute: failed to load member balances: %w", err)
	}
	if len(users) != n {
		return fmt.Errorf("contribute: %w: expected %d members, found %d users", util.ErrOperationFailed, n, len(users))
	}
	balances := make(map[int64]decimal.Decimal, n)
	names := make(map[int64]string, n)
	for _, u := range users {
		balances[u.ID] = u.Balance
		names[u.ID] = u.Name
	}

	var short []string
	for i, m := range circle.Members {
		if balances[m.UserID].LessThan(shares[i]) {
			short = append(short, names[m.UserID])
		}
	}
	if len(short) > 0 {
		return fmt.Errorf("%w for %d member(s): %s (required share: %s each)",
			util.ErrInsufficientFunds, len(short), strings.Join(short, ", "), shares[len(shares)-1].StringFixed(2))
	}

	// Debit all members in ascending user ID so concurrent group debits in
	// different circles take row locks in one global order. The repository
	// guard backstops the check above; a refusal here (raced by a debit from
	// another circle) rolls back the whole transaction.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return circle.Members[order[a]].UserID < circle.Members[order[b]].UserID
	})
	for _, i := range order {
		m := circle.Members[i]
		if err := s.userRepo.AdjustBalance(ctx, q, m.UserID, shares[i].Neg()); err != nil {
			if util.IsError(err, util.ErrInsufficientFunds) {
				return fmt.Errorf("%w for member %s (required share: %s)",
					util.ErrInsufficientFunds, names[m.UserID], shares[i].StringFixed(2))
			}
			return fmt.Errorf("contribute: failed to debit member %d: %w", m.UserID, err)
		}
	}

	circle.PoolBalance = circle.PoolBalance.Add(amount)
	for i := range circle.Members {
		circle.Members[i].Contribution = circle.Members[i].Contribution.Add(shares[i])
	}

	// Recompute the free-money quota and overwrite every allocation.
	freeShare := split.EvenShare(circle.FreeMoney(), n)
	for i := range circle.Members {
		circle.Members[i].AllocatedBalance = freeShare
	}

	if err := s.circleRepo.SaveBalances(ctx, q, circle); err != nil {
		return fmt.Errorf("contribute: failed to save circle balances: %w", err)
	}

	for i, m := range circle.Members {
		userID := m.UserID
		entry := domain.NewLedgerEntry(circle.ID, &userID, domain.LedgerKindContribution, shares[i])
		if err := s.ledgerRepo.CreateEntry(ctx, q, entry); err != nil {
			return fmt.Errorf("contribute: failed to write ledger entry: %w", err)
		}
	}
	return nil
}

// contributeIndividual debits only the initiator and credits the pool. No
// allocation recompute happens in manual mode.
func (s *circleService) contributeIndividual(ctx context.Context, q repository.DBExecutor, circle *domain.Circle, initiatorID int64, amount decimal.Decimal) error {
	if err := s.userRepo.AdjustBalance(ctx, q, initiatorID, amount.Neg()); err != nil {
		if util.IsError(err, util.ErrInsufficientFunds) {
			return fmt.Errorf("%w for this contribution (requested: %s)", util.ErrInsufficientFunds, amount.StringFixed(2))
		}
		return fmt.Errorf("contribute: failed to debit initiator %d: %w", initiatorID, err)
	}

	circle.PoolBalance = circle.PoolBalance.Add(amount)
	idx := circle.MemberIndex(initiatorID)
	circle.Members[idx].Contribution = circle.Members[idx].Contribution.Add(amount)

	if err := s.circleRepo.SaveBalances(ctx, q, circle); err != nil {
		return fmt.Errorf("contribute: failed to save circle balances: %w", err)
	}

	entry := domain.NewLedgerEntry(circle.ID, &initiatorID, domain.LedgerKindContribution, amount)
	if err := s.ledgerRepo.CreateEntry(ctx, q, entry); err != nil {
		return fmt.Errorf("contribute: failed to write ledger entry: %w", err)
	}
	return nil
}

// SetAllocationLimit distributes amount from the pool equally across members
// as additive allocation increases. The pool decrease equals the sum of the
// member increases exactly.
func (s *circleService) SetAllocationLimit(ctx context.Context, circleID, hostID int64, amount decimal.Decimal) (circle *domain.Circle, err error) {
	defer func() { metrics.ObserveOperation("set_allocation_limit", err) }()

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmount
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("set allocation limit: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("set allocation limit: transaction controller does not implement DBExecutor")
	}

	circle, err = s.circleRepo.GetCircleForUpdate(ctx, txExecutor, circleID)
	if err != nil {
		return nil, fmt.Errorf("set allocation limit: failed to get circle %d: %w", circleID, err)
	}
	if circle.HostID != hostID {
		return nil, util.ErrNotHost
	}
	if !circle.AutoSplit {
		return nil, fmt.Errorf("%w: equal distribution requires auto-split mode", util.ErrWrongMode)
	}
	if len(circle.Members) == 0 {
		return nil, util.ErrNoMembers
	}
	if circle.PoolBalance.LessThan(amount) {
		return nil, fmt.Errorf("%w (available: %s)", util.ErrInsufficientPool, circle.PoolBalance.StringFixed(2))
	}

	shares, err := split.Equal(amount, len(circle.Members))
	if err != nil {
		return nil, fmt.Errorf("set allocation limit: failed to split amount: %w", err)
	}

	circle.PoolBalance = circle.PoolBalance.Sub(amount)
	for i := range circle.Members {
		circle.Members[i].AllocatedBalance = circle.Members[i].AllocatedBalance.Add(shares[i])
	}

	if err := s.circleRepo.SaveBalances(ctx, txExecutor, circle); err != nil {
		return nil, fmt.Errorf("set allocation limit: failed to save circle balances: %w", err)
	}
	for i, m := range circle.Members {
		userID := m.UserID
		entry := domain.NewLedgerEntry(circle.ID, &userID, domain.LedgerKindAllocation, shares[i])
		if err := s.ledgerRepo.CreateEntry(ctx, txExecutor, entry); err != nil {
			return nil, fmt.Errorf("set allocation limit: failed to write ledger entry: %w", err)
		}
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("set allocation limit: failed to commit transaction: %w", err)
	}

	slog.Info("Allocation limit distributed",
		"circle_id", circle.ID,
		"host_id", hostID,
		"amount", amount,
		"members", len(circle.Members),
		"pool_balance", circle.PoolBalance,
	)
	return circle, nil
}

// AllocateManual moves amount from the pool to one member's allocation.
func (s *circleService) AllocateManual(ctx context.Context, circleID, hostID, targetUserID int64, amount decimal.Decimal) (circle *domain.Circle, err error) {
	defer func() { metrics.ObserveOperation("allocate_manual", err) }()

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmount
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("allocate manual: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("allocate manual: transaction controller does not implement DBExecutor")
	}

	circle, err = s.circleRepo.GetCircleForUpdate(ctx, txExecutor, circleID)
	if err != nil {
		return nil, fmt.Errorf("allocate manual: failed to get circle %d: %w", circleID, err)
	}
	if circle.HostID != hostID {
		return nil, util.ErrNotHost
	}
	if circle.AutoSplit {
		return nil, fmt.Errorf("%w: manual allocation requires auto-split to be off", util.ErrWrongMode)
	}
	idx := circle.MemberIndex(targetUserID)
	if idx < 0 {
		return nil, util.ErrTargetNotMember
	}
	if circle.PoolBalance.LessThan(amount) {
		return nil, fmt.Errorf("%w (available: %s)", util.ErrInsufficientPool, circle.PoolBalance.StringFixed(2))
	}

	circle.PoolBalance = circle.PoolBalance.Sub(amount)
	circle.Members[idx].AllocatedBalance = circle.Members[idx].AllocatedBalance.Add(amount)

	if err := s.circleRepo.SaveBalances(ctx, txExecutor, circle); err != nil {
		return nil, fmt.Errorf("allocate manual: failed to save circle balances: %w", err)
	}
	entry := domain.NewLedgerEntry(circle.ID, &targetUserID, domain.LedgerKindAllocation, amount)
	if err := s.ledgerRepo.CreateEntry(ctx, txExecutor, entry); err != nil {
		return nil, fmt.Errorf("allocate manual: failed to write ledger entry: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("allocate manual: failed to commit transaction: %w", err)
	}

	slog.Info("Manual allocation recorded",
		"circle_id", circle.ID,
		"host_id", hostID,
		"target_user_id", targetUserID,
		"amount", amount,
		"pool_balance", circle.PoolBalance,
	)
	return circle, nil
}
