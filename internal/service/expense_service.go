// internal/service/expense_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"circlepool/internal/classifier"
	"circlepool/internal/domain"
	"circlepool/internal/metrics"
	"circlepool/internal/repository"
	"circlepool/internal/util"
	"circlepool/pkg/db"
)

// RecordExpenseParams carries the inputs for expense settlement.
type RecordExpenseParams struct {
	Category    string
	Description string
	Amount      decimal.Decimal
	ReceiverUpi string
	SpentAt     time.Time
}

// ExpenseService defines the business logic for expense settlement.
type ExpenseService interface {
	// RecordExpense debits the payer's allocated balance in the circle and
	// stores the expense fact. Classification runs after commit and never
	// blocks or fails the settlement.
	RecordExpense(ctx context.Context, circleID, payerUserID int64, params RecordExpenseParams) (*domain.Expense, error)

	GetExpense(ctx context.Context, id int64) (*domain.Expense, error)
	ListExpenses(ctx context.Context, payerUserID int64, limit int) ([]domain.Expense, error)
}

// ClassifyNotifyFunc is invoked after the asynchronous classification of an
// expense settles, whatever the outcome. Tests use it to synchronize.
type ClassifyNotifyFunc func(expenseID int64, verdict domain.Productivity, err error)

// ExpenseServiceOption configures optional behavior of the expense service.
type ExpenseServiceOption func(*expenseService)

// WithClassifyNotify registers a hook called once per classification attempt.
func WithClassifyNotify(fn ClassifyNotifyFunc) ExpenseServiceOption {
	return func(s *expenseService) {
		s.classifyNotify = fn
	}
}

type expenseService struct {
	dbBeginner     db.DBTxBeginner
	dbExecutor     repository.DBExecutor
	circleRepo     repository.CircleRepository
	expenseRepo    repository.ExpenseRepository
	ledgerRepo     repository.LedgerRepository
	classifier     classifier.Classifier
	beginTx        db.BeginTxFunc
	commitTx       db.CommitTxFunc
	rollbackTx     db.RollbackTxFunc
	classifyNotify ClassifyNotifyFunc
}

// NewExpenseService creates a new instance of ExpenseService.
func NewExpenseService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	circleRepo repository.CircleRepository,
	expenseRepo repository.ExpenseRepository,
	ledgerRepo repository.LedgerRepository,
	cls classifier.Classifier,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	opts ...ExpenseServiceOption,
) ExpenseService {
	s := &expenseService{
		dbBeginner:  dbBeginner,
		dbExecutor:  dbExecutor,
		circleRepo:  circleRepo,
		expenseRepo: expenseRepo,
		ledgerRepo:  ledgerRepo,
		classifier:  cls,
		beginTx:     beginTx,
		commitTx:    commitTx,
		rollbackTx:  rollbackTx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordExpense settles the expense synchronously under the circle row lock,
// then hands classification to a detached goroutine.
func (s *expenseService) RecordExpense(ctx context.Context, circleID, payerUserID int64, params RecordExpenseParams) (expense *domain.Expense, err error) {
	defer func() { metrics.ObserveOperation("record_expense", err) }()

	if params.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, util.ErrInvalidAmount
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("record expense: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("record expense: transaction controller does not implement DBExecutor")
	}

	circle, err := s.circleRepo.GetCircleForUpdate(ctx, txExecutor, circleID)
	if err != nil {
		return nil, fmt.Errorf("record expense: failed to get circle %d: %w", circleID, err)
	}
	idx := circle.MemberIndex(payerUserID)
	if idx < 0 {
		return nil, util.ErrNotMember
	}
	if circle.Members[idx].AllocatedBalance.LessThan(params.Amount) {
		return nil, fmt.Errorf("%w (allocated: %s, requested: %s)",
			util.ErrInsufficientAllocatedBalance,
			circle.Members[idx].AllocatedBalance.StringFixed(2),
			params.Amount.StringFixed(2))
	}

	circle.Members[idx].AllocatedBalance = circle.Members[idx].AllocatedBalance.Sub(params.Amount)
	if err := s.circleRepo.SaveBalances(ctx, txExecutor, circle); err != nil {
		return nil, fmt.Errorf("record expense: failed to save circle balances: %w", err)
	}

	spentAt := params.SpentAt
	if spentAt.IsZero() {
		spentAt = time.Now().UTC()
	}
	expense = domain.NewExpense(circleID, payerUserID, params.Amount, params.Category, params.Description, params.ReceiverUpi, spentAt)
	if err := s.expenseRepo.CreateExpense(ctx, txExecutor, expense); err != nil {
		return nil, fmt.Errorf("record expense: failed to save expense: %w", err)
	}

	entry := domain.NewLedgerEntry(circleID, &payerUserID, domain.LedgerKindExpense, params.Amount)
	if err := s.ledgerRepo.CreateEntry(ctx, txExecutor, entry); err != nil {
		return nil, fmt.Errorf("record expense: failed to write ledger entry: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("record expense: failed to commit transaction: %w", err)
	}

	slog.Info("Expense recorded",
		"expense_id", expense.ID,
		"reference", expense.Reference,
		"circle_id", circleID,
		"payer_user_id", payerUserID,
		"amount", params.Amount,
	)

	// The settlement is durable at this point. Classification runs on a
	// context detached from the request so a client disconnect cannot cancel
	// the patch.
	go s.classifyAndPatch(context.WithoutCancel(ctx), expense)

	return expense, nil
}

// classifyAndPatch asks the classifier for a verdict and patches the expense
// row once. Failures are logged and the expense stays Unclassified; there is
// no retry.
func (s *expenseService) classifyAndPatch(ctx context.Context, expense *domain.Expense) {
	verdict, err := s.classifier.Classify(ctx, classifier.ExpenseInput{
		Category:    expense.Category,
		Description: expense.Description,
		Amount:      expense.Amount,
	})
	metrics.Classifications.Inc()
	defer func() {
		if s.classifyNotify != nil {
			s.classifyNotify(expense.ID, verdict, err)
		}
	}()

	if err != nil {
		slog.Warn("Expense classification failed, leaving Unclassified",
			"expense_id", expense.ID,
			"error", err,
		)
		verdict = domain.ProductivityUnclassified
		return
	}
	if verdict == domain.ProductivityUnclassified {
		slog.Warn("Classifier was inconclusive, leaving Unclassified", "expense_id", expense.ID)
		return
	}

	if err := s.expenseRepo.UpdateClassification(ctx, s.dbExecutor, expense.ID, verdict); err != nil {
		slog.Warn("Failed to patch expense classification",
			"expense_id", expense.ID,
			"verdict", verdict,
			"error", err,
		)
		return
	}
	slog.Info("Expense classified", "expense_id", expense.ID, "verdict", verdict)
}

func (s *expenseService) GetExpense(ctx context.Context, id int64) (*domain.Expense, error) {
	expense, err := s.expenseRepo.GetExpenseByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, fmt.Errorf("get expense: failed to get expense %d: %w", id, err)
	}
	return expense, nil
}

func (s *expenseService) ListExpenses(ctx context.Context, payerUserID int64, limit int) ([]domain.Expense, error) {
	expenses, err := s.expenseRepo.ListByPayer(ctx, s.dbExecutor, payerUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list expenses: failed to list expenses for user %d: %w", payerUserID, err)
	}
	return expenses, nil
}
