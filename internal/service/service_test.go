// internal/service/service_test.go
package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"circlepool/internal/classifier"
	"circlepool/internal/domain"
	"circlepool/internal/repository"
	"circlepool/internal/util"
	"circlepool/pkg/db"
)

// fakeStore is an in-memory stand-in for Postgres used by the service tests.
// A fakeTx snapshots the whole store on begin and restores it on rollback, so
// all-or-nothing behavior can be asserted against real partial mutations.
type fakeStore struct {
	mu          sync.Mutex
	users       map[int64]*domain.User
	circles     map[int64]*domain.Circle
	expenses    map[int64]*domain.Expense
	ledger      []domain.LedgerEntry
	nextUser    int64
	nextCircle  int64
	nextMember  int64
	nextExpense int64
	nextLedger  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*domain.User),
		circles:  make(map[int64]*domain.Circle),
		expenses: make(map[int64]*domain.Expense),
	}
}

func copyCircle(c *domain.Circle) *domain.Circle {
	cp := *c
	cp.Members = append([]domain.Membership(nil), c.Members...)
	return &cp
}

// snapshot deep-copies the store state. Caller must hold mu.
func (s *fakeStore) snapshotLocked() *fakeStore {
	snap := newFakeStore()
	for id, u := range s.users {
		cp := *u
		snap.users[id] = &cp
	}
	for id, c := range s.circles {
		snap.circles[id] = copyCircle(c)
	}
	for id, e := range s.expenses {
		cp := *e
		snap.expenses[id] = &cp
	}
	snap.ledger = append([]domain.LedgerEntry(nil), s.ledger...)
	snap.nextUser = s.nextUser
	snap.nextCircle = s.nextCircle
	snap.nextMember = s.nextMember
	snap.nextExpense = s.nextExpense
	snap.nextLedger = s.nextLedger
	return snap
}

func (s *fakeStore) restore(snap *fakeStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.circles = snap.circles
	s.expenses = snap.expenses
	s.ledger = snap.ledger
	s.nextUser = snap.nextUser
	s.nextCircle = snap.nextCircle
	s.nextMember = snap.nextMember
	s.nextExpense = snap.nextExpense
	s.nextLedger = snap.nextLedger
}

// Seeding helpers.

func (s *fakeStore) addUser(name, upiID string, balance decimal.Decimal) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUser++
	u := domain.NewUser(name, upiID, upiID+"@example.com")
	u.ID = s.nextUser
	u.Balance = balance
	s.users[u.ID] = u
	cp := *u
	return &cp
}

func (s *fakeStore) addCircle(name string, hostID int64, required decimal.Decimal, autoSplit bool, memberIDs ...int64) *domain.Circle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCircle++
	c := domain.NewCircle(name, "", hostID, required, autoSplit)
	c.ID = s.nextCircle
	for _, id := range memberIDs {
		if id == hostID {
			continue
		}
		c.Members = append(c.Members, domain.NewMembership(c.ID, id))
	}
	for i := range c.Members {
		s.nextMember++
		c.Members[i].ID = s.nextMember
		c.Members[i].CircleID = c.ID
	}
	s.circles[c.ID] = c
	return copyCircle(c)
}

func (s *fakeStore) userBalance(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Balance
}

func (s *fakeStore) circleState(id int64) *domain.Circle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyCircle(s.circles[id])
}

func (s *fakeStore) expenseState(id int64) *domain.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.expenses[id]
	return &cp
}

// fakeTx satisfies both db.TxController and repository.DBExecutor. The query
// methods are never reached because the fake repositories bypass SQL.
type fakeTx struct {
	store *fakeStore
	snap  *fakeStore
	done  bool
}

func beginFakeTx(store *fakeStore) *fakeTx {
	store.mu.Lock()
	defer store.mu.Unlock()
	return &fakeTx{store: store, snap: store.snapshotLocked()}
}

func (t *fakeTx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	return nil
}

func (t *fakeTx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.restore(t.snap)
	return nil
}

var errFakeQuery = errors.New("fake executor does not run SQL")

func (t *fakeTx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errFakeQuery
}
func (t *fakeTx) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errFakeQuery
}
func (t *fakeTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errFakeQuery
}
func (t *fakeTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}
func (t *fakeTx) Rebind(query string) string { return query }

// fakeExecutor is the non-transactional DBExecutor handed to services.
type fakeExecutor struct{}

func (fakeExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errFakeQuery
}
func (fakeExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return errFakeQuery
}
func (fakeExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errFakeQuery
}
func (fakeExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}
func (fakeExecutor) Rebind(query string) string { return query }

// Fake repositories. They ignore the DBExecutor argument and operate on the
// shared store directly.

type fakeUserRepo struct {
	store *fakeStore

	// debits records the user IDs of negative AdjustBalance calls in the
	// order they arrive.
	debits []int64
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, q repository.DBExecutor, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.UpiID == user.UpiID || u.Email == user.Email {
			return util.ErrDuplicateEntry
		}
	}
	s.nextUser++
	user.ID = s.nextUser
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetUserByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetUserByUpiID(ctx context.Context, q repository.DBExecutor, upiID string) (*domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.UpiID == upiID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, util.ErrUserNotFound
}

func (r *fakeUserRepo) GetUsersByUpiIDs(ctx context.Context, q repository.DBExecutor, upiIDs []string) ([]domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, id := range upiIDs {
		for _, u := range s.users {
			if u.UpiID == id {
				out = append(out, *u)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeUserRepo) GetUsersByIDs(ctx context.Context, q repository.DBExecutor, ids []int64) ([]domain.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) AdjustBalance(ctx context.Context, q repository.DBExecutor, userID int64, delta decimal.Decimal) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return util.ErrUserNotFound
	}
	next := u.Balance.Add(delta)
	if next.IsNegative() {
		return util.ErrInsufficientFunds
	}
	if delta.IsNegative() {
		r.debits = append(r.debits, userID)
	}
	u.Balance = next
	return nil
}

type fakeCircleRepo struct{ store *fakeStore }

func (r *fakeCircleRepo) CreateCircle(ctx context.Context, q repository.DBExecutor, circle *domain.Circle) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCircle++
	circle.ID = s.nextCircle
	for i := range circle.Members {
		s.nextMember++
		circle.Members[i].ID = s.nextMember
		circle.Members[i].CircleID = circle.ID
	}
	s.circles[circle.ID] = copyCircle(circle)
	return nil
}

func (r *fakeCircleRepo) GetCircleByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Circle, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.circles[id]
	if !ok {
		return nil, util.ErrCircleNotFound
	}
	return copyCircle(c), nil
}

func (r *fakeCircleRepo) GetCircleForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Circle, error) {
	return r.GetCircleByID(ctx, q, id)
}

func (r *fakeCircleRepo) ListCirclesByUser(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Circle, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Circle
	for _, c := range s.circles {
		if c.IsMember(userID) {
			out = append(out, *copyCircle(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeCircleRepo) AddMember(ctx context.Context, q repository.DBExecutor, member *domain.Membership) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.circles[member.CircleID]
	if !ok {
		return util.ErrCircleNotFound
	}
	s.nextMember++
	member.ID = s.nextMember
	c.Members = append(c.Members, *member)
	return nil
}

func (r *fakeCircleRepo) SaveBalances(ctx context.Context, q repository.DBExecutor, circle *domain.Circle) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.circles[circle.ID]
	if !ok {
		return util.ErrCircleNotFound
	}
	stored.PoolBalance = circle.PoolBalance
	for _, m := range circle.Members {
		for i := range stored.Members {
			if stored.Members[i].UserID == m.UserID {
				stored.Members[i].Contribution = m.Contribution
				stored.Members[i].AllocatedBalance = m.AllocatedBalance
			}
		}
	}
	return nil
}

type fakeExpenseRepo struct{ store *fakeStore }

func (r *fakeExpenseRepo) CreateExpense(ctx context.Context, q repository.DBExecutor, expense *domain.Expense) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextExpense++
	expense.ID = s.nextExpense
	cp := *expense
	s.expenses[expense.ID] = &cp
	return nil
}

func (r *fakeExpenseRepo) GetExpenseByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Expense, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return nil, util.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *fakeExpenseRepo) UpdateClassification(ctx context.Context, q repository.DBExecutor, id int64, p domain.Productivity) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return util.ErrNotFound
	}
	e.Productivity = p
	return nil
}

func (r *fakeExpenseRepo) ListByPayer(ctx context.Context, q repository.DBExecutor, payerUserID int64, limit int) ([]domain.Expense, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Expense
	for _, e := range s.expenses {
		if e.PayerUserID == payerUserID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpentAt.After(out[j].SpentAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeExpenseRepo) ListByPayerSince(ctx context.Context, q repository.DBExecutor, payerUserID int64, since time.Time) ([]domain.Expense, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Expense
	for _, e := range s.expenses {
		if e.PayerUserID == payerUserID && !e.SpentAt.Before(since) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpentAt.After(out[j].SpentAt) })
	return out, nil
}

type fakeLedgerRepo struct{ store *fakeStore }

func (r *fakeLedgerRepo) CreateEntry(ctx context.Context, q repository.DBExecutor, entry *domain.LedgerEntry) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextLedger++
	entry.ID = s.nextLedger
	s.ledger = append(s.ledger, *entry)
	return nil
}

func (r *fakeLedgerRepo) TotalsByCircle(ctx context.Context, q repository.DBExecutor, circleID int64) (*repository.LedgerTotals, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := &repository.LedgerTotals{}
	for _, e := range s.ledger {
		if e.CircleID != circleID {
			continue
		}
		switch e.Kind {
		case domain.LedgerKindContribution:
			totals.Contributions = totals.Contributions.Add(e.Amount)
		case domain.LedgerKindAllocation:
			totals.Allocations = totals.Allocations.Add(e.Amount)
		case domain.LedgerKindExpense:
			totals.Expenses = totals.Expenses.Add(e.Amount)
		}
	}
	return totals, nil
}

// stubClassifier is a scriptable Classifier for expense tests.
type stubClassifier struct {
	verdict domain.Productivity
	err     error
	block   chan struct{} // when non-nil, Classify waits for a receive
}

func (c *stubClassifier) Classify(ctx context.Context, in classifier.ExpenseInput) (domain.Productivity, error) {
	if c.block != nil {
		<-c.block
	}
	if c.err != nil {
		return domain.ProductivityUnclassified, c.err
	}
	return c.verdict, nil
}

func (c *stubClassifier) Insights(ctx context.Context, summaries []string, totalSpent decimal.Decimal) ([]string, error) {
	return nil, util.ErrClassificationUnavailable
}

// fixture wires the services against the fake store.
type fixture struct {
	store       *fakeStore
	userRepo    *fakeUserRepo
	circleRepo  *fakeCircleRepo
	expenseRepo *fakeExpenseRepo
	ledgerRepo  *fakeLedgerRepo
	classifier  *stubClassifier
	classified  chan domain.Productivity

	circles  CircleService
	expenses ExpenseService
	users    UserService
}

func newFixture() *fixture {
	f := &fixture{
		store:      newFakeStore(),
		classifier: &stubClassifier{verdict: domain.ProductivityProductive},
		classified: make(chan domain.Productivity, 8),
	}
	f.userRepo = &fakeUserRepo{store: f.store}
	f.circleRepo = &fakeCircleRepo{store: f.store}
	f.expenseRepo = &fakeExpenseRepo{store: f.store}
	f.ledgerRepo = &fakeLedgerRepo{store: f.store}

	beginTx := func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
		return beginFakeTx(f.store), nil
	}

	f.circles = NewCircleService(nil, fakeExecutor{}, f.userRepo, f.circleRepo, f.ledgerRepo, beginTx, db.CommitTx, db.RollbackTx)
	f.expenses = NewExpenseService(nil, fakeExecutor{}, f.circleRepo, f.expenseRepo, f.ledgerRepo, f.classifier, beginTx, db.CommitTx, db.RollbackTx,
		WithClassifyNotify(func(expenseID int64, verdict domain.Productivity, err error) {
			f.classified <- verdict
		}))
	f.users = NewUserService(fakeExecutor{}, f.userRepo)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
