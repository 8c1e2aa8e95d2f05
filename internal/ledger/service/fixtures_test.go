package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zuloanga/Coinorbit/internal/ledger/adapter/repo/memory"
	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

// staticAdmins is an AdminChecker backed by a fixed set.
type staticAdmins map[string]bool

func (a staticAdmins) IsAdmin(_ context.Context, id string) (bool, error) { return a[id], nil }

// recordingSink captures published events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *recordingSink) Publish(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) all() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

// fakeClock is a settable clock shared by the services under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	accounts *memory.AccountRepository
	txs      *memory.TransactionRepository
	invs     *memory.InvestmentRepository
	plans    *memory.PlanRepository
	clock    *fakeClock
	sink     *recordingSink
	txSvc    *TransactionService
	invSvc   *InvestmentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		accounts: memory.NewAccountRepository(),
		txs:      memory.NewTransactionRepository(),
		invs:     memory.NewInvestmentRepository(),
		plans:    memory.NewPlanRepository(),
		clock:    newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		sink:     &recordingSink{},
	}
	if err := f.plans.Seed(context.Background(), domain.DefaultPlans()); err != nil {
		t.Fatalf("seed plans: %v", err)
	}

	admins := staticAdmins{"admin-1": true}
	locks := NewKeyedMutex()
	logger := zap.NewNop()

	f.txSvc = NewTransactionService(f.accounts, f.txs, admins, locks, f.sink, logger, f.clock.Now)
	f.invSvc = NewInvestmentService(f.accounts, f.txs, f.invs, f.plans, admins, locks, f.sink, logger, f.clock.Now)
	return f
}

func (f *fixture) addAccount(t *testing.T, id string, balance int64) {
	t.Helper()
	err := f.accounts.Create(context.Background(), &domain.Account{
		ID:        id,
		Email:     id + "@example.com",
		FullName:  "User " + id,
		Role:      domain.RoleUser,
		Balance:   decimal.NewFromInt(balance),
		Status:    domain.AccountActive,
		CreatedAt: f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acc, err := f.accounts.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return acc.Balance
}

func (f *fixture) suspend(t *testing.T, id string) {
	t.Helper()
	if err := f.accounts.UpdateStatus(context.Background(), id, domain.AccountSuspended); err != nil {
		t.Fatalf("suspend %s: %v", id, err)
	}
}

// recordsOfKind filters an account's history by kind.
func (f *fixture) recordsOfKind(t *testing.T, accountID string, kind domain.TransactionKind) []*domain.Transaction {
	t.Helper()
	txs, err := f.txs.ListByAccount(context.Background(), accountID, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	var out []*domain.Transaction
	for _, tx := range txs {
		if tx.Kind == kind {
			out = append(out, tx)
		}
	}
	return out
}
