package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zuloanga/Coinorbit/internal/ledger/adapter/repo/memory"
	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

type aggFixture struct {
	accounts *memory.AccountRepository
	txs      *memory.TransactionRepository
	invs     *memory.InvestmentRepository
	agg      *Aggregator
}

func newAggFixture() *aggFixture {
	f := &aggFixture{
		accounts: memory.NewAccountRepository(),
		txs:      memory.NewTransactionRepository(),
		invs:     memory.NewInvestmentRepository(),
	}
	f.agg = New(f.accounts, f.txs, f.invs, nil, zap.NewNop())
	return f
}

func TestPlatformValue(t *testing.T) {
	f := newAggFixture()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	f.agg.Publish(domain.DepositApproved{AccountID: "u1", TransactionID: "t1", Amount: decimal.NewFromInt(1000), At: now})
	f.agg.Publish(domain.DepositApproved{AccountID: "u2", TransactionID: "t2", Amount: decimal.NewFromInt(500), At: now})
	f.agg.Publish(domain.WithdrawalApproved{AccountID: "u1", TransactionID: "t3", Amount: decimal.NewFromInt(200), At: now})
	// Internal movements leave platform value alone.
	f.agg.Publish(domain.InvestmentOpened{AccountID: "u1", InvestmentID: "i1", PlanID: "growth_plan", Principal: decimal.NewFromInt(2500), At: now})
	f.agg.Publish(domain.InvestmentPaidOut{AccountID: "u1", InvestmentID: "i1", Return: decimal.NewFromInt(2875), At: now})
	f.agg.Publish(domain.InvestmentRefunded{AccountID: "u2", InvestmentID: "i2", Refund: decimal.NewFromInt(500), At: now})

	if got := f.agg.TotalPlatformValue(); !got.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("platform value = %s, want 1300", got)
	}
}

func TestStatsWeeklyWindows(t *testing.T) {
	f := newAggFixture()
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	lastWeek := now.AddDate(0, 0, -10)

	// Previous window: one user, 1000 deposited.
	f.agg.Publish(domain.UserRegistered{AccountID: "u1", At: lastWeek})
	f.agg.Publish(domain.DepositApproved{AccountID: "u1", TransactionID: "t1", Amount: decimal.NewFromInt(1000), At: lastWeek})

	// Current window: two users, 3000 deposited, one investment.
	f.agg.Publish(domain.UserRegistered{AccountID: "u2", At: now.AddDate(0, 0, -2)})
	f.agg.Publish(domain.UserRegistered{AccountID: "u3", At: now})
	f.agg.Publish(domain.DepositApproved{AccountID: "u2", TransactionID: "t2", Amount: decimal.NewFromInt(3000), At: now})
	f.agg.Publish(domain.InvestmentOpened{AccountID: "u2", InvestmentID: "i1", PlanID: "growth_plan", Principal: decimal.NewFromInt(2500), At: now})

	stats := f.agg.Stats(now)

	if !stats.Users.Total.Equal(decimal.NewFromInt(3)) {
		t.Errorf("users total = %s, want 3", stats.Users.Total)
	}
	if !stats.Users.CurrentWeek.Equal(decimal.NewFromInt(2)) || !stats.Users.PreviousWeek.Equal(decimal.NewFromInt(1)) {
		t.Errorf("users windows = %s/%s, want 2/1", stats.Users.CurrentWeek, stats.Users.PreviousWeek)
	}
	if stats.Users.PercentageChange != "+100" {
		t.Errorf("users change = %q, want +100", stats.Users.PercentageChange)
	}

	if !stats.Deposits.CurrentWeek.Equal(decimal.NewFromInt(3000)) || !stats.Deposits.PreviousWeek.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("deposit windows = %s/%s, want 3000/1000", stats.Deposits.CurrentWeek, stats.Deposits.PreviousWeek)
	}
	if stats.Deposits.PercentageChange != "+200" {
		t.Errorf("deposits change = %q, want +200", stats.Deposits.PercentageChange)
	}

	// Empty previous window reports the dashboard's +100 convention.
	if stats.Investments.PercentageChange != "+100" {
		t.Errorf("investments change = %q, want +100", stats.Investments.PercentageChange)
	}
	if !stats.Withdrawals.CurrentWeek.IsZero() || stats.Withdrawals.PercentageChange != "+100" {
		t.Errorf("withdrawals = %+v", stats.Withdrawals)
	}
}

func TestStatsNegativeChange(t *testing.T) {
	f := newAggFixture()
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	f.agg.Publish(domain.DepositApproved{AccountID: "u1", TransactionID: "t1", Amount: decimal.NewFromInt(1000), At: now.AddDate(0, 0, -10)})
	f.agg.Publish(domain.DepositApproved{AccountID: "u1", TransactionID: "t2", Amount: decimal.NewFromInt(500), At: now})

	stats := f.agg.Stats(now)
	if stats.Deposits.PercentageChange != "-50" {
		t.Errorf("deposits change = %q, want -50", stats.Deposits.PercentageChange)
	}
}

func TestRecentTransactionsDecoration(t *testing.T) {
	f := newAggFixture()
	ctx := context.Background()
	now := time.Now()

	if err := f.accounts.Create(ctx, &domain.Account{ID: "u1", Email: "u1@example.com", FullName: "User One"}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	for i, id := range []string{"t1", "t2"} {
		accountID := "u1"
		if id == "t2" {
			accountID = "ghost"
		}
		err := f.txs.Create(ctx, &domain.Transaction{
			ID:          id,
			AccountID:   accountID,
			Kind:        domain.KindDeposit,
			Amount:      decimal.NewFromInt(10),
			Status:      domain.TxPending,
			RequestedAt: now.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create tx: %v", err)
		}
	}

	items := f.agg.RecentTransactions(ctx, 10)
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	// Newest first: t2 belongs to a deleted account.
	if items[0].UserEmail != "Unknown" || items[0].UserName != "Unknown User" {
		t.Errorf("missing owner not degraded: %q %q", items[0].UserEmail, items[0].UserName)
	}
	if items[1].UserEmail != "u1@example.com" {
		t.Errorf("owner decoration wrong: %q", items[1].UserEmail)
	}
}

func TestRebuildMatchesLiveCounters(t *testing.T) {
	f := newAggFixture()
	ctx := context.Background()
	now := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	processed := now.AddDate(0, 0, -1)

	if err := f.accounts.Create(ctx, &domain.Account{ID: "u1", Email: "u1@example.com", CreatedAt: now.AddDate(0, 0, -3)}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	// Old history: counted in lifetime totals, outside both weekly windows.
	if err := f.accounts.Create(ctx, &domain.Account{ID: "u0", Email: "u0@example.com", CreatedAt: now.AddDate(0, 0, -30)}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	oldProcessed := now.AddDate(0, 0, -30)
	if err := f.txs.Create(ctx, &domain.Transaction{
		ID:          "t0",
		AccountID:   "u0",
		Kind:        domain.KindDeposit,
		Amount:      decimal.NewFromInt(700),
		Status:      domain.TxApproved,
		RequestedAt: oldProcessed,
		ProcessedAt: &oldProcessed,
	}); err != nil {
		t.Fatalf("create tx: %v", err)
	}
	deposits := []struct {
		id     string
		amount int64
		status domain.TransactionStatus
	}{
		{"t1", 1000, domain.TxApproved},
		{"t2", 400, domain.TxRejected}, // rejected must not count
		{"t3", 50, domain.TxPending},   // pending must not count
	}
	for _, d := range deposits {
		tx := &domain.Transaction{
			ID:          d.id,
			AccountID:   "u1",
			Kind:        domain.KindDeposit,
			Amount:      decimal.NewFromInt(d.amount),
			Status:      d.status,
			RequestedAt: processed,
		}
		if d.status != domain.TxPending {
			at := processed
			tx.ProcessedAt = &at
		}
		if err := f.txs.Create(ctx, tx); err != nil {
			t.Fatalf("create tx: %v", err)
		}
	}
	if err := f.invs.Create(ctx, &domain.Investment{
		ID:           "i1",
		AccountID:    "u1",
		PlanID:       "growth_plan",
		Principal:    decimal.NewFromInt(2500),
		Status:       domain.InvestmentActive,
		PayoutStatus: domain.PayoutPending,
		OpenedAt:     processed,
		MaturesAt:    processed.AddDate(0, 0, 14),
	}); err != nil {
		t.Fatalf("create investment: %v", err)
	}

	if err := f.agg.Rebuild(ctx, now); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if got := f.agg.TotalPlatformValue(); !got.Equal(decimal.NewFromInt(1700)) {
		t.Errorf("platform value = %s, want 1700", got)
	}
	stats := f.agg.Stats(now)
	if !stats.Users.Total.Equal(decimal.NewFromInt(2)) || !stats.Users.CurrentWeek.Equal(decimal.NewFromInt(1)) {
		t.Errorf("users = %+v", stats.Users)
	}
	if !stats.Deposits.Total.Equal(decimal.NewFromInt(1700)) || !stats.Deposits.CurrentWeek.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("deposits = %+v", stats.Deposits)
	}
	if !stats.Deposits.PreviousWeek.IsZero() {
		t.Errorf("old deposit leaked into a weekly window: %s", stats.Deposits.PreviousWeek)
	}
	if !stats.Investments.Total.Equal(decimal.NewFromInt(2500)) || !stats.Investments.CurrentWeek.Equal(decimal.NewFromInt(1)) {
		t.Errorf("investments = %+v", stats.Investments)
	}
}
