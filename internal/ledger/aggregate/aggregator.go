// Package aggregate maintains the reporting projections as materialized
// counters. Every mutation in the ledger emits a domain event; the
// aggregator folds events into per-day buckets and running totals, so
// platform stats never require an O(accounts x transactions) rescan.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
	"github.com/zuloanga/Coinorbit/internal/platform/metrics"
)

// WeeklyStat compares the current rolling seven-day window against the
// previous one.
type WeeklyStat struct {
	Total            decimal.Decimal `json:"total"`
	CurrentWeek      decimal.Decimal `json:"currentWeek"`
	PreviousWeek     decimal.Decimal `json:"previousWeek"`
	PercentageChange string          `json:"percentageChange"`
}

// PlatformStats is the admin dashboard projection.
type PlatformStats struct {
	Users       WeeklyStat `json:"users"`
	Deposits    WeeklyStat `json:"deposits"`
	Investments WeeklyStat `json:"investments"`
	Withdrawals WeeklyStat `json:"withdrawals"`
}

// dayBucket accumulates one UTC day's activity.
type dayBucket struct {
	users       int64
	deposits    decimal.Decimal
	withdrawals decimal.Decimal
	investments int64
}

// Aggregator is the event sink. Publish applies events synchronously
// under the aggregator's own lock; mutations on the ledger side never
// block on reporting reads.
type Aggregator struct {
	accounts domain.AccountRepository
	txs      domain.TransactionRepository
	invs     domain.InvestmentRepository
	metrics  *metrics.Collector
	logger   *zap.Logger

	mu               sync.RWMutex
	platformValue    decimal.Decimal
	totalUsers       int64
	totalDeposits    decimal.Decimal
	totalWithdrawals decimal.Decimal
	totalInvested    decimal.Decimal
	days             map[time.Time]*dayBucket
}

// rebuildWindowDays spans the two weekly windows Stats compares.
const rebuildWindowDays = 14

var _ domain.Sink = (*Aggregator)(nil)

func New(
	accounts domain.AccountRepository,
	txs domain.TransactionRepository,
	invs domain.InvestmentRepository,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Aggregator {
	return &Aggregator{
		accounts:         accounts,
		txs:              txs,
		invs:             invs,
		metrics:          collector,
		logger:           logger,
		platformValue:    decimal.Zero,
		totalDeposits:    decimal.Zero,
		totalWithdrawals: decimal.Zero,
		totalInvested:    decimal.Zero,
		days:             make(map[time.Time]*dayBucket),
	}
}

// Publish folds one event into the counters. The switch is exhaustive
// over the event variants; an unknown variant is a programming error
// worth a log line, not a panic.
func (a *Aggregator) Publish(event domain.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	bucket := a.bucketFor(event.OccurredAt())
	switch e := event.(type) {
	case domain.UserRegistered:
		a.totalUsers++
		bucket.users++
		if a.metrics != nil {
			a.metrics.UserRegistered()
		}
	case domain.DepositApproved:
		a.platformValue = a.platformValue.Add(e.Amount)
		a.totalDeposits = a.totalDeposits.Add(e.Amount)
		bucket.deposits = bucket.deposits.Add(e.Amount)
		if a.metrics != nil {
			a.metrics.TransactionApproved(string(domain.KindDeposit))
			a.metrics.SetPlatformValue(a.platformValue.InexactFloat64())
		}
	case domain.WithdrawalApproved:
		a.platformValue = a.platformValue.Sub(e.Amount)
		a.totalWithdrawals = a.totalWithdrawals.Add(e.Amount)
		bucket.withdrawals = bucket.withdrawals.Add(e.Amount)
		if a.metrics != nil {
			a.metrics.TransactionApproved(string(domain.KindWithdraw))
			a.metrics.SetPlatformValue(a.platformValue.InexactFloat64())
		}
	case domain.InvestmentOpened:
		a.totalInvested = a.totalInvested.Add(e.Principal)
		bucket.investments++
		if a.metrics != nil {
			a.metrics.InvestmentOpened()
		}
	case domain.InvestmentPaidOut:
		if a.metrics != nil {
			a.metrics.PayoutProcessed()
		}
	case domain.InvestmentRefunded:
		// Refund moves money back within the platform; platform value
		// is deposits minus withdrawals and does not change here.
	default:
		a.logger.Warn("unhandled domain event", zap.Any("event", event))
	}
}

// TotalPlatformValue is the sum of approved deposits minus approved
// withdrawals across all accounts.
func (a *Aggregator) TotalPlatformValue() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.platformValue
}

// Stats reports the rolling weekly windows ending at now.
func (a *Aggregator) Stats(now time.Time) *PlatformStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	weekStart := day(now).AddDate(0, 0, -6)
	prevStart := weekStart.AddDate(0, 0, -7)

	var curUsers, prevUsers, curInv, prevInv int64
	curDep, prevDep := decimal.Zero, decimal.Zero
	curWd, prevWd := decimal.Zero, decimal.Zero

	for d, bucket := range a.days {
		switch {
		case !d.Before(weekStart):
			curUsers += bucket.users
			curInv += bucket.investments
			curDep = curDep.Add(bucket.deposits)
			curWd = curWd.Add(bucket.withdrawals)
		case !d.Before(prevStart):
			prevUsers += bucket.users
			prevInv += bucket.investments
			prevDep = prevDep.Add(bucket.deposits)
			prevWd = prevWd.Add(bucket.withdrawals)
		}
	}

	return &PlatformStats{
		Users:       weekly(decimal.NewFromInt(a.totalUsers), decimal.NewFromInt(curUsers), decimal.NewFromInt(prevUsers)),
		Deposits:    weekly(a.totalDeposits, curDep, prevDep),
		Investments: weekly(a.totalInvested, decimal.NewFromInt(curInv), decimal.NewFromInt(prevInv)),
		Withdrawals: weekly(a.totalWithdrawals, curWd, prevWd),
	}
}

// RecentTransactions is the bounded newest-first feed merged across all
// accounts, decorated with owner identity. Failures degrade to an empty
// feed since reporting is best-effort.
func (a *Aggregator) RecentTransactions(ctx context.Context, limit int) []*TransactionFeedItem {
	txs, err := a.txs.ListRecent(ctx, limit)
	if err != nil {
		a.logger.Error("recent transaction feed unavailable", zap.Error(err))
		return nil
	}

	items := make([]*TransactionFeedItem, 0, len(txs))
	for _, tx := range txs {
		item := &TransactionFeedItem{Transaction: *tx, UserEmail: "Unknown", UserName: "Unknown User"}
		if account, err := a.accounts.GetByID(ctx, tx.AccountID); err == nil {
			item.UserEmail = account.Email
			item.UserName = account.FullName
		}
		items = append(items, item)
	}
	return items
}

// TransactionFeedItem is one row of the admin activity feed.
type TransactionFeedItem struct {
	domain.Transaction
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
}

// Rebuild restores the counters from persisted state after a restart.
// Lifetime totals come from open-ended windowed queries; the per-day
// buckets are restored day by day over the span Stats actually reads,
// so a rebuild never pages whole ledgers through memory. Any unreadable
// slice degrades to zeroes for that slice.
func (a *Aggregator) Rebuild(ctx context.Context, now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Exclusive upper bound covering everything stamped today.
	horizon := day(now).AddDate(0, 0, 1)
	var epoch time.Time

	a.platformValue = decimal.Zero
	a.totalUsers = 0
	a.totalDeposits = decimal.Zero
	a.totalWithdrawals = decimal.Zero
	a.totalInvested = decimal.Zero
	a.days = make(map[time.Time]*dayBucket)

	if users, err := a.accounts.CountCreatedBetween(ctx, epoch, horizon); err != nil {
		a.logger.Error("rebuild: user count unreadable", zap.Error(err))
	} else {
		a.totalUsers = users
	}
	if sum, err := a.txs.SumAmountBetween(ctx, domain.KindDeposit, domain.TxApproved, epoch, horizon); err != nil {
		a.logger.Error("rebuild: deposit total unreadable", zap.Error(err))
	} else {
		a.totalDeposits = sum
	}
	if sum, err := a.txs.SumAmountBetween(ctx, domain.KindWithdraw, domain.TxApproved, epoch, horizon); err != nil {
		a.logger.Error("rebuild: withdrawal total unreadable", zap.Error(err))
	} else {
		a.totalWithdrawals = sum
	}
	a.platformValue = a.totalDeposits.Sub(a.totalWithdrawals)

	// Principal sums have no windowed query; this is the one remaining
	// full fold.
	if invs, err := a.invs.List(ctx); err != nil {
		a.logger.Error("rebuild: investments unreadable", zap.Error(err))
	} else {
		for _, inv := range invs {
			a.totalInvested = a.totalInvested.Add(inv.Principal)
		}
	}

	for i := 0; i < rebuildWindowDays; i++ {
		from := horizon.AddDate(0, 0, -(i + 1))
		to := from.AddDate(0, 0, 1)
		bucket := a.bucketFor(from)

		if n, err := a.accounts.CountCreatedBetween(ctx, from, to); err != nil {
			a.logger.Error("rebuild: user bucket unreadable", zap.Time("day", from), zap.Error(err))
		} else {
			bucket.users = n
		}
		if sum, err := a.txs.SumAmountBetween(ctx, domain.KindDeposit, domain.TxApproved, from, to); err != nil {
			a.logger.Error("rebuild: deposit bucket unreadable", zap.Time("day", from), zap.Error(err))
		} else {
			bucket.deposits = sum
		}
		if sum, err := a.txs.SumAmountBetween(ctx, domain.KindWithdraw, domain.TxApproved, from, to); err != nil {
			a.logger.Error("rebuild: withdrawal bucket unreadable", zap.Time("day", from), zap.Error(err))
		} else {
			bucket.withdrawals = sum
		}
		if n, err := a.invs.CountOpenedBetween(ctx, from, to); err != nil {
			a.logger.Error("rebuild: investment bucket unreadable", zap.Time("day", from), zap.Error(err))
		} else {
			bucket.investments = n
		}
	}

	if a.metrics != nil {
		a.metrics.SetPlatformValue(a.platformValue.InexactFloat64())
	}
	a.logger.Info("aggregation counters rebuilt",
		zap.Int64("users", a.totalUsers),
		zap.String("platform_value", a.platformValue.String()),
	)
	return nil
}

func (a *Aggregator) bucketFor(at time.Time) *dayBucket {
	d := day(at)
	bucket, ok := a.days[d]
	if !ok {
		bucket = &dayBucket{deposits: decimal.Zero, withdrawals: decimal.Zero}
		a.days[d] = bucket
	}
	return bucket
}

func day(at time.Time) time.Time {
	return at.UTC().Truncate(24 * time.Hour)
}

// weekly formats a window comparison. An empty previous week reports
// "+100" to match the dashboard's convention.
func weekly(total, current, previous decimal.Decimal) WeeklyStat {
	change := "+100"
	if previous.IsPositive() {
		pct := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(0)
		if pct.Sign() >= 0 {
			change = fmt.Sprintf("+%s", pct)
		} else {
			change = pct.String()
		}
	}
	return WeeklyStat{
		Total:            total,
		CurrentWeek:      current,
		PreviousWeek:     previous,
		PercentageChange: change,
	}
}
