package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Repository ports. Adapters implement them over postgres (gorm) and
// over process memory; the service layer depends only on these.
//
// The conditional transition methods (MarkProcessed, MarkSettled,
// MarkCancelled) are the exactly-once guard of the whole core: they
// succeed for at most one caller and report ErrAlreadyProcessed /
// ErrAlreadyPaidOut to everyone else.

// AccountRepository stores account records and performs atomic balance
// adjustment. AdjustBalance never validates a minimum; callers pre-check
// sufficiency under the account's lock.
type AccountRepository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByReferralCode(ctx context.Context, code string) (*Account, error)
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
	UpdateStatus(ctx context.Context, id string, status AccountStatus) error
	IncrementReferralCount(ctx context.Context, id string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context) ([]*Account, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// TransactionRepository is the append-only cash-movement ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id string) (*Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*Transaction, error)
	// ListPending returns pending transactions across all accounts,
	// newest first.
	ListPending(ctx context.Context) ([]*Transaction, error)
	ListRecent(ctx context.Context, limit int) ([]*Transaction, error)
	// MarkProcessed transitions pending -> to and stamps the processor.
	// Returns ErrAlreadyProcessed when the record is no longer pending.
	MarkProcessed(ctx context.Context, id string, to TransactionStatus, by, reason string, at time.Time) error
	// RevertProcessed is the compensating write for a failed balance
	// adjustment: it restores the record to pending.
	RevertProcessed(ctx context.Context, id string) error
	SumAmountBetween(ctx context.Context, kind TransactionKind, status TransactionStatus, from, to time.Time) (decimal.Decimal, error)
}

// InvestmentRepository stores positions and their settlement state.
type InvestmentRepository interface {
	Create(ctx context.Context, inv *Investment) error
	GetByID(ctx context.Context, id string) (*Investment, error)
	ListByAccount(ctx context.Context, accountID string) ([]*Investment, error)
	ListActive(ctx context.Context) ([]*Investment, error)
	List(ctx context.Context) ([]*Investment, error)
	HasActivePlan(ctx context.Context, accountID, planID string) (bool, error)
	UpdateAccrual(ctx context.Context, id string, profit decimal.Decimal, at time.Time) error
	// MarkSettled transitions active/payout-pending ->
	// completed/payout-completed. Returns ErrAlreadyPaidOut when the
	// payout is no longer pending.
	MarkSettled(ctx context.Context, id, by string, at time.Time) error
	// MarkCancelled transitions active -> cancelled. Returns
	// ErrAlreadyProcessed when the position is not active.
	MarkCancelled(ctx context.Context, id, by string, at time.Time) error
	// Reactivate is the compensating write for a failed credit after
	// MarkSettled or MarkCancelled.
	Reactivate(ctx context.Context, id string) error
	CountOpenedBetween(ctx context.Context, from, to time.Time) (int64, error)
}

// PlanRepository is the tiered yield plan catalog.
type PlanRepository interface {
	GetByID(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
	Update(ctx context.Context, plan *Plan) error
	// Seed inserts plans that do not exist yet; existing rows are kept.
	Seed(ctx context.Context, plans []*Plan) error
}
