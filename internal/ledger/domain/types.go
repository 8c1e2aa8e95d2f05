package domain

// AccountStatus marks whether an account may originate new activity.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
)

// AccountRole separates ordinary users from the admin role that gates
// the approval workflow.
type AccountRole string

const (
	RoleUser  AccountRole = "user"
	RoleAdmin AccountRole = "admin"
)

// TransactionKind distinguishes cash-movement requests from the
// informational records written by the investment ledger.
type TransactionKind string

const (
	KindDeposit    TransactionKind = "deposit"
	KindWithdraw   TransactionKind = "withdraw"
	KindInvestment TransactionKind = "investment"
	KindProfit     TransactionKind = "profit"
	KindRefund     TransactionKind = "refund"
)

// IsCashMovement reports whether the kind participates in the approval
// workflow. Only deposits and withdrawals ever mutate balance through it.
func (k TransactionKind) IsCashMovement() bool {
	return k == KindDeposit || k == KindWithdraw
}

// TransactionStatus is the approval state of a transaction.
// Informational kinds are written as TxCompleted and never transition.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxApproved  TransactionStatus = "approved"
	TxRejected  TransactionStatus = "rejected"
	TxCompleted TransactionStatus = "completed"
)

// InvestmentStatus is the lifecycle state of a position.
type InvestmentStatus string

const (
	InvestmentActive    InvestmentStatus = "active"
	InvestmentCompleted InvestmentStatus = "completed"
	InvestmentCancelled InvestmentStatus = "cancelled"
)

// PayoutStatus tracks the money movement separately from the lifecycle
// so the payout credit stays idempotent under retries.
type PayoutStatus string

const (
	PayoutPending   PayoutStatus = "pending"
	PayoutCompleted PayoutStatus = "completed"
)
