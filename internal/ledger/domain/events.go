package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is a domain event emitted by every balance-affecting mutation.
// The aggregation component consumes these to keep its materialized
// counters current instead of rescanning the ledgers.
type Event interface {
	OccurredAt() time.Time
}

// Sink receives domain events. Publish must not fail the mutation that
// emitted the event.
type Sink interface {
	Publish(Event)
}

type UserRegistered struct {
	AccountID string
	At        time.Time
}

type DepositApproved struct {
	AccountID     string
	TransactionID string
	Amount        decimal.Decimal
	At            time.Time
}

type WithdrawalApproved struct {
	AccountID     string
	TransactionID string
	Amount        decimal.Decimal
	At            time.Time
}

type InvestmentOpened struct {
	AccountID    string
	InvestmentID string
	PlanID       string
	Principal    decimal.Decimal
	At           time.Time
}

type InvestmentRefunded struct {
	AccountID    string
	InvestmentID string
	Refund       decimal.Decimal
	At           time.Time
}

type InvestmentPaidOut struct {
	AccountID    string
	InvestmentID string
	Return       decimal.Decimal
	At           time.Time
}

func (e UserRegistered) OccurredAt() time.Time { return e.At }

func (e DepositApproved) OccurredAt() time.Time { return e.At }

func (e WithdrawalApproved) OccurredAt() time.Time { return e.At }

func (e InvestmentOpened) OccurredAt() time.Time { return e.At }

func (e InvestmentRefunded) OccurredAt() time.Time { return e.At }

func (e InvestmentPaidOut) OccurredAt() time.Time { return e.At }
