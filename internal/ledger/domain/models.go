package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds a user's identity attributes and the single source of
// truth for spendable funds. Balance is mutated only by transaction
// approval and the investment debit/credit steps.
type Account struct {
	ID            string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email         string          `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"`
	FullName      string          `gorm:"type:varchar(100)" json:"fullName"`
	PasswordHash  string          `gorm:"type:varchar(100)" json:"-"`
	Role          AccountRole     `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	ReferralCode  string          `gorm:"uniqueIndex;type:varchar(16)" json:"referralCode"`
	ReferralCount int             `gorm:"not null;default:0" json:"referralCount"`
	ReferredBy    string          `gorm:"type:varchar(64)" json:"referredBy,omitempty"`
	Balance       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`
	Status        AccountStatus   `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	LastLoginAt   time.Time       `json:"lastLoginAt"`
}

func (Account) TableName() string {
	return "accounts"
}

// Transaction is an append-only record of a cash-movement request or an
// informational investment event. Once approved or rejected the status
// is immutable.
type Transaction struct {
	ID              string            `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID       string            `gorm:"index;type:varchar(64);not null" json:"accountId"`
	Kind            TransactionKind   `gorm:"type:varchar(16);not null" json:"kind"`
	Amount          decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"amount"`
	Status          TransactionStatus `gorm:"index;type:varchar(16);not null" json:"status"`
	PlanID          string            `gorm:"type:varchar(32)" json:"planId,omitempty"`
	InvestmentID    string            `gorm:"type:varchar(36)" json:"investmentId,omitempty"`
	RequestedAt     time.Time         `gorm:"index;not null" json:"requestedAt"`
	ProcessedAt     *time.Time        `json:"processedAt,omitempty"`
	ProcessedBy     string            `gorm:"type:varchar(64)" json:"processedBy,omitempty"`
	RejectionReason string            `gorm:"type:text" json:"rejectionReason,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Investment is a fixed-term position against a plan. Principal is
// debited at open, not at maturity.
type Investment struct {
	ID             string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID      string           `gorm:"index;type:varchar(64);not null" json:"accountId"`
	PlanID         string           `gorm:"index;type:varchar(32);not null" json:"planId"`
	Principal      decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"principal"`
	Rate           decimal.Decimal  `gorm:"type:decimal(10,4);not null" json:"rate"`
	DurationDays   int              `gorm:"not null" json:"durationDays"`
	ExpectedReturn decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"expectedReturn"`
	AccruedProfit  decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"accruedProfit"`
	Status         InvestmentStatus `gorm:"index;type:varchar(16);not null" json:"status"`
	PayoutStatus   PayoutStatus     `gorm:"type:varchar(16);not null" json:"payoutStatus"`
	OpenedAt       time.Time        `gorm:"not null" json:"openedAt"`
	MaturesAt      time.Time        `gorm:"not null" json:"maturesAt"`
	LastAccruedAt  time.Time        `json:"lastAccruedAt"`
	ProcessedAt    *time.Time       `json:"processedAt,omitempty"`
	ProcessedBy    string           `gorm:"type:varchar(64)" json:"processedBy,omitempty"`
}

func (Investment) TableName() string {
	return "investments"
}

// TotalProfit is the capped profit of the position, expectedReturn minus
// principal.
func (i *Investment) TotalProfit() decimal.Decimal {
	return i.ExpectedReturn.Sub(i.Principal)
}

// ExpectedReturnFor computes principal + principal*rate/100.
func ExpectedReturnFor(principal, rate decimal.Decimal) decimal.Decimal {
	return principal.Add(principal.Mul(rate).Div(decimal.NewFromInt(100)))
}

// Plan is a tiered yield plan from the catalog.
type Plan struct {
	ID           string          `gorm:"primaryKey;type:varchar(32)" json:"id"`
	Name         string          `gorm:"type:varchar(64);not null" json:"name"`
	Description  string          `gorm:"type:text" json:"description"`
	MinAmount    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"minAmount"`
	ROI          decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"roi"`
	DurationDays int             `gorm:"not null" json:"durationDays"`
	Recommended  bool            `gorm:"not null;default:false" json:"recommended"`
}

func (Plan) TableName() string {
	return "plans"
}

// DefaultPlans is the catalog seeded on first start.
func DefaultPlans() []*Plan {
	return []*Plan{
		{
			ID:           "starter_plan",
			Name:         "Starter Plan",
			Description:  "Perfect for beginners looking to start their investment journey",
			MinAmount:    decimal.NewFromInt(500),
			ROI:          decimal.NewFromInt(5),
			DurationDays: 7,
		},
		{
			ID:           "growth_plan",
			Name:         "Growth Plan",
			Description:  "Designed for investors seeking steady growth and higher returns",
			MinAmount:    decimal.NewFromInt(2500),
			ROI:          decimal.NewFromInt(15),
			DurationDays: 14,
			Recommended:  true,
		},
		{
			ID:           "premium_plan",
			Name:         "Premium Plan",
			Description:  "Our highest tier for serious investors seeking maximum returns",
			MinAmount:    decimal.NewFromInt(10000),
			ROI:          decimal.NewFromInt(30),
			DurationDays: 30,
		},
	}
}
