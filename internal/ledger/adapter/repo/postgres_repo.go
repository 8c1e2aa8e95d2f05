// Package repo contains the postgres repository adapters. Status
// transitions are conditional UPDATEs; RowsAffected == 0 means another
// caller won the transition, which is how the exactly-once guarantees
// survive concurrent admins.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

var (
	_ domain.AccountRepository     = (*PostgresAccountRepo)(nil)
	_ domain.TransactionRepository = (*PostgresTransactionRepo)(nil)
	_ domain.InvestmentRepository  = (*PostgresInvestmentRepo)(nil)
	_ domain.PlanRepository        = (*PostgresPlanRepo)(nil)
)

// AutoMigrate creates or updates the ledger schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Account{},
		&domain.Transaction{},
		&domain.Investment{},
		&domain.Plan{},
	)
}

func translateErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicate, what)
	}
	return err
}

// ---------------------------------------------------------

type PostgresAccountRepo struct {
	db *gorm.DB
}

func NewAccountRepo(db *gorm.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

func (r *PostgresAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return translateErr(err, "account "+account.Email)
	}
	return nil
}

func (r *PostgresAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, translateErr(err, "account "+id)
	}
	return &account, nil
}

func (r *PostgresAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.WithContext(ctx).First(&account, "lower(email) = lower(?)", email).Error; err != nil {
		return nil, translateErr(err, "account with email "+email)
	}
	return &account, nil
}

func (r *PostgresAccountRepo) GetByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	var account domain.Account
	if err := r.db.WithContext(ctx).First(&account, "referral_code = ?", code).Error; err != nil {
		return nil, translateErr(err, "referral code "+code)
	}
	return &account, nil
}

// AdjustBalance applies the delta in the database so two concurrent
// adjustments cannot lose an update.
func (r *PostgresAccountRepo) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	result := r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return decimal.Zero, result.Error
	}
	if result.RowsAffected == 0 {
		return decimal.Zero, fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}

	var account domain.Account
	if err := r.db.WithContext(ctx).Select("balance").First(&account, "id = ?", id).Error; err != nil {
		return decimal.Zero, translateErr(err, "account "+id)
	}
	return account.Balance, nil
}

func (r *PostgresAccountRepo) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	return nil
}

func (r *PostgresAccountRepo) IncrementReferralCount(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Update("referral_count", gorm.Expr("referral_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	return nil
}

func (r *PostgresAccountRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

func (r *PostgresAccountRepo) List(ctx context.Context) ([]*domain.Account, error) {
	var accounts []*domain.Account
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *PostgresAccountRepo) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Account{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&count).Error
	return count, err
}

// ---------------------------------------------------------

type PostgresTransactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

func (r *PostgresTransactionRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return translateErr(err, "transaction "+tx.ID)
	}
	return nil
}

func (r *PostgresTransactionRepo) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	if err := r.db.WithContext(ctx).First(&tx, "id = ?", id).Error; err != nil {
		return nil, translateErr(err, "transaction "+id)
	}
	return &tx, nil
}

func (r *PostgresTransactionRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	q := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("requested_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var txs []*domain.Transaction
	if err := q.Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *PostgresTransactionRepo) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.TxPending).
		Order("requested_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *PostgresTransactionRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	q := r.db.WithContext(ctx).Order("requested_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var txs []*domain.Transaction
	if err := q.Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// MarkProcessed resolves a pending transaction. The WHERE clause on the
// current status is the lost-update guard; a second approver sees zero
// rows affected and gets ErrAlreadyProcessed.
func (r *PostgresTransactionRepo) MarkProcessed(ctx context.Context, id string, to domain.TransactionStatus, by, reason string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, domain.TxPending).
		Updates(map[string]interface{}{
			"status":           to,
			"processed_at":     at,
			"processed_by":     by,
			"rejection_reason": reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.explainMiss(ctx, id)
	}
	return nil
}

func (r *PostgresTransactionRepo) RevertProcessed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":           domain.TxPending,
			"processed_at":     nil,
			"processed_by":     "",
			"rejection_reason": "",
		}).Error
}

func (r *PostgresTransactionRepo) SumAmountBetween(ctx context.Context, kind domain.TransactionKind, status domain.TransactionStatus, from, to time.Time) (decimal.Decimal, error) {
	var raw struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Select("COALESCE(SUM(amount), 0) AS total").
		Where("kind = ? AND status = ?", kind, status).
		Where("COALESCE(processed_at, requested_at) >= ? AND COALESCE(processed_at, requested_at) < ?", from, to).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	return raw.Total, nil
}

// explainMiss distinguishes a missing record from a lost race.
func (r *PostgresTransactionRepo) explainMiss(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Transaction{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
	}
	return fmt.Errorf("%w: transaction %s", domain.ErrAlreadyProcessed, id)
}

// ---------------------------------------------------------

type PostgresInvestmentRepo struct {
	db *gorm.DB
}

func NewInvestmentRepo(db *gorm.DB) *PostgresInvestmentRepo {
	return &PostgresInvestmentRepo{db: db}
}

func (r *PostgresInvestmentRepo) Create(ctx context.Context, inv *domain.Investment) error {
	if err := r.db.WithContext(ctx).Create(inv).Error; err != nil {
		return translateErr(err, "investment "+inv.ID)
	}
	return nil
}

func (r *PostgresInvestmentRepo) GetByID(ctx context.Context, id string) (*domain.Investment, error) {
	var inv domain.Investment
	if err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		return nil, translateErr(err, "investment "+id)
	}
	return &inv, nil
}

func (r *PostgresInvestmentRepo) ListByAccount(ctx context.Context, accountID string) ([]*domain.Investment, error) {
	var invs []*domain.Investment
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("opened_at DESC").
		Find(&invs).Error
	if err != nil {
		return nil, err
	}
	return invs, nil
}

func (r *PostgresInvestmentRepo) ListActive(ctx context.Context) ([]*domain.Investment, error) {
	var invs []*domain.Investment
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.InvestmentActive).
		Order("opened_at DESC").
		Find(&invs).Error
	if err != nil {
		return nil, err
	}
	return invs, nil
}

func (r *PostgresInvestmentRepo) List(ctx context.Context) ([]*domain.Investment, error) {
	var invs []*domain.Investment
	if err := r.db.WithContext(ctx).Order("opened_at DESC").Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

func (r *PostgresInvestmentRepo) HasActivePlan(ctx context.Context, accountID, planID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Investment{}).
		Where("account_id = ? AND plan_id = ? AND status = ?", accountID, planID, domain.InvestmentActive).
		Count(&count).Error
	return count > 0, err
}

func (r *PostgresInvestmentRepo) UpdateAccrual(ctx context.Context, id string, profit decimal.Decimal, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Investment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"accrued_profit":  profit,
			"last_accrued_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: investment %s", domain.ErrNotFound, id)
	}
	return nil
}

func (r *PostgresInvestmentRepo) MarkSettled(ctx context.Context, id, by string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Investment{}).
		Where("id = ? AND status = ? AND payout_status = ?", id, domain.InvestmentActive, domain.PayoutPending).
		Updates(map[string]interface{}{
			"status":        domain.InvestmentCompleted,
			"payout_status": domain.PayoutCompleted,
			"processed_at":  at,
			"processed_by":  by,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.explainMiss(ctx, id, domain.ErrAlreadyPaidOut)
	}
	return nil
}

func (r *PostgresInvestmentRepo) MarkCancelled(ctx context.Context, id, by string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&domain.Investment{}).
		Where("id = ? AND status = ?", id, domain.InvestmentActive).
		Updates(map[string]interface{}{
			"status":       domain.InvestmentCancelled,
			"processed_at": at,
			"processed_by": by,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.explainMiss(ctx, id, domain.ErrAlreadyProcessed)
	}
	return nil
}

func (r *PostgresInvestmentRepo) Reactivate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&domain.Investment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        domain.InvestmentActive,
			"payout_status": domain.PayoutPending,
			"processed_at":  nil,
			"processed_by":  "",
		}).Error
}

func (r *PostgresInvestmentRepo) CountOpenedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Investment{}).
		Where("opened_at >= ? AND opened_at < ?", from, to).
		Count(&count).Error
	return count, err
}

func (r *PostgresInvestmentRepo) explainMiss(ctx context.Context, id string, conflict error) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Investment{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: investment %s", domain.ErrNotFound, id)
	}
	return fmt.Errorf("%w: investment %s", conflict, id)
}

// ---------------------------------------------------------

type PostgresPlanRepo struct {
	db *gorm.DB
}

func NewPlanRepo(db *gorm.DB) *PostgresPlanRepo {
	return &PostgresPlanRepo{db: db}
}

func (r *PostgresPlanRepo) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	var plan domain.Plan
	if err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, translateErr(err, "plan "+id)
	}
	return &plan, nil
}

func (r *PostgresPlanRepo) List(ctx context.Context) ([]*domain.Plan, error) {
	var plans []*domain.Plan
	if err := r.db.WithContext(ctx).Order("min_amount ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *PostgresPlanRepo) Update(ctx context.Context, plan *domain.Plan) error {
	// A map update so false/zero fields are written too.
	result := r.db.WithContext(ctx).Model(&domain.Plan{}).
		Where("id = ?", plan.ID).
		Updates(map[string]interface{}{
			"name":          plan.Name,
			"description":   plan.Description,
			"min_amount":    plan.MinAmount,
			"roi":           plan.ROI,
			"duration_days": plan.DurationDays,
			"recommended":   plan.Recommended,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: plan %s", domain.ErrNotFound, plan.ID)
	}
	return nil
}

func (r *PostgresPlanRepo) Seed(ctx context.Context, plans []*domain.Plan) error {
	for _, plan := range plans {
		var count int64
		if err := r.db.WithContext(ctx).Model(&domain.Plan{}).Where("id = ?", plan.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := r.db.WithContext(ctx).Create(plan).Error; err != nil {
			return err
		}
	}
	return nil
}
