package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

// InvestmentService owns the investment ledger and the accrual engine.
// Opening a position debits principal immediately; settlement credits
// principal plus the full expected return through a single path shared
// by maturity auto-completion and the admin forced payout.
type InvestmentService struct {
	accounts domain.AccountRepository
	txs      domain.TransactionRepository
	invs     domain.InvestmentRepository
	plans    domain.PlanRepository
	admins   AdminChecker
	locks    *KeyedMutex
	sink     domain.Sink
	logger   *zap.Logger
	now      Clock
}

func NewInvestmentService(
	accounts domain.AccountRepository,
	txs domain.TransactionRepository,
	invs domain.InvestmentRepository,
	plans domain.PlanRepository,
	admins AdminChecker,
	locks *KeyedMutex,
	sink domain.Sink,
	logger *zap.Logger,
	now Clock,
) *InvestmentService {
	if now == nil {
		now = time.Now
	}
	return &InvestmentService{
		accounts: accounts,
		txs:      txs,
		invs:     invs,
		plans:    plans,
		admins:   admins,
		locks:    locks,
		sink:     sink,
		logger:   logger,
		now:      now,
	}
}

// InvestmentStats is the per-account projection consumed by the
// dashboard.
type InvestmentStats struct {
	TotalInvested     decimal.Decimal `json:"totalInvested"`
	TotalProfit       decimal.Decimal `json:"totalProfit"`
	ActiveInvestments int             `json:"activeInvestments"`
	ROI               decimal.Decimal `json:"roi"`
}

// Open creates a position against a plan, debiting the principal from
// the account balance. The sufficiency check and the debit run under the
// account's lock, so a concurrent approval cannot race past the check.
func (s *InvestmentService) Open(ctx context.Context, accountID, planID string, principal decimal.Decimal) (*domain.Investment, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, principal)
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if principal.LessThan(plan.MinAmount) {
		return nil, fmt.Errorf("%w: principal %s below plan minimum %s", domain.ErrInvalidAmount, principal, plan.MinAmount)
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status == domain.AccountSuspended {
		return nil, fmt.Errorf("%w: account %s", domain.ErrAccountSuspended, accountID)
	}

	unlock := s.locks.Lock(accountID)
	defer unlock()

	// The duplicate-plan check has to run under the same lock as the
	// create, or two concurrent opens both pass it.
	active, err := s.invs.HasActivePlan(ctx, accountID, planID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("%w: account %s, plan %s", domain.ErrPlanAlreadyActive, accountID, planID)
	}

	account, err = s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(principal) {
		return nil, fmt.Errorf("%w: balance %s, principal %s", domain.ErrInsufficientBalance, account.Balance, principal)
	}
	if _, err := s.accounts.AdjustBalance(ctx, accountID, principal.Neg()); err != nil {
		return nil, fmt.Errorf("debit principal: %w", err)
	}

	now := s.now()
	inv := &domain.Investment{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		PlanID:         planID,
		Principal:      principal,
		Rate:           plan.ROI,
		DurationDays:   plan.DurationDays,
		ExpectedReturn: domain.ExpectedReturnFor(principal, plan.ROI),
		AccruedProfit:  decimal.Zero,
		Status:         domain.InvestmentActive,
		PayoutStatus:   domain.PayoutPending,
		OpenedAt:       now,
		MaturesAt:      now.Add(time.Duration(plan.DurationDays) * 24 * time.Hour),
		LastAccruedAt:  now,
	}
	if err := s.invs.Create(ctx, inv); err != nil {
		if _, creditErr := s.accounts.AdjustBalance(ctx, accountID, principal); creditErr != nil {
			s.logger.Error("compensating credit failed",
				zap.String("account_id", accountID),
				zap.Error(creditErr),
			)
		}
		return nil, fmt.Errorf("create investment: %w", err)
	}

	s.appendRecord(ctx, &domain.Transaction{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Kind:         domain.KindInvestment,
		Amount:       principal,
		Status:       domain.TxCompleted,
		PlanID:       planID,
		InvestmentID: inv.ID,
		RequestedAt:  now,
	})

	emit(s.sink, domain.InvestmentOpened{AccountID: accountID, InvestmentID: inv.ID, PlanID: planID, Principal: principal, At: now})
	s.logger.Info("investment opened",
		zap.String("investment_id", inv.ID),
		zap.String("account_id", accountID),
		zap.String("plan_id", planID),
		zap.String("principal", principal.String()),
		zap.String("expected_return", inv.ExpectedReturn.String()),
	)
	return inv, nil
}

// Accrue advances one position to now: recompute profit, persist it and
// settle the position if it has matured. Re-entrant; a completed or
// cancelled position is a no-op.
func (s *InvestmentService) Accrue(ctx context.Context, invID string, now time.Time) (*domain.Investment, error) {
	inv, err := s.invs.GetByID(ctx, invID)
	if err != nil {
		return nil, err
	}
	return s.accrue(ctx, inv, now)
}

func (s *InvestmentService) accrue(ctx context.Context, inv *domain.Investment, now time.Time) (*domain.Investment, error) {
	if inv.Status != domain.InvestmentActive || inv.PayoutStatus != domain.PayoutPending {
		return inv, nil
	}

	profit := domain.AccruedProfitAt(inv, now)
	if !profit.Equal(inv.AccruedProfit) {
		if err := s.invs.UpdateAccrual(ctx, inv.ID, profit, now); err != nil {
			return nil, fmt.Errorf("update accrual: %w", err)
		}
		inv.AccruedProfit = profit
		inv.LastAccruedAt = now
	}

	if domain.Matured(inv, now) {
		if err := s.settle(ctx, inv, "", now); err != nil {
			// A concurrent sweep or admin payout already settled it.
			if errors.Is(err, domain.ErrAlreadyPaidOut) {
				return s.invs.GetByID(ctx, inv.ID)
			}
			return nil, err
		}
		return s.invs.GetByID(ctx, inv.ID)
	}
	return inv, nil
}

// Sweep advances every active position. Per-position failures are
// logged and skipped so one broken record cannot stall the rest.
func (s *InvestmentService) Sweep(ctx context.Context, now time.Time) error {
	active, err := s.invs.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active investments: %w", err)
	}
	for _, inv := range active {
		if _, err := s.accrue(ctx, inv, now); err != nil {
			s.logger.Error("accrual step aborted",
				zap.String("investment_id", inv.ID),
				zap.String("account_id", inv.AccountID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// RunSweeper runs periodic sweeps until the context is cancelled.
func (s *InvestmentService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("accrual sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("accrual sweeper stopped")
			return
		case <-ticker.C:
			if err := s.Sweep(ctx, s.now()); err != nil {
				s.logger.Error("accrual sweep failed", zap.Error(err))
			}
		}
	}
}

// ForcePayout is the admin "process payout" action. It shares the
// settle path with maturity auto-completion, so the two can never
// disagree about double payouts.
func (s *InvestmentService) ForcePayout(ctx context.Context, invID, adminID string) error {
	if err := requireAdmin(ctx, s.admins, adminID); err != nil {
		return err
	}
	inv, err := s.invs.GetByID(ctx, invID)
	if err != nil {
		return err
	}
	return s.settle(ctx, inv, adminID, s.now())
}

// settle transitions the position to completed and credits principal
// plus the full expected return. MarkSettled succeeds for exactly one
// caller; if the credit then fails, the transition is compensated and
// the position stays active/pending for retry.
func (s *InvestmentService) settle(ctx context.Context, inv *domain.Investment, by string, now time.Time) error {
	unlock := s.locks.Lock(inv.AccountID)
	defer unlock()

	if err := s.invs.MarkSettled(ctx, inv.ID, by, now); err != nil {
		return err
	}
	if _, err := s.accounts.AdjustBalance(ctx, inv.AccountID, inv.ExpectedReturn); err != nil {
		if revertErr := s.invs.Reactivate(ctx, inv.ID); revertErr != nil {
			s.logger.Error("compensating reactivate failed",
				zap.String("investment_id", inv.ID),
				zap.Error(revertErr),
			)
		}
		s.logger.Error("payout credit aborted, investment left active for retry",
			zap.String("investment_id", inv.ID),
			zap.String("account_id", inv.AccountID),
			zap.Error(err),
		)
		return fmt.Errorf("credit payout for %s: %w", inv.AccountID, err)
	}
	if err := s.invs.UpdateAccrual(ctx, inv.ID, inv.TotalProfit(), now); err != nil {
		s.logger.Warn("final accrual stamp failed", zap.String("investment_id", inv.ID), zap.Error(err))
	}

	s.appendRecord(ctx, &domain.Transaction{
		ID:           uuid.NewString(),
		AccountID:    inv.AccountID,
		Kind:         domain.KindProfit,
		Amount:       inv.TotalProfit(),
		Status:       domain.TxCompleted,
		PlanID:       inv.PlanID,
		InvestmentID: inv.ID,
		RequestedAt:  now,
	})

	emit(s.sink, domain.InvestmentPaidOut{AccountID: inv.AccountID, InvestmentID: inv.ID, Return: inv.ExpectedReturn, At: now})
	s.logger.Info("investment settled",
		zap.String("investment_id", inv.ID),
		zap.String("account_id", inv.AccountID),
		zap.String("credited", inv.ExpectedReturn.String()),
		zap.String("processed_by", by),
	)
	return nil
}

// Cancel terminates an active position and refunds its principal. No
// profit is paid.
func (s *InvestmentService) Cancel(ctx context.Context, invID, adminID string) error {
	if err := requireAdmin(ctx, s.admins, adminID); err != nil {
		return err
	}
	inv, err := s.invs.GetByID(ctx, invID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(inv.AccountID)
	defer unlock()

	now := s.now()
	if err := s.invs.MarkCancelled(ctx, inv.ID, adminID, now); err != nil {
		return err
	}
	if _, err := s.accounts.AdjustBalance(ctx, inv.AccountID, inv.Principal); err != nil {
		if revertErr := s.invs.Reactivate(ctx, inv.ID); revertErr != nil {
			s.logger.Error("compensating reactivate failed",
				zap.String("investment_id", inv.ID),
				zap.Error(revertErr),
			)
		}
		return fmt.Errorf("refund principal for %s: %w", inv.AccountID, err)
	}

	s.appendRecord(ctx, &domain.Transaction{
		ID:           uuid.NewString(),
		AccountID:    inv.AccountID,
		Kind:         domain.KindRefund,
		Amount:       inv.Principal,
		Status:       domain.TxCompleted,
		PlanID:       inv.PlanID,
		InvestmentID: inv.ID,
		RequestedAt:  now,
	})

	emit(s.sink, domain.InvestmentRefunded{AccountID: inv.AccountID, InvestmentID: inv.ID, Refund: inv.Principal, At: now})
	s.logger.Info("investment cancelled",
		zap.String("investment_id", inv.ID),
		zap.String("account_id", inv.AccountID),
		zap.String("refunded", inv.Principal.String()),
		zap.String("processed_by", adminID),
	)
	return nil
}

// ListByAccount returns an account's positions, accruing active ones
// opportunistically.
func (s *InvestmentService) ListByAccount(ctx context.Context, accountID string) ([]*domain.Investment, error) {
	invs, err := s.invs.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i, inv := range invs {
		updated, err := s.accrue(ctx, inv, now)
		if err != nil {
			s.logger.Error("accrual on read failed", zap.String("investment_id", inv.ID), zap.Error(err))
			continue
		}
		invs[i] = updated
	}
	return invs, nil
}

// ListAll is the admin view across all accounts.
func (s *InvestmentService) ListAll(ctx context.Context) ([]*InvestmentWithOwner, error) {
	invs, err := s.invs.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]*InvestmentWithOwner, 0, len(invs))
	for _, inv := range invs {
		email, name := ownerOf(ctx, s.accounts, inv.AccountID)
		result = append(result, &InvestmentWithOwner{Investment: *inv, UserEmail: email, UserName: name})
	}
	return result, nil
}

// Stats folds an account's positions into the dashboard projection.
func (s *InvestmentService) Stats(ctx context.Context, accountID string) (*InvestmentStats, error) {
	invs, err := s.invs.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	stats := &InvestmentStats{
		TotalInvested: decimal.Zero,
		TotalProfit:   decimal.Zero,
		ROI:           decimal.Zero,
	}
	for _, inv := range invs {
		switch inv.Status {
		case domain.InvestmentActive:
			stats.TotalInvested = stats.TotalInvested.Add(inv.Principal)
			stats.ActiveInvestments++
			stats.TotalProfit = stats.TotalProfit.Add(inv.AccruedProfit)
		case domain.InvestmentCompleted:
			stats.TotalInvested = stats.TotalInvested.Add(inv.Principal)
			stats.TotalProfit = stats.TotalProfit.Add(inv.TotalProfit())
		}
	}
	if stats.TotalInvested.IsPositive() {
		stats.ROI = stats.TotalProfit.Div(stats.TotalInvested).Mul(decimal.NewFromInt(100))
	}
	return stats, nil
}

// Plans returns the catalog.
func (s *InvestmentService) Plans(ctx context.Context) ([]*domain.Plan, error) {
	return s.plans.List(ctx)
}

// UpdatePlan is the admin catalog edit.
func (s *InvestmentService) UpdatePlan(ctx context.Context, adminID string, plan *domain.Plan) error {
	if err := requireAdmin(ctx, s.admins, adminID); err != nil {
		return err
	}
	if plan.MinAmount.LessThanOrEqual(decimal.Zero) || plan.ROI.LessThanOrEqual(decimal.Zero) || plan.DurationDays <= 0 {
		return fmt.Errorf("%w: plan %s", domain.ErrInvalidAmount, plan.ID)
	}
	return s.plans.Update(ctx, plan)
}

// appendRecord writes an informational audit transaction. These records
// never move money, so a failure is logged rather than unwinding the
// mutation they describe.
func (s *InvestmentService) appendRecord(ctx context.Context, tx *domain.Transaction) {
	if err := s.txs.Create(ctx, tx); err != nil {
		s.logger.Error("audit record write failed",
			zap.String("account_id", tx.AccountID),
			zap.String("kind", string(tx.Kind)),
			zap.Error(err),
		)
	}
}
