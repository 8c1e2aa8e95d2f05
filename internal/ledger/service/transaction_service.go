package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

// TransactionService owns the cash-movement ledger: users request
// deposits and withdrawals, admins resolve them. Approval is the only
// place a cash movement touches balance, so every balance change traces
// to exactly one resolved transaction.
type TransactionService struct {
	accounts domain.AccountRepository
	txs      domain.TransactionRepository
	admins   AdminChecker
	locks    *KeyedMutex
	sink     domain.Sink
	logger   *zap.Logger
	now      Clock
}

func NewTransactionService(
	accounts domain.AccountRepository,
	txs domain.TransactionRepository,
	admins AdminChecker,
	locks *KeyedMutex,
	sink domain.Sink,
	logger *zap.Logger,
	now Clock,
) *TransactionService {
	if now == nil {
		now = time.Now
	}
	return &TransactionService{
		accounts: accounts,
		txs:      txs,
		admins:   admins,
		locks:    locks,
		sink:     sink,
		logger:   logger,
		now:      now,
	}
}

// Request records a pending deposit or withdrawal. No balance moves
// until an admin approves it.
func (s *TransactionService) Request(ctx context.Context, accountID string, kind domain.TransactionKind, amount decimal.Decimal) (*domain.Transaction, error) {
	if !kind.IsCashMovement() {
		return nil, fmt.Errorf("kind %q is not requestable", kind)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status == domain.AccountSuspended {
		return nil, fmt.Errorf("%w: account %s", domain.ErrAccountSuspended, accountID)
	}

	tx := &domain.Transaction{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        kind,
		Amount:      amount,
		Status:      domain.TxPending,
		RequestedAt: s.now(),
	}
	if err := s.txs.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("create %s request: %w", kind, err)
	}

	s.logger.Info("transaction requested",
		zap.String("transaction_id", tx.ID),
		zap.String("account_id", accountID),
		zap.String("kind", string(kind)),
		zap.String("amount", amount.String()),
	)
	return tx, nil
}

// ListPending returns the global approval queue, newest first, with
// owner identity for the admin screen.
func (s *TransactionService) ListPending(ctx context.Context) ([]*TransactionWithOwner, error) {
	pending, err := s.txs.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*TransactionWithOwner, 0, len(pending))
	for _, tx := range pending {
		email, name := ownerOf(ctx, s.accounts, tx.AccountID)
		result = append(result, &TransactionWithOwner{Transaction: *tx, UserEmail: email, UserName: name})
	}
	return result, nil
}

// ListByAccount returns an account's own history, newest first.
func (s *TransactionService) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	return s.txs.ListByAccount(ctx, accountID, limit)
}

// Approve resolves a pending transaction and applies its balance
// mutation. The status transition and the balance adjustment form one
// logical step: if the adjustment fails, the transition is compensated
// and the record returns to pending.
func (s *TransactionService) Approve(ctx context.Context, txID, adminID string) error {
	if err := requireAdmin(ctx, s.admins, adminID); err != nil {
		return err
	}

	tx, err := s.txs.GetByID(ctx, txID)
	if err != nil {
		return err
	}
	if !tx.Kind.IsCashMovement() {
		return fmt.Errorf("%w: %s record %s is not a pending decision", domain.ErrAlreadyProcessed, tx.Kind, txID)
	}

	unlock := s.locks.Lock(tx.AccountID)
	defer unlock()

	now := s.now()
	if err := s.txs.MarkProcessed(ctx, txID, domain.TxApproved, adminID, "", now); err != nil {
		return err
	}

	delta := tx.Amount
	if tx.Kind == domain.KindWithdraw {
		delta = tx.Amount.Neg()
	}
	newBalance, err := s.accounts.AdjustBalance(ctx, tx.AccountID, delta)
	if err != nil {
		if revertErr := s.txs.RevertProcessed(ctx, txID); revertErr != nil {
			s.logger.Error("compensating revert failed",
				zap.String("transaction_id", txID),
				zap.Error(revertErr),
			)
		}
		return fmt.Errorf("adjust balance for %s: %w", tx.AccountID, err)
	}

	switch tx.Kind {
	case domain.KindDeposit:
		emit(s.sink, domain.DepositApproved{AccountID: tx.AccountID, TransactionID: txID, Amount: tx.Amount, At: now})
	case domain.KindWithdraw:
		emit(s.sink, domain.WithdrawalApproved{AccountID: tx.AccountID, TransactionID: txID, Amount: tx.Amount, At: now})
	}

	s.logger.Info("transaction approved",
		zap.String("transaction_id", txID),
		zap.String("account_id", tx.AccountID),
		zap.String("kind", string(tx.Kind)),
		zap.String("amount", tx.Amount.String()),
		zap.String("new_balance", newBalance.String()),
		zap.String("processed_by", adminID),
	)
	return nil
}

// Reject resolves a pending transaction without moving money. A
// justification is mandatory.
func (s *TransactionService) Reject(ctx context.Context, txID, adminID, reason string) error {
	if err := requireAdmin(ctx, s.admins, adminID); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return domain.ErrEmptyReason
	}

	tx, err := s.txs.GetByID(ctx, txID)
	if err != nil {
		return err
	}
	if !tx.Kind.IsCashMovement() {
		return fmt.Errorf("%w: %s record %s is not a pending decision", domain.ErrAlreadyProcessed, tx.Kind, txID)
	}

	if err := s.txs.MarkProcessed(ctx, txID, domain.TxRejected, adminID, reason, s.now()); err != nil {
		return err
	}

	s.logger.Info("transaction rejected",
		zap.String("transaction_id", txID),
		zap.String("account_id", tx.AccountID),
		zap.String("processed_by", adminID),
		zap.String("reason", reason),
	)
	return nil
}
