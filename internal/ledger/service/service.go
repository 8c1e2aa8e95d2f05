// Package service implements the ledger core: the transaction approval
// workflow, the investment lifecycle and the accrual engine. All
// balance-affecting operations are serialized per account through a
// keyed mutex and guarded by conditional status transitions in the
// repositories, so concurrent admins cannot double-apply a mutation.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

// Clock supplies the current time. Injected so accrual behavior is
// testable with a deterministic clock.
type Clock func() time.Time

// AdminChecker answers whether a principal holds the admin role. The
// authentication collaborator implements it; the ledger never assumes a
// default admin identity.
type AdminChecker interface {
	IsAdmin(ctx context.Context, accountID string) (bool, error)
}

// TransactionWithOwner is a pending-queue or feed row decorated with the
// owning account's identity for the admin screens.
type TransactionWithOwner struct {
	domain.Transaction
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
}

// InvestmentWithOwner is the admin view of a position.
type InvestmentWithOwner struct {
	domain.Investment
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`
}

func requireAdmin(ctx context.Context, admins AdminChecker, adminID string) error {
	if adminID == "" {
		return fmt.Errorf("%w: admin principal is required", domain.ErrUnauthorized)
	}
	ok, err := admins.IsAdmin(ctx, adminID)
	if err != nil {
		return fmt.Errorf("admin check for %s: %w", adminID, err)
	}
	if !ok {
		return fmt.Errorf("%w: account %s is not an admin", domain.ErrUnauthorized, adminID)
	}
	return nil
}

func emit(sink domain.Sink, event domain.Event) {
	if sink != nil {
		sink.Publish(event)
	}
}

// ownerOf resolves account identity for list decoration. Reporting is
// best-effort, so a missing account degrades to placeholders instead of
// failing the whole listing.
func ownerOf(ctx context.Context, accounts domain.AccountRepository, accountID string) (email, name string) {
	account, err := accounts.GetByID(ctx, accountID)
	if err != nil {
		return "Unknown", "Unknown User"
	}
	return account.Email, account.FullName
}
