package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

type AccountRepository struct {
	mu         sync.RWMutex
	accounts   map[string]*domain.Account
	emailIndex map[string]string
	codeIndex  map[string]string
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts:   make(map[string]*domain.Account),
		emailIndex: make(map[string]string),
		codeIndex:  make(map[string]string),
	}
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s", domain.ErrDuplicate, account.ID)
	}
	email := strings.ToLower(account.Email)
	if _, exists := r.emailIndex[email]; exists {
		return fmt.Errorf("%w: email %s", domain.ErrDuplicate, account.Email)
	}

	cp := *account
	r.accounts[account.ID] = &cp
	r.emailIndex[email] = account.ID
	if account.ReferralCode != "" {
		r.codeIndex[account.ReferralCode] = account.ID
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.emailIndex[strings.ToLower(email)]
	if !exists {
		return nil, fmt.Errorf("%w: account with email %s", domain.ErrNotFound, email)
	}
	return r.get(id)
}

func (r *AccountRepository) GetByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.codeIndex[code]
	if !exists {
		return nil, fmt.Errorf("%w: referral code %s", domain.ErrNotFound, code)
	}
	return r.get(id)
}

func (r *AccountRepository) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return decimal.Zero, fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	account.Balance = account.Balance.Add(delta)
	return account.Balance, nil
}

func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	account.Status = status
	return nil
}

func (r *AccountRepository) IncrementReferralCount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	account.ReferralCount++
	return nil
}

func (r *AccountRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	account.LastLoginAt = at
	return nil
}

func (r *AccountRepository) List(ctx context.Context) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		cp := *account
		result = append(result, &cp)
	}
	return result, nil
}

func (r *AccountRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, account := range r.accounts {
		if !account.CreatedAt.Before(from) && account.CreatedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

// get returns a copy so callers cannot mutate stored state outside the
// repository's own atomic operations.
func (r *AccountRepository) get(id string) (*domain.Account, error) {
	account, exists := r.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	cp := *account
	return &cp, nil
}
