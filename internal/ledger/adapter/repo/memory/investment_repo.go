package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

type InvestmentRepository struct {
	mu           sync.RWMutex
	investments  map[string]*domain.Investment
	accountIndex map[string][]string
}

func NewInvestmentRepository() *InvestmentRepository {
	return &InvestmentRepository{
		investments:  make(map[string]*domain.Investment),
		accountIndex: make(map[string][]string),
	}
}

func (r *InvestmentRepository) Create(ctx context.Context, inv *domain.Investment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.investments[inv.ID]; exists {
		return fmt.Errorf("%w: investment %s", domain.ErrDuplicate, inv.ID)
	}
	cp := *inv
	r.investments[inv.ID] = &cp
	r.accountIndex[inv.AccountID] = append(r.accountIndex[inv.AccountID], inv.ID)
	return nil
}

func (r *InvestmentRepository) GetByID(ctx context.Context, id string) (*domain.Investment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, exists := r.investments[id]
	if !exists {
		return nil, fmt.Errorf("%w: investment %s", domain.ErrNotFound, id)
	}
	cp := *inv
	return &cp, nil
}

func (r *InvestmentRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Investment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Investment
	for _, id := range r.accountIndex[accountID] {
		cp := *r.investments[id]
		result = append(result, &cp)
	}
	sortByOpenedDesc(result)
	return result, nil
}

func (r *InvestmentRepository) ListActive(ctx context.Context) ([]*domain.Investment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Investment
	for _, inv := range r.investments {
		if inv.Status == domain.InvestmentActive {
			cp := *inv
			result = append(result, &cp)
		}
	}
	sortByOpenedDesc(result)
	return result, nil
}

func (r *InvestmentRepository) List(ctx context.Context) ([]*domain.Investment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Investment, 0, len(r.investments))
	for _, inv := range r.investments {
		cp := *inv
		result = append(result, &cp)
	}
	sortByOpenedDesc(result)
	return result, nil
}

func (r *InvestmentRepository) HasActivePlan(ctx context.Context, accountID, planID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.accountIndex[accountID] {
		inv := r.investments[id]
		if inv.PlanID == planID && inv.Status == domain.InvestmentActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *InvestmentRepository) UpdateAccrual(ctx context.Context, id string, profit decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, exists := r.investments[id]
	if !exists {
		return fmt.Errorf("%w: investment %s", domain.ErrNotFound, id)
	}
	inv.AccruedProfit = profit
	inv.LastAccruedAt = at
	return nil
}

func (r *InvestmentRepository) MarkSettled(ctx context.Context, id, by string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, exists := r.investments[id]
	if !exists {
		return fmt.Errorf("%w: investment %s", domain.ErrNotFound, id)
	}
	if inv.Status != domain.InvestmentActive || inv.PayoutStatus != domain.PayoutPending {
		return fmt.Errorf("%w: investment %s", domain.ErrAlreadyPaidOut, id)
	}
	inv.Status = domain.InvestmentCompleted
	inv.PayoutStatus = domain.PayoutCompleted
	inv.ProcessedAt = &at
	inv.ProcessedBy = by
	return nil
}

func (r *InvestmentRepository) MarkCancelled(ctx context.Context, id, by string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, exists := r.investments[id]
	if !exists {
		return fmt.Errorf("%w: investment %s", domain.ErrNotFound, id)
	}
	if inv.Status != domain.InvestmentActive {
		return fmt.Errorf("%w: investment %s is %s", domain.ErrAlreadyProcessed, id, inv.Status)
	}
	inv.Status = domain.InvestmentCancelled
	inv.ProcessedAt = &at
	inv.ProcessedBy = by
	return nil
}

func (r *InvestmentRepository) Reactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, exists := r.investments[id]
	if !exists {
		return fmt.Errorf("%w: investment %s", domain.ErrNotFound, id)
	}
	inv.Status = domain.InvestmentActive
	inv.PayoutStatus = domain.PayoutPending
	inv.ProcessedAt = nil
	inv.ProcessedBy = ""
	return nil
}

func (r *InvestmentRepository) CountOpenedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, inv := range r.investments {
		if !inv.OpenedAt.Before(from) && inv.OpenedAt.Before(to) {
			count++
		}
	}
	return count, nil
}

func sortByOpenedDesc(invs []*domain.Investment) {
	sort.Slice(invs, func(i, j int) bool {
		return invs[i].OpenedAt.After(invs[j].OpenedAt)
	})
}
