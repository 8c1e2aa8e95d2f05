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

type TransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	accountIndex map[string][]string
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		transactions: make(map[string]*domain.Transaction),
		accountIndex: make(map[string][]string),
	}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transactions[tx.ID]; exists {
		return fmt.Errorf("%w: transaction %s", domain.ErrDuplicate, tx.ID)
	}
	cp := *tx
	r.transactions[tx.ID] = &cp
	r.accountIndex[tx.AccountID] = append(r.accountIndex[tx.AccountID], tx.ID)
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, exists := r.transactions[id]
	if !exists {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
	}
	cp := *tx
	return &cp, nil
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Transaction
	for _, id := range r.accountIndex[accountID] {
		cp := *r.transactions[id]
		result = append(result, &cp)
	}
	sortNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *TransactionRepository) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Transaction
	for _, tx := range r.transactions {
		if tx.Status == domain.TxPending {
			cp := *tx
			result = append(result, &cp)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (r *TransactionRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Transaction, 0, len(r.transactions))
	for _, tx := range r.transactions {
		cp := *tx
		result = append(result, &cp)
	}
	sortNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *TransactionRepository) MarkProcessed(ctx context.Context, id string, to domain.TransactionStatus, by, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, exists := r.transactions[id]
	if !exists {
		return fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
	}
	if tx.Status != domain.TxPending {
		return fmt.Errorf("%w: transaction %s is %s", domain.ErrAlreadyProcessed, id, tx.Status)
	}
	tx.Status = to
	tx.ProcessedAt = &at
	tx.ProcessedBy = by
	tx.RejectionReason = reason
	return nil
}

func (r *TransactionRepository) RevertProcessed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, exists := r.transactions[id]
	if !exists {
		return fmt.Errorf("%w: transaction %s", domain.ErrNotFound, id)
	}
	tx.Status = domain.TxPending
	tx.ProcessedAt = nil
	tx.ProcessedBy = ""
	tx.RejectionReason = ""
	return nil
}

func (r *TransactionRepository) SumAmountBetween(ctx context.Context, kind domain.TransactionKind, status domain.TransactionStatus, from, to time.Time) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range r.transactions {
		if tx.Kind != kind || tx.Status != status {
			continue
		}
		at := tx.RequestedAt
		if tx.ProcessedAt != nil {
			at = *tx.ProcessedAt
		}
		if !at.Before(from) && at.Before(to) {
			total = total.Add(tx.Amount)
		}
	}
	return total, nil
}

func sortNewestFirst(txs []*domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].RequestedAt.After(txs[j].RequestedAt)
	})
}
