package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

type PlanRepository struct {
	mu    sync.RWMutex
	plans map[string]*domain.Plan
}

func NewPlanRepository() *PlanRepository {
	return &PlanRepository{plans: make(map[string]*domain.Plan)}
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plan, exists := r.plans[id]
	if !exists {
		return nil, fmt.Errorf("%w: plan %s", domain.ErrNotFound, id)
	}
	cp := *plan
	return &cp, nil
}

func (r *PlanRepository) List(ctx context.Context) ([]*domain.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Plan, 0, len(r.plans))
	for _, plan := range r.plans {
		cp := *plan
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].MinAmount.LessThan(result[j].MinAmount)
	})
	return result, nil
}

func (r *PlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plans[plan.ID]; !exists {
		return fmt.Errorf("%w: plan %s", domain.ErrNotFound, plan.ID)
	}
	cp := *plan
	r.plans[plan.ID] = &cp
	return nil
}

func (r *PlanRepository) Seed(ctx context.Context, plans []*domain.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, plan := range plans {
		if _, exists := r.plans[plan.ID]; exists {
			continue
		}
		cp := *plan
		r.plans[plan.ID] = &cp
	}
	return nil
}
