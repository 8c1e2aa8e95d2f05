// Package memory provides in-process repository adapters. They back the
// test suite and single-node deployments that run without postgres.
package memory

import (
	"github.com/zuloanga/Coinorbit/internal/ledger/domain"
)

var (
	_ domain.AccountRepository     = (*AccountRepository)(nil)
	_ domain.TransactionRepository = (*TransactionRepository)(nil)
	_ domain.InvestmentRepository  = (*InvestmentRepository)(nil)
	_ domain.PlanRepository        = (*PlanRepository)(nil)
)
