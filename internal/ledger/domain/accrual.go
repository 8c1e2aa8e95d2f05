package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Accrual math is pure over one investment plus a clock reading. Profit
// accrues proportionally to elapsed time and is capped at the plan's
// total profit. The ratio is float64 on purpose; this ledger does not
// promise banking-grade interest precision.

// AccrualProgress returns the elapsed fraction of the accrual period,
// clamped to [0, 1].
func AccrualProgress(inv *Investment, now time.Time) float64 {
	total := inv.MaturesAt.Sub(inv.OpenedAt)
	if total <= 0 {
		return 1
	}
	elapsed := now.Sub(inv.OpenedAt)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= total {
		return 1
	}
	return float64(elapsed) / float64(total)
}

// AccruedProfitAt computes the profit accrued by now. The result never
// decreases relative to the already recorded AccruedProfit, so repeated
// calls with a non-decreasing clock are monotonic, and it never exceeds
// TotalProfit.
func AccruedProfitAt(inv *Investment, now time.Time) decimal.Decimal {
	total := inv.TotalProfit()
	profit := total.Mul(decimal.NewFromFloat(AccrualProgress(inv, now)))
	if profit.GreaterThan(total) {
		profit = total
	}
	if profit.LessThan(inv.AccruedProfit) {
		return inv.AccruedProfit
	}
	return profit
}

// Matured reports whether the position has reached the end of its
// accrual period.
func Matured(inv *Investment, now time.Time) bool {
	return !now.Before(inv.MaturesAt)
}
