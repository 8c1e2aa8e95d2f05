package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func growthInvestment(openedAt time.Time) *Investment {
	principal := decimal.NewFromInt(2500)
	rate := decimal.NewFromInt(15)
	return &Investment{
		ID:             "inv-1",
		AccountID:      "acc-1",
		PlanID:         "growth_plan",
		Principal:      principal,
		Rate:           rate,
		DurationDays:   14,
		ExpectedReturn: ExpectedReturnFor(principal, rate),
		AccruedProfit:  decimal.Zero,
		Status:         InvestmentActive,
		PayoutStatus:   PayoutPending,
		OpenedAt:       openedAt,
		MaturesAt:      openedAt.Add(14 * 24 * time.Hour),
		LastAccruedAt:  openedAt,
	}
}

func TestExpectedReturnFor(t *testing.T) {
	tests := []struct {
		name      string
		principal int64
		rate      int64
		want      string
	}{
		{"starter minimum", 500, 5, "525"},
		{"growth minimum", 2500, 15, "2875"},
		{"premium minimum", 10000, 30, "13000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpectedReturnFor(decimal.NewFromInt(tt.principal), decimal.NewFromInt(tt.rate))
			if got.String() != tt.want {
				t.Errorf("ExpectedReturnFor(%d, %d) = %s, want %s", tt.principal, tt.rate, got, tt.want)
			}
		})
	}
}

func TestAccrualProgress(t *testing.T) {
	opened := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inv := growthInvestment(opened)

	tests := []struct {
		name string
		now  time.Time
		want float64
	}{
		{"before open", opened.Add(-time.Hour), 0},
		{"at open", opened, 0},
		{"halfway", opened.Add(7 * 24 * time.Hour), 0.5},
		{"at maturity", opened.Add(14 * 24 * time.Hour), 1},
		{"past maturity", opened.Add(30 * 24 * time.Hour), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AccrualProgress(inv, tt.now); got != tt.want {
				t.Errorf("AccrualProgress = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccrualProgressZeroDuration(t *testing.T) {
	opened := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inv := growthInvestment(opened)
	inv.MaturesAt = opened

	if got := AccrualProgress(inv, opened); got != 1 {
		t.Errorf("zero-duration position should be fully accrued, got %v", got)
	}
}

func TestAccruedProfitAt(t *testing.T) {
	opened := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inv := growthInvestment(opened)

	halfway := AccruedProfitAt(inv, opened.Add(7*24*time.Hour))
	if !halfway.Equal(decimal.RequireFromString("187.5")) {
		t.Errorf("halfway profit = %s, want 187.5", halfway)
	}

	matured := AccruedProfitAt(inv, opened.Add(14*24*time.Hour))
	if !matured.Equal(decimal.NewFromInt(375)) {
		t.Errorf("matured profit = %s, want 375", matured)
	}

	past := AccruedProfitAt(inv, opened.Add(60*24*time.Hour))
	if !past.Equal(decimal.NewFromInt(375)) {
		t.Errorf("profit past maturity = %s, want cap 375", past)
	}
}

func TestAccruedProfitAtMonotonic(t *testing.T) {
	opened := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inv := growthInvestment(opened)

	// A recorded value higher than the recomputed one wins; the clock
	// moving backwards must never shrink profit.
	inv.AccruedProfit = decimal.NewFromInt(200)
	got := AccruedProfitAt(inv, opened.Add(7*24*time.Hour))
	if !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("profit regressed to %s, want recorded 200", got)
	}

	prev := decimal.Zero
	for d := 0; d <= 20; d++ {
		inv.AccruedProfit = prev
		now := AccruedProfitAt(inv, opened.Add(time.Duration(d)*24*time.Hour))
		if now.LessThan(prev) {
			t.Fatalf("day %d: profit %s below previous %s", d, now, prev)
		}
		prev = now
	}
}

func TestMatured(t *testing.T) {
	opened := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	inv := growthInvestment(opened)

	if Matured(inv, inv.MaturesAt.Add(-time.Second)) {
		t.Error("position matured one second early")
	}
	if !Matured(inv, inv.MaturesAt) {
		t.Error("position not matured at MaturesAt")
	}
	if !Matured(inv, inv.MaturesAt.Add(time.Hour)) {
		t.Error("position not matured past MaturesAt")
	}
}
