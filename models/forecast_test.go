package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestProjectCashFlow_BalanceCompounds(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	months := ProjectCashFlow(start, 3,
		decimal.NewFromInt(1000), // starting balance
		decimal.NewFromInt(500),  // avg inflow
		decimal.NewFromInt(300))  // avg outflow

	if len(months) != 3 {
		t.Fatalf("expected 3 projected months, got %d", len(months))
	}

	expectedBalances := []string{"1200", "1400", "1600"}
	for i, m := range months {
		if m.ProjectedBalance.String() != expectedBalances[i] {
			t.Fatalf("month %d: expected balance %s, got %s", i+1, expectedBalances[i], m.ProjectedBalance.String())
		}
		if m.NetFlow.String() != "200" {
			t.Fatalf("month %d: expected net flow 200, got %s", i+1, m.NetFlow.String())
		}
	}

	if months[0].Year != 2026 || months[0].Month != time.February {
		t.Fatalf("expected projection to start the month after: got %d-%s", months[0].Year, months[0].Month)
	}
	if months[2].Month != time.April {
		t.Fatalf("expected third month April, got %s", months[2].Month)
	}
}

func TestProjectCashFlow_YearRollover(t *testing.T) {
	start := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	months := ProjectCashFlow(start, 3, decimal.Zero, decimal.Zero, decimal.Zero)

	if months[0].Month != time.December || months[0].Year != 2026 {
		t.Fatalf("expected first month Dec 2026, got %s %d", months[0].Month, months[0].Year)
	}
	if months[1].Month != time.January || months[1].Year != 2027 {
		t.Fatalf("expected rollover to Jan 2027, got %s %d", months[1].Month, months[1].Year)
	}
}

func TestProjectCashFlow_NegativeNetDrainsBalance(t *testing.T) {
	months := ProjectCashFlow(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), 2,
		decimal.NewFromInt(100),
		decimal.NewFromInt(50),
		decimal.NewFromInt(120))

	if months[0].ProjectedBalance.String() != "30" {
		t.Fatalf("expected first balance 30, got %s", months[0].ProjectedBalance.String())
	}
	if months[1].ProjectedBalance.String() != "-40" {
		t.Fatalf("expected second balance -40, got %s", months[1].ProjectedBalance.String())
	}
}

func TestProjectCashFlow_ZeroMonths(t *testing.T) {
	months := ProjectCashFlow(time.Now(), 0, decimal.NewFromInt(10), decimal.Zero, decimal.Zero)
	if len(months) != 0 {
		t.Fatalf("expected empty projection for zero months, got %d", len(months))
	}
}
