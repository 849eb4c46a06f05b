package models

import "testing"

func TestGetPlanLimits(t *testing.T) {
	cases := []struct {
		tier           PlanTier
		maxWallets     int
		maxUsers       int
		forecastMonths int
		reconciliation bool
		erp            bool
		bankFeed       bool
	}{
		{PlanTierFree, 2, 1, 3, false, false, false},
		{PlanTierPro, 10, 5, 12, true, false, true},
		{PlanTierBusiness, 50, 25, 24, true, true, true},
	}
	for _, tc := range cases {
		limits := GetPlanLimits(tc.tier)
		if limits.MaxWallets != tc.maxWallets || limits.MaxUsers != tc.maxUsers {
			t.Fatalf("%s: expected %d wallets / %d users, got %d / %d",
				tc.tier, tc.maxWallets, tc.maxUsers, limits.MaxWallets, limits.MaxUsers)
		}
		if limits.ForecastMonths != tc.forecastMonths {
			t.Fatalf("%s: expected %d forecast months, got %d", tc.tier, tc.forecastMonths, limits.ForecastMonths)
		}
		if limits.ReconciliationEnabled != tc.reconciliation {
			t.Fatalf("%s: reconciliation gate expected %t", tc.tier, tc.reconciliation)
		}
		if limits.ErpIntegration != tc.erp || limits.BankFeed != tc.bankFeed {
			t.Fatalf("%s: provider gates expected erp=%t bank=%t, got erp=%t bank=%t",
				tc.tier, tc.erp, tc.bankFeed, limits.ErpIntegration, limits.BankFeed)
		}
	}
}

func TestGetPlanLimits_UnknownTierFallsBackToFree(t *testing.T) {
	limits := GetPlanLimits(PlanTier("platinum"))
	if limits != GetPlanLimits(PlanTierFree) {
		t.Fatalf("unknown tier should fall back to free limits, got %+v", limits)
	}
}
