package models

import "testing"

func TestParseTransactionType(t *testing.T) {
	cases := []struct {
		in       string
		expected TransactionType
		wantErr  bool
	}{
		{"deposit", TransactionTypeDeposit, false},
		{"expense", TransactionTypeExpense, false},
		{"investment", TransactionTypeInvestment, false},
		{"income", TransactionTypeIncome, false},
		{"withdrawal", "", true},
		{"", "", true},
		{"Deposit", "", true},
	}
	for _, tc := range cases {
		got, err := ParseTransactionType(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseTransactionType(%q) expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseTransactionType(%q) error: %v", tc.in, err)
		}
		if got != tc.expected {
			t.Fatalf("ParseTransactionType(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestTransactionTypeSign(t *testing.T) {
	cases := []struct {
		typ      TransactionType
		expected int64
	}{
		{TransactionTypeDeposit, 1},
		{TransactionTypeIncome, 1},
		{TransactionTypeExpense, -1},
		{TransactionTypeInvestment, -1},
		{TransactionType("bogus"), 0},
	}
	for _, tc := range cases {
		if got := tc.typ.Sign(); got != tc.expected {
			t.Fatalf("Sign(%q) expected %d, got %d", tc.typ, tc.expected, got)
		}
	}
}

func TestParseUserRole(t *testing.T) {
	for _, role := range []string{"owner", "admin", "member", "viewer"} {
		got, err := ParseUserRole(role)
		if err != nil {
			t.Fatalf("ParseUserRole(%q) error: %v", role, err)
		}
		if string(got) != role {
			t.Fatalf("ParseUserRole(%q) expected %q, got %q", role, role, got)
		}
	}
	if _, err := ParseUserRole("superuser"); err == nil {
		t.Fatalf("ParseUserRole expected error for unknown role")
	}
}

func TestParsePlanTier(t *testing.T) {
	for _, tier := range []string{"free", "pro", "business"} {
		got, err := ParsePlanTier(tier)
		if err != nil {
			t.Fatalf("ParsePlanTier(%q) error: %v", tier, err)
		}
		if string(got) != tier {
			t.Fatalf("ParsePlanTier(%q) expected %q, got %q", tier, tier, got)
		}
	}
	if _, err := ParsePlanTier("enterprise"); err == nil {
		t.Fatalf("ParsePlanTier expected error for unknown tier")
	}
}

func TestParseResolutionMethod(t *testing.T) {
	for _, m := range []string{"keep_internal", "apply_external", "manual"} {
		got, err := ParseResolutionMethod(m)
		if err != nil {
			t.Fatalf("ParseResolutionMethod(%q) error: %v", m, err)
		}
		if string(got) != m {
			t.Fatalf("ParseResolutionMethod(%q) expected %q, got %q", m, m, got)
		}
	}
	if _, err := ParseResolutionMethod("discard"); err == nil {
		t.Fatalf("ParseResolutionMethod expected error for unknown method")
	}
}

func TestParseTransactionStatus(t *testing.T) {
	for _, s := range []string{"pending", "cleared", "voided"} {
		got, err := ParseTransactionStatus(s)
		if err != nil {
			t.Fatalf("ParseTransactionStatus(%q) error: %v", s, err)
		}
		if string(got) != s {
			t.Fatalf("ParseTransactionStatus(%q) expected %q, got %q", s, s, got)
		}
	}
	if _, err := ParseTransactionStatus("reconciled"); err == nil {
		t.Fatalf("ParseTransactionStatus expected error for unknown status")
	}
}
