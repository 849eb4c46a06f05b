package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestSignedAmount(t *testing.T) {
	cases := []struct {
		typ      TransactionType
		amount   string
		expected string
	}{
		{TransactionTypeDeposit, "500", "500"},
		{TransactionTypeIncome, "120.50", "120.5"},
		{TransactionTypeExpense, "120", "-120"},
		{TransactionTypeInvestment, "30", "-30"},
	}
	for _, tc := range cases {
		txn := Transaction{
			TransactionType: tc.typ,
			Amount:          decimal.RequireFromString(tc.amount),
		}
		if got := txn.SignedAmount(); got.String() != tc.expected {
			t.Fatalf("SignedAmount(%s, %s) expected %s, got %s", tc.typ, tc.amount, tc.expected, got.String())
		}
	}
}

func TestSignedAmount_SumsToWalletBalance(t *testing.T) {
	date := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	txns := []Transaction{
		{TransactionType: TransactionTypeDeposit, Amount: decimal.NewFromInt(500), TransactionDate: date},
		{TransactionType: TransactionTypeExpense, Amount: decimal.NewFromInt(120), TransactionDate: date},
		{TransactionType: TransactionTypeExpense, Amount: decimal.NewFromInt(30), TransactionDate: date},
	}

	balance := decimal.Zero
	for i := range txns {
		balance = balance.Add(txns[i].SignedAmount())
	}
	if balance.String() != "350" {
		t.Fatalf("expected running balance 350, got %s", balance.String())
	}
}
