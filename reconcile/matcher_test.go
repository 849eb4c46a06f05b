package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/contarapida/finance_backend/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func txnWith(id int, amount string, date time.Time) *models.Transaction {
	return &models.Transaction{
		ID:              id,
		Amount:          decimal.RequireFromString(amount),
		TransactionDate: date,
		TransactionType: models.TransactionTypeDeposit,
		Status:          models.TransactionStatusCleared,
	}
}

func expenseTxnWith(id int, amount string, date time.Time) *models.Transaction {
	txn := txnWith(id, amount, date)
	txn.TransactionType = models.TransactionTypeExpense
	return txn
}

func recWith(id string, amount string, date time.Time) ExternalRecord {
	return ExternalRecord{
		ExternalId: id,
		Amount:     decimal.RequireFromString(amount),
		Date:       date,
	}
}

func TestMatch_WithinTolerance_PairsAndFlagsAmountDivergence(t *testing.T) {
	// 1000 vs 1030 is a 2.9% relative difference, inside the 5% default.
	txns := []*models.Transaction{txnWith(1, "1000", day(2026, 3, 10))}
	records := []ExternalRecord{recWith("ext-1", "1030", day(2026, 3, 12))}

	report := Match(txns, records, DefaultTolerances(), nil)

	if len(report.Matched) != 1 {
		t.Fatalf("expected 1 matched pair, got %d", len(report.Matched))
	}
	if len(report.MissingInExternal) != 0 || len(report.MissingInInternal) != 0 {
		t.Fatalf("expected no missing entries, got %d internal / %d external",
			len(report.MissingInExternal), len(report.MissingInInternal))
	}
	if report.TotalProcessed != 2 {
		t.Fatalf("expected TotalProcessed=2, got %d", report.TotalProcessed)
	}

	var amountDivs, dateDivs int
	for _, d := range report.Divergences {
		switch d.Kind {
		case models.ConflictKindAmount:
			amountDivs++
			if d.InternalValue != "1000" || d.ExternalValue != "1030" {
				t.Fatalf("amount divergence values: internal=%s external=%s", d.InternalValue, d.ExternalValue)
			}
		case models.ConflictKindDate:
			dateDivs++
		}
	}
	if amountDivs != 1 {
		t.Fatalf("expected 1 amount divergence, got %d", amountDivs)
	}
	if dateDivs != 1 {
		t.Fatalf("expected 1 date divergence for the 2-day offset, got %d", dateDivs)
	}
}

func TestMatch_TightAmountTolerance_LeavesBothUnmatched(t *testing.T) {
	txns := []*models.Transaction{txnWith(1, "1000", day(2026, 3, 10))}
	records := []ExternalRecord{recWith("ext-1", "1030", day(2026, 3, 10))}

	tight := Tolerances{AmountPct: decimal.NewFromInt(1), DateDays: 5}
	report := Match(txns, records, tight, nil)

	if len(report.Matched) != 0 {
		t.Fatalf("expected no matches at 1%% tolerance, got %d", len(report.Matched))
	}
	if len(report.MissingInExternal) != 1 {
		t.Fatalf("expected transaction in MissingInExternal, got %d", len(report.MissingInExternal))
	}
	if len(report.MissingInInternal) != 1 {
		t.Fatalf("expected record in MissingInInternal, got %d", len(report.MissingInInternal))
	}
}

func TestMatch_DateOutsideTolerance_LeavesBothUnmatched(t *testing.T) {
	txns := []*models.Transaction{txnWith(1, "500", day(2026, 3, 10))}
	records := []ExternalRecord{recWith("ext-1", "500", day(2026, 3, 17))}

	report := Match(txns, records, DefaultTolerances(), nil)

	if len(report.Matched) != 0 {
		t.Fatalf("expected no matches across a 7-day gap, got %d", len(report.Matched))
	}
}

func TestMatch_CompetingTransactions_ClosestDateWins(t *testing.T) {
	// Two equal-amount transactions compete for one record; the record
	// must pair with its closest-date candidate regardless of order.
	txns := []*models.Transaction{
		txnWith(1, "100", day(2026, 6, 1)),
		txnWith(2, "100", day(2026, 6, 3)),
	}
	records := []ExternalRecord{recWith("r1", "100", day(2026, 6, 3))}

	report := Match(txns, records, DefaultTolerances(), nil)

	if len(report.Matched) != 1 {
		t.Fatalf("expected 1 match, got %d", len(report.Matched))
	}
	if report.Matched[0].Transaction.ID != 2 {
		t.Fatalf("record r1 paired with transaction %d, want 2 (closest date)", report.Matched[0].Transaction.ID)
	}
	if len(report.MissingInExternal) != 1 || report.MissingInExternal[0].ID != 1 {
		t.Fatalf("expected transaction 1 left unmatched, got %+v", report.MissingInExternal)
	}
}

func TestMatch_CompetingTransactions_SameDateClosestAmountWins(t *testing.T) {
	txns := []*models.Transaction{
		txnWith(1, "208", day(2026, 5, 10)),
		txnWith(2, "200", day(2026, 5, 10)),
	}
	records := []ExternalRecord{recWith("r1", "200", day(2026, 5, 10))}

	report := Match(txns, records, DefaultTolerances(), nil)

	if len(report.Matched) != 1 {
		t.Fatalf("expected 1 match, got %d", len(report.Matched))
	}
	if report.Matched[0].Transaction.ID != 2 {
		t.Fatalf("expected closest-amount transaction to win the date tie, got %d", report.Matched[0].Transaction.ID)
	}
}

func TestMatch_EachTransactionMatchesOnce(t *testing.T) {
	txns := []*models.Transaction{txnWith(1, "100", day(2026, 7, 1))}
	records := []ExternalRecord{
		recWith("first", "100", day(2026, 7, 1)),
		recWith("second", "100", day(2026, 7, 1)),
	}

	report := Match(txns, records, DefaultTolerances(), nil)

	if len(report.Matched) != 1 {
		t.Fatalf("expected exactly 1 match for a single transaction, got %d", len(report.Matched))
	}
	if len(report.MissingInInternal) != 1 {
		t.Fatalf("expected the second record unmatched, got %d missing", len(report.MissingInInternal))
	}
}

func TestMatch_ImportedExpenseMatchesItsStatementLine(t *testing.T) {
	// A bank-feed import stores a −50 statement line as an unsigned 50
	// expense. On the next run the pair must match via signed amounts
	// instead of surfacing as missing on both sides.
	txns := []*models.Transaction{expenseTxnWith(1, "50", day(2026, 6, 1))}
	records := []ExternalRecord{recWith("stmt-1", "-50", day(2026, 6, 1))}

	report := Match(txns, records, DefaultTolerances(), nil)

	if len(report.Matched) != 1 {
		t.Fatalf("matched = %d (missingInternal=%d missingExternal=%d), want 1",
			len(report.Matched), len(report.MissingInInternal), len(report.MissingInExternal))
	}
	for _, d := range report.Divergences {
		if d.Kind == models.ConflictKindAmount {
			t.Fatalf("signed-equal amounts must not diverge: internal=%s external=%s", d.InternalValue, d.ExternalValue)
		}
	}
}

func TestMatch_SignedAmountDivergenceValues(t *testing.T) {
	txns := []*models.Transaction{expenseTxnWith(1, "50", day(2026, 6, 1))}
	records := []ExternalRecord{recWith("stmt-1", "-52", day(2026, 6, 1))}

	report := Match(txns, records, DefaultTolerances(), nil)

	if len(report.Matched) != 1 {
		t.Fatalf("expected a match within tolerance, got %d", len(report.Matched))
	}
	found := false
	for _, d := range report.Divergences {
		if d.Kind == models.ConflictKindAmount {
			found = true
			if d.InternalValue != "-50" || d.ExternalValue != "-52" {
				t.Fatalf("amount divergence should carry signed values, got internal=%s external=%s",
					d.InternalValue, d.ExternalValue)
			}
		}
	}
	if !found {
		t.Fatalf("expected an amount divergence for -50 vs -52")
	}
}

func TestAmountsWithinTolerance(t *testing.T) {
	pct5 := decimal.NewFromInt(5)
	cases := []struct {
		a, b     string
		pct      decimal.Decimal
		expected bool
	}{
		{"1000", "1030", pct5, true},
		{"1000", "1060", pct5, false},
		{"0", "0", decimal.Zero, true},
		{"0", "1", pct5, false},
		{"-100", "-103", pct5, true},
		{"100", "100", decimal.Zero, true},
	}
	for _, tc := range cases {
		a := decimal.RequireFromString(tc.a)
		b := decimal.RequireFromString(tc.b)
		if got := amountsWithinTolerance(a, b, tc.pct); got != tc.expected {
			t.Fatalf("amountsWithinTolerance(%s, %s, %s) expected %t, got %t",
				tc.a, tc.b, tc.pct.String(), tc.expected, got)
		}
	}
}

func TestDateDeltaDays_IgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 3, 11, 0, 1, 0, 0, time.UTC)
	if got := dateDeltaDays(a, b); got != 1 {
		t.Fatalf("expected 1 day across midnight, got %d", got)
	}
	if got := dateDeltaDays(b, a); got != 1 {
		t.Fatalf("expected delta to be symmetric, got %d", got)
	}
}

func TestValidateTolerances(t *testing.T) {
	cases := []struct {
		name    string
		tol     Tolerances
		wantErr bool
	}{
		{"defaults", DefaultTolerances(), false},
		{"zero both", Tolerances{AmountPct: decimal.Zero, DateDays: 0}, false},
		{"max both", Tolerances{AmountPct: decimal.NewFromInt(100), DateDays: 30}, false},
		{"pct over", Tolerances{AmountPct: decimal.NewFromInt(101), DateDays: 5}, true},
		{"pct negative", Tolerances{AmountPct: decimal.NewFromInt(-1), DateDays: 5}, true},
		{"days over", Tolerances{AmountPct: decimal.NewFromInt(5), DateDays: 31}, true},
		{"days negative", Tolerances{AmountPct: decimal.NewFromInt(5), DateDays: -1}, true},
	}
	for _, tc := range cases {
		err := ValidateTolerances(tc.tol)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestDetectDivergences_PerField(t *testing.T) {
	txn := txnWith(1, "100", day(2026, 4, 1))
	txn.CategoryId = 7
	txn.Description = "Aluguel"
	rec := ExternalRecord{
		ExternalId:  "ext-1",
		Amount:      decimal.RequireFromString("100"),
		Date:        day(2026, 4, 1),
		Status:      "pending",
		Category:    "Moradia",
		Description: "Rent",
	}
	names := map[int]string{7: "Transporte"}

	divs := detectDivergences(MatchedPair{Transaction: txn, Record: rec}, names)

	kinds := map[models.ConflictKind]Divergence{}
	for _, d := range divs {
		kinds[d.Kind] = d
	}
	if _, ok := kinds[models.ConflictKindAmount]; ok {
		t.Fatalf("equal amounts should not diverge")
	}
	if _, ok := kinds[models.ConflictKindDate]; ok {
		t.Fatalf("same-day dates should not diverge")
	}
	if d, ok := kinds[models.ConflictKindStatus]; !ok {
		t.Fatalf("expected status divergence")
	} else if d.InternalValue != "cleared" || d.ExternalValue != "pending" {
		t.Fatalf("status divergence values: internal=%s external=%s", d.InternalValue, d.ExternalValue)
	}
	if d, ok := kinds[models.ConflictKindCategory]; !ok {
		t.Fatalf("expected category divergence")
	} else if d.InternalValue != "Transporte" || d.ExternalValue != "Moradia" {
		t.Fatalf("category divergence values: internal=%s external=%s", d.InternalValue, d.ExternalValue)
	}
	if _, ok := kinds[models.ConflictKindDescription]; !ok {
		t.Fatalf("expected description divergence")
	}
	if _, ok := kinds[models.ConflictKindDeleted]; ok {
		t.Fatalf("both sides live, no deleted divergence expected")
	}
}

func TestDetectDivergences_CategoryComparisonIsCaseInsensitive(t *testing.T) {
	txn := txnWith(1, "50", day(2026, 4, 1))
	txn.CategoryId = 3
	rec := recWith("ext-1", "50", day(2026, 4, 1))
	rec.Category = "aluguel"

	divs := detectDivergences(MatchedPair{Transaction: txn, Record: rec}, map[int]string{3: "Aluguel"})
	for _, d := range divs {
		if d.Kind == models.ConflictKindCategory {
			t.Fatalf("case-only category difference should not diverge")
		}
	}
}

func TestDetectDivergences_DeletedMismatch(t *testing.T) {
	txn := txnWith(1, "50", day(2026, 4, 1))
	txn.DeletedAt = gorm.DeletedAt{Time: day(2026, 4, 2), Valid: true}
	rec := recWith("ext-1", "50", day(2026, 4, 1))

	divs := detectDivergences(MatchedPair{Transaction: txn, Record: rec}, nil)
	found := false
	for _, d := range divs {
		if d.Kind == models.ConflictKindDeleted {
			found = true
			if d.InternalValue != "true" || d.ExternalValue != "false" {
				t.Fatalf("deleted divergence values: internal=%s external=%s", d.InternalValue, d.ExternalValue)
			}
		}
	}
	if !found {
		t.Fatalf("expected deleted divergence when only the internal side is soft-deleted")
	}
}

func TestDetectDivergences_EmptyExternalFieldsAreNotCompared(t *testing.T) {
	txn := txnWith(1, "50", day(2026, 4, 1))
	txn.CategoryId = 3
	txn.Description = "Mercado"
	rec := recWith("ext-1", "50", day(2026, 4, 1))

	divs := detectDivergences(MatchedPair{Transaction: txn, Record: rec}, map[int]string{3: "Alimentação"})
	if len(divs) != 0 {
		t.Fatalf("expected no divergences when external status/category/description are empty, got %d", len(divs))
	}
}
