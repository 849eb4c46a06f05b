package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contarapida/finance_backend/models"
)

// ExternalRecord is one statement line or ledger entry from a provider.
type ExternalRecord struct {
	ExternalId  string          `json:"external_id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Status      string          `json:"status"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Deleted     bool            `json:"deleted"`
}

type Tolerances struct {
	AmountPct decimal.Decimal
	DateDays  int
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		AmountPct: decimal.NewFromInt(defaultAmountTolerancePct),
		DateDays:  defaultDateToleranceDays,
	}
}

func ValidateTolerances(t Tolerances) error {
	if t.AmountPct.IsNegative() || t.AmountPct.GreaterThan(decimal.NewFromInt(maxAmountTolerancePct)) {
		return fmt.Errorf("amount tolerance must be between 0 and %d percent", maxAmountTolerancePct)
	}
	if t.DateDays < 0 || t.DateDays > maxDateToleranceDays {
		return fmt.Errorf("date tolerance must be between 0 and %d days", maxDateToleranceDays)
	}
	return nil
}

type MatchedPair struct {
	Transaction *models.Transaction
	Record      ExternalRecord
}

type Divergence struct {
	Transaction   *models.Transaction
	Record        ExternalRecord
	Kind          models.ConflictKind
	InternalValue string
	ExternalValue string
}

type Report struct {
	Matched           []MatchedPair
	MissingInExternal []*models.Transaction
	MissingInInternal []ExternalRecord
	Divergences       []Divergence
	TotalProcessed    int
}

// amountsWithinTolerance compares on relative distance against the
// larger magnitude. Two zero amounts always match.
func amountsWithinTolerance(a, b decimal.Decimal, pct decimal.Decimal) bool {
	absA := a.Abs()
	absB := b.Abs()
	max := absA
	if absB.GreaterThan(max) {
		max = absB
	}
	if max.IsZero() {
		return true
	}
	diff := a.Sub(b).Abs()
	return diff.Div(max).LessThanOrEqual(pct.Div(decimal.NewFromInt(100)))
}

func dateDeltaDays(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	delta := int(ad.Sub(bd).Hours() / 24)
	if delta < 0 {
		delta = -delta
	}
	return delta
}

// withinTolerance compares the transaction's signed amount against the
// record's, so an imported expense (−50 on the statement, stored as an
// unsigned 50) still matches its own source line.
func withinTolerance(txn *models.Transaction, rec ExternalRecord, t Tolerances) bool {
	if !amountsWithinTolerance(txn.SignedAmount(), rec.Amount, t.AmountPct) {
		return false
	}
	return dateDeltaDays(txn.TransactionDate, rec.Date) <= t.DateDays
}

// Match pairs external records with internal transactions. Each
// candidate pair must sit inside both tolerances. When several
// transactions qualify for one record the closest date wins, then the
// closest amount. Every record and transaction participates in at most
// one pair. categoryNames maps category ids to names for category
// comparison.
func Match(txns []*models.Transaction, records []ExternalRecord, t Tolerances, categoryNames map[int]string) Report {
	report := Report{TotalProcessed: len(txns) + len(records)}
	usedTxns := make([]bool, len(txns))

	for _, rec := range records {
		bestIdx := -1
		var bestDateDelta int
		var bestAmountDiff decimal.Decimal
		for i, txn := range txns {
			if usedTxns[i] {
				continue
			}
			if !withinTolerance(txn, rec, t) {
				continue
			}
			dateDelta := dateDeltaDays(txn.TransactionDate, rec.Date)
			amountDiff := txn.SignedAmount().Sub(rec.Amount).Abs()
			if bestIdx == -1 ||
				dateDelta < bestDateDelta ||
				(dateDelta == bestDateDelta && amountDiff.LessThan(bestAmountDiff)) {
				bestIdx = i
				bestDateDelta = dateDelta
				bestAmountDiff = amountDiff
			}
		}
		if bestIdx == -1 {
			report.MissingInInternal = append(report.MissingInInternal, rec)
			continue
		}
		usedTxns[bestIdx] = true
		pair := MatchedPair{Transaction: txns[bestIdx], Record: rec}
		report.Matched = append(report.Matched, pair)
		report.Divergences = append(report.Divergences, detectDivergences(pair, categoryNames)...)
	}

	for i, txn := range txns {
		if !usedTxns[i] {
			report.MissingInExternal = append(report.MissingInExternal, txn)
		}
	}
	return report
}

// detectDivergences inspects one matched pair field by field. A match
// inside tolerance can still carry exact-value conflicts.
func detectDivergences(pair MatchedPair, categoryNames map[int]string) []Divergence {
	txn := pair.Transaction
	rec := pair.Record
	var out []Divergence

	add := func(kind models.ConflictKind, internal, external string) {
		out = append(out, Divergence{
			Transaction:   txn,
			Record:        rec,
			Kind:          kind,
			InternalValue: internal,
			ExternalValue: external,
		})
	}

	if !txn.SignedAmount().Equal(rec.Amount) {
		add(models.ConflictKindAmount, txn.SignedAmount().String(), rec.Amount.String())
	}
	if dateDeltaDays(txn.TransactionDate, rec.Date) != 0 {
		add(models.ConflictKindDate, txn.TransactionDate.Format("2006-01-02"), rec.Date.Format("2006-01-02"))
	}
	if rec.Status != "" && string(txn.Status) != rec.Status {
		add(models.ConflictKindStatus, string(txn.Status), rec.Status)
	}
	internalCategory := categoryNames[txn.CategoryId]
	if rec.Category != "" && !strings.EqualFold(internalCategory, rec.Category) {
		add(models.ConflictKindCategory, internalCategory, rec.Category)
	}
	if rec.Description != "" && txn.Description != rec.Description {
		add(models.ConflictKindDescription, txn.Description, rec.Description)
	}
	deletedInternal := txn.DeletedAt.Valid
	if deletedInternal != rec.Deleted {
		add(models.ConflictKindDeleted, fmt.Sprintf("%t", deletedInternal), fmt.Sprintf("%t", rec.Deleted))
	}
	return out
}
