package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDecodeSettings_FallsBackToDefaults(t *testing.T) {
	cases := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"garbage", []byte("{not json")},
	}
	for _, tc := range cases {
		s := DecodeSettings(tc.raw)
		if !s.AmountTolerancePct.Equal(decimal.NewFromInt(5)) {
			t.Fatalf("%s: expected default amount tolerance 5, got %s", tc.name, s.AmountTolerancePct.String())
		}
		if s.DateToleranceDays != 5 {
			t.Fatalf("%s: expected default date tolerance 5, got %d", tc.name, s.DateToleranceDays)
		}
		if s.AutoImport {
			t.Fatalf("%s: auto import should default to off", tc.name)
		}
	}
}

func TestDecodeSettings_RoundTrip(t *testing.T) {
	in := SyncSettings{
		AmountTolerancePct: decimal.RequireFromString("2.5"),
		DateToleranceDays:  10,
		AutoImport:         true,
	}
	out := DecodeSettings(EncodeSettings(in))
	if !out.AmountTolerancePct.Equal(in.AmountTolerancePct) {
		t.Fatalf("amount tolerance round trip: expected %s, got %s", in.AmountTolerancePct, out.AmountTolerancePct)
	}
	if out.DateToleranceDays != 10 || !out.AutoImport {
		t.Fatalf("settings round trip mismatch: %+v", out)
	}
}

func TestNormalizeSettings_ClampsOutOfRangeValues(t *testing.T) {
	s := NormalizeSettings(SyncSettings{
		AmountTolerancePct: decimal.NewFromInt(250),
		DateToleranceDays:  90,
	})
	if !s.AmountTolerancePct.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected out-of-range pct reset to 5, got %s", s.AmountTolerancePct.String())
	}
	if s.DateToleranceDays != 5 {
		t.Fatalf("expected out-of-range days reset to 5, got %d", s.DateToleranceDays)
	}
}

func TestNormalizeSettings_KeepsZeroTolerances(t *testing.T) {
	// Zero means exact matching, not "unset".
	s := NormalizeSettings(SyncSettings{AmountTolerancePct: decimal.Zero, DateToleranceDays: 0})
	if !s.AmountTolerancePct.IsZero() || s.DateToleranceDays != 0 {
		t.Fatalf("zero tolerances must survive normalization: %+v", s)
	}
}

func TestDecodeRunParams(t *testing.T) {
	p := DecodeRunParams(EncodeRunParams(RunParams{
		FromDate:           "2026-01-01",
		ToDate:             "2026-01-31",
		WalletId:           3,
		ExternalId:         "ext-9",
		AmountTolerancePct: decimal.NewFromInt(2),
		DateToleranceDays:  1,
	}))
	if p.FromDate != "2026-01-01" || p.ToDate != "2026-01-31" {
		t.Fatalf("date window round trip mismatch: %+v", p)
	}
	if p.WalletId != 3 || p.ExternalId != "ext-9" {
		t.Fatalf("scope round trip mismatch: %+v", p)
	}
	if !p.AmountTolerancePct.Equal(decimal.NewFromInt(2)) || p.DateToleranceDays != 1 {
		t.Fatalf("tolerance round trip mismatch: %+v", p)
	}

	empty := DecodeRunParams(nil)
	if empty.FromDate != "" || empty.WalletId != 0 {
		t.Fatalf("empty params should decode to the zero value: %+v", empty)
	}
}

func TestDecodeCursorState_IgnoresGarbage(t *testing.T) {
	state := DecodeCursorState([]byte("not json"))
	if state.Records.Cursor != "" || state.Records.UpdatedSince != "" {
		t.Fatalf("garbage cursor state should decode empty: %+v", state)
	}

	round := DecodeCursorState(EncodeCursorState(CursorState{
		Records: CursorEntry{UpdatedSince: "2026-06-01T00:00:00Z", Cursor: "abc"},
	}))
	if round.Records.Cursor != "abc" || round.Records.UpdatedSince != "2026-06-01T00:00:00Z" {
		t.Fatalf("cursor state round trip mismatch: %+v", round)
	}
}
