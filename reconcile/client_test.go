package reconcile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/contarapida/finance_backend/models"
)

func TestDecodeExternalRecord(t *testing.T) {
	raw := json.RawMessage(`{
		"external_id": "txn-9",
		"amount": " 1250.75 ",
		"date": "2026-03-15",
		"status": " Cleared ",
		"category": " Aluguel ",
		"description": " Rent march ",
		"deleted": false
	}`)

	rec, err := decodeExternalRecord(raw)
	if err != nil {
		t.Fatalf("decodeExternalRecord error: %v", err)
	}
	if rec.ExternalId != "txn-9" {
		t.Fatalf("expected external id txn-9, got %s", rec.ExternalId)
	}
	if rec.Amount.String() != "1250.75" {
		t.Fatalf("expected amount 1250.75, got %s", rec.Amount.String())
	}
	if rec.Date.Format("2006-01-02") != "2026-03-15" {
		t.Fatalf("expected date 2026-03-15, got %s", rec.Date)
	}
	if rec.Status != "cleared" {
		t.Fatalf("status should be trimmed and lowercased, got %q", rec.Status)
	}
	if rec.Category != "Aluguel" || rec.Description != "Rent march" {
		t.Fatalf("category/description should be trimmed, got %q / %q", rec.Category, rec.Description)
	}
}

func TestDecodeExternalRecord_IdFallback(t *testing.T) {
	rec, err := decodeExternalRecord(json.RawMessage(`{"id": "alt-1", "amount": "10", "date": "2026-01-01"}`))
	if err != nil {
		t.Fatalf("decodeExternalRecord error: %v", err)
	}
	if rec.ExternalId != "alt-1" {
		t.Fatalf("expected fallback to id field, got %s", rec.ExternalId)
	}
}

func TestDecodeExternalRecord_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing id", `{"amount": "10", "date": "2026-01-01"}`},
		{"bad amount", `{"id": "x", "amount": "ten", "date": "2026-01-01"}`},
		{"bad date", `{"id": "x", "amount": "10", "date": "01/02/2026"}`},
	}
	for _, tc := range cases {
		if _, err := decodeExternalRecord(json.RawMessage(tc.raw)); err == nil {
			t.Fatalf("%s: expected decode error", tc.name)
		}
	}
}

func TestParseRecordDate(t *testing.T) {
	cases := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"2026-03-15", "2026-03-15", false},
		{"2026-03-15T10:30:00Z", "2026-03-15", false},
		{" 2026-03-15 ", "2026-03-15", false},
		{"15/03/2026", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		d, err := parseRecordDate(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseRecordDate(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseRecordDate(%q) error: %v", tc.in, err)
		}
		if d.Format("2006-01-02") != tc.expected {
			t.Fatalf("parseRecordDate(%q) expected %s, got %s", tc.in, tc.expected, d.Format("2006-01-02"))
		}
	}
}

func TestFetchRecords_WindowedRunIgnoresIncrementalCursor(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"id": "r1", "amount": "10", "date": "2026-01-05"}]}`))
	}))
	defer srv.Close()

	t.Setenv("ERP_API_BASE_URL", srv.URL)
	t.Setenv("PROVIDER_RATE_LIMIT_PER_MIN", "60000")

	client, err := newProviderClient(models.IntegrationProviderErp, "test-key")
	if err != nil {
		t.Fatalf("newProviderClient error: %v", err)
	}

	params := RunParams{FromDate: "2026-01-01", ToDate: "2026-01-31"}
	cursor := CursorEntry{UpdatedSince: "2026-06-01T00:00:00Z"}
	records, recErrs, newCursor, err := client.fetchRecords(context.Background(), params, cursor)
	if err != nil {
		t.Fatalf("fetchRecords error: %v", err)
	}
	if len(recErrs) != 0 || len(records) != 1 {
		t.Fatalf("expected 1 record and no errors, got %d records %d errors", len(records), len(recErrs))
	}

	if _, ok := gotQuery["updated_since"]; ok {
		t.Fatalf("windowed run must not send updated_since, got query %v", gotQuery)
	}
	if gotQuery["from_date"][0] != "2026-01-01" || gotQuery["to_date"][0] != "2026-01-31" {
		t.Fatalf("date window missing from query: %v", gotQuery)
	}
	// the stored incremental cursor survives a windowed run
	if newCursor.UpdatedSince != cursor.UpdatedSince {
		t.Fatalf("windowed run clobbered the cursor: got %q, want %q", newCursor.UpdatedSince, cursor.UpdatedSince)
	}
}

func TestFetchRecords_IncrementalRunAdvancesCursor(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	t.Setenv("BANK_FEED_API_BASE_URL", srv.URL)
	t.Setenv("PROVIDER_RATE_LIMIT_PER_MIN", "60000")

	client, err := newProviderClient(models.IntegrationProviderBankFeed, "test-key")
	if err != nil {
		t.Fatalf("newProviderClient error: %v", err)
	}

	cursor := CursorEntry{UpdatedSince: "2026-06-01T00:00:00Z"}
	_, _, newCursor, err := client.fetchRecords(context.Background(), RunParams{}, cursor)
	if err != nil {
		t.Fatalf("fetchRecords error: %v", err)
	}
	if got, ok := gotQuery["updated_since"]; !ok || got[0] != cursor.UpdatedSince {
		t.Fatalf("incremental run should send updated_since, got query %v", gotQuery)
	}
	if newCursor.UpdatedSince == "" || newCursor.UpdatedSince == cursor.UpdatedSince {
		t.Fatalf("incremental run should advance the cursor, got %q", newCursor.UpdatedSince)
	}
}

func TestProviderListResponse_PrefersDataOverItems(t *testing.T) {
	resp := providerListResponse{
		Data:  []json.RawMessage{json.RawMessage(`{"id":"a"}`)},
		Items: []json.RawMessage{json.RawMessage(`{"id":"b"}`), json.RawMessage(`{"id":"c"}`)},
	}
	if got := resp.records(); len(got) != 1 {
		t.Fatalf("expected data field to win, got %d records", len(got))
	}

	itemsOnly := providerListResponse{Items: []json.RawMessage{json.RawMessage(`{"id":"b"}`)}}
	if got := itemsOnly.records(); len(got) != 1 {
		t.Fatalf("expected items fallback, got %d records", len(got))
	}
}
