package utils

import (
	"testing"
	"time"
)

func TestGetMonthRange(t *testing.T) {
	cases := []struct {
		year          int
		month         time.Month
		expectedStart string
		expectedEnd   string
	}{
		{2026, time.January, "2026-01-01", "2026-01-31"},
		{2026, time.February, "2026-02-01", "2026-02-28"},
		{2024, time.February, "2024-02-01", "2024-02-29"},
		{2026, time.December, "2026-12-01", "2026-12-31"},
	}
	for _, tc := range cases {
		start, end := GetMonthRange(tc.year, tc.month)
		if start.Format("2006-01-02") != tc.expectedStart {
			t.Fatalf("GetMonthRange(%d, %s) start expected %s, got %s",
				tc.year, tc.month, tc.expectedStart, start.Format("2006-01-02"))
		}
		if end.Format("2006-01-02") != tc.expectedEnd {
			t.Fatalf("GetMonthRange(%d, %s) end expected %s, got %s",
				tc.year, tc.month, tc.expectedEnd, end.Format("2006-01-02"))
		}
		if end.Hour() != 23 || end.Minute() != 59 || end.Second() != 59 {
			t.Fatalf("GetMonthRange(%d, %s) end should be end of day, got %s", tc.year, tc.month, end)
		}
	}
}

func TestGetQuarterRange(t *testing.T) {
	cases := []struct {
		month         time.Month
		expectedStart string
		expectedEnd   string
	}{
		{time.January, "2026-01-01", "2026-03-31"},
		{time.March, "2026-01-01", "2026-03-31"},
		{time.April, "2026-04-01", "2026-06-30"},
		{time.September, "2026-07-01", "2026-09-30"},
		{time.December, "2026-10-01", "2026-12-31"},
	}
	for _, tc := range cases {
		start, end := GetQuarterRange(2026, tc.month)
		if start.Format("2006-01-02") != tc.expectedStart || end.Format("2006-01-02") != tc.expectedEnd {
			t.Fatalf("GetQuarterRange(2026, %s) expected %s..%s, got %s..%s",
				tc.month, tc.expectedStart, tc.expectedEnd,
				start.Format("2006-01-02"), end.Format("2006-01-02"))
		}
	}
}

func TestGetStartAndEndDateForFilter(t *testing.T) {
	for _, period := range []string{
		"last6months", "last12months",
		"thisMonth", "previousMonth",
		"thisQuarter", "previousQuarter",
	} {
		start, end, err := GetStartAndEndDateForFilter(period)
		if err != nil {
			t.Fatalf("GetStartAndEndDateForFilter(%q) error: %v", period, err)
		}
		if !start.Before(end) {
			t.Fatalf("GetStartAndEndDateForFilter(%q) start %s not before end %s", period, start, end)
		}
	}

	if _, _, err := GetStartAndEndDateForFilter("lastDecade"); err == nil {
		t.Fatalf("expected error for unknown period")
	}
}

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"123.45", "123.45", false},
		{"  99.9  ", "99.9", false},
		{"-0.01", "-0.01", false},
		{"0", "0", false},
		{"", "", true},
		{"   ", "", true},
		{"abc", "", true},
	}
	for _, tc := range cases {
		d, err := ParseDecimal(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDecimal(%q) expected error, got %s", tc.in, d.String())
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDecimal(%q) error: %v", tc.in, err)
		}
		if d.String() != tc.expected {
			t.Fatalf("ParseDecimal(%q) expected %s, got %s", tc.in, tc.expected, d.String())
		}
	}
}

func TestUniqueSlice(t *testing.T) {
	ints := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(ints) != 3 || ints[0] != 3 || ints[1] != 1 || ints[2] != 2 {
		t.Fatalf("UniqueSlice should keep first-seen order, got %v", ints)
	}

	strs := UniqueSlice([]string{"a", "a", "b"})
	if len(strs) != 2 {
		t.Fatalf("expected 2 unique strings, got %v", strs)
	}

	if got := UniqueSlice([]int(nil)); got != nil {
		t.Fatalf("expected nil for nil input, got %v", got)
	}
}

func TestDereferencePtr(t *testing.T) {
	v := 42
	if got := DereferencePtr(&v); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	if got := DereferencePtr[int](nil); got != 0 {
		t.Fatalf("expected zero value for nil, got %d", got)
	}
	if got := DereferencePtr(nil, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback default, got %q", got)
	}
}
