package reconcile

import (
	"testing"

	"github.com/contarapida/finance_backend/models"
)

func TestRunStatsKeys(t *testing.T) {
	report := Report{
		Matched:           []MatchedPair{{}, {}},
		MissingInExternal: []*models.Transaction{{}},
		MissingInInternal: []ExternalRecord{{}, {}, {}},
		TotalProcessed:    6,
	}

	stats := runStats(report, 4, 1)

	want := map[string]int{
		"matched":           2,
		"missingInExternal": 1,
		"missingInInternal": 3,
		"conflicts":         4,
		"imported":          1,
		"totalProcessed":    6,
	}
	if len(stats) != len(want) {
		t.Fatalf("stats has %d keys, want %d", len(stats), len(want))
	}
	for key, value := range want {
		got, ok := stats[key]
		if !ok {
			t.Fatalf("stats missing key %q", key)
		}
		if got != value {
			t.Fatalf("stats[%q] = %d, want %d", key, got, value)
		}
	}
}
