package config

import (
	"os"
	"strings"
)

// StrictResolvedConflictImmutability enables fintech-grade guardrails:
// resolved reconciliation conflicts cannot be reopened or re-resolved; a new
// conflict must be raised instead.
//
// Set via env:
// - STRICT_RESOLVED_CONFLICT_IMMUTABLE=true
func StrictResolvedConflictImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_RESOLVED_CONFLICT_IMMUTABLE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AutoReconcileEnabledFor gates the background auto-reconcile worker per
// connection provider during the incremental rollout.
//
// Set via env:
// - AUTO_RECONCILE_PROVIDERS="ERP,BANK_FEED"
//
// Provider keys are case-insensitive.
func AutoReconcileEnabledFor(provider string) bool {
	provider = strings.ToUpper(strings.TrimSpace(provider))
	if provider == "" {
		return false
	}
	raw := os.Getenv("AUTO_RECONCILE_PROVIDERS")
	if strings.TrimSpace(raw) == "" {
		return false
	}
	for _, part := range strings.Split(raw, ",") {
		if strings.ToUpper(strings.TrimSpace(part)) == provider {
			return true
		}
	}
	return false
}
