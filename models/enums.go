package models

import (
	"errors"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeExpense    TransactionType = "expense"
	TransactionTypeInvestment TransactionType = "investment"
	TransactionTypeIncome     TransactionType = "income"
)

func ParseTransactionType(s string) (TransactionType, error) {
	switch s {
	case "deposit":
		return TransactionTypeDeposit, nil
	case "expense":
		return TransactionTypeExpense, nil
	case "investment":
		return TransactionTypeInvestment, nil
	case "income":
		return TransactionTypeIncome, nil
	default:
		return "", errors.New("invalid transaction type")
	}
}

// Sign returns +1 for inflow types and -1 for outflow types.
func (t TransactionType) Sign() int64 {
	switch t {
	case TransactionTypeDeposit, TransactionTypeIncome:
		return 1
	case TransactionTypeExpense, TransactionTypeInvestment:
		return -1
	}
	return 0
}

type WalletType string

const (
	WalletTypeManual WalletType = "manual"
	WalletTypeBank   WalletType = "bank"
	WalletTypeErp    WalletType = "erp"
)

func ParseWalletType(s string) (WalletType, error) {
	switch s {
	case "manual":
		return WalletTypeManual, nil
	case "bank":
		return WalletTypeBank, nil
	case "erp":
		return WalletTypeErp, nil
	default:
		return "", errors.New("invalid wallet type")
	}
}

type UserRole string

const (
	UserRoleOwner  UserRole = "owner"
	UserRoleAdmin  UserRole = "admin"
	UserRoleMember UserRole = "member"
	UserRoleViewer UserRole = "viewer"
)

func ParseUserRole(s string) (UserRole, error) {
	switch s {
	case "owner":
		return UserRoleOwner, nil
	case "admin":
		return UserRoleAdmin, nil
	case "member":
		return UserRoleMember, nil
	case "viewer":
		return UserRoleViewer, nil
	default:
		return "", errors.New("invalid user role")
	}
}

type PlanTier string

const (
	PlanTierFree     PlanTier = "free"
	PlanTierPro      PlanTier = "pro"
	PlanTierBusiness PlanTier = "business"
)

func ParsePlanTier(s string) (PlanTier, error) {
	switch s {
	case "free":
		return PlanTierFree, nil
	case "pro":
		return PlanTierPro, nil
	case "business":
		return PlanTierBusiness, nil
	default:
		return "", errors.New("invalid plan tier")
	}
}

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusCleared TransactionStatus = "cleared"
	TransactionStatusVoided  TransactionStatus = "voided"
)

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch s {
	case "pending":
		return TransactionStatusPending, nil
	case "cleared":
		return TransactionStatusCleared, nil
	case "voided":
		return TransactionStatusVoided, nil
	default:
		return "", errors.New("invalid transaction status")
	}
}

type ConflictKind string

const (
	ConflictKindAmount      ConflictKind = "amount"
	ConflictKindDate        ConflictKind = "date"
	ConflictKindStatus      ConflictKind = "status"
	ConflictKindCategory    ConflictKind = "category"
	ConflictKindDescription ConflictKind = "description"
	ConflictKindDeleted     ConflictKind = "deleted"
)

type ResolutionMethod string

const (
	ResolutionKeepInternal  ResolutionMethod = "keep_internal"
	ResolutionApplyExternal ResolutionMethod = "apply_external"
	ResolutionManual        ResolutionMethod = "manual"
)

func ParseResolutionMethod(s string) (ResolutionMethod, error) {
	switch s {
	case "keep_internal":
		return ResolutionKeepInternal, nil
	case "apply_external":
		return ResolutionApplyExternal, nil
	case "manual":
		return ResolutionManual, nil
	default:
		return "", errors.New("invalid resolution method")
	}
}

type ConflictStatus string

const (
	ConflictStatusOpen     ConflictStatus = "open"
	ConflictStatusResolved ConflictStatus = "resolved"
)

const (
	IntegrationProviderErp      = "erp"
	IntegrationProviderBankFeed = "bank_feed"
)

const (
	IntegrationStatusConnected    = "connected"
	IntegrationStatusDisconnected = "disconnected"
	IntegrationStatusError        = "error"
)

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredRetry  = "retry"
	SyncTriggeredSystem = "system"
)
