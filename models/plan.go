package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/contarapida/finance_backend/utils"
)

// PlanLimits are the per-tier feature gates enforced by the policy layer.
type PlanLimits struct {
	MaxWallets            int  `json:"max_wallets"`
	MaxUsers              int  `json:"max_users"`
	ForecastMonths        int  `json:"forecast_months"`
	ReconciliationEnabled bool `json:"reconciliation_enabled"`
	ErpIntegration        bool `json:"erp_integration"`
	BankFeed              bool `json:"bank_feed"`
}

var planLimits = map[PlanTier]PlanLimits{
	PlanTierFree: {
		MaxWallets:            2,
		MaxUsers:              1,
		ForecastMonths:        3,
		ReconciliationEnabled: false,
		ErpIntegration:        false,
		BankFeed:              false,
	},
	PlanTierPro: {
		MaxWallets:            10,
		MaxUsers:              5,
		ForecastMonths:        12,
		ReconciliationEnabled: true,
		ErpIntegration:        false,
		BankFeed:              true,
	},
	PlanTierBusiness: {
		MaxWallets:            50,
		MaxUsers:              25,
		ForecastMonths:        24,
		ReconciliationEnabled: true,
		ErpIntegration:        true,
		BankFeed:              true,
	},
}

func GetPlanLimits(tier PlanTier) PlanLimits {
	limits, ok := planLimits[tier]
	if !ok {
		return planLimits[PlanTierFree]
	}
	return limits
}

// CheckWalletLimit returns an error when creating one more wallet would
// exceed the business's plan.
func CheckWalletLimit(ctx context.Context, businessId string) error {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return err
	}
	limits := GetPlanLimits(business.PlanTier)

	count, err := utils.ResourceCountWhere[Wallet](ctx, businessId, "is_active = ?", true)
	if err != nil {
		return err
	}
	if count >= int64(limits.MaxWallets) {
		return fmt.Errorf("wallet limit reached for %s plan (%d)", business.PlanTier, limits.MaxWallets)
	}
	return nil
}

// CheckUserLimit returns an error when inviting one more user would
// exceed the business's plan.
func CheckUserLimit(ctx context.Context, businessId string) error {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return err
	}
	limits := GetPlanLimits(business.PlanTier)

	count, err := utils.ResourceCountWhere[User](ctx, businessId, "is_active = ?", true)
	if err != nil {
		return err
	}
	if count >= int64(limits.MaxUsers) {
		return fmt.Errorf("user limit reached for %s plan (%d)", business.PlanTier, limits.MaxUsers)
	}
	return nil
}

// CheckReconciliationEnabled gates reconciliation features by tier.
func CheckReconciliationEnabled(ctx context.Context, businessId string) error {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return err
	}
	if !GetPlanLimits(business.PlanTier).ReconciliationEnabled {
		return errors.New("reconciliation is not available on the current plan")
	}
	return nil
}

// CheckProviderEnabled gates integration providers by tier.
func CheckProviderEnabled(ctx context.Context, businessId string, provider string) error {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return err
	}
	limits := GetPlanLimits(business.PlanTier)
	switch provider {
	case IntegrationProviderErp:
		if !limits.ErpIntegration {
			return errors.New("erp integration is not available on the current plan")
		}
	case IntegrationProviderBankFeed:
		if !limits.BankFeed {
			return errors.New("bank feed is not available on the current plan")
		}
	default:
		return errors.New("invalid integration provider")
	}
	return nil
}

// ClampForecastMonths caps the requested horizon at the plan's maximum.
func ClampForecastMonths(ctx context.Context, businessId string, months int) (int, error) {
	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return 0, err
	}
	limits := GetPlanLimits(business.PlanTier)
	if months == 0 {
		// unset means "as far as the plan allows"
		return limits.ForecastMonths, nil
	}
	if months < 0 {
		return 0, errors.New("months must be positive")
	}
	if months > limits.ForecastMonths {
		return limits.ForecastMonths, nil
	}
	return months, nil
}
