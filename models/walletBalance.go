package models

import (
	"context"
	"errors"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/utils"
	"github.com/shopspring/decimal"
)

// BalanceCorrection is the result of a recompute-and-repair pass over one wallet.
type BalanceCorrection struct {
	WalletId  int             `json:"wallet_id"`
	Balance   decimal.Decimal `json:"balance"`
	Corrected bool            `json:"corrected"`
}

// ComputeWalletBalance sums the wallet's signed transaction amounts with a
// single SQL aggregate. Deposits and income count positive, expenses and
// investments negative. Soft-deleted transactions are excluded. A wallet
// with no transactions yields zero.
func ComputeWalletBalance(ctx context.Context, businessId string, walletId int) (decimal.Decimal, error) {

	if err := utils.ValidateResourceId[Wallet](ctx, businessId, walletId); err != nil {
		return decimal.Zero, err
	}

	db := config.GetDB()
	var balance decimal.NullDecimal
	err := db.WithContext(ctx).Model(&Transaction{}).
		Select(`SUM(CASE WHEN transaction_type IN ('deposit','income') THEN amount ELSE -amount END)`).
		Where("business_id = ? AND wallet_id = ?", businessId, walletId).
		Scan(&balance).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !balance.Valid {
		return decimal.Zero, nil
	}
	return balance.Decimal, nil
}

// RecalculateWalletBalance recomputes the wallet balance from transactions and
// persists the correction as one conditional UPDATE. The WHERE clause carries
// the inequality so a concurrent writer cannot be clobbered by a stale read;
// RowsAffected tells whether the stored value actually changed.
// The computed balance is returned even when the write fails.
func RecalculateWalletBalance(ctx context.Context, businessId string, walletId int) (*BalanceCorrection, error) {

	computed, err := ComputeWalletBalance(ctx, businessId, walletId)
	if err != nil {
		return nil, err
	}

	result := BalanceCorrection{
		WalletId: walletId,
		Balance:  computed,
	}

	db := config.GetDB()
	res := db.WithContext(ctx).Model(&Wallet{}).
		Where("id = ? AND business_id = ? AND balance <> ?", walletId, businessId, computed).
		Update("balance", computed)
	if res.Error != nil {
		return &result, res.Error
	}
	result.Corrected = res.RowsAffected > 0

	if result.Corrected {
		if err := utils.RemoveRedisItem[Wallet](walletId); err != nil {
			return &result, err
		}
		if err := utils.RemoveRedisList[Wallet](businessId); err != nil {
			return &result, err
		}
	}

	return &result, nil
}

// RecalculateAllWalletBalances runs the correction across every wallet of the
// business. Per-wallet failures are collected, not fatal.
func RecalculateAllWalletBalances(ctx context.Context, businessId string) ([]*BalanceCorrection, error) {

	if businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var walletIds []int
	if err := db.WithContext(ctx).Model(&Wallet{}).
		Where("business_id = ?", businessId).
		Pluck("id", &walletIds).Error; err != nil {
		return nil, err
	}

	logger := config.GetLogger()
	results := make([]*BalanceCorrection, 0, len(walletIds))
	for _, walletId := range walletIds {
		correction, err := RecalculateWalletBalance(ctx, businessId, walletId)
		if err != nil {
			config.LogError(logger, "models", "RecalculateAllWalletBalances", "wallet recalculation failed", walletId, err)
			continue
		}
		results = append(results, correction)
	}

	return results, nil
}
