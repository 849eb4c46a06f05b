package models

import (
	"context"
	"errors"
	"time"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/utils"
	"github.com/shopspring/decimal"
)

// trailing history window feeding the projection
const forecastTrailingMonths = 6

type ForecastMonth struct {
	Year             int             `json:"year"`
	Month            time.Month      `json:"month"`
	ProjectedInflow  decimal.Decimal `json:"projected_inflow"`
	ProjectedOutflow decimal.Decimal `json:"projected_outflow"`
	NetFlow          decimal.Decimal `json:"net_flow"`
	ProjectedBalance decimal.Decimal `json:"projected_balance"`
}

type CashFlowForecast struct {
	WalletId        int              `json:"wallet_id,omitempty"`
	StartingBalance decimal.Decimal  `json:"starting_balance"`
	Months          []*ForecastMonth `json:"months"`
}

// ProjectCashFlow builds the projection table from a starting balance and
// average monthly flows. Pure; callers supply the aggregates.
func ProjectCashFlow(start time.Time, months int, startingBalance, avgInflow, avgOutflow decimal.Decimal) []*ForecastMonth {

	results := make([]*ForecastMonth, 0, months)
	balance := startingBalance
	net := avgInflow.Sub(avgOutflow)

	year, month, _ := start.Date()
	for i := 1; i <= months; i++ {
		m := time.Date(year, month+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
		balance = balance.Add(net)
		results = append(results, &ForecastMonth{
			Year:             m.Year(),
			Month:            m.Month(),
			ProjectedInflow:  avgInflow,
			ProjectedOutflow: avgOutflow,
			NetFlow:          net,
			ProjectedBalance: balance,
		})
	}
	return results
}

// averageMonthlyFlows aggregates the trailing window into average inflow and
// outflow per month. walletId of 0 means business-wide.
func averageMonthlyFlows(ctx context.Context, businessId string, walletId int) (decimal.Decimal, decimal.Decimal, error) {

	start, end := utils.GetLastMonthsRange(forecastTrailingMonths)

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Transaction{}).
		Where("business_id = ?", businessId).
		Where("transaction_date BETWEEN ? AND ?", start, end)
	if walletId > 0 {
		dbCtx = dbCtx.Where("wallet_id = ?", walletId)
	}

	type flowRow struct {
		Inflow  decimal.NullDecimal
		Outflow decimal.NullDecimal
	}
	var row flowRow
	err := dbCtx.Select(`
		SUM(CASE WHEN transaction_type IN ('deposit','income') THEN amount ELSE 0 END) AS inflow,
		SUM(CASE WHEN transaction_type IN ('expense','investment') THEN amount ELSE 0 END) AS outflow`).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	monthsDivisor := decimal.NewFromInt(forecastTrailingMonths)
	avgInflow := decimal.Zero
	avgOutflow := decimal.Zero
	if row.Inflow.Valid {
		avgInflow = row.Inflow.Decimal.Div(monthsDivisor)
	}
	if row.Outflow.Valid {
		avgOutflow = row.Outflow.Decimal.Div(monthsDivisor)
	}
	return avgInflow, avgOutflow, nil
}

// GetCashFlowForecast projects month-end balances over the requested horizon,
// for one wallet or the whole business. The horizon is capped by the plan.
func GetCashFlowForecast(ctx context.Context, walletId int, months int) (*CashFlowForecast, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	months, err := ClampForecastMonths(ctx, businessId, months)
	if err != nil {
		return nil, err
	}

	var startingBalance decimal.Decimal
	if walletId > 0 {
		startingBalance, err = ComputeWalletBalance(ctx, businessId, walletId)
		if err != nil {
			return nil, err
		}
	} else {
		db := config.GetDB()
		var total decimal.NullDecimal
		err = db.WithContext(ctx).Model(&Transaction{}).
			Select(`SUM(CASE WHEN transaction_type IN ('deposit','income') THEN amount ELSE -amount END)`).
			Where("business_id = ?", businessId).
			Scan(&total).Error
		if err != nil {
			return nil, err
		}
		if total.Valid {
			startingBalance = total.Decimal
		}
	}

	avgInflow, avgOutflow, err := averageMonthlyFlows(ctx, businessId, walletId)
	if err != nil {
		return nil, err
	}

	forecast := CashFlowForecast{
		WalletId:        walletId,
		StartingBalance: startingBalance,
		Months:          ProjectCashFlow(time.Now(), months, startingBalance, avgInflow, avgOutflow),
	}
	return &forecast, nil
}
