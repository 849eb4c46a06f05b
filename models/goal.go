package models

import (
	"context"
	"errors"
	"time"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/utils"
	"github.com/shopspring/decimal"
)

type Goal struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	WalletId      int             `gorm:"index" json:"wallet_id"`
	Name          string          `gorm:"size:100;not null" json:"name" binding:"required"`
	TargetAmount  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"target_amount"`
	TargetDate    time.Time       `gorm:"not null" json:"target_date" binding:"required"`
	CurrentAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_amount"`
	IsAchieved    *bool           `gorm:"not null;default:false" json:"is_achieved"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Goal) GetBusinessId() string {
	return obj.BusinessId
}

type NewGoal struct {
	WalletId     int             `json:"wallet_id"`
	Name         string          `json:"name" binding:"required"`
	TargetAmount decimal.Decimal `json:"target_amount" binding:"required"`
	TargetDate   time.Time       `json:"target_date" binding:"required"`
}

type GoalProgress struct {
	GoalId        int             `json:"goal_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    time.Time       `json:"target_date"`
	ProgressPct   decimal.Decimal `json:"progress_pct"`
	DaysLeft      int             `json:"days_left"`
	Achieved      bool            `json:"achieved"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewGoal) validate(ctx context.Context, businessId string, id int) error {

	if !input.TargetAmount.IsPositive() {
		return errors.New("target amount must be positive")
	}
	if input.WalletId > 0 {
		if err := utils.ValidateResourceId[Wallet](ctx, businessId, input.WalletId); err != nil {
			return errors.New("wallet not found")
		}
	}
	if err := utils.ValidateUnique[Goal](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateGoal(ctx context.Context, input *NewGoal) (*Goal, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	goal := Goal{
		BusinessId:    businessId,
		WalletId:      input.WalletId,
		Name:          input.Name,
		TargetAmount:  input.TargetAmount,
		TargetDate:    input.TargetDate,
		CurrentAmount: decimal.Zero,
		IsAchieved:    utils.NewFalse(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&goal).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Goal](businessId); err != nil {
		return nil, err
	}

	return &goal, nil
}

func UpdateGoal(ctx context.Context, id int, input *NewGoal) (*Goal, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	goal, err := utils.FetchModel[Goal](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	goal.WalletId = input.WalletId
	goal.Name = input.Name
	goal.TargetAmount = input.TargetAmount
	goal.TargetDate = input.TargetDate

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(goal).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Goal](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Goal](businessId); err != nil {
		return nil, err
	}

	return goal, nil
}

func DeleteGoal(ctx context.Context, id int) (bool, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}

	if _, err := utils.FetchModel[Goal](ctx, businessId, id); err != nil {
		return false, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&Goal{}, id).Error; err != nil {
		return false, err
	}
	if err := utils.RemoveRedisItem[Goal](id); err != nil {
		return false, err
	}
	if err := utils.RemoveRedisList[Goal](businessId); err != nil {
		return false, err
	}

	return true, nil
}

func GetGoal(ctx context.Context, id int) (*Goal, error) {
	return GetResource[Goal](ctx, id)
}

func GetGoals(ctx context.Context) ([]*Goal, error) {
	return ListAllResource[Goal](ctx, "target_date")
}

// GetGoalProgress reads progress from the linked wallet's balance, or from
// the whole business when no wallet is linked.
func GetGoalProgress(ctx context.Context, id int) (*GoalProgress, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	goal, err := utils.FetchModel[Goal](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	var current decimal.Decimal
	if goal.WalletId > 0 {
		current, err = ComputeWalletBalance(ctx, businessId, goal.WalletId)
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
			current = total.Decimal
		}
	}

	progressPct := decimal.Zero
	if goal.TargetAmount.IsPositive() {
		progressPct = current.Div(goal.TargetAmount).Mul(decimal.NewFromInt(100))
		if progressPct.GreaterThan(decimal.NewFromInt(100)) {
			progressPct = decimal.NewFromInt(100)
		}
		if progressPct.IsNegative() {
			progressPct = decimal.Zero
		}
	}

	daysLeft := int(time.Until(goal.TargetDate).Hours() / 24)
	if daysLeft < 0 {
		daysLeft = 0
	}

	achieved := current.GreaterThanOrEqual(goal.TargetAmount)

	// persist achievement + snapshot for listing
	if !current.Equal(goal.CurrentAmount) || achieved != (goal.IsAchieved != nil && *goal.IsAchieved) {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&Goal{}).
			Where("id = ? AND business_id = ?", id, businessId).
			Updates(map[string]interface{}{"current_amount": current, "is_achieved": achieved}).Error; err != nil {
			return nil, err
		}
		if err := utils.RemoveRedisItem[Goal](id); err != nil {
			return nil, err
		}
	}

	return &GoalProgress{
		GoalId:        goal.ID,
		Name:          goal.Name,
		TargetAmount:  goal.TargetAmount,
		CurrentAmount: current,
		TargetDate:    goal.TargetDate,
		ProgressPct:   progressPct,
		DaysLeft:      daysLeft,
		Achieved:      achieved,
	}, nil
}
