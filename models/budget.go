package models

import (
	"context"
	"errors"
	"time"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/utils"
	"github.com/shopspring/decimal"
)

type Budget struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"index;not null" json:"business_id"`
	CategoryId  int             `gorm:"index;not null" json:"category_id" binding:"required"`
	Year        int             `gorm:"not null" json:"year" binding:"required"`
	Month       time.Month      `gorm:"not null" json:"month" binding:"required"`
	LimitAmount decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"limit_amount"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Budget) GetBusinessId() string {
	return obj.BusinessId
}

type NewBudget struct {
	CategoryId  int             `json:"category_id" binding:"required"`
	Year        int             `json:"year" binding:"required"`
	Month       time.Month      `json:"month" binding:"required"`
	LimitAmount decimal.Decimal `json:"limit_amount" binding:"required"`
}

type BudgetUsage struct {
	BudgetId    int             `json:"budget_id"`
	CategoryId  int             `json:"category_id"`
	Year        int             `json:"year"`
	Month       time.Month      `json:"month"`
	LimitAmount decimal.Decimal `json:"limit_amount"`
	Spent       decimal.Decimal `json:"spent"`
	Remaining   decimal.Decimal `json:"remaining"`
	Exceeded    bool            `json:"exceeded"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewBudget) validate(ctx context.Context, businessId string, id int) error {

	if input.Month < time.January || input.Month > time.December {
		return errors.New("invalid month")
	}
	if input.Year < 2000 || input.Year > 2200 {
		return errors.New("invalid year")
	}
	if !input.LimitAmount.IsPositive() {
		return errors.New("limit amount must be positive")
	}
	if err := utils.ValidateResourceId[Category](ctx, businessId, input.CategoryId); err != nil {
		return errors.New("category not found")
	}
	// one budget per category per month
	var count int64
	var err error
	if id == 0 {
		count, err = utils.ResourceCountWhere[Budget](ctx, businessId,
			"category_id = ? AND year = ? AND month = ?", input.CategoryId, input.Year, input.Month)
	} else {
		count, err = utils.ResourceCountWhere[Budget](ctx, businessId,
			"category_id = ? AND year = ? AND month = ? AND NOT id = ?", input.CategoryId, input.Year, input.Month, id)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("budget already exists for category and month")
	}
	return nil
}

func CreateBudget(ctx context.Context, input *NewBudget) (*Budget, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	budget := Budget{
		BusinessId:  businessId,
		CategoryId:  input.CategoryId,
		Year:        input.Year,
		Month:       input.Month,
		LimitAmount: input.LimitAmount,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&budget).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Budget](businessId); err != nil {
		return nil, err
	}

	return &budget, nil
}

func UpdateBudget(ctx context.Context, id int, input *NewBudget) (*Budget, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	budget, err := utils.FetchModel[Budget](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	budget.CategoryId = input.CategoryId
	budget.Year = input.Year
	budget.Month = input.Month
	budget.LimitAmount = input.LimitAmount

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(budget).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Budget](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Budget](businessId); err != nil {
		return nil, err
	}

	return budget, nil
}

func DeleteBudget(ctx context.Context, id int) (bool, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}

	if _, err := utils.FetchModel[Budget](ctx, businessId, id); err != nil {
		return false, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&Budget{}, id).Error; err != nil {
		return false, err
	}
	if err := utils.RemoveRedisItem[Budget](id); err != nil {
		return false, err
	}
	if err := utils.RemoveRedisList[Budget](businessId); err != nil {
		return false, err
	}

	return true, nil
}

func GetBudget(ctx context.Context, id int) (*Budget, error) {
	return GetResource[Budget](ctx, id)
}

func GetBudgets(ctx context.Context) ([]*Budget, error) {
	return ListAllResource[Budget](ctx, "year DESC", "month DESC")
}

// GetBudgetUsage sums the month's expense transactions of the budget's
// category against the limit.
func GetBudgetUsage(ctx context.Context, id int) (*BudgetUsage, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	budget, err := utils.FetchModel[Budget](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	start, end := utils.GetMonthRange(budget.Year, budget.Month)

	db := config.GetDB()
	var spent decimal.NullDecimal
	err = db.WithContext(ctx).Model(&Transaction{}).
		Select("SUM(amount)").
		Where("business_id = ? AND category_id = ? AND transaction_type IN ('expense','investment')", businessId, budget.CategoryId).
		Where("transaction_date BETWEEN ? AND ?", start, end).
		Scan(&spent).Error
	if err != nil {
		return nil, err
	}

	spentAmount := decimal.Zero
	if spent.Valid {
		spentAmount = spent.Decimal
	}

	usage := BudgetUsage{
		BudgetId:    budget.ID,
		CategoryId:  budget.CategoryId,
		Year:        budget.Year,
		Month:       budget.Month,
		LimitAmount: budget.LimitAmount,
		Spent:       spentAmount,
		Remaining:   budget.LimitAmount.Sub(spentAmount),
		Exceeded:    spentAmount.GreaterThan(budget.LimitAmount),
	}
	return &usage, nil
}
