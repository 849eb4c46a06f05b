package models

import (
	"context"
	"errors"
	"time"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/utils"
)

type CategoryKind string

const (
	CategoryKindIncome  CategoryKind = "income"
	CategoryKindExpense CategoryKind = "expense"
)

type Category struct {
	ID         int          `gorm:"primary_key" json:"id"`
	BusinessId string       `gorm:"index;not null" json:"business_id"`
	Name       string       `gorm:"size:100;not null" json:"name" binding:"required"`
	Kind       CategoryKind `gorm:"type:enum('income','expense');default:expense" json:"kind"`
	Color      string       `gorm:"size:7" json:"color"`
	IsDefault  *bool        `gorm:"not null;default:false" json:"is_default"`
	IsActive   *bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Category) GetBusinessId() string {
	return obj.BusinessId
}

type NewCategory struct {
	Name  string       `json:"name" binding:"required"`
	Kind  CategoryKind `json:"kind" binding:"required"`
	Color string       `json:"color"`
}

var defaultCategories = []Category{
	{Name: "Salário", Kind: CategoryKindIncome},
	{Name: "Vendas", Kind: CategoryKindIncome},
	{Name: "Alimentação", Kind: CategoryKindExpense},
	{Name: "Transporte", Kind: CategoryKindExpense},
	{Name: "Moradia", Kind: CategoryKindExpense},
	{Name: "Outros", Kind: CategoryKindExpense},
}

// validate input for both create & update. (id = 0 for create)
func (input *NewCategory) validate(ctx context.Context, businessId string, id int) error {
	if input.Kind != CategoryKindIncome && input.Kind != CategoryKindExpense {
		return errors.New("invalid category kind")
	}
	if err := utils.ValidateUnique[Category](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateCategory(ctx context.Context, input *NewCategory) (*Category, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	category := Category{
		BusinessId: businessId,
		Name:       input.Name,
		Kind:       input.Kind,
		Color:      input.Color,
		IsDefault:  utils.NewFalse(),
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	// invalidate list cache
	if err := utils.RemoveRedisList[Category](businessId); err != nil {
		return nil, err
	}

	return &category, nil
}

func UpdateCategory(ctx context.Context, id int, input *NewCategory) (*Category, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	category, err := utils.FetchModel[Category](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	category.Name = input.Name
	category.Kind = input.Kind
	category.Color = input.Color

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(category).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Category](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Category](businessId); err != nil {
		return nil, err
	}

	return category, nil
}

func DeleteCategory(ctx context.Context, id int) (bool, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}

	category, err := utils.FetchModel[Category](ctx, businessId, id)
	if err != nil {
		return false, err
	}
	if category.IsDefault != nil && *category.IsDefault {
		return false, errors.New("cannot delete default category")
	}

	// refuse when transactions still reference it
	count, err := utils.ResourceCountWhere[Transaction](ctx, businessId, "category_id = ?", id)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, errors.New("category is in use")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&Category{}, id).Error; err != nil {
		return false, err
	}
	if err := utils.RemoveRedisItem[Category](id); err != nil {
		return false, err
	}
	if err := utils.RemoveRedisList[Category](businessId); err != nil {
		return false, err
	}

	return true, nil
}

func GetCategory(ctx context.Context, id int) (*Category, error) {
	return GetResource[Category](ctx, id)
}

func GetCategories(ctx context.Context) ([]*Category, error) {
	return ListAllResource[Category](ctx, "name")
}
