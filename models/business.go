package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/utils"
	"github.com/google/uuid"
)

type Business struct {
	ID           uuid.UUID `gorm:"primary_key" json:"id"`
	Name         string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	ContactName  string    `gorm:"size:100" json:"contact_name"`
	Email        string    `gorm:"size:255" json:"email"`
	Phone        string    `gorm:"size:20" json:"phone"`
	Country      string    `gorm:"size:100" json:"country"`
	City         string    `gorm:"size:100" json:"city"`
	CurrencyCode string    `gorm:"size:3;not null;default:BRL" json:"currency_code"`
	Timezone     string    `gorm:"size:50" json:"timezone"`
	PlanTier     PlanTier  `gorm:"type:enum('free','pro','business');default:free" json:"plan_tier"`
	IsActive     *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBusiness struct {
	Name         string   `json:"name" binding:"required"`
	ContactName  string   `json:"contact_name"`
	Email        string   `json:"email" binding:"required"`
	Phone        string   `json:"phone"`
	Country      string   `json:"country"`
	City         string   `json:"city"`
	CurrencyCode string   `json:"currency_code"`
	Timezone     string   `json:"timezone"`
	PlanTier     PlanTier `json:"plan_tier"`
}

/*
caches:
	Business:$id
*/

func (business *Business) StoreRedis() error {
	return config.SetRedisObject("Business:"+fmt.Sprint(business.ID), business, 0)
}

func (business *Business) RemoveRedis() error {
	return config.RemoveRedisKey("Business:" + fmt.Sprint(business.ID))
}

func (input *NewBusiness) validate(ctx context.Context, id string) error {
	// name
	if err := utils.ValidateUnique[Business](ctx, "", "name", input.Name, id); err != nil {
		return err
	}
	// email
	if !utils.IsValidEmail(input.Email) {
		return errors.New("invalid email address")
	}
	if err := utils.ValidateUnique[Business](ctx, "", "email", input.Email, id); err != nil {
		return err
	}
	// phone
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return errors.New("invalid phone number")
		}
		if err := utils.ValidateUnique[Business](ctx, "", "phone", input.Phone, id); err != nil {
			return err
		}
	}
	// plan tier
	if input.PlanTier != "" {
		if _, err := ParsePlanTier(string(input.PlanTier)); err != nil {
			return err
		}
	}

	return nil
}

func CreateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {

	// When creating a business,
	// - create default categories and a default wallet.
	// - the signing-up user becomes 'owner'.
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	db := config.GetDB()

	tx := db.Begin()

	BID := uuid.New()
	timezone := "America/Sao_Paulo"
	if input.Timezone != "" {
		timezone = input.Timezone
	}
	currencyCode := "BRL"
	if input.CurrencyCode != "" {
		currencyCode = input.CurrencyCode
	}

	// Defaults to satisfy MySQL enum constraints.
	// If these are empty, MySQL will error with "Data truncated for column ...".
	planTier := input.PlanTier
	if planTier == "" {
		planTier = PlanTierFree
	}

	business := Business{
		ID:           BID,
		Name:         input.Name,
		ContactName:  input.ContactName,
		Email:        input.Email,
		Phone:        input.Phone,
		Country:      input.Country,
		City:         input.City,
		CurrencyCode: currencyCode,
		Timezone:     timezone,
		PlanTier:     planTier,
		IsActive:     utils.NewTrue(),
	}

	// create business
	err := tx.WithContext(ctx).Create(&business).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// default categories
	for _, c := range defaultCategories {
		category := Category{
			BusinessId: BID.String(),
			Name:       c.Name,
			Kind:       c.Kind,
			IsDefault:  utils.NewTrue(),
		}
		if err := tx.WithContext(ctx).Create(&category).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	// default wallet
	wallet := Wallet{
		BusinessId:   BID.String(),
		Name:         "Carteira",
		WalletType:   WalletTypeManual,
		CurrencyCode: currencyCode,
		IsActive:     utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&wallet).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &business, nil
}

func UpdateBusiness(ctx context.Context, input *NewBusiness) (*Business, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	business.Name = input.Name
	business.ContactName = input.ContactName
	business.Email = input.Email
	business.Phone = input.Phone
	business.Country = input.Country
	business.City = input.City
	if input.CurrencyCode != "" {
		business.CurrencyCode = input.CurrencyCode
	}
	if input.Timezone != "" {
		business.Timezone = input.Timezone
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(business).Error; err != nil {
		return nil, err
	}
	if err := business.RemoveRedis(); err != nil {
		return nil, err
	}

	return business, nil
}

// change the subscription tier of the business
func UpdateBusinessPlan(ctx context.Context, tier PlanTier) (*Business, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if _, err := ParsePlanTier(string(tier)); err != nil {
		return nil, err
	}

	business, err := GetBusinessById(ctx, businessId)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Business{}).
		Where("id = ?", businessId).
		Update("plan_tier", tier).Error; err != nil {
		return nil, err
	}
	business.PlanTier = tier
	if err := business.RemoveRedis(); err != nil {
		return nil, err
	}

	return business, nil
}

func GetBusinessById(ctx context.Context, id string) (*Business, error) {

	var result Business

	exists, err := config.GetRedisObject("Business:"+id, &result)
	if err != nil {
		return nil, err
	}

	if !exists {
		db := config.GetDB()
		// db query
		err := db.WithContext(ctx).Where("id = ?", id).First(&result).Error
		if err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		// caching
		if err := result.StoreRedis(); err != nil {
			return nil, err
		}
	}
	return &result, nil
}

func GetBusiness(ctx context.Context) (*Business, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return GetBusinessById(ctx, businessId)
}
