package models

import (
	"context"
	"errors"
	"time"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/utils"
	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID           int             `gorm:"primary_key" json:"id"`
	BusinessId   string          `gorm:"index;not null" json:"business_id"`
	Name         string          `gorm:"size:100;not null" json:"name" binding:"required"`
	WalletType   WalletType      `gorm:"type:enum('manual','bank','erp');default:manual" json:"wallet_type"`
	CurrencyCode string          `gorm:"size:3;not null;default:BRL" json:"currency_code"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"balance"`
	Description  string          `gorm:"type:text" json:"description"`
	IsActive     *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj Wallet) GetBusinessId() string {
	return obj.BusinessId
}

type NewWallet struct {
	Name         string     `json:"name" binding:"required"`
	WalletType   WalletType `json:"wallet_type"`
	CurrencyCode string     `json:"currency_code"`
	Description  string     `json:"description"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewWallet) validate(ctx context.Context, businessId string, id int) error {
	if input.WalletType != "" {
		if _, err := ParseWalletType(string(input.WalletType)); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[Wallet](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateWallet(ctx context.Context, input *NewWallet) (*Wallet, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}
	// plan gate
	if err := CheckWalletLimit(ctx, businessId); err != nil {
		return nil, err
	}

	walletType := input.WalletType
	if walletType == "" {
		walletType = WalletTypeManual
	}
	currencyCode := input.CurrencyCode
	if currencyCode == "" {
		business, err := GetBusinessById(ctx, businessId)
		if err != nil {
			return nil, err
		}
		currencyCode = business.CurrencyCode
	}

	wallet := Wallet{
		BusinessId:   businessId,
		Name:         input.Name,
		WalletType:   walletType,
		CurrencyCode: currencyCode,
		Balance:      decimal.Zero,
		Description:  input.Description,
		IsActive:     utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&wallet).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Wallet](businessId); err != nil {
		return nil, err
	}

	return &wallet, nil
}

func UpdateWallet(ctx context.Context, id int, input *NewWallet) (*Wallet, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	wallet, err := utils.FetchModel[Wallet](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	wallet.Name = input.Name
	wallet.Description = input.Description
	// wallet type is immutable once transactions reference external sources
	if input.WalletType != "" && input.WalletType != wallet.WalletType {
		count, err := utils.ResourceCountWhere[Transaction](ctx, businessId, "wallet_id = ? AND external_id <> ''", id)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, errors.New("cannot change type of wallet with imported transactions")
		}
		wallet.WalletType = input.WalletType
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(wallet).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Wallet](id); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Wallet](businessId); err != nil {
		return nil, err
	}

	return wallet, nil
}

func DeleteWallet(ctx context.Context, id int) (bool, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}

	if _, err := utils.FetchModel[Wallet](ctx, businessId, id); err != nil {
		return false, err
	}

	count, err := utils.ResourceCountWhere[Transaction](ctx, businessId, "wallet_id = ?", id)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, errors.New("wallet has transactions")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&Wallet{}, id).Error; err != nil {
		return false, err
	}
	if err := utils.RemoveRedisItem[Wallet](id); err != nil {
		return false, err
	}
	if err := utils.RemoveRedisList[Wallet](businessId); err != nil {
		return false, err
	}

	return true, nil
}

func GetWallet(ctx context.Context, id int) (*Wallet, error) {
	return GetResource[Wallet](ctx, id)
}

func GetWallets(ctx context.Context) ([]*Wallet, error) {
	return ListAllResource[Wallet](ctx, "name")
}
