package models

import (
	"context"
	"errors"
	"time"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Transaction struct {
	ID              int               `gorm:"primary_key" json:"id"`
	BusinessId      string            `gorm:"index;not null" json:"business_id"`
	WalletId        int               `gorm:"index;not null" json:"wallet_id" binding:"required"`
	CategoryId      int               `gorm:"index" json:"category_id"`
	TransactionType TransactionType   `gorm:"type:enum('deposit','expense','investment','income');not null" json:"transaction_type"`
	Status          TransactionStatus `gorm:"type:enum('pending','cleared','voided');default:cleared" json:"status"`
	Amount          decimal.Decimal   `gorm:"type:decimal(20,4);not null" json:"amount"`
	TransactionDate time.Time         `gorm:"index;not null" json:"transaction_date" binding:"required"`
	Description     string            `gorm:"size:500" json:"description"`
	SequenceNo      int64             `gorm:"index" json:"sequence_no"`
	ExternalId      string            `gorm:"index;size:128" json:"external_id"`
	Source          string            `gorm:"size:50" json:"source"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt    `gorm:"index" json:"deleted_at"`
}

func (obj Transaction) GetBusinessId() string {
	return obj.BusinessId
}

// SignedAmount applies the transaction type's sign to the stored amount.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.TransactionType.Sign() < 0 {
		return t.Amount.Neg()
	}
	return t.Amount
}

type NewTransaction struct {
	WalletId        int               `json:"wallet_id" binding:"required"`
	CategoryId      int               `json:"category_id"`
	TransactionType TransactionType   `json:"transaction_type" binding:"required"`
	Status          TransactionStatus `json:"status"`
	Amount          decimal.Decimal   `json:"amount" binding:"required"`
	TransactionDate time.Time         `json:"transaction_date" binding:"required"`
	Description     string            `json:"description"`
	ExternalId      string            `json:"external_id"`
	Source          string            `json:"source"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewTransaction) validate(ctx context.Context, businessId string, _ int) error {

	if _, err := ParseTransactionType(string(input.TransactionType)); err != nil {
		return err
	}
	if input.Status != "" {
		if _, err := ParseTransactionStatus(string(input.Status)); err != nil {
			return err
		}
	}
	if input.Amount.IsNegative() {
		return errors.New("amount must not be negative")
	}
	// exists wallet
	if err := utils.ValidateResourceId[Wallet](ctx, businessId, input.WalletId); err != nil {
		return errors.New("wallet not found")
	}
	// exists category
	if input.CategoryId > 0 {
		if err := utils.ValidateResourceId[Category](ctx, businessId, input.CategoryId); err != nil {
			return errors.New("category not found")
		}
	}
	return nil
}

// applyWalletDelta shifts the wallet's cached balance inside the caller's
// DB transaction so balance and transaction rows commit together.
func applyWalletDelta(tx *gorm.DB, ctx context.Context, businessId string, walletId int, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	return tx.WithContext(ctx).Model(&Wallet{}).
		Where("id = ? AND business_id = ?", walletId, businessId).
		Update("balance", gorm.Expr("balance + ?", delta)).Error
}

func CreateTransaction(ctx context.Context, input *NewTransaction) (*Transaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = TransactionStatusCleared
	}

	transaction := Transaction{
		BusinessId:      businessId,
		WalletId:        input.WalletId,
		CategoryId:      input.CategoryId,
		TransactionType: input.TransactionType,
		Status:          status,
		Amount:          input.Amount,
		TransactionDate: input.TransactionDate,
		Description:     input.Description,
		ExternalId:      input.ExternalId,
		Source:          input.Source,
	}

	db := config.GetDB()
	tx := db.Begin()

	seqNo, err := utils.GetSequence[Transaction](ctx, businessId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	transaction.SequenceNo = seqNo

	if err := tx.WithContext(ctx).Create(&transaction).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := applyWalletDelta(tx, ctx, businessId, transaction.WalletId, transaction.SignedAmount()); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Wallet](transaction.WalletId); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Wallet](businessId); err != nil {
		return nil, err
	}

	return &transaction, nil
}

func UpdateTransaction(ctx context.Context, id int, input *NewTransaction) (*Transaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	beforeUpdate, err := utils.FetchModel[Transaction](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = beforeUpdate.Status
	}

	update := Transaction{
		ID:              id,
		BusinessId:      businessId,
		WalletId:        input.WalletId,
		CategoryId:      input.CategoryId,
		TransactionType: input.TransactionType,
		Status:          status,
		Amount:          input.Amount,
		TransactionDate: input.TransactionDate,
		Description:     input.Description,
		ExternalId:      input.ExternalId,
		Source:          input.Source,
		SequenceNo:      beforeUpdate.SequenceNo,
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Save(&update).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// shift balances, handling a wallet move
	if beforeUpdate.WalletId == update.WalletId {
		delta := update.SignedAmount().Sub(beforeUpdate.SignedAmount())
		if err := applyWalletDelta(tx, ctx, businessId, update.WalletId, delta); err != nil {
			tx.Rollback()
			return nil, err
		}
	} else {
		if err := applyWalletDelta(tx, ctx, businessId, beforeUpdate.WalletId, beforeUpdate.SignedAmount().Neg()); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := applyWalletDelta(tx, ctx, businessId, update.WalletId, update.SignedAmount()); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Wallet](beforeUpdate.WalletId); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisItem[Wallet](update.WalletId); err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Wallet](businessId); err != nil {
		return nil, err
	}

	return &update, nil
}

// DeleteTransaction soft-deletes; the row stays visible to reconciliation
// (deleted-on-one-side conflicts) via Unscoped queries.
func DeleteTransaction(ctx context.Context, id int) (bool, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return false, errors.New("business id is required")
	}

	transaction, err := utils.FetchModel[Transaction](ctx, businessId, id)
	if err != nil {
		return false, err
	}

	db := config.GetDB()
	tx := db.Begin()

	if err := tx.WithContext(ctx).Delete(&Transaction{}, id).Error; err != nil {
		tx.Rollback()
		return false, err
	}
	if err := applyWalletDelta(tx, ctx, businessId, transaction.WalletId, transaction.SignedAmount().Neg()); err != nil {
		tx.Rollback()
		return false, err
	}
	if err := tx.Commit().Error; err != nil {
		return false, err
	}

	if err := utils.RemoveRedisItem[Wallet](transaction.WalletId); err != nil {
		return false, err
	}
	if err := utils.RemoveRedisList[Wallet](businessId); err != nil {
		return false, err
	}

	return true, nil
}

func GetTransaction(ctx context.Context, id int) (*Transaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Transaction](ctx, businessId, id)
}

type TransactionFilter struct {
	WalletId        int
	CategoryId      int
	TransactionType TransactionType
	FromDate        *time.Time
	ToDate          *time.Time
	Limit           int
	Offset          int
}

func GetTransactions(ctx context.Context, filter TransactionFilter) ([]*Transaction, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter.WalletId > 0 {
		dbCtx = dbCtx.Where("wallet_id = ?", filter.WalletId)
	}
	if filter.CategoryId > 0 {
		dbCtx = dbCtx.Where("category_id = ?", filter.CategoryId)
	}
	if filter.TransactionType != "" {
		dbCtx = dbCtx.Where("transaction_type = ?", filter.TransactionType)
	}
	if filter.FromDate != nil {
		dbCtx = dbCtx.Where("transaction_date >= ?", filter.FromDate)
	}
	if filter.ToDate != nil {
		dbCtx = dbCtx.Where("transaction_date <= ?", filter.ToDate)
	}
	if filter.Limit > 0 {
		dbCtx = dbCtx.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		dbCtx = dbCtx.Offset(filter.Offset)
	}

	var results []*Transaction
	if err := dbCtx.Order("transaction_date DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetTransactionByExternalId fetches the transaction imported for the given
// external id, deleted rows included.
func GetTransactionByExternalId(ctx context.Context, businessId string, externalId string) (*Transaction, error) {

	db := config.GetDB()
	var result Transaction
	err := db.WithContext(ctx).Unscoped().
		Where("business_id = ? AND external_id = ?", businessId, externalId).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		// A transient DB error must not look like "not found" or the
		// importer would create a duplicate for an already-imported line.
		return nil, err
	}
	return &result, nil
}
