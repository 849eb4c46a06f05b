package models

import (
	"context"
	"errors"
	"time"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/utils"
	"gorm.io/gorm"
)

type ReconciliationConflict struct {
	ID               int              `gorm:"primary_key" json:"id"`
	BusinessId       string           `gorm:"index;not null" json:"business_id"`
	SyncRunId        uint             `gorm:"index" json:"sync_run_id"`
	TransactionId    int              `gorm:"index;not null" json:"transaction_id"`
	ExternalId       string           `gorm:"index;size:128;not null" json:"external_id"`
	Kind             ConflictKind     `gorm:"type:enum('amount','date','status','category','description','deleted');not null" json:"kind"`
	InternalValue    string           `gorm:"size:500" json:"internal_value"`
	ExternalValue    string           `gorm:"size:500" json:"external_value"`
	Status           ConflictStatus   `gorm:"type:enum('open','resolved');default:open" json:"status"`
	DetectedAt       time.Time        `gorm:"not null" json:"detected_at"`
	ResolvedAt       *time.Time       `json:"resolved_at"`
	ResolutionMethod ResolutionMethod `gorm:"type:enum('keep_internal','apply_external','manual');default:null" json:"resolution_method"`
	ResolvedBy       string           `gorm:"size:100" json:"resolved_by"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (obj ReconciliationConflict) GetBusinessId() string {
	return obj.BusinessId
}

// RecordConflict persists a field-level divergence. At most one open conflict
// exists per (transaction, external record, field); re-detecting an identical
// open conflict is a no-op.
func RecordConflict(ctx context.Context, tx *gorm.DB, businessId string, conflict *ReconciliationConflict) (*ReconciliationConflict, error) {

	var existing ReconciliationConflict
	err := tx.WithContext(ctx).
		Where("business_id = ? AND transaction_id = ? AND external_id = ? AND kind = ? AND status = ?",
			businessId, conflict.TransactionId, conflict.ExternalId, conflict.Kind, ConflictStatusOpen).
		First(&existing).Error
	if err == nil {
		// refresh the values and re-tag with the detecting run, keep the
		// original detection time
		if existing.InternalValue != conflict.InternalValue ||
			existing.ExternalValue != conflict.ExternalValue ||
			existing.SyncRunId != conflict.SyncRunId {
			existing.InternalValue = conflict.InternalValue
			existing.ExternalValue = conflict.ExternalValue
			existing.SyncRunId = conflict.SyncRunId
			if err := tx.WithContext(ctx).Save(&existing).Error; err != nil {
				return nil, err
			}
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if config.StrictResolvedConflictImmutability() {
		// with strict immutability, a previously resolved field stays settled
		var resolved int64
		if err := tx.WithContext(ctx).Model(&ReconciliationConflict{}).
			Where("business_id = ? AND transaction_id = ? AND external_id = ? AND kind = ? AND status = ?",
				businessId, conflict.TransactionId, conflict.ExternalId, conflict.Kind, ConflictStatusResolved).
			Count(&resolved).Error; err != nil {
			return nil, err
		}
		if resolved > 0 {
			return nil, nil
		}
	}

	conflict.BusinessId = businessId
	conflict.Status = ConflictStatusOpen
	if conflict.DetectedAt.IsZero() {
		conflict.DetectedAt = time.Now()
	}
	if err := tx.WithContext(ctx).Create(conflict).Error; err != nil {
		return nil, err
	}
	return conflict, nil
}

// applyExternalValue overwrites the internal transaction field with the
// external side's value, keeping the wallet balance consistent.
func applyExternalValue(ctx context.Context, tx *gorm.DB, businessId string, conflict *ReconciliationConflict) error {

	var transaction Transaction
	if err := tx.WithContext(ctx).Unscoped().
		Where("business_id = ? AND id = ?", businessId, conflict.TransactionId).
		First(&transaction).Error; err != nil {
		return utils.ErrorRecordNotFound
	}

	switch conflict.Kind {
	case ConflictKindAmount:
		amount, err := utils.ParseDecimal(conflict.ExternalValue)
		if err != nil {
			return err
		}
		if amount.IsNegative() {
			return errors.New("amount must not be negative")
		}
		oldSigned := transaction.SignedAmount()
		transaction.Amount = amount
		if err := tx.WithContext(ctx).Unscoped().Save(&transaction).Error; err != nil {
			return err
		}
		if transaction.DeletedAt.Valid {
			// deleted rows carry no balance
			return nil
		}
		delta := transaction.SignedAmount().Sub(oldSigned)
		return applyWalletDelta(tx, ctx, businessId, transaction.WalletId, delta)

	case ConflictKindDate:
		date, err := time.Parse("2006-01-02", conflict.ExternalValue)
		if err != nil {
			return err
		}
		transaction.TransactionDate = date
		return tx.WithContext(ctx).Unscoped().Save(&transaction).Error

	case ConflictKindStatus:
		status, err := ParseTransactionStatus(conflict.ExternalValue)
		if err != nil {
			return err
		}
		transaction.Status = status
		return tx.WithContext(ctx).Unscoped().Save(&transaction).Error

	case ConflictKindCategory:
		category, err := findOrCreateCategory(ctx, tx, businessId, conflict.ExternalValue)
		if err != nil {
			return err
		}
		transaction.CategoryId = category.ID
		return tx.WithContext(ctx).Unscoped().Save(&transaction).Error

	case ConflictKindDescription:
		transaction.Description = conflict.ExternalValue
		return tx.WithContext(ctx).Unscoped().Save(&transaction).Error

	case ConflictKindDeleted:
		if transaction.DeletedAt.Valid {
			// external still has the record; restore the internal row
			if err := tx.WithContext(ctx).Unscoped().Model(&Transaction{}).
				Where("id = ?", transaction.ID).
				Update("deleted_at", nil).Error; err != nil {
				return err
			}
			return applyWalletDelta(tx, ctx, businessId, transaction.WalletId, transaction.SignedAmount())
		}
		// external side dropped the record; soft-delete ours
		if err := tx.WithContext(ctx).Delete(&Transaction{}, transaction.ID).Error; err != nil {
			return err
		}
		return applyWalletDelta(tx, ctx, businessId, transaction.WalletId, transaction.SignedAmount().Neg())
	}

	return errors.New("invalid conflict kind")
}

// ResolveConflict settles an open conflict. Resolution is one-way: a resolved
// conflict can never be resolved again.
func ResolveConflict(ctx context.Context, id int, method ResolutionMethod) (*ReconciliationConflict, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if _, err := ParseResolutionMethod(string(method)); err != nil {
		return nil, err
	}

	conflict, err := utils.FetchModel[ReconciliationConflict](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if conflict.Status == ConflictStatusResolved {
		return nil, errors.New("conflict is already resolved")
	}

	username, _ := utils.GetUsernameFromContext(ctx)

	db := config.GetDB()
	tx := db.Begin()

	if method == ResolutionApplyExternal {
		if err := applyExternalValue(ctx, tx, businessId, conflict); err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	// keep_internal and manual leave the transaction untouched

	now := time.Now()
	res := tx.WithContext(ctx).Model(&ReconciliationConflict{}).
		Where("id = ? AND business_id = ? AND status = ?", id, businessId, ConflictStatusOpen).
		Updates(map[string]interface{}{
			"status":            ConflictStatusResolved,
			"resolution_method": method,
			"resolved_at":       now,
			"resolved_by":       username,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// lost the race with a concurrent resolver
		tx.Rollback()
		return nil, errors.New("conflict is already resolved")
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	conflict.Status = ConflictStatusResolved
	conflict.ResolutionMethod = method
	conflict.ResolvedAt = &now
	conflict.ResolvedBy = username

	if err := utils.RemoveRedisItem[ReconciliationConflict](id); err != nil {
		return nil, err
	}

	return conflict, nil
}

type ConflictFilter struct {
	Status        ConflictStatus
	Kind          ConflictKind
	TransactionId int
	Limit         int
	Offset        int
}

func GetConflicts(ctx context.Context, filter ConflictFilter) ([]*ReconciliationConflict, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		dbCtx = dbCtx.Where("kind = ?", filter.Kind)
	}
	if filter.TransactionId > 0 {
		dbCtx = dbCtx.Where("transaction_id = ?", filter.TransactionId)
	}
	if filter.Limit > 0 {
		dbCtx = dbCtx.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		dbCtx = dbCtx.Offset(filter.Offset)
	}

	var results []*ReconciliationConflict
	if err := dbCtx.Order("detected_at DESC, id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetConflict(ctx context.Context, id int) (*ReconciliationConflict, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[ReconciliationConflict](ctx, businessId, id)
}

func findOrCreateCategory(ctx context.Context, tx *gorm.DB, businessId string, name string) (*Category, error) {

	var category Category
	err := tx.WithContext(ctx).
		Where("business_id = ? AND name = ?", businessId, name).
		First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	category = Category{
		BusinessId: businessId,
		Name:       name,
		Kind:       CategoryKindExpense,
		IsDefault:  utils.NewFalse(),
		IsActive:   utils.NewTrue(),
	}
	if err := tx.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Category](businessId); err != nil {
		return nil, err
	}
	return &category, nil
}
