package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/utils"
)

// processReconcileRun drives one run end to end: pull the provider's
// records, match them against internal transactions, raise conflicts
// for divergences and optionally import unmatched statement lines.
// Individual record failures are written as sync errors and never
// abort the run.
func processReconcileRun(ctx context.Context, payload ReconcilePubSubPayload) error {
	if payload.RunId == 0 || payload.BusinessId == "" {
		return errors.New("invalid payload")
	}

	ctx = utils.SetBusinessIdInContext(ctx, payload.BusinessId)

	// one run at a time per business; pubsub redelivers on failure
	release, err := utils.BusinessLock(ctx, payload.BusinessId, "ReconcileRun", "reconcile", "processReconcileRun")
	if err != nil {
		return err
	}
	defer release()

	db := config.GetDB().WithContext(ctx)

	var run models.IntegrationSyncRun
	if err := db.Where("id = ? AND business_id = ?", payload.RunId, payload.BusinessId).Take(&run).Error; err != nil {
		return err
	}

	if run.Status == models.SyncRunStatusSuccess || run.Status == models.SyncRunStatusFailed || run.Status == models.SyncRunStatusPartial {
		return nil
	}

	var conn models.IntegrationConnection
	if err := db.Where("id = ? AND business_id = ?", run.ConnectionId, payload.BusinessId).Take(&conn).Error; err != nil {
		return err
	}
	if conn.Status != models.IntegrationStatusConnected {
		return errors.New("provider not connected")
	}

	settings := DecodeSettings(conn.SettingsJSON)
	params := DecodeRunParams(run.ParamsJSON)
	cursorState := DecodeCursorState(conn.CursorStateJSON)

	// Triggers always write the resolved tolerances into the run params.
	// Settings cover runs created before a tolerance override existed.
	tolerances := Tolerances{
		AmountPct: params.AmountTolerancePct,
		DateDays:  params.DateToleranceDays,
	}
	if len(run.ParamsJSON) == 0 || ValidateTolerances(tolerances) != nil {
		tolerances = Tolerances{AmountPct: settings.AmountTolerancePct, DateDays: settings.DateToleranceDays}
	}

	now := time.Now()
	startedAt := run.StartedAt
	if startedAt == nil {
		startedAt = &now
	}

	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":     models.SyncRunStatusRunning,
		"started_at": startedAt,
	}).Error; err != nil {
		return err
	}

	client, err := newProviderClient(conn.Provider, conn.AuthSecretRef)
	if err != nil {
		return failRun(ctx, db, &run, startedAt, err)
	}

	records, recordErrors, newCursor, fetchErr := client.fetchRecords(ctx, params, cursorState.Records)
	errorCount := 0
	for _, recErr := range recordErrors {
		errorCount++
		_ = createSyncError(ctx, db, run.ID, payload.BusinessId, "record", "", "invalid_payload", recErr.Error(), nil, false)
	}
	if fetchErr != nil {
		errorCount++
		_ = createSyncError(ctx, db, run.ID, payload.BusinessId, "record", "", "fetch_failed", fetchErr.Error(), nil, true)
	}

	txns, err := loadInternalTransactions(ctx, db, payload.BusinessId, conn.WalletId, params)
	if err != nil {
		return failRun(ctx, db, &run, startedAt, err)
	}

	categoryNames, err := loadCategoryNames(ctx)
	if err != nil {
		config.LogError(config.GetLogger(), "reconcile", "processReconcileRun", "load categories", payload, err)
		categoryNames = map[int]string{}
	}

	report := Match(txns, records, tolerances, categoryNames)

	conflictCount := 0
	for _, div := range report.Divergences {
		conflict := &models.ReconciliationConflict{
			SyncRunId:     run.ID,
			TransactionId: div.Transaction.ID,
			ExternalId:    div.Record.ExternalId,
			Kind:          div.Kind,
			InternalValue: div.InternalValue,
			ExternalValue: div.ExternalValue,
		}
		if _, err := models.RecordConflict(ctx, db, payload.BusinessId, conflict); err != nil {
			errorCount++
			_ = createSyncError(ctx, db, run.ID, payload.BusinessId, "conflict", div.Record.ExternalId, "conflict_failed", err.Error(), nil, true)
			continue
		}
		conflictCount++
	}

	imported := 0
	if conn.Provider == models.IntegrationProviderBankFeed && settings.AutoImport {
		imported = importStatementLines(ctx, db, &run, conn, report.MissingInInternal, &errorCount)
	}

	if fetchErr == nil {
		cursorState.Records = newCursor
	}

	finishedAt := time.Now()
	durationMs := finishedAt.Sub(*startedAt).Milliseconds()
	status := models.SyncRunStatusSuccess
	matched := len(report.Matched)
	if errorCount > 0 && matched == 0 && imported == 0 {
		status = models.SyncRunStatusFailed
	} else if errorCount > 0 {
		status = models.SyncRunStatusPartial
	}

	statsJSON, _ := json.Marshal(runStats(report, conflictCount, imported))
	cursorJSON := EncodeCursorState(cursorState)
	if err := db.Model(&run).Updates(map[string]interface{}{
		"status":            status,
		"finished_at":       finishedAt,
		"duration_ms":       durationMs,
		"records_synced":    matched + imported,
		"error_count":       errorCount,
		"stats_json":        statsJSON,
		"cursor_state_json": cursorJSON,
	}).Error; err != nil {
		return err
	}

	connUpdates := map[string]interface{}{
		"last_sync_at":      finishedAt,
		"cursor_state_json": cursorJSON,
	}
	if status == models.SyncRunStatusSuccess {
		connUpdates["last_success_sync_at"] = finishedAt
	}
	if err := db.Model(&models.IntegrationConnection{}).
		Where("id = ? AND business_id = ?", conn.ID, payload.BusinessId).
		Updates(connUpdates).Error; err != nil {
		return err
	}

	return nil
}

func failRun(ctx context.Context, db *gorm.DB, run *models.IntegrationSyncRun, startedAt *time.Time, cause error) error {
	finishedAt := time.Now()
	_ = db.Model(run).Updates(map[string]interface{}{
		"status":      models.SyncRunStatusFailed,
		"finished_at": finishedAt,
		"duration_ms": finishedAt.Sub(*startedAt).Milliseconds(),
		"error_count": run.ErrorCount + 1,
	}).Error
	_ = createSyncError(ctx, db, run.ID, run.BusinessId, "run", "", "run_failed", cause.Error(), nil, true)
	return cause
}

// loadInternalTransactions pulls the matching window. Soft-deleted rows
// are included so deletions can surface as conflicts. A single-record
// retry still loads the full internal set: the external id scopes the
// provider fetch only, and an untagged manual transaction must remain a
// match candidate.
func loadInternalTransactions(ctx context.Context, db *gorm.DB, businessId string, connectionWalletId int, params RunParams) ([]*models.Transaction, error) {
	query := db.Unscoped().Model(&models.Transaction{}).Where("business_id = ?", businessId)

	walletId := params.WalletId
	if walletId == 0 {
		walletId = connectionWalletId
	}
	if walletId != 0 {
		query = query.Where("wallet_id = ?", walletId)
	}
	if params.FromDate != "" {
		from, err := parseRecordDate(params.FromDate)
		if err != nil {
			return nil, fmt.Errorf("invalid from date %q", params.FromDate)
		}
		query = query.Where("transaction_date >= ?", from)
	}
	if params.ToDate != "" {
		to, err := parseRecordDate(params.ToDate)
		if err != nil {
			return nil, fmt.Errorf("invalid to date %q", params.ToDate)
		}
		query = query.Where("transaction_date <= ?", to.Add(24*time.Hour-time.Nanosecond))
	}

	var txns []*models.Transaction
	if err := query.Order("transaction_date, id").Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func loadCategoryNames(ctx context.Context) (map[int]string, error) {
	categories, err := models.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

// importStatementLines creates pending transactions for statement lines
// with no internal counterpart. The external id keeps the import
// idempotent across runs.
func importStatementLines(ctx context.Context, db *gorm.DB, run *models.IntegrationSyncRun, conn models.IntegrationConnection, records []ExternalRecord, errorCount *int) int {
	imported := 0
	for _, rec := range records {
		if rec.Deleted {
			continue
		}
		existing, err := models.GetTransactionByExternalId(ctx, conn.BusinessId, rec.ExternalId)
		if err != nil && !errors.Is(err, utils.ErrorRecordNotFound) {
			*errorCount++
			_ = createSyncError(ctx, db, run.ID, conn.BusinessId, "transaction", rec.ExternalId, "lookup_failed", err.Error(), nil, true)
			continue
		}
		if existing != nil {
			continue
		}

		txnType := models.TransactionTypeDeposit
		if rec.Amount.IsNegative() {
			txnType = models.TransactionTypeExpense
		}
		input := &models.NewTransaction{
			WalletId:        conn.WalletId,
			TransactionType: txnType,
			Status:          models.TransactionStatusPending,
			Amount:          rec.Amount.Abs(),
			TransactionDate: rec.Date,
			Description:     rec.Description,
			ExternalId:      rec.ExternalId,
			Source:          conn.Provider,
		}
		if _, err := models.CreateTransaction(ctx, input); err != nil {
			*errorCount++
			_ = createSyncError(ctx, db, run.ID, conn.BusinessId, "transaction", rec.ExternalId, "import_failed", err.Error(), nil, true)
			continue
		}
		imported++
		_ = touchMapping(ctx, db, conn, "transaction", rec.ExternalId)
	}
	return imported
}

func touchMapping(ctx context.Context, db *gorm.DB, conn models.IntegrationConnection, entityType string, externalId string) error {
	now := time.Now()
	var mapping models.IntegrationEntityMapping
	err := db.WithContext(ctx).
		Where("business_id = ? AND provider = ? AND entity_type = ? AND external_id = ?",
			conn.BusinessId, conn.Provider, entityType, externalId).
		Take(&mapping).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		mapping = models.IntegrationEntityMapping{
			BusinessId:   conn.BusinessId,
			ConnectionId: conn.ID,
			Provider:     conn.Provider,
			EntityType:   entityType,
			ExternalId:   externalId,
			InternalId:   externalId,
			LastSeenAt:   &now,
		}
		return db.WithContext(ctx).Create(&mapping).Error
	}
	return db.WithContext(ctx).
		Model(&mapping).
		Update("last_seen_at", now).Error
}

func createSyncError(ctx context.Context, db *gorm.DB, runId uint, businessId string, entityType string, externalId string, code string, message string, payload []byte, retryable bool) error {
	errRec := models.IntegrationSyncError{
		SyncRunId:   runId,
		BusinessId:  businessId,
		EntityType:  entityType,
		ExternalId:  externalId,
		ErrorCode:   code,
		Message:     message,
		PayloadJSON: payload,
		Retryable:   retryable,
	}
	return db.WithContext(ctx).Create(&errRec).Error
}

// runStats shapes the persisted run statistics. Keys follow the camelCase
// report payload so clients read the same names from the run row and the
// run report.
func runStats(report Report, conflicts int, imported int) map[string]int {
	return map[string]int{
		"matched":           len(report.Matched),
		"missingInExternal": len(report.MissingInExternal),
		"missingInInternal": len(report.MissingInInternal),
		"conflicts":         conflicts,
		"imported":          imported,
		"totalProcessed":    report.TotalProcessed,
	}
}
