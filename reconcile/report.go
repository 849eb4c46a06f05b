package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/utils"
)

type RunReport struct {
	Run       SyncRunResponse        `json:"run"`
	Stats     map[string]int         `json:"stats"`
	Conflicts []RunReportConflictRow `json:"conflicts"`
}

type RunReportConflictRow struct {
	ID            int     `json:"id"`
	TransactionId int     `json:"transactionId"`
	ExternalId    string  `json:"externalId"`
	Kind          string  `json:"kind"`
	InternalValue string  `json:"internalValue"`
	ExternalValue string  `json:"externalValue"`
	Status        string  `json:"status"`
	DetectedAt    string  `json:"detectedAt"`
	ResolvedAt    *string `json:"resolvedAt"`
	Method        string  `json:"method"`
}

func buildRunReport(ctx context.Context, businessId string, runId int) (*RunReport, error) {
	db := config.GetDB().WithContext(ctx)

	var run models.IntegrationSyncRun
	if err := db.Where("id = ? AND business_id = ?", runId, businessId).Take(&run).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	stats := map[string]int{}
	if len(run.StatsJSON) > 0 {
		_ = json.Unmarshal(run.StatsJSON, &stats)
	}

	// all conflicts detected or refreshed by this run
	var conflicts []models.ReconciliationConflict
	if err := db.Where("business_id = ? AND sync_run_id = ?", businessId, run.ID).
		Order("id").Find(&conflicts).Error; err != nil {
		return nil, err
	}

	rows := make([]RunReportConflictRow, 0, len(conflicts))
	for _, conflict := range conflicts {
		rows = append(rows, RunReportConflictRow{
			ID:            conflict.ID,
			TransactionId: conflict.TransactionId,
			ExternalId:    conflict.ExternalId,
			Kind:          string(conflict.Kind),
			InternalValue: conflict.InternalValue,
			ExternalValue: conflict.ExternalValue,
			Status:        string(conflict.Status),
			DetectedAt:    conflict.DetectedAt.UTC().Format(time.RFC3339),
			ResolvedAt:    formatTime(conflict.ResolvedAt),
			Method:        string(conflict.ResolutionMethod),
		})
	}

	return &RunReport{
		Run:       mapRunToResponse(run),
		Stats:     stats,
		Conflicts: rows,
	}, nil
}

func RunReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		report, err := buildRunReport(ctx, businessId, id)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func RunReportExcelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetBusinessIdInContext(c.Request.Context(), businessId)
		report, err := buildRunReport(ctx, businessId, id)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		if _, err := f.NewSheet("Sheet1"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		// Add headers
		f.SetCellValue("Sheet1", "A1", "ConflictId")
		f.SetCellValue("Sheet1", "B1", "TransactionId")
		f.SetCellValue("Sheet1", "C1", "ExternalId")
		f.SetCellValue("Sheet1", "D1", "Kind")
		f.SetCellValue("Sheet1", "E1", "InternalValue")
		f.SetCellValue("Sheet1", "F1", "ExternalValue")
		f.SetCellValue("Sheet1", "G1", "Status")
		f.SetCellValue("Sheet1", "H1", "DetectedAt")
		f.SetCellValue("Sheet1", "I1", "ResolvedAt")
		f.SetCellValue("Sheet1", "J1", "Method")

		// Add data
		for i, row := range report.Conflicts {
			f.SetCellValue("Sheet1", "A"+fmt.Sprint(i+2), row.ID)
			f.SetCellValue("Sheet1", "B"+fmt.Sprint(i+2), row.TransactionId)
			f.SetCellValue("Sheet1", "C"+fmt.Sprint(i+2), row.ExternalId)
			f.SetCellValue("Sheet1", "D"+fmt.Sprint(i+2), row.Kind)
			f.SetCellValue("Sheet1", "E"+fmt.Sprint(i+2), row.InternalValue)
			f.SetCellValue("Sheet1", "F"+fmt.Sprint(i+2), row.ExternalValue)
			f.SetCellValue("Sheet1", "G"+fmt.Sprint(i+2), row.Status)
			f.SetCellValue("Sheet1", "H"+fmt.Sprint(i+2), row.DetectedAt)
			f.SetCellValue("Sheet1", "I"+fmt.Sprint(i+2), utils.DereferencePtr(row.ResolvedAt, ""))
			f.SetCellValue("Sheet1", "J"+fmt.Sprint(i+2), row.Method)
		}

		filename := "reconcile-run-" + strconv.Itoa(id) + ".xlsx"
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write file"})
		}
	}
}
