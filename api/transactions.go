package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/utils"
)

func ListTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.TransactionFilter{}
		if v := strings.TrimSpace(c.Query("wallet_id")); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				filter.WalletId = id
			}
		}
		if v := strings.TrimSpace(c.Query("category_id")); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				filter.CategoryId = id
			}
		}
		if v := strings.TrimSpace(c.Query("type")); v != "" {
			txnType, err := models.ParseTransactionType(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			filter.TransactionType = txnType
		}
		if v := strings.TrimSpace(c.Query("period")); v != "" {
			// named period shortcut (thisMonth, previousQuarter, ...);
			// explicit from_date/to_date below override its bounds
			from, to, err := utils.GetStartAndEndDateForFilter(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period"})
				return
			}
			filter.FromDate = &from
			filter.ToDate = &to
		}
		if v := strings.TrimSpace(c.Query("from_date")); v != "" {
			from, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from_date"})
				return
			}
			filter.FromDate = &from
		}
		if v := strings.TrimSpace(c.Query("to_date")); v != "" {
			to, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to_date"})
				return
			}
			to = to.Add(24*time.Hour - time.Nanosecond)
			filter.ToDate = &to
		}
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				filter.Limit = n
			}
		}
		if v := strings.TrimSpace(c.Query("offset")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				filter.Offset = n
			}
		}

		txns, err := models.GetTransactions(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": txns})
	}
}

func GetTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		txn, err := models.GetTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, txn)
	}
}

func CreateTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		txn, err := models.CreateTransaction(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, txn)
	}
}

func UpdateTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		txn, err := models.UpdateTransaction(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, txn)
	}
}

func DeleteTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		deleted, err := models.DeleteTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": deleted})
	}
}
