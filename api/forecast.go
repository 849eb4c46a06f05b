package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/contarapida/finance_backend/models"
)

// ForecastHandler projects future cash flow. The horizon defaults to
// the plan's maximum and is clamped to it when a larger one is asked.
func ForecastHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		months := 0
		if v := strings.TrimSpace(c.Query("months")); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid months"})
				return
			}
			months = n
		}
		walletId := 0
		if v := strings.TrimSpace(c.Query("wallet_id")); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				walletId = id
			}
		}

		forecast, err := models.GetCashFlowForecast(c.Request.Context(), walletId, months)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, forecast)
	}
}
