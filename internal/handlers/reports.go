package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// GetSalesStatistics (admin) agrège les ventes sur week|month|year.
func GetSalesStatistics(c *gin.Context) {
	stats, err := orderSvc.GetSalesStatistics(c.Request.Context(), c.DefaultQuery("period", "month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"statistics": stats})
}

// GetFinancialReport (admin) détaille le chiffre d'affaires sur une plage datée.
func GetFinancialReport(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre from invalide (RFC3339)", "code": "VALIDATION_FAILED"})
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre to invalide (RFC3339)", "code": "VALIDATION_FAILED"})
		return
	}

	report, err := orderSvc.GetFinancialReport(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}
