package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/utils"
)

// TrackingQR renvoie le QR code de suivi de la commande (PNG).
func TrackingQR(c *gin.Context) {
	order, err := orderSvc.GetOrder(c.Request.Context(), c.Param("id"), currentUserID(c), isAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if order.TrackingNumber == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pas encore de numéro de suivi", "code": "NOT_FOUND"})
		return
	}

	png, err := utils.GenerateTrackingQR(order.TrackingNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Génération du QR code échouée", "code": "INTERNAL"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// DownloadInvoice (admin) génère la facture PDF d'une commande payée.
func DownloadInvoice(c *gin.Context) {
	order, err := orderSvc.GetOrder(c.Request.Context(), c.Param("id"), currentUserID(c), true)
	if err != nil {
		respondError(c, err)
		return
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "La commande n'est pas payée", "code": "VALIDATION_FAILED"})
		return
	}

	pdf, err := utils.GenerateInvoicePDF(order)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Génération de la facture échouée", "code": "INTERNAL"})
		return
	}
	c.Header("Content-Disposition", "attachment; filename=facture-"+order.ID.Hex()+".pdf")
	c.Data(http.StatusOK, "application/pdf", pdf)
}
