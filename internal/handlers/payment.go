package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/models"
)

func frontendURL() string {
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		return v
	}
	return "http://localhost:3000"
}

// CreatePaymentRequest ouvre une session ZarinPal et renvoie l'URL de paiement.
func CreatePaymentRequest(c *gin.Context) {
	paymentURL, err := orderSvc.CreatePaymentRequest(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_url": paymentURL})
}

// PaymentCallback est la cible de retour ZarinPal. La passerelle y redirige le
// navigateur avec ?Authority=...&Status=OK|NOK ; on vérifie toujours côté
// serveur avant de marquer la commande payée.
func PaymentCallback(c *gin.Context) {
	authority := c.Query("Authority")
	status := c.Query("Status")
	if authority == "" {
		c.Redirect(http.StatusFound, frontendURL()+"/payment/failed")
		return
	}

	order, err := orderSvc.VerifyPayment(c.Request.Context(), authority, status)
	if err != nil {
		c.Redirect(http.StatusFound, frontendURL()+"/payment/failed")
		return
	}

	if order.PaymentStatus == models.PaymentStatusPaid {
		c.Redirect(http.StatusFound, frontendURL()+"/payment/success?order="+order.ID.Hex())
		return
	}
	c.Redirect(http.StatusFound, frontendURL()+"/payment/failed?order="+order.ID.Hex())
}

// GetPaymentStatus renvoie l'état de paiement d'une commande.
func GetPaymentStatus(c *gin.Context) {
	status, refID, err := orderSvc.GetPaymentStatus(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"payment_status": status}
	if refID != "" {
		resp["ref_id"] = refID
	}
	c.JSON(http.StatusOK, resp)
}
