package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/account"
	"parsikala_back_end/internal/activity"
	"parsikala_back_end/internal/apperr"
	"parsikala_back_end/internal/orders"
	"parsikala_back_end/internal/store"
)

// Services partagés par tous les handlers, câblés au démarrage.
var (
	accountSvc  *account.Service
	orderSvc    *orders.Service
	productsSt  store.ProductStore
	activityLog *activity.Logger
)

// Init branche les services métier sur la couche HTTP.
func Init(accounts *account.Service, ordersSvc *orders.Service, products store.ProductStore, logger *activity.Logger) {
	accountSvc = accounts
	orderSvc = ordersSvc
	productsSt = products
	activityLog = logger
}

// respondError traduit une erreur métier en réponse JSON uniforme.
func respondError(c *gin.Context, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur interne", "code": "INTERNAL"})
		return
	}

	body := gin.H{"error": ae.Message, "code": string(ae.Code)}
	if ae.RemainingAttempts != nil {
		body["remaining_attempts"] = *ae.RemainingAttempts
	}
	if ae.RetryAfter > 0 {
		body["retry_after"] = int(ae.RetryAfter.Seconds())
	}
	c.JSON(apperr.HTTPStatus(ae.Code), body)
}

func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("role") == "admin"
}
