package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/orders"
	"parsikala_back_end/internal/store"
)

// ValidateCart revérifie prix et stock côté serveur avant commande.
func ValidateCart(c *gin.Context) {
	var req struct {
		Items []orders.CartItem `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Panier invalide", "code": "VALIDATION_FAILED"})
		return
	}

	cart, err := orderSvc.ValidateCart(c.Request.Context(), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

// CreateOrder crée la commande et réserve le stock immédiatement.
func CreateOrder(c *gin.Context) {
	var req struct {
		Items           []orders.CartItem      `json:"items" binding:"required"`
		ShippingAddress models.ShippingAddress `json:"shipping_address" binding:"required"`
		PaymentMethod   string                 `json:"payment_method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données de commande invalides", "code": "VALIDATION_FAILED"})
		return
	}

	order, err := orderSvc.CreateOrder(c.Request.Context(), currentUserID(c), req.Items, req.ShippingAddress, req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// ListOrders renvoie les commandes du demandeur, ou toutes pour un admin.
func ListOrders(c *gin.Context) {
	f := store.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	if !isAdmin(c) {
		f.UserID = currentUserID(c)
	} else if uid := c.Query("user_id"); uid != "" {
		f.UserID = uid
	}

	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			f.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			f.DateTo = &t
		}
	}
	if min := c.Query("min_amount"); min != "" {
		f.MinAmount, _ = strconv.ParseInt(min, 10, 64)
	}
	if max := c.Query("max_amount"); max != "" {
		f.MaxAmount, _ = strconv.ParseInt(max, 10, 64)
	}

	list, total, err := orderSvc.ListOrders(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": list,
		"total":  total,
		"page":   f.Page,
		"limit":  f.Limit,
	})
}

// GetOrder renvoie une commande (propriétaire ou admin uniquement).
func GetOrder(c *gin.Context) {
	order, err := orderSvc.GetOrder(c.Request.Context(), c.Param("id"), currentUserID(c), isAdmin(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// CancelOrder annule une commande non terminale et restocke.
func CancelOrder(c *gin.Context) {
	order, err := orderSvc.CancelOrder(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "message": "Commande annulée"})
}

// SetTrackingNumber (admin) attache le numéro de suivi transporteur.
func SetTrackingNumber(c *gin.Context) {
	var req struct {
		TrackingNumber string `json:"tracking_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tracking_number requis", "code": "VALIDATION_FAILED"})
		return
	}

	order, err := orderSvc.SetTrackingNumber(c.Request.Context(), c.Param("id"), req.TrackingNumber, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus (admin) force un nouveau statut de livraison.
func UpdateOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statut requis", "code": "VALIDATION_FAILED"})
		return
	}

	order, err := orderSvc.UpdateOrderStatus(c.Request.Context(), c.Param("id"), req.Status, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
