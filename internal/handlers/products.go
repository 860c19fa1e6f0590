package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"

	"parsikala_back_end/internal/cache"
	"parsikala_back_end/internal/models"
	"parsikala_back_end/internal/search"
)

// ListProducts renvoie le catalogue (lecture publique).
func ListProducts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	list, err := productsSt.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": list, "count": len(list)})
}

// GetProduct renvoie un produit, via cache Redis avec stock relu en direct.
func GetProduct(c *gin.Context) {
	p, err := cache.GetProduct(c.Request.Context(), productsSt, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

// SearchProducts interroge Elasticsearch (multi_match nom/description/marque/tags).
func SearchProducts(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre q requis", "code": "VALIDATION_FAILED"})
		return
	}

	results, err := search.SearchProducts(q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

type productRequest struct {
	Name              string   `json:"name" binding:"required"`
	Description       string   `json:"description"`
	Price             int64    `json:"price" binding:"required,gt=0"`
	OriginalPrice     int64    `json:"original_price"`
	Stock             int      `json:"stock" binding:"gte=0"`
	LowStockThreshold int      `json:"low_stock_threshold"`
	Brand             string   `json:"brand"`
	Category          string   `json:"category"`
	ImageURLs         []string `json:"image_urls"`
	Tags              []string `json:"tags"`
}

// CreateProduct (admin) insère un produit et l'indexe dans Elasticsearch.
func CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données produit invalides", "code": "VALIDATION_FAILED"})
		return
	}

	now := time.Now()
	p := models.Product{
		ID:                gocql.TimeUUID(),
		Name:              req.Name,
		Description:       req.Description,
		Price:             req.Price,
		OriginalPrice:     req.OriginalPrice,
		Stock:             req.Stock,
		LowStockThreshold: req.LowStockThreshold,
		Brand:             req.Brand,
		Category:          req.Category,
		ImageURLs:         req.ImageURLs,
		Tags:              req.Tags,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := productsSt.Insert(c.Request.Context(), &p); err != nil {
		respondError(c, err)
		return
	}
	search.IndexProduct(p)
	c.JSON(http.StatusCreated, gin.H{"product": p})
}

// UpdateProduct (admin) modifie les champs produit (jamais le stock ici).
func UpdateProduct(c *gin.Context) {
	id, err := gocql.ParseUUID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant produit invalide", "code": "VALIDATION_FAILED"})
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données produit invalides", "code": "VALIDATION_FAILED"})
		return
	}

	p := models.Product{
		ID:                id,
		Name:              req.Name,
		Description:       req.Description,
		Price:             req.Price,
		OriginalPrice:     req.OriginalPrice,
		LowStockThreshold: req.LowStockThreshold,
		Brand:             req.Brand,
		Category:          req.Category,
		ImageURLs:         req.ImageURLs,
		Tags:              req.Tags,
		IsActive:          true,
		UpdatedAt:         time.Now(),
	}

	if err := productsSt.Update(c.Request.Context(), &p); err != nil {
		respondError(c, err)
		return
	}
	cache.InvalidateProduct(c.Request.Context(), id.String())
	search.IndexProduct(p)
	c.JSON(http.StatusOK, gin.H{"product": p})
}

// DeleteProduct (admin) retire un produit du catalogue et de l'index.
func DeleteProduct(c *gin.Context) {
	id := c.Param("id")
	if err := productsSt.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	cache.InvalidateProduct(c.Request.Context(), id)
	search.RemoveProduct(id)
	c.JSON(http.StatusOK, gin.H{"message": "Produit supprimé"})
}

// AdjustStock (admin) applique un restock (delta) ou un ajustement (absolu).
func AdjustStock(c *gin.Context) {
	var req struct {
		Quantity int    `json:"quantity" binding:"required"`
		Type     string `json:"type" binding:"required,oneof=restock adjustment"`
		Reason   string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity et type (restock|adjustment) requis", "code": "VALIDATION_FAILED"})
		return
	}

	id := c.Param("id")
	prev, next, err := productsSt.AdjustStock(c.Request.Context(), id, req.Quantity, req.Type, req.Reason, currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	cache.InvalidateProduct(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"previous_stock": prev, "new_stock": next})
}

// StockMovements (admin) liste l'historique des mouvements d'un produit.
func StockMovements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	moves, err := productsSt.Movements(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": moves, "count": len(moves)})
}
