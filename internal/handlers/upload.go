package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/services"
)

// UploadAvatar téléverse l'avatar du demandeur dans MinIO.
func UploadAvatar(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier manquant", "code": "VALIDATION_FAILED"})
		return
	}
	if file.Size > 5<<20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier trop volumineux (max 5 Mo)", "code": "VALIDATION_FAILED"})
		return
	}

	url, err := services.UploadFile(c.Request.Context(), "avatars", file)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := accountSvc.SetAvatar(c.Request.Context(), currentUserID(c), url); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatar_url": url})
}

// UploadProductImage (admin) téléverse une image produit dans MinIO.
func UploadProductImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier manquant", "code": "VALIDATION_FAILED"})
		return
	}
	if file.Size > 10<<20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier trop volumineux (max 10 Mo)", "code": "VALIDATION_FAILED"})
		return
	}

	url, err := services.UploadFile(c.Request.Context(), "products", file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": url})
}
