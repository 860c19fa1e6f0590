package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/account"
)

// RequestRegistration démarre l'inscription: envoi du code SMS.
func RequestRegistration(c *gin.Context) {
	var req account.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données d'inscription invalides", "code": "VALIDATION_FAILED"})
		return
	}

	if err := accountSvc.RequestRegistration(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Code de vérification envoyé par SMS"})
}

// VerifyRegistration valide le code SMS et crée le compte.
func VerifyRegistration(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Téléphone et code requis", "code": "VALIDATION_FAILED"})
		return
	}

	user, tokens, err := accountSvc.VerifyRegistration(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "tokens": tokens})
}

// ResendRegistrationCode renvoie un code pour un dossier en attente.
func ResendRegistrationCode(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Téléphone requis", "code": "VALIDATION_FAILED"})
		return
	}

	if err := accountSvc.ResendRegistrationCode(c.Request.Context(), req.Phone); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Nouveau code envoyé par SMS"})
}

// Login authentifie par téléphone (ou email) et mot de passe.
func Login(c *gin.Context) {
	var req struct {
		Phone    string `json:"phone" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiants requis", "code": "VALIDATION_FAILED"})
		return
	}

	user, tokens, err := accountSvc.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": tokens})
}

// Refresh échange un refresh token contre une nouvelle paire.
func Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token requis", "code": "VALIDATION_FAILED"})
		return
	}

	tokens, err := accountSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout révoque le refresh token présenté.
func Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token requis", "code": "VALIDATION_FAILED"})
		return
	}

	if err := accountSvc.Logout(c.Request.Context(), currentUserID(c), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Déconnecté"})
}

// ForgotPassword envoie un code de réinitialisation par SMS.
func ForgotPassword(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Téléphone requis", "code": "VALIDATION_FAILED"})
		return
	}

	if err := accountSvc.ForgotPassword(c.Request.Context(), req.Phone); err != nil {
		respondError(c, err)
		return
	}
	// Même réponse que le numéro existe ou non
	c.JSON(http.StatusOK, gin.H{"message": "Si ce numéro est enregistré, un code a été envoyé"})
}

// VerifyResetCode valide le code SMS et délivre le jeton de réinitialisation.
func VerifyResetCode(c *gin.Context) {
	var req struct {
		Phone string `json:"phone" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Téléphone et code requis", "code": "VALIDATION_FAILED"})
		return
	}

	resetToken, err := accountSvc.VerifyResetCode(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset_token": resetToken})
}

// ResetPassword applique le nouveau mot de passe.
func ResetPassword(c *gin.Context) {
	var req struct {
		ResetToken  string `json:"reset_token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Jeton et nouveau mot de passe requis", "code": "VALIDATION_FAILED"})
		return
	}

	if err := accountSvc.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mot de passe réinitialisé"})
}

// GetProfile renvoie le compte du demandeur.
func GetProfile(c *gin.Context) {
	user, err := accountSvc.GetProfile(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile modifie les champs éditables du compte.
func UpdateProfile(c *gin.Context) {
	var req struct {
		Name       string `json:"name"`
		LastName   string `json:"last_name"`
		Email      string `json:"email"`
		Address    string `json:"address"`
		PostalCode string `json:"postal_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "code": "VALIDATION_FAILED"})
		return
	}

	user, err := accountSvc.UpdateProfile(c.Request.Context(), currentUserID(c),
		req.Name, req.LastName, req.Email, req.Address, req.PostalCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
