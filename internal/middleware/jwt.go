package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/utils"
)

// AuthRequired valide le jeton d'accès Bearer et dépose l'identité du
// demandeur (user_id, phone, role) dans le contexte Gin.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token manquant", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Format Authorization invalide", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		claims, err := utils.ClaimsOfType(parts[1], "access")
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token invalide ou expiré", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token invalide", "code": "UNAUTHORIZED"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("phone", claims["phone"])
		if role, ok := claims["role"].(string); ok {
			c.Set("role", role)
		}

		c.Next()
	}
}
