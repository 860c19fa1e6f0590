package utils

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"parsikala_back_end/internal/models"
)

const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
	ResetTokenTTL   = 15 * time.Minute
)

func jwtSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "super_secret"
	}
	return []byte(secret)
}

// GenerateAccessToken émet le jeton court porté par chaque requête.
func GenerateAccessToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.Hex(),
		"phone":   user.Phone,
		"role":    user.Role,
		"type":    "access",
		"exp":     time.Now().Add(AccessTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// GenerateRefreshToken émet le jeton long conservé côté base pour révocation.
func GenerateRefreshToken(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(RefreshTokenTTL)
	claims := jwt.MapClaims{
		"user_id": user.ID.Hex(),
		"type":    "refresh",
		"exp":     expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret())
	return signed, expiresAt, err
}

// GenerateResetToken émet le jeton éphémère délivré après vérification du
// code SMS de réinitialisation.
func GenerateResetToken(phone string) (string, error) {
	claims := jwt.MapClaims{
		"phone": phone,
		"type":  "password_reset",
		"exp":   time.Now().Add(ResetTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// ParseToken valide la signature et l'expiration, puis renvoie les claims.
func ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("méthode de signature inattendue")
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("jeton invalide")
	}
	return claims, nil
}

// ClaimsOfType vérifie que le jeton porte bien l'usage attendu.
func ClaimsOfType(tokenString, expectedType string) (jwt.MapClaims, error) {
	claims, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if tokenType, _ := claims["type"].(string); tokenType != expectedType {
		return nil, errors.New("type de jeton invalide")
	}
	return claims, nil
}
