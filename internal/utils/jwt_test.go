package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"parsikala_back_end/internal/models"
)

func testUser() *models.User {
	return &models.User{
		ID:    primitive.NewObjectID(),
		Phone: "09123456789",
		Role:  "user",
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	user := testUser()
	token, err := GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := ClaimsOfType(token, "access")
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims["user_id"])
	assert.Equal(t, "09123456789", claims["phone"])
	assert.Equal(t, "user", claims["role"])
}

func TestRefreshTokenType(t *testing.T) {
	token, _, err := GenerateRefreshToken(testUser())
	require.NoError(t, err)

	_, err = ClaimsOfType(token, "refresh")
	assert.NoError(t, err)

	// Un refresh token ne passe jamais pour un access token
	_, err = ClaimsOfType(token, "access")
	assert.Error(t, err)
}

func TestResetTokenCarriesPhone(t *testing.T) {
	token, err := GenerateResetToken("09351112233")
	require.NoError(t, err)

	claims, err := ClaimsOfType(token, "password_reset")
	require.NoError(t, err)
	assert.Equal(t, "09351112233", claims["phone"])
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("pas.un.jwt")
	assert.Error(t, err)

	_, err = ParseToken("")
	assert.Error(t, err)
}

func TestParseTokenRejectsTamperedSignature(t *testing.T) {
	token, err := GenerateAccessToken(testUser())
	require.NoError(t, err)

	_, err = ParseToken(token[:len(token)-4] + "XXXX")
	assert.Error(t, err)
}
