package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parsikala_back_end/internal/database"
)

const (
	// Limites par endpoint
	LoginMaxAttempts = 5
	SMSMaxRequests   = 5   // envois de code par téléphone
	APIMaxRequests   = 100 // par minute pour les endpoints généraux

	// Durées de cooldown
	LoginCooldown = 15 * time.Minute
	SMSCooldown   = 10 * time.Minute
	APICooldown   = 1 * time.Minute
)

// Taille maximale du corps relu par le rate limiter.
const maxBodyPeek = 64 << 10

// phoneFromBody lit le téléphone du corps JSON sans le consommer.
func phoneFromBody(c *gin.Context) string {
	bodyBytes, _ := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyPeek))
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	var input struct {
		Phone string `json:"phone"`
	}
	if err := json.Unmarshal(bodyBytes, &input); err != nil {
		return ""
	}
	return input.Phone
}

// LoginRateLimit limite les tentatives de connexion par téléphone.
func LoginRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := phoneFromBody(c)
		if phone == "" {
			c.Next()
			return
		}

		ctx := context.Background()
		key := "login_attempts:" + phone
		cooldownKey := "login_cooldown:" + phone

		if database.Redis.Exists(ctx, cooldownKey).Val() > 0 {
			ttl := database.Redis.TTL(ctx, cooldownKey).Val()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Trop de tentatives échouées. Réessayez dans %d minutes", int(ttl.Minutes())),
				"retry_after": int(ttl.Seconds()),
			})
			c.Abort()
			return
		}

		attempts, _ := database.Redis.Get(ctx, key).Int()
		if attempts >= LoginMaxAttempts {
			database.Redis.Set(ctx, cooldownKey, "1", LoginCooldown)
			database.Redis.Del(ctx, key)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Trop de tentatives échouées. Compte bloqué pendant %d minutes", int(LoginCooldown.Minutes())),
				"retry_after": int(LoginCooldown.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()

		// Échec (401): incrémenter. Succès: remettre les compteurs à zéro.
		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			database.Redis.Incr(ctx, key)
			database.Redis.Expire(ctx, key, LoginCooldown)
			if remaining := LoginMaxAttempts - attempts - 1; remaining > 0 {
				c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			}
		case http.StatusOK:
			database.Redis.Del(ctx, key)
			database.Redis.Del(ctx, cooldownKey)
		}
	}
}

// SMSRateLimit borne les envois de code par téléphone: chaque SMS coûte.
func SMSRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		phone := phoneFromBody(c)
		if phone == "" {
			c.Next()
			return
		}

		ctx := context.Background()
		key := "sms_requests:" + phone

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= SMSMaxRequests {
			ttl := database.Redis.TTL(ctx, key).Val()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Trop de demandes de code. Réessayez dans %d minutes", int(ttl.Minutes())+1),
				"retry_after": int(ttl.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()

		// Seuls les envois acceptés comptent.
		if c.Writer.Status() == http.StatusOK {
			pipe := database.Redis.Pipeline()
			pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, SMSCooldown)
			pipe.Exec(ctx)
		}
	}
}

// APIRateLimit limite le nombre de requêtes par IP (général).
func APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		ip := c.ClientIP()
		key := "api_requests:" + ip

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= APIMaxRequests {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de requêtes. Réessayez dans 1 minute",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, APICooldown)
		pipe.Exec(ctx)

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", APIMaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", APIMaxRequests-requests-1))

		c.Next()
	}
}

// SearchRateLimit limite les recherches catalogue (anti-spam).
func SearchRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ctx := context.Background()
		key := "search_requests:" + ip

		// Max 30 recherches par minute
		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= 30 {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de recherches. Réessayez dans 1 minute",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 1*time.Minute)
		pipe.Exec(ctx)

		c.Next()
	}
}
