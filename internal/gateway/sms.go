package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"parsikala_back_end/internal/apperr"
)

// SMSSender envoie un code de vérification par SMS.
type SMSSender interface {
	SendVerificationCode(ctx context.Context, phone, code string) error
	SendPasswordResetCode(ctx context.Context, phone, code string) error
}

// MelipayamakClient envoie des SMS modèles via l'API partagée Melipayamak.
// Chaque modèle est identifié par un bodyId; le code est injecté en argument.
type MelipayamakClient struct {
	apiURL         string
	registerBodyID int
	resetBodyID    int
	httpClient     *http.Client
}

func NewMelipayamakClient() *MelipayamakClient {
	apiURL := os.Getenv("SMS_API_URL")
	registerBodyID, _ := strconv.Atoi(getenvDefault("SMS_REGISTER_BODYID", "389104"))
	resetBodyID, _ := strconv.Atoi(getenvDefault("SMS_PASSWORD_RESET_BODYID", "390389"))

	return &MelipayamakClient{
		apiURL:         apiURL,
		registerBodyID: registerBodyID,
		resetBodyID:    resetBodyID,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
	}
}

// NewMelipayamakClientWith permet d'injecter l'URL et le client HTTP (tests).
func NewMelipayamakClientWith(apiURL string, hc *http.Client) *MelipayamakClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &MelipayamakClient{
		apiURL:         apiURL,
		registerBodyID: 389104,
		resetBodyID:    390389,
		httpClient:     hc,
	}
}

type smsRequest struct {
	BodyID int      `json:"bodyId"`
	To     string   `json:"to"`
	Args   []string `json:"args"`
}

type smsResponse struct {
	RecID   int64  `json:"recId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *MelipayamakClient) SendVerificationCode(ctx context.Context, phone, code string) error {
	return c.send(ctx, phone, code, c.registerBodyID)
}

func (c *MelipayamakClient) SendPasswordResetCode(ctx context.Context, phone, code string) error {
	return c.send(ctx, phone, code, c.resetBodyID)
}

func (c *MelipayamakClient) send(ctx context.Context, phone, code string, bodyID int) error {
	payload, err := json.Marshal(smsRequest{BodyID: bodyID, To: phone, Args: []string{code}})
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "sérialisation de la requête SMS", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "construction de la requête SMS", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("❌ Passerelle SMS injoignable: %v", err)
		return apperr.Wrap(apperr.CodeGatewayUnavailable, "Le service SMS est momentanément indisponible", err)
	}
	defer resp.Body.Close()

	var result smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("❌ Réponse SMS illisible (HTTP %d): %v", resp.StatusCode, err)
		return apperr.Wrap(apperr.CodeGatewayUnavailable, "Le service SMS est momentanément indisponible", err)
	}

	// L'API partagée renvoie un recId positif quand l'envoi est accepté.
	if result.RecID > 0 {
		log.Printf("✅ SMS envoyé à %s (recId=%d)", phone, result.RecID)
		return nil
	}

	reason := result.Status
	if reason == "" {
		reason = result.Message
	}
	if reason == "" {
		reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	log.Printf("❌ Envoi SMS refusé pour %s: %s", phone, reason)
	return apperr.New(apperr.CodeGatewayUnavailable, "Le service SMS est momentanément indisponible")
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
