package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"parsikala_back_end/internal/apperr"
)

// PaymentGateway expose le cycle requête/vérification d'un paiement en ligne.
// Les montants sont exprimés en Toman entiers.
type PaymentGateway interface {
	RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	VerifyPayment(ctx context.Context, authority string, amount int64) (*PaymentReceipt, error)
}

type PaymentRequest struct {
	OrderID     string
	Amount      int64
	Description string
	CallbackURL string
	Mobile      string
}

// PaymentSession identifie une session de paiement ouverte côté passerelle.
type PaymentSession struct {
	Authority  string
	PaymentURL string
}

type PaymentReceipt struct {
	Verified        bool
	AlreadyVerified bool
	RefID           string
	CardPan         string
	FailureCode     int
	FailureReason   string
}

// ZarinPalClient implémente PaymentGateway sur l'API ZarinPal v4.
type ZarinPalClient struct {
	merchantID string
	sandbox    bool
	baseURL    string
	payBaseURL string
	httpClient *http.Client
}

func NewZarinPalClient() *ZarinPalClient {
	sandbox := os.Getenv("ZARINPAL_SANDBOX") == "true"
	c := &ZarinPalClient{
		merchantID: os.Getenv("ZARINPAL_MERCHANT_ID"),
		sandbox:    sandbox,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	if sandbox {
		c.baseURL = "https://sandbox.zarinpal.com/pg/v4/payment"
		c.payBaseURL = "https://sandbox.zarinpal.com/pg/StartPay/"
	} else {
		c.baseURL = "https://api.zarinpal.com/pg/v4/payment"
		c.payBaseURL = "https://www.zarinpal.com/pg/StartPay/"
	}
	return c
}

// NewZarinPalClientWith fixe l'URL de base et le client HTTP (tests).
func NewZarinPalClientWith(merchantID, baseURL string, hc *http.Client) *ZarinPalClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &ZarinPalClient{
		merchantID: merchantID,
		baseURL:    baseURL,
		payBaseURL: baseURL + "/StartPay/",
		httpClient: hc,
	}
}

type zarinpalRequestBody struct {
	MerchantID  string            `json:"merchant_id"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type zarinpalVerifyBody struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
	Amount     int64  `json:"amount"`
}

type zarinpalResponse struct {
	Data struct {
		Code      int    `json:"code"`
		Authority string `json:"authority"`
		RefID     int64  `json:"ref_id"`
		CardPan   string `json:"card_pan"`
	} `json:"data"`
	Errors struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Messages des codes d'erreur documentés par la passerelle.
var zarinpalErrors = map[int]string{
	-9:  "échec de la validation des données",
	-10: "IP ou identifiant marchand incorrect",
	-11: "identifiant marchand inactif",
	-12: "trop de tentatives sur une courte période",
	-15: "terminal suspendu",
	-16: "niveau de certification du marchand insuffisant",
	-50: "montant vérifié différent du montant payé",
	-51: "session de paiement échouée",
	-54: "autorité de paiement invalide",
}

func (c *ZarinPalClient) RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if c.merchantID == "" {
		return nil, apperr.New(apperr.CodeInternal, "Identifiant marchand non configuré")
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Paiement de la commande %s", req.OrderID)
	}
	body := zarinpalRequestBody{
		MerchantID:  c.merchantID,
		Amount:      req.Amount,
		Description: description,
		CallbackURL: req.CallbackURL,
		Metadata:    map[string]string{"order_id": req.OrderID},
	}
	if req.Mobile != "" {
		body.Metadata["mobile"] = req.Mobile
	}

	// L'ouverture de session n'est jamais rejouée: un doublon créerait une
	// seconde autorité pour la même commande.
	var result zarinpalResponse
	if err := c.post(ctx, c.baseURL+"/request.json", body, &result); err != nil {
		return nil, err
	}

	if result.Data.Code != 100 {
		msg := gatewayErrorMessage(result)
		log.Printf("❌ Ouverture de paiement refusée pour la commande %s: %s", req.OrderID, msg)
		return nil, apperr.New(apperr.CodeGatewayUnavailable, "La passerelle de paiement a refusé la demande")
	}

	log.Printf("✅ Session de paiement ouverte pour la commande %s (authority=%s)", req.OrderID, result.Data.Authority)
	return &PaymentSession{
		Authority:  result.Data.Authority,
		PaymentURL: c.payBaseURL + result.Data.Authority,
	}, nil
}

func (c *ZarinPalClient) VerifyPayment(ctx context.Context, authority string, amount int64) (*PaymentReceipt, error) {
	if c.merchantID == "" {
		return nil, apperr.New(apperr.CodeInternal, "Identifiant marchand non configuré")
	}

	body := zarinpalVerifyBody{MerchantID: c.merchantID, Authority: authority, Amount: amount}

	// La vérification est idempotente côté passerelle (code 101), on peut
	// donc la rejouer en cas d'erreur transitoire.
	var result zarinpalResponse
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, apperr.Wrap(apperr.CodeGatewayUnavailable, "Vérification du paiement interrompue", ctx.Err())
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		lastErr = c.post(ctx, c.baseURL+"/verify.json", body, &result)
		if lastErr == nil {
			break
		}
		log.Printf("⚠️ Vérification du paiement %s: tentative %d échouée: %v", authority, attempt+1, lastErr)
	}
	if lastErr != nil {
		return nil, lastErr
	}

	switch result.Data.Code {
	case 100:
		return &PaymentReceipt{
			Verified: true,
			RefID:    fmt.Sprintf("%d", result.Data.RefID),
			CardPan:  result.Data.CardPan,
		}, nil
	case 101:
		// Transaction déjà vérifiée lors d'un appel précédent.
		return &PaymentReceipt{
			Verified:        true,
			AlreadyVerified: true,
			RefID:           fmt.Sprintf("%d", result.Data.RefID),
			CardPan:         result.Data.CardPan,
		}, nil
	default:
		code := result.Data.Code
		if code == 0 {
			code = result.Errors.Code
		}
		return &PaymentReceipt{
			Verified:      false,
			FailureCode:   code,
			FailureReason: gatewayErrorMessage(result),
		}, nil
	}
}

func (c *ZarinPalClient) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "sérialisation de la requête de paiement", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "construction de la requête de paiement", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.CodeGatewayUnavailable, "La passerelle de paiement est injoignable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperr.New(apperr.CodeGatewayUnavailable, fmt.Sprintf("La passerelle de paiement a répondu HTTP %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.CodeGatewayUnavailable, "Réponse de la passerelle illisible", err)
	}
	return nil
}

func gatewayErrorMessage(r zarinpalResponse) string {
	code := r.Data.Code
	if code == 0 {
		code = r.Errors.Code
	}
	if msg, ok := zarinpalErrors[code]; ok {
		return fmt.Sprintf("code %d: %s", code, msg)
	}
	if r.Errors.Message != "" {
		return fmt.Sprintf("code %d: %s", code, r.Errors.Message)
	}
	return fmt.Sprintf("code %d", code)
}
