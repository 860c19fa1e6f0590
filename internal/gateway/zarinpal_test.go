package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsikala_back_end/internal/apperr"
)

func zarinpalServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *ZarinPalClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewZarinPalClientWith("test-merchant", srv.URL, srv.Client())
}

func TestRequestPayment(t *testing.T) {
	var received zarinpalRequestBody
	_, client := zarinpalServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/request.json", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 100, "authority": "A0000123"},
		})
	})

	session, err := client.RequestPayment(context.Background(), PaymentRequest{
		OrderID:     "ord-1",
		Amount:      250000,
		CallbackURL: "https://shop.example/payment/verify",
	})
	require.NoError(t, err)
	assert.Equal(t, "A0000123", session.Authority)
	assert.Contains(t, session.PaymentURL, "/StartPay/A0000123")
	assert.Equal(t, int64(250000), received.Amount)
	assert.Equal(t, "test-merchant", received.MerchantID)
	assert.Equal(t, "ord-1", received.Metadata["order_id"])
}

func TestRequestPaymentRefused(t *testing.T) {
	_, client := zarinpalServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"errors": map[string]any{"code": -11, "message": "merchant inactive"},
		})
	})

	_, err := client.RequestPayment(context.Background(), PaymentRequest{OrderID: "ord-1", Amount: 1000})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeGatewayUnavailable, apperr.CodeOf(err))
}

func TestVerifyPaymentSuccess(t *testing.T) {
	_, client := zarinpalServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/verify.json", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 100, "ref_id": 987654, "card_pan": "603799******1234"},
		})
	})

	receipt, err := client.VerifyPayment(context.Background(), "A0000123", 250000)
	require.NoError(t, err)
	assert.True(t, receipt.Verified)
	assert.False(t, receipt.AlreadyVerified)
	assert.Equal(t, "987654", receipt.RefID)
}

func TestVerifyPaymentAlreadyVerified(t *testing.T) {
	_, client := zarinpalServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 101, "ref_id": 987654},
		})
	})

	receipt, err := client.VerifyPayment(context.Background(), "A0000123", 250000)
	require.NoError(t, err)
	assert.True(t, receipt.Verified)
	assert.True(t, receipt.AlreadyVerified)
}

func TestVerifyPaymentFailureCode(t *testing.T) {
	_, client := zarinpalServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": -51},
		})
	})

	receipt, err := client.VerifyPayment(context.Background(), "A0000123", 250000)
	require.NoError(t, err)
	assert.False(t, receipt.Verified)
	assert.Equal(t, -51, receipt.FailureCode)
	assert.Contains(t, receipt.FailureReason, "-51")
}

func TestVerifyPaymentRetriesOnServerError(t *testing.T) {
	var calls atomic.Int32
	_, client := zarinpalServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 100, "ref_id": 42},
		})
	})

	receipt, err := client.VerifyPayment(context.Background(), "A0000123", 250000)
	require.NoError(t, err)
	assert.True(t, receipt.Verified)
	assert.Equal(t, int32(3), calls.Load())
}

func TestVerifyPaymentGatewayDown(t *testing.T) {
	srv, client := zarinpalServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_ = srv

	_, err := client.VerifyPayment(context.Background(), "A0000123", 250000)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeGatewayUnavailable, apperr.CodeOf(err))
}

func TestRequestPaymentNoRetry(t *testing.T) {
	var calls atomic.Int32
	_, client := zarinpalServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.RequestPayment(context.Background(), PaymentRequest{OrderID: "ord-1", Amount: 1000})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "l'ouverture de session ne doit jamais être rejouée")
}
