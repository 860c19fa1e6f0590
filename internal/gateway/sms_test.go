package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parsikala_back_end/internal/apperr"
)

func TestSendVerificationCode(t *testing.T) {
	var received smsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]any{"recId": 123456789})
	}))
	defer srv.Close()

	client := NewMelipayamakClientWith(srv.URL, srv.Client())
	err := client.SendVerificationCode(context.Background(), "09123456789", "482913")
	require.NoError(t, err)
	assert.Equal(t, "09123456789", received.To)
	assert.Equal(t, []string{"482913"}, received.Args)
	assert.Equal(t, 389104, received.BodyID)
}

func TestSendPasswordResetCodeUsesResetTemplate(t *testing.T) {
	var received smsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]any{"recId": 1})
	}))
	defer srv.Close()

	client := NewMelipayamakClientWith(srv.URL, srv.Client())
	require.NoError(t, client.SendPasswordResetCode(context.Background(), "09123456789", "111111"))
	assert.Equal(t, 390389, received.BodyID)
}

func TestSendVerificationCodeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"recId": 0, "status": "insufficient credit"})
	}))
	defer srv.Close()

	client := NewMelipayamakClientWith(srv.URL, srv.Client())
	err := client.SendVerificationCode(context.Background(), "09123456789", "482913")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeGatewayUnavailable, apperr.CodeOf(err))
}

func TestSendVerificationCodeGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connexion refusée

	client := NewMelipayamakClientWith(srv.URL, http.DefaultClient)
	err := client.SendVerificationCode(context.Background(), "09123456789", "482913")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeGatewayUnavailable, apperr.CodeOf(err))
}
