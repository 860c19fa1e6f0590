package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	err := New(CodeInsufficientStock, "stock insuffisant")
	assert.Equal(t, CodeInsufficientStock, CodeOf(err))

	wrapped := fmt.Errorf("contexte: %w", err)
	assert.Equal(t, CodeInsufficientStock, CodeOf(wrapped))

	assert.Equal(t, CodeInternal, CodeOf(errors.New("erreur brute")))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := Wrap(CodeGatewayUnavailable, "passerelle injoignable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "GATEWAY_UNAVAILABLE")
	assert.Contains(t, err.Error(), "timeout")
}

func TestWithRemaining(t *testing.T) {
	err := New(CodeCodeMismatch, "code incorrect").WithRemaining(3)

	ae, ok := As(err)
	assert.True(t, ok)
	assert.NotNil(t, ae.RemainingAttempts)
	assert.Equal(t, 3, *ae.RemainingAttempts)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(CodeForbidden))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(CodeUnauthorized))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeConflict))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInsufficientStock))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeAttemptsExhausted))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(CodeGatewayUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeInternal))
}
