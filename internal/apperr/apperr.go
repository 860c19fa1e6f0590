package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code machine stable, renvoyé tel quel au client à côté du message humain.
type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeForbidden          Code = "FORBIDDEN"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeAlreadyPaid        Code = "ALREADY_PAID"
	CodeOrderCancelled     Code = "ORDER_CANCELLED"
	CodeExpired            Code = "EXPIRED"
	CodeAttemptsExhausted  Code = "ATTEMPTS_EXHAUSTED"
	CodeCodeMismatch       Code = "CODE_MISMATCH"
	CodeGatewayUnavailable Code = "GATEWAY_UNAVAILABLE"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeConflict           Code = "CONFLICT"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInternal           Code = "INTERNAL"
)

type Error struct {
	Code    Code
	Message string
	// Tentatives restantes avant invalidation (codes SMS). Nil si non applicable.
	RemainingAttempts *int
	// Délai avant nouvel essai (rate limiting). Zéro si non applicable.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithRemaining attache le nombre de tentatives restantes.
func (e *Error) WithRemaining(n int) *Error {
	e.RemainingAttempts = &n
	return e
}

// CodeOf extrait le code machine d'une erreur quelconque.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// As renvoie l'erreur typée si présente dans la chaîne.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}

// HTTPStatus associe chaque code à un statut HTTP pour l'adaptateur web.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeConflict:
		return http.StatusConflict
	case CodeInsufficientStock, CodeAlreadyPaid, CodeOrderCancelled,
		CodeExpired, CodeAttemptsExhausted, CodeCodeMismatch, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeGatewayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
