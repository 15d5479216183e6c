package payment

import (
	"errors"
	"net/http"

	"chatori-be/internal/transport"
)

var (
	// -- Validation & Input --
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrNotOnlinePayment = errors.New("order is not an online payment")

	// -- Verification --
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	ErrPaymentAlreadySettled     = errors.New("payment already settled")

	// -- External Systems --
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

var ErrorStatus = transport.StatusMap{
	ErrInvalidAmount:             http.StatusBadRequest,
	ErrNotOnlinePayment:          http.StatusBadRequest,
	ErrPaymentVerificationFailed: http.StatusBadRequest,
	ErrPaymentAlreadySettled:     http.StatusConflict,
	ErrGatewayUnavailable:        http.StatusBadGateway,
}
