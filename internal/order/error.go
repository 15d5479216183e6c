package order

import (
	"errors"
	"net/http"

	"chatori-be/internal/transport"
)

var (
	// -- Validation & Input --
	ErrEmptyOrder           = errors.New("order must have items")
	ErrInvalidPaymentMethod = errors.New("payment method must be COD or Online")
	ErrTotalMismatch        = errors.New("total amount does not match items")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidQuantity      = errors.New("item quantity must be at least 1")
	ErrMissingAddress       = errors.New("delivery address is required")
	ErrInvalidPrice         = errors.New("item price must not be negative")

	// -- Authorization --
	ErrForbidden = errors.New("not allowed to make this status change")

	// -- Delivery OTP --
	ErrOtpRequired = errors.New("OTP is required to complete delivery")
	ErrOtpMismatch = errors.New("invalid OTP, please check with customer")

	// -- Resource State --
	ErrOrderNotFound     = errors.New("order not found")
	ErrAlreadyFinalized  = errors.New("order is already finalized")
	ErrConcurrentUpdate  = errors.New("order was modified concurrently, retry")
	ErrPaymentNotPending = errors.New("order payment is not pending")

	// -- Database & Operation Failures --
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrFailedCreateOrder       = errors.New("failed to create order")
	ErrFailedGetOrder          = errors.New("failed to get order")
	ErrFailedUpdateOrder       = errors.New("failed to update order")

	// -- Constants (External Systems) --
	PgUniqueViolation = "23505"
)

var ErrorStatus = transport.StatusMap{
	ErrEmptyOrder:           http.StatusBadRequest,
	ErrInvalidPaymentMethod: http.StatusBadRequest,
	ErrTotalMismatch:        http.StatusBadRequest,
	ErrInvalidStatus:        http.StatusBadRequest,
	ErrInvalidQuantity:      http.StatusBadRequest,
	ErrMissingAddress:       http.StatusBadRequest,
	ErrInvalidPrice:         http.StatusBadRequest,
	ErrOtpRequired:          http.StatusBadRequest,
	ErrOtpMismatch:          http.StatusBadRequest,
	ErrForbidden:            http.StatusForbidden,
	ErrOrderNotFound:        http.StatusNotFound,
	ErrAlreadyFinalized:     http.StatusConflict,
	ErrConcurrentUpdate:     http.StatusConflict,
	ErrPaymentNotPending:    http.StatusConflict,
}
