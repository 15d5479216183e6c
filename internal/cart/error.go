package cart

import (
	"errors"
	"net/http"

	"chatori-be/internal/transport"
)

var (
	// -- Validation & Input --
	ErrInvalidQuantity = errors.New("invalid cart quantity")
	ErrInvalidPrice    = errors.New("price must not be negative")

	// -- Resource State --
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")

	// -- Concurrency --
	ErrConcurrentUpdate = errors.New("cart was modified concurrently, retry")

	// -- Database & Operation Failures --
	ErrFailedGetCart    = errors.New("failed to get cart")
	ErrFailedUpdateCart = errors.New("failed to update cart")
)

var ErrorStatus = transport.StatusMap{
	ErrInvalidQuantity:  http.StatusBadRequest,
	ErrInvalidPrice:     http.StatusBadRequest,
	ErrCartNotFound:     http.StatusNotFound,
	ErrCartItemNotFound: http.StatusNotFound,
	ErrConcurrentUpdate: http.StatusConflict,
}
