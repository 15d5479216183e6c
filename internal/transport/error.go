package transport

import (
	"errors"
	"net/http"

	"chatori-be/internal/auth"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrValidation = errors.New("validation failed")
)

// StatusMap maps package sentinel errors onto HTTP status codes.
type StatusMap map[error]int

// StatusOf resolves err against the given maps with errors.Is; unknown
// errors are 500.
func StatusOf(err error, maps ...StatusMap) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	}

	for _, m := range maps {
		for target, code := range m {
			if errors.Is(err, target) {
				return code
			}
		}
	}
	return http.StatusInternalServerError
}
