package middleware

import (
	"net/http"

	"chatori-be/internal/auth"
	"chatori-be/internal/logger"
	"chatori-be/internal/transport"

	"go.uber.org/zap"
)

type TokenParser interface {
	Parse(token string) (auth.Principal, error)
}

// Authenticate verifies the access token and attaches the principal.
// Requests without a valid token are rejected with 401.
func Authenticate(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				transport.WriteMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}

			principal, err := parser.Parse(tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Debug("token rejected", zap.Error(err))
				transport.WriteMessage(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets the request through only for the listed roles.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				transport.WriteMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !p.Is(roles...) {
				logger.FromCtx(r.Context()).Warn("role denied",
					zap.String("user_id", p.UserID),
					zap.String("role", string(p.Role)),
					zap.String("path", r.URL.Path),
				)
				transport.WriteMessage(w, http.StatusForbidden, "access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
