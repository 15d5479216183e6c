package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidRole  = errors.New("invalid role claim")
)

type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

// Parse verifies an HS256 token and maps its claims onto a Principal.
func (p *TokenParser) Parse(tokenStr string) (Principal, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}

	userID := claimString(claims, "user_id")
	if userID == "" {
		return Principal{}, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}

	role := Role(claimString(claims, "role"))
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return Principal{}, ErrInvalidRole
	}

	return Principal{
		UserID: userID,
		Email:  claimString(claims, "email"),
		Role:   role,
	}, nil
}

// Issue signs a token for p. Production tokens come from the identity
// service; this is used by tests and local tooling.
func (p *TokenParser) Issue(pr Principal, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": pr.UserID,
		"email":   pr.Email,
		"role":    string(pr.Role),
		"exp":     time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(p.secret)
}

func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
