package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/marc/credit-identity-api/internal/domain"
)

// AccessClaims are carried by access tokens. ApplicationID is empty for
// sessions not scoped to a client application.
type AccessClaims struct {
	jwt.RegisteredClaims
	Role          string `json:"role"`
	ApplicationID string `json:"application_id,omitempty"`
}

// RefreshClaims are carried by refresh tokens. TokenType marks the
// token so an access token can never masquerade as a refresh token.
type RefreshClaims struct {
	jwt.RegisteredClaims
	TokenType string `json:"token_type"`
}

const refreshTokenType = "refresh"

// parse keys off the expected claim struct; signature errors and
// expiries are classified into the business taxonomy here, once.
func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return domain.ErrTokenExpired
	}
	return domain.ErrInvalidToken
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return secret, nil
	}
}

func newJTI() string {
	return uuid.New().String()
}
